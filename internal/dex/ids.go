package dex

// FieldID identifies a field: its declaring class, name, and descriptor.
type FieldID struct {
	Cname []byte
	Name  []byte
	Desc  []byte
}

func (f *File) FieldIDAt(idx uint32) FieldID {
	off := f.FieldIDs.Off + idx*8
	cnameIdx := uint32(f.u16At(off))
	descIdx := uint32(f.u16At(off + 2))
	nameIdx := f.u32At(off + 4)
	return FieldID{
		Cname: f.ClsType(cnameIdx),
		Desc:  f.RawType(descIdx),
		Name:  f.String(nameIdx),
	}
}

func (f *File) u16At(off uint32) uint16 {
	return uint16(f.Raw[off]) | uint16(f.Raw[off+1])<<8
}

// MethodID identifies a method: its declaring class, name, descriptor,
// return type, and parameter types.
type MethodID struct {
	MethodIdx   uint32
	Cname       []byte // cdesc, in "L...;" form suitable for a "this" parameter type
	Name        []byte
	ReturnType  []byte
	ParamTypes  [][]byte
	Desc        string // "(param...)return", built from ParamTypes/ReturnType
}

func (f *File) MethodIDAt(idx uint32) MethodID {
	off := f.MethodIDs.Off + idx*8
	cnameIdx := uint32(f.u16At(off))
	protoIdx := uint32(f.u16At(off + 2))
	nameIdx := f.u32At(off + 4)

	protoOff := f.ProtoIDs.Off + protoIdx*12
	// skip shorty_idx (u32) at protoOff
	returnTypeIdx := f.u32At(protoOff + 4)
	paramsOff := f.u32At(protoOff + 8)

	paramTypes := f.TypeList(paramsOff, false)
	returnType := f.RawType(returnTypeIdx)

	var desc []byte
	desc = append(desc, '(')
	for _, p := range paramTypes {
		desc = append(desc, p...)
	}
	desc = append(desc, ')')
	desc = append(desc, returnType...)

	return MethodID{
		MethodIdx:  idx,
		Cname:      f.RawType(cnameIdx),
		Name:       f.String(nameIdx),
		ReturnType: returnType,
		ParamTypes: paramTypes,
		Desc:       string(desc),
	}
}

// SpacedParamTypes returns, for the purpose of register-window assignment,
// one optional descriptor slot per Dalvik register a call/parameter list
// occupies: the "this" type first if not static, then each parameter type,
// with an extra nil slot after any long/double parameter (which occupies
// two consecutive Dalvik registers).
func (m MethodID) SpacedParamTypes(isStatic bool) [][]byte {
	out := make([][]byte, 0, len(m.ParamTypes)+2)
	if !isStatic {
		out = append(out, m.Cname)
	}
	for _, p := range m.ParamTypes {
		out = append(out, p)
		if p[0] == 'J' || p[0] == 'D' {
			out = append(out, nil)
		}
	}
	return out
}
