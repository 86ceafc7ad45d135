package dex

import "github.com/enjarify-go/enjarify/internal/byteio"

// CatchItem is one entry of a try block's catch handler list.
type CatchItem struct {
	Ctype  []byte
	Target int
}

// TryItem is one try block: the instruction range it covers and its catch
// handlers (including a trailing catch-all, represented as ctype
// "java/lang/Throwable").
type TryItem struct {
	Start, End int
	Catches    []CatchItem
}

// CodeItem is a parsed dex code_item: register count and decoded bytecode.
type CodeItem struct {
	Nregs     uint16
	Tries     []TryItem
	Bytecode  []*Instruction
	CatchAddrs map[int]bool
}

func parseCodeItem(dexf *File, raw []byte, off uint32) *CodeItem {
	r := byteio.NewReader(raw[off:])
	nregs := r.U16()
	r.U16() // ins_size, unused
	r.U16() // outs_size, unused
	triesSize := r.U16()
	r.U32() // debug_off, unused
	insnsSize := r.U32()

	codeStartReader := r // cloned: save position at start of instruction stream
	shorts := make([]uint16, insnsSize)
	for i := range shorts {
		shorts[i] = r.U16()
	}
	if triesSize != 0 && insnsSize%2 != 0 {
		r.U16() // padding
	}

	listOffStart := r
	tries := make([]TryItem, triesSize)
	for i := uint16(0); i < triesSize; i++ {
		start := r.U32()
		count := r.U16()
		handlerOff := r.U16()
		tries[i] = TryItem{Start: int(start), End: int(start) + int(count)}
		tries[i].Catches = parseCatchHandlers(dexf, listOffStart, uint32(handlerOff))
	}

	catchAddrs := map[int]bool{}
	for _, t := range tries {
		for _, c := range t.Catches {
			catchAddrs[c.Target] = true
		}
	}

	bytecode := ParseBytecode(dexf, codeStartReader.Data, shorts, catchAddrs)

	return &CodeItem{Nregs: nregs, Tries: tries, Bytecode: bytecode, CatchAddrs: catchAddrs}
}

// parseCatchHandlers reads the encoded_catch_handler_list entry at
// handlerOff (relative to listOffStart): a signed LEB128 size whose sign
// flags whether a trailing catch-all follows, then abs(size) (ctype,
// target) uleb128 pairs, then if size<=0 one more uleb128 target paired
// with a synthetic java/lang/Throwable catch-all.
func parseCatchHandlers(dexf *File, listOffStart byteio.Reader, handlerOff uint32) []CatchItem {
	r := listOffStart.Offset(handlerOff)
	size := r.Sleb128()
	n := size
	if n < 0 {
		n = -n
	}
	catches := make([]CatchItem, 0, n+1)
	for i := int32(0); i < n; i++ {
		ctypeIdx := r.Uleb128()
		target := r.Uleb128()
		catches = append(catches, CatchItem{Ctype: dexf.ClsType(ctypeIdx), Target: int(target)})
	}
	if size <= 0 {
		target := r.Uleb128()
		catches = append(catches, CatchItem{Ctype: []byte("java/lang/Throwable"), Target: int(target)})
	}
	return catches
}

// Field is a parsed class static/instance field.
type Field struct {
	ID            FieldID
	Access        uint32
	ConstantValue ConstantValue
}

// Method is a parsed class direct/virtual method.
type Method struct {
	ID     MethodID
	Access uint32
	Code   *CodeItem // nil for abstract/native methods
}

// Class is a parsed dex class_def plus its (lazily parsed) member data.
type Class struct {
	dexf *File

	Name       []byte
	Access     uint32
	Super      []byte
	HasSuper   bool
	Interfaces [][]byte

	dataOff            uint32
	constantValuesOff  uint32
}

func parseClass(dexf *File, off uint32) *Class {
	nameIdx := dexf.u32At(off)
	access := dexf.u32At(off + 4)
	superIdx := dexf.u32At(off + 8)
	interfacesOff := dexf.u32At(off + 12)
	// srcfile (off+16), annotations_off (off+20): unused
	dataOff := dexf.u32At(off + 24)
	constantValuesOff := dexf.u32At(off + 28)

	super, hasSuper := dexf.ClsTypeOpt(superIdx)

	return &Class{
		dexf:              dexf,
		Name:              dexf.ClsType(nameIdx),
		Access:            access,
		Super:             super,
		HasSuper:          hasSuper,
		Interfaces:        dexf.TypeList(interfacesOff, true),
		dataOff:           dataOff,
		constantValuesOff: constantValuesOff,
	}
}

// ParseData parses the class_data_item: static and instance fields,
// direct and virtual methods, and applies any ConstantValue encoded_array
// to the first len(values) static fields in declaration order (a dex/ART
// convention: only the leading static fields can carry a ConstantValue).
func (c *Class) ParseData() ([]Field, []Method) {
	if c.dataOff == 0 {
		return nil, nil
	}
	r := byteio.NewReader(c.dexf.Raw[c.dataOff:])
	numStatic := r.Uleb128()
	numInstance := r.Uleb128()
	numDirect := r.Uleb128()
	numVirtual := r.Uleb128()

	var fields []Field
	fieldIdx := uint32(0)
	for _, n := range []uint32{numStatic, numInstance} {
		for i := uint32(0); i < n; i++ {
			fieldIdx += r.Uleb128()
			access := r.Uleb128()
			fields = append(fields, Field{ID: c.dexf.FieldIDAt(fieldIdx), Access: access})
		}
	}

	var methods []Method
	methodIdx := uint32(0)
	for _, n := range []uint32{numDirect, numVirtual} {
		for i := uint32(0); i < n; i++ {
			methodIdx += r.Uleb128()
			access := r.Uleb128()
			codeOff := r.Uleb128()
			var code *CodeItem
			if codeOff != 0 {
				code = parseCodeItem(c.dexf, c.dexf.Raw, codeOff)
			}
			methods = append(methods, Method{ID: c.dexf.MethodIDAt(methodIdx), Access: access, Code: code})
		}
	}

	if c.constantValuesOff != 0 {
		cr := byteio.NewReader(c.dexf.Raw[c.constantValuesOff:])
		size := cr.Uleb128()
		for i := uint32(0); i < size && int(i) < len(fields); i++ {
			fields[i].ConstantValue = c.dexf.EncodedValue(&cr)
		}
	}

	return fields, methods
}

// Classes returns every class defined in the dex file.
func (f *File) Classes() []*Class {
	out := make([]*Class, f.ClassDefs.Size)
	for i := uint32(0); i < f.ClassDefs.Size; i++ {
		out[i] = parseClass(f, f.ClassDefs.Off+i*32)
	}
	return out
}
