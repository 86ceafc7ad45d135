package dex

import "github.com/enjarify-go/enjarify/internal/byteio"

// ConstantValueKind tags the possible decoded forms of a dex encoded_value,
// used to build a field's JVM ConstantValue attribute.
type ConstantValueKind uint8

const (
	CVNone ConstantValueKind = iota
	CVInvalid                // encoded as ARRAY or ANNOTATION: skipped, not representable as a ConstantValue
	CVConst32
	CVConst64
	CVString
	CVType
)

type ConstantValue struct {
	Kind  ConstantValueKind
	U32   uint32
	U64   uint64
	Bytes []byte // resolved string (CVString) or class name (CVType)
}

// EncodedValue decodes one dex encoded_value at the reader's current
// position, per the dex format's tag/arg byte scheme.
func (f *File) EncodedValue(r *byteio.Reader) ConstantValue {
	tag := r.U8()
	vtype := tag & 0x1f
	varg := tag >> 5

	switch vtype {
	case 0x1c: // ARRAY
		size := r.Uleb128()
		for i := uint32(0); i < size; i++ {
			f.EncodedValue(r)
		}
		return ConstantValue{Kind: CVInvalid}
	case 0x1d: // ANNOTATION
		r.Uleb128() // type_idx
		size := r.Uleb128()
		for i := uint32(0); i < size; i++ {
			r.Uleb128() // name_idx
			f.EncodedValue(r)
		}
		return ConstantValue{Kind: CVInvalid}
	case 0x1e: // NULL
		return ConstantValue{Kind: CVNone}
	case 0x1f: // BOOLEAN
		return ConstantValue{Kind: CVConst32, U32: uint32(varg)}
	}

	size := int(varg) + 1
	var val uint64
	for i := 0; i < size; i++ {
		val |= uint64(r.U8()) << (8 * uint(i))
	}

	switch vtype {
	case 0x00: // BYTE
		v := int8(val)
		return ConstantValue{Kind: CVConst32, U32: uint32(int32(v))}
	case 0x02: // SHORT
		v := int16(val)
		return ConstantValue{Kind: CVConst32, U32: uint32(int32(v))}
	case 0x03: // CHAR
		return ConstantValue{Kind: CVConst32, U32: uint32(uint16(val))}
	case 0x04: // INT
		return ConstantValue{Kind: CVConst32, U32: uint32(val)}
	case 0x06: // LONG
		return ConstantValue{Kind: CVConst64, U64: val}
	case 0x10: // FLOAT: right-align size bytes, zero-extend on the right
		return ConstantValue{Kind: CVConst32, U32: uint32(val << (32 - uint(size)*8))}
	case 0x11: // DOUBLE
		return ConstantValue{Kind: CVConst64, U64: val << (64 - uint(size)*8)}
	case 0x17: // STRING
		return ConstantValue{Kind: CVString, Bytes: f.String(uint32(val))}
	case 0x18: // TYPE
		return ConstantValue{Kind: CVType, Bytes: f.ClsType(uint32(val))}
	default:
		return ConstantValue{Kind: CVNone}
	}
}
