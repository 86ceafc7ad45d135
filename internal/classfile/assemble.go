package classfile

import (
	"fmt"

	"github.com/enjarify-go/enjarify/internal/byteio"
	"github.com/enjarify-go/enjarify/internal/constantpool"
	"github.com/enjarify-go/enjarify/internal/dex"
)

// classWriter holds the already-populated constant pool shared by every
// field and method in one class while the final byte stream is built.
type classWriter struct {
	pool constantpool.Pool
}

func newClassWriter(pool constantpool.Pool) *classWriter {
	return &classWriter{pool: pool}
}

// build assembles the finished classfile: magic/version, constant pool,
// access flags, this/super/interfaces, fields, methods, and a trailing
// empty class-level attributes list. compiled is keyed by index into
// methods (only entries with Code != nil are present).
func (w *classWriter) build(class *dex.Class, fields []dex.Field, methods []dex.Method, compiled map[int]CompiledMethod) ([]byte, error) {
	thisIdx, err := w.pool.Class(class.Name)
	if err != nil {
		return nil, err
	}
	var superIdx uint16
	if class.HasSuper {
		superIdx, err = w.pool.Class(class.Super)
		if err != nil {
			return nil, err
		}
	}
	ifaceIdxs := make([]uint16, len(class.Interfaces))
	for i, iface := range class.Interfaces {
		idx, err := w.pool.Class(iface)
		if err != nil {
			return nil, err
		}
		ifaceIdxs[i] = idx
	}

	fieldBytes := make([][]byte, len(fields))
	for i, f := range fields {
		b, err := w.writeField(f)
		if err != nil {
			return nil, err
		}
		fieldBytes[i] = b
	}

	methodBytes := make([][]byte, len(methods))
	for i, m := range methods {
		cm, hasCode := compiled[i]
		b, err := w.writeMethod(m, cm, hasCode)
		if err != nil {
			return nil, err
		}
		methodBytes[i] = b
	}

	// Every pool entry has now been interned; lay out the final indices.
	entries := w.pool.Entries()
	if len(entries) == 0 || len(entries) > 0xffff {
		return nil, fmt.Errorf("classfile: constant pool size %d out of range: %w", len(entries), constantpool.ErrClassfileLimitExceeded)
	}

	out := &byteio.Writer{}
	out.U32(classfileMagic)
	out.U16(classfileMinorVersion)
	out.U16(classfileMajorVersion)

	out.U16(uint16(len(entries)))
	for i := 1; i < len(entries); i++ {
		e := entries[i]
		width := writeConstantPoolEntry(out, e)
		if width == 2 {
			i++ // the second slot of a Long/Double entry is unused, per spec
		}
	}

	out.U16(ClassFlags(class.Access))
	out.U16(thisIdx)
	out.U16(superIdx)

	out.U16(uint16(len(ifaceIdxs)))
	for _, idx := range ifaceIdxs {
		out.U16(idx)
	}

	out.U16(uint16(len(fieldBytes)))
	for _, b := range fieldBytes {
		out.Write(b)
	}

	out.U16(uint16(len(methodBytes)))
	for _, b := range methodBytes {
		out.Write(b)
	}

	out.U16(0) // no class-level attributes

	return out.Buf, nil
}

// writeConstantPoolEntry emits one constant_pool entry in classfile form
// and returns its width (1, or 2 for Long/Double, whose second index is
// left unused by the format).
func writeConstantPoolEntry(out *byteio.Writer, e constantpool.Entry) int {
	switch e.Tag {
	case constantpool.TagUtf8:
		out.U8(e.Tag)
		out.U16(uint16(len(e.Bytes)))
		out.Write(e.Bytes)
		return 1
	case constantpool.TagInteger, constantpool.TagFloat:
		out.U8(e.Tag)
		out.Write(e.Bytes)
		return 1
	case constantpool.TagLong, constantpool.TagDouble:
		out.U8(e.Tag)
		out.Write(e.Bytes)
		return 2
	case constantpool.TagClass, constantpool.TagString:
		out.U8(e.Tag)
		out.U16(e.Ref1)
		return 1
	case constantpool.TagFieldref, constantpool.TagMethodref, constantpool.TagInterfaceMethodref, constantpool.TagNameAndType:
		out.U8(e.Tag)
		out.U16(e.Ref1)
		out.U16(e.Ref2)
		return 1
	default:
		// an empty Entry{} slot: the classfile format has no such thing.
		// Both pools leave one at index 0 and in the second slot of every
		// Long/Double, and build skips those.
		out.U8(constantpool.TagUtf8)
		out.U16(0)
		return 1
	}
}

// writeField emits one field_info: access flags, name/descriptor, and a
// ConstantValue attribute for the static final fields dex recorded an
// initial value for.
func (w *classWriter) writeField(f dex.Field) ([]byte, error) {
	nameIdx, err := w.pool.Utf8(f.ID.Name)
	if err != nil {
		return nil, err
	}
	descIdx, err := w.pool.Utf8(f.ID.Desc)
	if err != nil {
		return nil, err
	}

	attr, err := w.constantValueAttribute(f)
	if err != nil {
		return nil, err
	}

	out := &byteio.Writer{}
	out.U16(FieldFlags(f.Access))
	out.U16(nameIdx)
	out.U16(descIdx)
	if attr == nil {
		out.U16(0)
	} else {
		out.U16(1)
		out.Write(attr)
	}
	return out.Buf, nil
}

// constantValueAttribute builds a field's ConstantValue attribute, or
// returns nil if dex recorded no constant (or recorded one this format
// can't represent, such as an array). The constant's pool tag must match
// the field's descriptor: a dex encoded_value doesn't carry int-vs-float
// or long-vs-double distinctions any more finely than its own size class,
// so the field descriptor is what actually picks Integer/Float vs
// Long/Double here.
func (w *classWriter) constantValueAttribute(f dex.Field) ([]byte, error) {
	switch f.ConstantValue.Kind {
	case dex.CVNone, dex.CVInvalid:
		return nil, nil
	}

	nameIdx, err := w.pool.Utf8([]byte("ConstantValue"))
	if err != nil {
		return nil, err
	}

	var valueIdx uint16
	switch f.ConstantValue.Kind {
	case dex.CVConst32:
		if f.ID.Desc[0] == 'F' {
			valueIdx, err = w.pool.Float(f.ConstantValue.U32)
		} else {
			valueIdx, err = w.pool.Integer(int32(f.ConstantValue.U32))
		}
	case dex.CVConst64:
		if f.ID.Desc[0] == 'D' {
			valueIdx, err = w.pool.Double(f.ConstantValue.U64)
		} else {
			valueIdx, err = w.pool.Long(f.ConstantValue.U64)
		}
	case dex.CVString:
		valueIdx, err = w.pool.StringC(f.ConstantValue.Bytes)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &byteio.Writer{}
	out.U16(nameIdx)
	out.U32(2) // attribute_length: one u2 constantvalue_index
	out.U16(valueIdx)
	return out.Buf, nil
}

// writeMethod emits one method_info: access flags, name/descriptor, and
// (for concrete methods) a single Code attribute built from cm.
func (w *classWriter) writeMethod(m dex.Method, cm CompiledMethod, hasCode bool) ([]byte, error) {
	nameIdx, err := w.pool.Utf8(m.ID.Name)
	if err != nil {
		return nil, err
	}
	descIdx, err := w.pool.Utf8([]byte(m.ID.Desc))
	if err != nil {
		return nil, err
	}

	out := &byteio.Writer{}
	out.U16(MethodFlags(m.Access))
	out.U16(nameIdx)
	out.U16(descIdx)

	if !hasCode {
		out.U16(0)
		return out.Buf, nil
	}

	codeAttr, err := w.codeAttribute(cm)
	if err != nil {
		return nil, err
	}
	out.U16(1)
	out.Write(codeAttr)
	return out.Buf, nil
}

func (w *classWriter) codeAttribute(cm CompiledMethod) ([]byte, error) {
	nameIdx, err := w.pool.Utf8([]byte("Code"))
	if err != nil {
		return nil, err
	}

	body := &byteio.Writer{}
	body.U16(cm.MaxStack)
	body.U16(cm.MaxLocals)
	body.U32(uint32(len(cm.Code)))
	body.Write(cm.Code)

	body.U16(uint16(len(cm.Exceptions)))
	for _, e := range cm.Exceptions {
		body.U16(e.StartPC)
		body.U16(e.EndPC)
		body.U16(e.HandlerPC)
		body.U16(e.CatchType)
	}

	body.U16(0) // no Code-level attributes (LineNumberTable, etc.)

	out := &byteio.Writer{}
	out.U16(nameIdx)
	out.U32(uint32(body.Len()))
	out.Write(body.Buf)
	return out.Buf, nil
}
