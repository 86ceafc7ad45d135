package byteio

import "encoding/binary"

// Writer accumulates the big-endian byte stream of a JVM classfile (or a
// fragment of one, such as a Code attribute body built in isolation and
// spliced in later).
type Writer struct {
	Buf []byte
}

func (w *Writer) Write(b []byte) { w.Buf = append(w.Buf, b...) }

func (w *Writer) U8(v uint8) { w.Buf = append(w.Buf, v) }

func (w *Writer) U16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Buf = append(w.Buf, b[:]...)
}

func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Buf = append(w.Buf, b[:]...)
}

func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Buf = append(w.Buf, b[:]...)
}

func (w *Writer) Len() int { return len(w.Buf) }
