// Package byteio implements the little-endian reader used to walk a dex
// file's raw bytes and the big-endian writer used to emit a JVM
// classfile, mirroring the asymmetric endianness of the two formats.
package byteio

import "encoding/binary"

// Reader is a cursor over a shared, immutable byte slice. Copying a Reader
// by value (as Go naturally does on assignment) produces an independent
// cursor over the same underlying bytes, which is used throughout the dex
// model to save/restore read positions cheaply.
type Reader struct {
	Data []byte
}

// NewReader wraps buf for reading starting at offset 0.
func NewReader(buf []byte) Reader { return Reader{Data: buf} }

// Offset returns a new Reader positioned off bytes past this Reader's
// current position. The start of the original slice is not tracked;
// callers that need absolute offsets keep the original full-file slice
// around and construct a fresh Reader via NewReader(full[off:]).
func (r Reader) Offset(off uint32) Reader {
	return Reader{Data: r.Data[off:]}
}

// Read splits off the next size bytes and advances the cursor past them.
func (r *Reader) Read(size int) []byte {
	b := r.Data[:size]
	r.Data = r.Data[size:]
	return b
}

func (r *Reader) U8() uint8 {
	b := r.Read(1)
	return b[0]
}

func (r *Reader) U16() uint16 {
	return binary.LittleEndian.Uint16(r.Read(2))
}

func (r *Reader) U32() uint32 {
	return binary.LittleEndian.Uint32(r.Read(4))
}

func (r *Reader) U64() uint64 {
	return binary.LittleEndian.Uint64(r.Read(8))
}

// Uleb128 reads an unsigned LEB128 value.
func (r *Reader) Uleb128() uint32 {
	v, _ := r.leb128()
	return v
}

// Sleb128 reads a signed LEB128 value, sign-extending based on the number
// of bits actually consumed.
func (r *Reader) Sleb128() int32 {
	v, bits := r.leb128()
	if bits < 32 && v&(1<<(bits-1)) != 0 {
		v |= ^uint32(0) << bits
	}
	return int32(v)
}

// leb128 accumulates 7-bit groups and reports the total number of value
// bits consumed, which Sleb128 needs to sign-extend correctly.
func (r *Reader) leb128() (uint32, uint) {
	var result uint32
	var shift uint
	for {
		b := r.U8()
		result |= uint32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return result, shift
}

// Cstr reads a NUL-terminated byte string (the bytes preceding the NUL).
func (r *Reader) Cstr() []byte {
	i := 0
	for r.Data[i] != 0 {
		i++
	}
	s := r.Data[:i]
	r.Data = r.Data[i+1:]
	return s
}
