// Package dex parses the dex file format: the header's id-table offsets,
// lazily-resolved strings/types/protos/fields/methods, encoded field
// values, code items, and the class definitions that tie them together.
// It also owns Dalvik bytecode decoding (dalvik.go, dalvikformats.go),
// which needs to resolve method and type names mid-decode (to compute a
// MoveResult's implied type and a FilledNewArray's element type) and so is
// kept in the same package as the dex model it depends on rather than
// split across package boundaries.
package dex

import (
	"errors"
	"fmt"

	"github.com/enjarify-go/enjarify/internal/byteio"
	"github.com/enjarify-go/enjarify/internal/mutf8"
)

// ErrBadHeader is returned by Parse when the input isn't a recognizable
// dex file (wrong header_size or endian_tag). This is a file-level,
// non-recoverable condition distinct from the per-class MalformedDexError
// internal/classfile raises for invariant violations within an otherwise
// well-formed dex file.
var ErrBadHeader = errors.New("dex: not a valid dex file")

// NoIndex is the dex sentinel meaning "no index" for optional type/field
// references (0xFFFFFFFF).
const NoIndex = 0xFFFFFFFF

// SizeOff is a (count, offset) pair as dex header id-table entries are
// stored.
type SizeOff struct {
	Size uint32
	Off  uint32
}

// File is a parsed dex file: the raw bytes plus the header's id-table
// locations. Every other lookup (String, RawType, ClsType, ...) re-reads
// directly from Raw using these offsets, rather than eagerly materializing
// every string/type up front.
type File struct {
	Raw []byte

	StringIDs  SizeOff
	TypeIDs    SizeOff
	ProtoIDs   SizeOff
	FieldIDs   SizeOff
	MethodIDs  SizeOff
	ClassDefs  SizeOff
	Data       SizeOff
}

// Parse reads a dex file's header and id-table offsets from raw.
func Parse(raw []byte) (*File, error) {
	r := byteio.NewReader(raw)
	r.Read(36) // magic, checksum, signature, file_size

	headerSize := r.U32()
	if headerSize != 0x70 {
		return nil, fmt.Errorf("%w: header_size %#x", ErrBadHeader, headerSize)
	}
	endianTag := r.U32()
	if endianTag != 0x12345678 {
		return nil, fmt.Errorf("%w: endian_tag %#x", ErrBadHeader, endianTag)
	}

	r.Read(8) // link_size, link_off (unused)
	r.Read(4) // map_off (unused)

	f := &File{Raw: raw}
	f.StringIDs = SizeOff{r.U32(), r.U32()}
	f.TypeIDs = SizeOff{r.U32(), r.U32()}
	f.ProtoIDs = SizeOff{r.U32(), r.U32()}
	f.FieldIDs = SizeOff{r.U32(), r.U32()}
	f.MethodIDs = SizeOff{r.U32(), r.U32()}
	f.ClassDefs = SizeOff{r.U32(), r.U32()}
	f.Data = SizeOff{r.U32(), r.U32()}
	return f, nil
}

// Checksum returns the dex header's own adler32 checksum (header_item's
// checksum field, bytes 8-12), used by internal/translate as a cheap,
// no-rehash cache key component instead of hashing Raw again.
func (f *File) Checksum() uint32 {
	return f.u32At(8)
}

func (f *File) u32At(off uint32) uint32 {
	r := byteio.NewReader(f.Raw[off:])
	return r.U32()
}

// String returns the i'th dex string, decoded from its modified-UTF-8
// encoding.
func (f *File) String(i uint32) []byte {
	dataOff := f.u32At(f.StringIDs.Off + i*4)
	r := byteio.NewReader(f.Raw[dataOff:])
	r.Uleb128() // decoded UTF-16 length, not needed since we decode to the NUL terminator
	raw := r.Cstr()
	return []byte(mutf8.Decode(raw))
}

// RawType returns the i'th type's raw descriptor string (e.g. "Ljava/lang/Object;", "I").
func (f *File) RawType(i uint32) []byte {
	return f.String(f.u32At(f.TypeIDs.Off + i*4))
}

// ClsType returns a type's descriptor with the "L" prefix and ";" suffix
// stripped off if present, the form used for CONSTANT_Class entries and
// class names (e.g. "Ljava/lang/Object;" -> "java/lang/Object").
func (f *File) ClsType(i uint32) []byte {
	raw := f.RawType(i)
	if len(raw) > 0 && raw[0] == 'L' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

// ClsTypeOpt is ClsType but returns (nil, false) for the NoIndex sentinel.
func (f *File) ClsTypeOpt(i uint32) ([]byte, bool) {
	if i == NoIndex {
		return nil, false
	}
	return f.ClsType(i), true
}

// TypeList reads a type_list structure at off (0 means an empty list). If
// parseClsDesc is true, entries are read via ClsType (used for interface
// lists); otherwise via RawType (used for parameter lists).
func (f *File) TypeList(off uint32, parseClsDesc bool) [][]byte {
	if off == 0 {
		return nil
	}
	r := byteio.NewReader(f.Raw[off:])
	size := r.U32()
	out := make([][]byte, size)
	for i := uint32(0); i < size; i++ {
		idx := uint32(r.U16())
		if parseClsDesc {
			out[i] = f.ClsType(idx)
		} else {
			out[i] = f.RawType(idx)
		}
	}
	return out
}
