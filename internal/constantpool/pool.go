// Package constantpool implements the classfile constant pool allocator:
// the simple sequential-growth allocator and the split allocator used
// under config.SplitPool.
package constantpool

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrClassfileLimitExceeded is returned when a pool allocation would push
// the entry count past the JVM classfile format's 65535-entry ceiling.
// internal/classfile checks for this with errors.Is to trigger a
// one-shot retry with every optimization enabled.
var ErrClassfileLimitExceeded = errors.New("constant pool exceeds 65535 entries")

// Tag values for the constant pool entry kinds this translator emits.
const (
	TagUtf8              = 1
	TagInteger           = 3
	TagFloat             = 4
	TagLong              = 5
	TagDouble            = 6
	TagClass             = 7
	TagString            = 8
	TagFieldref          = 9
	TagMethodref         = 10
	TagInterfaceMethodref = 11
	TagNameAndType       = 12
)

// Entry is one constant pool entry, keyed for deduplication by (Tag,
// Bytes) or (Tag, Ref1, Ref2) depending on kind.
type Entry struct {
	Tag      uint8
	Bytes    []byte // Utf8 payload, or raw 4/8-byte value for Integer/Float/Long/Double
	Ref1     uint16 // Class: name index. Fieldref/Methodref: class index. NameAndType: name index.
	Ref2     uint16 // Fieldref/Methodref: name-and-type index. NameAndType: descriptor index.
	key      string // memoized dedup key
}

func (e *Entry) dedupKey() string {
	if e.key == "" {
		e.key = fmt.Sprintf("%d|%d|%d|%s", e.Tag, e.Ref1, e.Ref2, e.Bytes)
	}
	return e.key
}

// width reports how many pool slots this entry consumes: Long and Double
// entries occupy two slots per the classfile spec's "the next usable
// index is the current index plus two" rule.
func (e Entry) width() uint16 {
	if e.Tag == TagLong || e.Tag == TagDouble {
		return 2
	}
	return 1
}

// Pool is the constant pool allocator interface both SimplePool and
// SplitPool implement.
type Pool interface {
	// Utf8 interns a UTF-8 entry and returns its index.
	Utf8(s []byte) (uint16, error)
	// Class interns a CONSTANT_Class entry naming s (already in internal
	// "java/lang/Object" form) and returns its index.
	Class(name []byte) (uint16, error)
	// Integer/Float/Long/Double intern a primitive literal entry eligible
	// for ldc/ldc_w/ldc2_w.
	Integer(v int32) (uint16, error)
	Float(v uint32) (uint16, error)
	Long(v uint64) (uint16, error)
	Double(v uint64) (uint16, error)
	// StringC interns a CONSTANT_String referencing a CONSTANT_Utf8 s.
	StringC(s []byte) (uint16, error)
	// Fieldref/Methodref/InterfaceMethodref intern a member reference.
	Fieldref(class, name, desc []byte) (uint16, error)
	Methodref(class, name, desc []byte, iface bool) (uint16, error)

	// Entries returns the finalized pool contents in index order (index 0
	// is the classfile format's reserved unused slot; Entries()[0] is
	// always the zero Entry and is skipped on write).
	Entries() []Entry
}

// SimplePool allocates every entry sequentially starting at index 1, the
// classfile format's ordinary constant pool growth order.
type SimplePool struct {
	entries []Entry // entries[0] unused
	byKey   map[string]uint16
}

// NewSimplePool returns an empty sequential-growth pool.
func NewSimplePool() *SimplePool {
	return &SimplePool{entries: []Entry{{}}, byKey: map[string]uint16{}}
}

func (p *SimplePool) intern(e Entry) (uint16, error) {
	key := e.dedupKey()
	if idx, ok := p.byKey[key]; ok {
		return idx, nil
	}
	idx := uint16(len(p.entries))
	next := idx + e.width()
	if next == 0 || next > 0xffff {
		return 0, fmt.Errorf("constantpool: allocating entry %d: %w", idx, ErrClassfileLimitExceeded)
	}
	p.entries = append(p.entries, e)
	if e.width() == 2 {
		p.entries = append(p.entries, Entry{}) // second slot unusable, per spec
	}
	p.byKey[key] = idx
	return idx, nil
}

func (p *SimplePool) Utf8(s []byte) (uint16, error) {
	return p.intern(Entry{Tag: TagUtf8, Bytes: append([]byte{}, s...)})
}

func (p *SimplePool) Class(name []byte) (uint16, error) {
	nameIdx, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	return p.intern(Entry{Tag: TagClass, Ref1: nameIdx})
}

func (p *SimplePool) Integer(v int32) (uint16, error) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return p.intern(Entry{Tag: TagInteger, Bytes: b})
}

func (p *SimplePool) Float(v uint32) (uint16, error) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return p.intern(Entry{Tag: TagFloat, Bytes: b})
}

func (p *SimplePool) Long(v uint64) (uint16, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return p.intern(Entry{Tag: TagLong, Bytes: b})
}

func (p *SimplePool) Double(v uint64) (uint16, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return p.intern(Entry{Tag: TagDouble, Bytes: b})
}

func (p *SimplePool) StringC(s []byte) (uint16, error) {
	sIdx, err := p.Utf8(s)
	if err != nil {
		return 0, err
	}
	return p.intern(Entry{Tag: TagString, Ref1: sIdx})
}

func (p *SimplePool) nameAndType(name, desc []byte) (uint16, error) {
	nIdx, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	dIdx, err := p.Utf8(desc)
	if err != nil {
		return 0, err
	}
	return p.intern(Entry{Tag: TagNameAndType, Ref1: nIdx, Ref2: dIdx})
}

func (p *SimplePool) Fieldref(class, name, desc []byte) (uint16, error) {
	cIdx, err := p.Class(class)
	if err != nil {
		return 0, err
	}
	ntIdx, err := p.nameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.intern(Entry{Tag: TagFieldref, Ref1: cIdx, Ref2: ntIdx})
}

func (p *SimplePool) Methodref(class, name, desc []byte, iface bool) (uint16, error) {
	cIdx, err := p.Class(class)
	if err != nil {
		return 0, err
	}
	ntIdx, err := p.nameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	tag := uint8(TagMethodref)
	if iface {
		tag = TagInterfaceMethodref
	}
	return p.intern(Entry{Tag: tag, Ref1: cIdx, Ref2: ntIdx})
}

func (p *SimplePool) Entries() []Entry { return p.entries }
