package constantpool

import "fmt"

// SplitPool allocates ldc-eligible entries (Integer, Float, String) from
// the low end of the index space (1, 2, 3, ...) and every other entry
// (Class, member refs, Long/Double, NameAndType, and any Utf8 not
// directly referenced by an ldc-eligible entry) from the high end
// (65534, 65533, ...), so a method whose bytecode only ever needs a
// two-byte ldc never pays for ldc_w just because some unrelated method
// in the same class needed many member references. The gap between the
// two growth fronts is filled with distinct placeholder Utf8 entries
// ("$pad<index>") at Entries() time, once final sizes are known.
type SplitPool struct {
	low  []Entry // grows forward from index 1
	high []Entry // grows backward conceptually; stored in allocation order
	byKey map[string]uint16
	finalized bool
	lowCount, highCount int
}

const highStart = 0xfffe // 65534

func NewSplitPool() *SplitPool {
	return &SplitPool{byKey: map[string]uint16{}}
}

func (p *SplitPool) internLow(e Entry) (uint16, error) {
	key := e.dedupKey()
	if idx, ok := p.byKey[key]; ok {
		return idx, nil
	}
	idx := uint16(1 + p.lowCount)
	p.lowCount += int(e.width())
	if uint32(1+p.lowCount) >= uint32(highStart)-uint32(p.highCount) {
		return 0, fmt.Errorf("constantpool: low/high fronts collided: %w", ErrClassfileLimitExceeded)
	}
	p.low = append(p.low, e)
	p.byKey[key] = idx
	return idx, nil
}

func (p *SplitPool) internHigh(e Entry) (uint16, error) {
	key := e.dedupKey()
	if idx, ok := p.byKey[key]; ok {
		return idx, nil
	}
	p.highCount += int(e.width())
	idx := uint16(highStart + 1 - p.highCount)
	if uint32(highStart)-uint32(p.highCount) <= uint32(1+p.lowCount) {
		return 0, fmt.Errorf("constantpool: low/high fronts collided: %w", ErrClassfileLimitExceeded)
	}
	p.high = append(p.high, e)
	p.byKey[key] = idx
	return idx, nil
}

func (p *SplitPool) Utf8(s []byte) (uint16, error) {
	return p.internHigh(Entry{Tag: TagUtf8, Bytes: append([]byte{}, s...)})
}

func (p *SplitPool) Class(name []byte) (uint16, error) {
	nameIdx, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	return p.internHigh(Entry{Tag: TagClass, Ref1: nameIdx})
}

func (p *SplitPool) Integer(v int32) (uint16, error) {
	return p.internLow(Entry{Tag: TagInteger, Bytes: int32Bytes(v)})
}

func (p *SplitPool) Float(v uint32) (uint16, error) {
	return p.internLow(Entry{Tag: TagFloat, Bytes: uint32Bytes(v)})
}

func (p *SplitPool) Long(v uint64) (uint16, error) {
	return p.internHigh(Entry{Tag: TagLong, Bytes: uint64Bytes(v)})
}

func (p *SplitPool) Double(v uint64) (uint16, error) {
	return p.internHigh(Entry{Tag: TagDouble, Bytes: uint64Bytes(v)})
}

func (p *SplitPool) StringC(s []byte) (uint16, error) {
	sIdx, err := p.Utf8(s)
	if err != nil {
		return 0, err
	}
	return p.internLow(Entry{Tag: TagString, Ref1: sIdx})
}

func (p *SplitPool) nameAndType(name, desc []byte) (uint16, error) {
	nIdx, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	dIdx, err := p.Utf8(desc)
	if err != nil {
		return 0, err
	}
	return p.internHigh(Entry{Tag: TagNameAndType, Ref1: nIdx, Ref2: dIdx})
}

func (p *SplitPool) Fieldref(class, name, desc []byte) (uint16, error) {
	cIdx, err := p.Class(class)
	if err != nil {
		return 0, err
	}
	ntIdx, err := p.nameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.internHigh(Entry{Tag: TagFieldref, Ref1: cIdx, Ref2: ntIdx})
}

func (p *SplitPool) Methodref(class, name, desc []byte, iface bool) (uint16, error) {
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
	return p.internHigh(Entry{Tag: tag, Ref1: cIdx, Ref2: ntIdx})
}

// Entries lays out the final pool: low entries at their already-assigned
// indices, high entries at their already-assigned indices counting down
// from highStart, and placeholder Utf8 entries ("$pad<index>", distinct
// per index) filling whatever gap remains between the two fronts.
func (p *SplitPool) Entries() []Entry {
	highTop := highStart - p.highCount + 1
	lowTop := 1 + p.lowCount
	// The classfile's constant_pool_count must cover every index up to the
	// highest one actually used: if any high entry was allocated, that's
	// always highStart (the first, and so highest-indexed, high
	// allocation), regardless of how little of the low front was used.
	size := lowTop
	if p.highCount > 0 {
		size = highStart + 1
	}
	out := make([]Entry, size)

	idx := uint16(1)
	for _, e := range p.low {
		out[idx] = e
		idx += e.width()
	}
	if p.highCount > 0 {
		for i := lowTop; i < highTop; i++ {
			out[i] = Entry{Tag: TagUtf8, Bytes: placeholderBytes(i)}
		}
	}
	// each high entry was given the lowest index of the width() slots it
	// took below the previous allocation (a Long/Double's second slot is
	// the one above its index); replay that same forward order here to
	// reproduce identical indices.
	top := highStart + 1
	for _, e := range p.high {
		top -= int(e.width())
		out[top] = e
	}
	return out[:size]
}

func placeholderBytes(i int) []byte {
	return []byte(fmt.Sprintf("$pad%d", i))
}

func int32Bytes(v int32) []byte {
	return uint32Bytes(uint32(v))
}

func uint32Bytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func uint64Bytes(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}
