package optimize

import (
	"fmt"
	"math"
	"sort"

	"github.com/enjarify-go/enjarify/internal/constantpool"
	"github.com/enjarify-go/enjarify/internal/constants"
	"github.com/enjarify-go/enjarify/internal/ir"
)

// Candidate is one constant eligible for pool allocation instead of
// synthesis, gathered from every method in the class before any slot is
// handed out.
type Candidate struct {
	ID          int
	MethodIdx   int
	Key         string
	IsLong      bool
	IsFloat     bool
	IsDouble    bool
	Int         int32
	Long        int64
	Float       float32
	Double      float64
	UseCount    int
	Synthesized []byte
}

// score is the savings from converting c to a pool reference instead of
// leaving its synthesized form in place: (len(synthesized) - 3) *
// use_count (3 bytes is an ldc_w reference; the allocator below doesn't
// distinguish the 2-byte ldc case, a minor under-estimate of savings for
// low constant-pool indices).
func (c Candidate) score() int {
	return (len(c.Synthesized) - 3) * c.UseCount
}

// CollectCandidates scans every method's IR for KindPrimConstant nodes and
// records each distinct value's synthesized length and use count within
// its method, for later scoring by AllocateRequiredConstants. Implements
// delay_consts: every constant is still emitted as its synthesized byte
// sequence during normal IR construction (internal/irbuilder always
// synthesizes), even when a shorter pool-backed ldc would exist; this
// pass decides, after every method in the class has been built, which of
// those synthesized forms should instead become a pool reference.
func CollectCandidates(methods [][]ir.Instruction) []Candidate {
	var out []Candidate
	nextID := 0
	for mi, ops := range methods {
		uses := map[string]int{}
		order := []string{}
		first := map[string]ir.Instruction{}
		for _, in := range ops {
			if in.Kind != ir.KindPrimConstant {
				continue
			}
			key := constKey(in)
			if uses[key] == 0 {
				order = append(order, key)
				first[key] = in
			}
			uses[key]++
		}
		for _, key := range order {
			in := first[key]
			c := Candidate{
				ID: nextID, MethodIdx: mi, Key: key,
				IsLong: in.PrimIsLong, IsFloat: in.PrimIsFloat, IsDouble: in.PrimIsDouble,
				Int: in.PrimInt, Long: in.PrimLong, Float: in.PrimFloat, Double: in.PrimDouble,
				UseCount: uses[key], Synthesized: synthesize(in),
			}
			nextID++
			out = append(out, c)
		}
	}
	return out
}

// ConstKey renders a KindPrimConstant instruction's value to a dedup key
// stable across CollectCandidates and internal/classfile's later lookup
// of a method's resolved pool slots by the same key.
func ConstKey(in ir.Instruction) string {
	switch {
	case in.PrimIsLong:
		return fmt.Sprintf("L%d", in.PrimLong)
	case in.PrimIsFloat:
		return fmt.Sprintf("F%d", math.Float32bits(in.PrimFloat))
	case in.PrimIsDouble:
		return fmt.Sprintf("D%d", math.Float64bits(in.PrimDouble))
	default:
		return fmt.Sprintf("I%d", in.PrimInt)
	}
}

func constKey(in ir.Instruction) string { return ConstKey(in) }

func synthesize(in ir.Instruction) []byte {
	switch {
	case in.PrimIsLong:
		b, _ := constants.LongBytes(in.PrimLong)
		return b
	case in.PrimIsFloat:
		b, _ := constants.FloatBytes(in.PrimFloat)
		return b
	case in.PrimIsDouble:
		b, _ := constants.DoubleBytes(in.PrimDouble)
		return b
	default:
		b, _ := constants.IntBytes(in.PrimInt)
		return b
	}
}

// AllocateRequiredConstants hands out pool slots, highest savings first,
// to every candidate whose synthesized form costs more bytes than a pool
// reference would (score > 0); candidates with score <= 0 keep their
// synthesized form. The returned map is keyed by Candidate.ID.
func AllocateRequiredConstants(pool constantpool.Pool, cands []Candidate) (map[int]uint16, error) {
	sort.Slice(cands, func(i, j int) bool { return cands[i].score() > cands[j].score() })
	out := map[int]uint16{}
	for _, c := range cands {
		if c.score() <= 0 {
			continue
		}
		var idx uint16
		var err error
		switch {
		case c.IsLong:
			idx, err = pool.Long(uint64(c.Long))
		case c.IsFloat:
			idx, err = pool.Float(math.Float32bits(c.Float))
		case c.IsDouble:
			idx, err = pool.Double(math.Float64bits(c.Double))
		default:
			idx, err = pool.Integer(c.Int)
		}
		if err != nil {
			return out, err
		}
		out[c.ID] = idx
	}
	return out, nil
}
