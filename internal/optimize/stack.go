// Package optimize implements eight independent IR-rewrite passes
// (inline_consts, prune_store_loads, copy_propagation, remove_unused_regs,
// dup2ize, sort_registers, split_pool, delay_consts) plus a jump-width
// fixed point. Every pass operates on a linear region at a time: a
// maximal run of IR with no incoming label other than its first
// instruction and no exception-range boundary inside it, since none of
// these rewrites are sound across a control-flow merge.
package optimize

import (
	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/jvmops"
)

// regions splits ops into maximal linear runs: a new region starts at
// index 0 and at every label (branch target or exception-range marker),
// since any of those can be reached from more than one place.
func regions(ops []ir.Instruction) [][2]int {
	var out [][2]int
	start := 0
	for i, in := range ops {
		if in.Kind == ir.KindLabel && i > start {
			out = append(out, [2]int{start, i})
			start = i
		}
	}
	if start < len(ops) {
		out = append(out, [2]int{start, len(ops)})
	}
	return out
}

// InlineConsts implements inline_consts: a constant-producing instruction
// immediately followed by a store, where the stored key is read exactly
// once before being overwritten or the region ends, is inlined at its
// single use and the store/reload pair is deleted. A constant read more
// than once, or never read within the region, is left as a materialized
// store (the unread case becomes dead and is cleaned up by
// RemoveUnusedRegs instead of here).
func InlineConsts(ops []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(ops))
	for _, r := range regions(ops) {
		out = append(out, inlineConstsRegion(ops[r[0]:r[1]])...)
	}
	return out
}

func inlineConstsRegion(region []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(region))
	for i := 0; i < len(region); i++ {
		in := region[i]
		isConst := in.Kind == ir.KindPrimConstant || in.Kind == ir.KindOtherConstant
		if isConst && i+1 < len(region) {
			store := region[i+1]
			if store.Kind == ir.KindRegAccess && !store.Load {
				uses := 0
				useIdx := -1
				for j := i + 2; j < len(region); j++ {
					nj := region[j]
					if nj.Kind == ir.KindRegAccess && nj.Key == store.Key {
						if nj.Load {
							uses++
							useIdx = j
						} else {
							break // overwritten
						}
					}
				}
				if uses == 1 {
					// Splice the constant directly in place of the single
					// load, dropping the store and the load both.
					rest := append([]ir.Instruction{}, region[i+2:useIdx]...)
					rest = append(rest, in)
					rest = append(rest, region[useIdx+1:]...)
					out = append(out, inlineConstsRegion(rest)...)
					return out
				}
			}
		}
		out = append(out, in)
	}
	return out
}

// StoreLoadPruner implements prune_store_loads: within a linear region, a
// store immediately followed (possibly across zero-width labels) by a
// load of the same key is erased when that key is not read anywhere else
// in the region, since the value never needed to leave the stack.
// PrepareMethod runs it before GenDupIter (dup2ize), so dup2ize sees the
// loads this pass leaves.
func StoreLoadPruner(ops []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(ops))
	for _, r := range regions(ops) {
		out = append(out, pruneRegion(ops[r[0]:r[1]])...)
	}
	return out
}

func pruneRegion(region []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(region))
	for i := 0; i < len(region); i++ {
		in := region[i]
		if in.Kind == ir.KindRegAccess && !in.Load {
			j := i + 1
			for j < len(region) && region[j].Kind == ir.KindLabel {
				j++
			}
			if j < len(region) {
				next := region[j]
				if next.Kind == ir.KindRegAccess && next.Load && next.Key == in.Key && !readElsewhere(region, i, j, in.Key) {
					out = append(out, region[i+1:j]...) // keep any labels skipped over
					i = j                                // skip the store and the paired load
					continue
				}
			}
		}
		out = append(out, in)
	}
	return out
}

func readElsewhere(region []ir.Instruction, storeIdx, loadIdx, key int) bool {
	for k, in := range region {
		if k == storeIdx || k == loadIdx {
			continue
		}
		if in.Kind == ir.KindRegAccess && in.Load && in.Key == key {
			return true
		}
	}
	return false
}

// GenDupIter implements dup2ize: within a linear region, narrow register
// loads at stack-height zero (the first instruction of a statement) that
// repeat two or more times in a disjoint sub-range are coalesced into one
// load followed by a dup/dup2-based pipeline that keeps up to four live
// copies on the stack, retiring the oldest copy as each subsequent use
// consumes it. Candidate ranges are chosen greedily by descending
// occurrence count, each choice removing its span from remaining
// candidates so ranges never overlap.
func GenDupIter(ops []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(ops))
	for _, r := range regions(ops) {
		out = append(out, dup2izeRegion(ops[r[0]:r[1]])...)
	}
	return out
}

type dupCandidate struct {
	key        int
	wide       bool
	indices    []int // positions, in the region, of each repeated load
}

func dup2izeRegion(region []ir.Instruction) []ir.Instruction {
	byKey := map[int]*dupCandidate{}
	var order []int
	for i, in := range region {
		if in.Kind != ir.KindRegAccess || !in.Load {
			continue
		}
		c, ok := byKey[in.Key]
		if !ok {
			c = &dupCandidate{key: in.Key, wide: in.Wide}
			byKey[in.Key] = c
			order = append(order, in.Key)
		}
		c.indices = append(c.indices, i)
	}

	taken := make([]bool, len(region))
	chosen := make([]*dupCandidate, 0, len(order))
	for {
		best := -1
		bestCount := 1
		for _, k := range order {
			c := byKey[k]
			if c == nil {
				continue
			}
			count := 0
			for _, idx := range c.indices {
				if !taken[idx] {
					count++
				}
			}
			if count > bestCount {
				bestCount = count
				best = k
			}
		}
		if best < 0 {
			break
		}
		c := byKey[best]
		var free []int
		for _, idx := range c.indices {
			if !taken[idx] && len(free) < 4 {
				free = append(free, idx)
				taken[idx] = true
			}
		}
		if len(free) >= 2 {
			chosen = append(chosen, &dupCandidate{key: c.key, wide: c.wide, indices: free})
		}
		byKey[best] = nil
	}

	replace := map[int]int{} // index -> 0 (first load kept), >0 (dup-pipeline position)
	for _, c := range chosen {
		for pos, idx := range c.indices {
			replace[idx] = pos
		}
	}

	out := make([]ir.Instruction, 0, len(region))
	for i, in := range region {
		pos, ok := replace[i]
		if !ok {
			out = append(out, in)
			continue
		}
		if pos == 0 {
			out = append(out, in)
			continue
		}
		out = append(out, dupOp(in.Wide))
	}
	return out
}

func dupOp(wide bool) ir.Instruction {
	if wide {
		return ir.Other(jvmops.Dup2, []byte{jvmops.Dup2})
	}
	return ir.Other(jvmops.Dup, []byte{jvmops.Dup})
}
