package optimize

import (
	"sort"

	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/jvmops"
)

// copySet is copy_propagation's union-find-like structure: a set of
// Dalvik register keys known to currently hold the same value, rooted at
// the oldest member (the one that was live first, so later stores to
// other members don't invalidate reads of the root).
type copySet struct {
	root    int
	members map[int]bool
}

// CopySetsMap implements copy_propagation: within a linear region, a load
// immediately followed by a store joins the two registers into a copy
// set; subsequent loads of any member are rewritten to load the root
// instead (merging redundant local-variable slots, which
// RemoveUnusedRegs and the register allocator can then shrink). Storing
// to a member other than the root removes it from the set; storing to the
// root promotes the oldest surviving member to root. State resets at
// every region boundary (single-predecessor state inheritance degenerates
// to this once regions are split at every label, since a region with more
// than one predecessor is never treated as linear here).
func CopySetsMap(ops []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(ops))
	for _, r := range regions(ops) {
		out = append(out, copyPropRegion(ops[r[0]:r[1]])...)
	}
	return out
}

func copyPropRegion(region []ir.Instruction) []ir.Instruction {
	setOf := map[int]*copySet{}

	join := func(dst, src int) {
		sset, sok := setOf[src]
		dset, dok := setOf[dst]
		switch {
		case sok && dok && sset == dset:
			return
		case sok && !dok:
			sset.members[dst] = true
			setOf[dst] = sset
		case !sok && dok:
			delete(dset.members, dst)
		case sok && dok:
			for k := range dset.members {
				delete(setOf, k)
			}
			sset.members[dst] = true
			setOf[dst] = sset
		default:
			ns := &copySet{root: src, members: map[int]bool{src: true, dst: true}}
			setOf[src] = ns
			setOf[dst] = ns
		}
	}

	invalidate := func(key int) {
		set, ok := setOf[key]
		if !ok {
			return
		}
		delete(set.members, key)
		delete(setOf, key)
		if key == set.root {
			// promote the oldest surviving member (lowest remaining key as
			// a stand-in for insertion order, since members isn't ordered).
			best := -1
			for k := range set.members {
				if best < 0 || k < best {
					best = k
				}
			}
			if best >= 0 {
				set.root = best
			}
		}
	}

	out := make([]ir.Instruction, 0, len(region))
	for i := 0; i < len(region); i++ {
		in := region[i]
		if in.Kind == ir.KindRegAccess && in.Load {
			if set, ok := setOf[in.Key]; ok && set.root != in.Key {
				in.Key = set.root
			}
			if i+1 < len(region) {
				next := region[i+1]
				if next.Kind == ir.KindRegAccess && !next.Load && next.Key != in.Key {
					invalidate(next.Key)
					join(next.Key, in.Key)
					out = append(out, in, next)
					i++
					continue
				}
			}
		} else if in.Kind == ir.KindRegAccess && !in.Load {
			invalidate(in.Key)
		}
		out = append(out, in)
	}
	return out
}

// RemoveUnusedRegs implements remove_unused_regs: a register key that is
// never loaded anywhere in the method has its stores replaced with a bare
// pop/pop2, or elided entirely when the immediately preceding IR is
// itself a load or a constant (nothing else observes the value, so the
// push need not happen at all).
func RemoveUnusedRegs(ops []ir.Instruction) []ir.Instruction {
	loaded := map[int]bool{}
	for _, in := range ops {
		if in.Kind == ir.KindRegAccess && in.Load {
			loaded[in.Key] = true
		}
	}
	out := make([]ir.Instruction, 0, len(ops))
	for i, in := range ops {
		if in.Kind == ir.KindRegAccess && !in.Load && !loaded[in.Key] {
			if i > 0 {
				prev := ops[i-1]
				if prev.Kind == ir.KindRegAccess && prev.Load || prev.Kind == ir.KindPrimConstant || prev.Kind == ir.KindOtherConstant {
					out = out[:len(out)-1]
					continue
				}
			}
			if in.Wide {
				out = append(out, ir.Other(jvmops.Pop2, []byte{jvmops.Pop2}))
			} else {
				out = append(out, ir.Other(jvmops.Pop, []byte{jvmops.Pop}))
			}
			continue
		}
		out = append(out, in)
	}
	return out
}

// Allocation maps a Dalvik/IR register key to its final JVM local-variable
// slot.
type Allocation map[int]int

// SimpleAllocateRegisters assigns slots greedily in ascending key order:
// parameters (the high register window, already identified by the
// caller's paramBase/numParams) keep their relative order at the front,
// then every other used key gets the next free slot, with wide keys
// consuming two slots and skipping the invalid follower.
func SimpleAllocateRegisters(ops []ir.Instruction, paramBase, numParams int) Allocation {
	used, wide := usedKeys(ops)
	keys := sortedKeys(used)

	alloc := Allocation{}
	next := 0
	assign := func(k int) {
		alloc[k] = next
		if wide[k] {
			next += 2
		} else {
			next++
		}
	}
	for k := paramBase; k < paramBase+numParams; k++ {
		if used[k] {
			assign(k)
		}
	}
	for _, k := range keys {
		if k >= paramBase && k < paramBase+numParams {
			continue
		}
		assign(k)
	}
	return alloc
}

// SortAllocateRegisters implements sort_registers: parameter registers
// always retain their leading slots. Remaining keys are assigned in
// descending use-count order (so the hottest non-parameter register gets
// the cheapest narrow-index slot). At most one swap of a non-wide
// high-use register into a non-wide parameter's first-four slot is
// performed when the usage-count advantage exceeds 3, inserting a
// prologue move that copies the parameter out to its new slot first.
func SortAllocateRegisters(ops []ir.Instruction, paramBase, numParams int) (Allocation, []ir.Instruction) {
	used, wide := usedKeys(ops)
	counts := useCounts(ops)

	var nonParams []int
	for k := range used {
		if k < paramBase || k >= paramBase+numParams {
			nonParams = append(nonParams, k)
		}
	}
	sort.Slice(nonParams, func(i, j int) bool {
		if counts[nonParams[i]] != counts[nonParams[j]] {
			return counts[nonParams[i]] > counts[nonParams[j]]
		}
		return nonParams[i] < nonParams[j]
	})

	alloc := Allocation{}
	next := 0
	assign := func(k int) {
		alloc[k] = next
		if wide[k] {
			next += 2
		} else {
			next++
		}
	}
	for k := paramBase; k < paramBase+numParams; k++ {
		if used[k] {
			assign(k)
		}
	}
	for _, k := range nonParams {
		assign(k)
	}

	ref := refKeys(ops)
	var prologue []ir.Instruction
	if len(nonParams) > 0 && !wide[nonParams[0]] {
		hot := nonParams[0]
		for p := paramBase; p < paramBase+numParams && p < paramBase+4; p++ {
			if used[p] && !wide[p] && counts[hot]-counts[p] > 3 {
				tmp := alloc[p]
				alloc[p], alloc[hot] = alloc[hot], tmp
				if ref[p] {
					prologue = append(prologue, ir.LoadRef(alloc[hot]), ir.StoreRef(alloc[p]))
				} else {
					prologue = append(prologue, ir.Load(alloc[hot], false), ir.Store(alloc[p], false))
				}
				break
			}
		}
	}
	return alloc, prologue
}

func usedKeys(ops []ir.Instruction) (map[int]bool, map[int]bool) {
	used := map[int]bool{}
	wide := map[int]bool{}
	for _, in := range ops {
		if in.Kind == ir.KindRegAccess {
			used[in.Key] = true
			if in.Wide {
				wide[in.Key] = true
			}
		}
	}
	return used, wide
}

func refKeys(ops []ir.Instruction) map[int]bool {
	ref := map[int]bool{}
	for _, in := range ops {
		if in.Kind == ir.KindRegAccess && in.Ref {
			ref[in.Key] = true
		}
	}
	return ref
}

func useCounts(ops []ir.Instruction) map[int]int {
	counts := map[int]int{}
	for _, in := range ops {
		if in.Kind == ir.KindRegAccess {
			counts[in.Key]++
		}
	}
	return counts
}

func sortedKeys(used map[int]bool) []int {
	keys := make([]int, 0, len(used))
	for k := range used {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// ApplyAllocation rewrites every KindRegAccess instruction's Key to its
// final slot from alloc.
func ApplyAllocation(ops []ir.Instruction, alloc Allocation) []ir.Instruction {
	out := make([]ir.Instruction, len(ops))
	for i, in := range ops {
		if in.Kind == ir.KindRegAccess {
			in.Key = alloc[in.Key]
		}
		out[i] = in
	}
	return out
}
