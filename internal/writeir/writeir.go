// Package writeir flattens one method's lowered instructions (from
// internal/irbuilder) into a single IR stream fenced with exception-range
// labels, and builds a fallthrough-only predecessor-count map
// (Result.Predecessors), which no other package reads.
package writeir

import (
	"sort"

	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/irbuilder"
	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/typeinfer"
)

// ExceptionRange is one classfile exception-table row, addressed by
// Dalvik position rather than byte offset; internal/classfile's
// exceptionTable resolves these to byte offsets through the DPos labels at
// Start and End (the code length when End has none) and the EHandler label
// of Handler. No rollback of the start is applied.
type ExceptionRange struct {
	Start, End, Handler int
	Ctype               []byte // nil means java/lang/Throwable
}

// Result is one method's flattened IR plus the data later passes need.
type Result struct {
	Instructions []ir.Instruction
	Exceptions   []ExceptionRange
	Predecessors map[ir.LabelId]int
}

func catchKey(items []dex.CatchItem) string {
	var b []byte
	for _, c := range items {
		b = append(b, c.Ctype...)
		b = append(b, 0)
		b = appendInt(b, int(c.Target))
	}
	return string(b)
}

func appendInt(b []byte, v int) []byte {
	for v > 0 {
		b = append(b, byte(v))
		v >>= 8
	}
	return append(b, 0xff)
}

// BuildMethod lowers every decoded instruction in code to IR via c, fences
// contiguous runs of throwing instructions that share an identical pruned
// handler list with EStart/EEnd labels, and appends EHandler redirections
// at method end for every distinct catch target.
//
// A handler whose target is a move-result (move-exception) falls straight
// into the normal instruction stream at that position, since the JVM
// already delivers the thrown object on an otherwise-empty operand stack,
// exactly what move-result expects; every other target gets a pop first to
// discard the unused exception object. This always emits the tail
// redirection form rather than inlining the pop ahead of the handler block
// when the immediately preceding IR doesn't fall through — a missed size
// optimization, not a correctness gap.
func BuildMethod(c *irbuilder.Ctx, code *dex.CodeItem, inf typeinfer.Result, posIndex map[int]int) (Result, error) {
	ops := code.Bytecode
	var out []ir.Instruction

	rangeIdx := 0
	curKey := ""
	curStart := -1
	var curHandlers []dex.CatchItem
	var ranges []ExceptionRange

	targetSeen := map[int]bool{}
	var targetOrder []int

	closeRange := func(endPos int) {
		if curStart < 0 {
			return
		}
		out = append(out, ir.Label(ir.LabelId{Kind: ir.EEnd, Idx: rangeIdx}))
		for _, h := range curHandlers {
			ranges = append(ranges, ExceptionRange{Start: curStart, End: endPos, Handler: int(h.Target), Ctype: h.Ctype})
			if !targetSeen[int(h.Target)] {
				targetSeen[int(h.Target)] = true
				targetOrder = append(targetOrder, int(h.Target))
			}
		}
		rangeIdx++
		curStart = -1
		curKey = ""
		curHandlers = nil
	}

	methodEnd := 0
	for i, instr := range ops {
		var handlers []dex.CatchItem
		if instr.Typ.IsPrunedThrow() {
			handlers = inf.Handlers[instr.Pos]
		}
		key := catchKey(handlers)
		if key != curKey {
			closeRange(instr.Pos)
			if len(handlers) > 0 {
				out = append(out, ir.Label(ir.LabelId{Kind: ir.EStart, Idx: rangeIdx}))
				curStart = instr.Pos
				curKey = key
				curHandlers = handlers
			}
		}

		st := inf.States[i]
		emitted, err := irbuilder.Build(c, instr, st)
		if err != nil {
			return Result{}, err
		}
		out = append(out, emitted...)
		methodEnd = instr.Pos2
	}
	closeRange(methodEnd)

	sort.Ints(targetOrder)
	for _, target := range targetOrder {
		out = append(out, ir.Label(ir.LabelId{Kind: ir.EHandler, Idx: target}))
		idx, ok := posIndex[target]
		if ok && ops[idx].Typ == dex.DMoveResult {
			out = append(out, ir.Goto(target))
			continue
		}
		pop := byte(jvmops.Pop)
		out = append(out, ir.Other(pop, []byte{pop}), ir.Goto(target))
	}

	return Result{Instructions: out, Exceptions: ranges, Predecessors: predecessors(out)}, nil
}

// predecessors counts, for every label, how many fallthrough edges reach
// it (a preceding non-label instruction that falls through). Goto/if/
// switch edges are not counted.
func predecessors(ops []ir.Instruction) map[ir.LabelId]int {
	preds := map[ir.LabelId]int{}
	for i, in := range ops {
		if in.Kind != ir.KindLabel || i == 0 {
			continue
		}
		prev := ops[i-1]
		if prev.Kind != ir.KindLabel && prev.Fallsthrough() {
			preds[in.Label]++
		}
	}
	return preds
}
