package optimize

import "github.com/enjarify-go/enjarify/internal/ir"

// PosInfo is the converged position/width state for one IR instruction:
// its byte offset and whether a goto/if at this index has been widened to
// its 5/8-byte form.
type PosInfo struct {
	Pos   int
	Wide  bool
}

// CalcMinPositions computes each instruction's byte offset assuming every
// not-yet-widened goto/if stays narrow (3 bytes) and every widened one
// uses its wide form, and every switch pads to 4-byte alignment after its
// opcode: one iteration of computing minimum positions; OptimizeJumps
// calls this repeatedly until it converges.
func CalcMinPositions(ops []ir.Instruction, wide []bool) []int {
	pos := make([]int, len(ops))
	cur := 0
	for i, in := range ops {
		pos[i] = cur
		cur += instrLen(in, wide[i], cur)
	}
	return pos
}

func instrLen(in ir.Instruction, widened bool, pos int) int {
	switch in.Kind {
	case ir.KindGoto:
		if widened {
			return 5
		}
		return 3
	case ir.KindIf:
		if widened {
			return 8 // opposite-branch + goto_w
		}
		return 3
	case ir.KindSwitch:
		pad := (4 - (pos+1)%4) % 4
		n := len(in.CaseTargets)
		if in.Keys == nil {
			return 1 + pad + 12 + 4*n // tableswitch: opcode+pad, default, low, high, offsets
		}
		return 1 + pad + 8 + 8*n // lookupswitch: opcode+pad, default, npairs, (key,offset)*n
	default:
		return in.MinLen()
	}
}

// WidenIfNecessary marks, for this iteration, every goto/if whose target
// offset (per the current pos/wide state) falls outside the signed
// 16-bit branch-offset range, returning whether any bit changed (callers
// loop CalcMinPositions/WidenIfNecessary until this is false, the fixed
// point of the widening pass).
func WidenIfNecessary(ops []ir.Instruction, pos []int, wide []bool, labelPos map[ir.LabelId]int) bool {
	changed := false
	for i, in := range ops {
		if wide[i] || (in.Kind != ir.KindGoto && in.Kind != ir.KindIf) {
			continue
		}
		target, ok := labelPos[targetLabel(in)]
		if !ok {
			continue
		}
		offset := target - pos[i]
		if offset < -32768 || offset > 32767 {
			wide[i] = true
			changed = true
		}
	}
	return changed
}

func targetLabel(in ir.Instruction) ir.LabelId {
	return ir.LabelId{Kind: ir.DPos, Pos: in.Target.Pos}
}

// OptimizeJumps runs the CalcMinPositions/WidenIfNecessary fixed point to
// convergence and returns the final per-instruction offsets and widened
// set.
func OptimizeJumps(ops []ir.Instruction) ([]int, []bool) {
	wide := make([]bool, len(ops))
	var pos []int
	for {
		pos = CalcMinPositions(ops, wide)
		labelPos := map[ir.LabelId]int{}
		for i, in := range ops {
			if in.Kind == ir.KindLabel {
				labelPos[in.Label] = pos[i]
			}
		}
		if !WidenIfNecessary(ops, pos, wide, labelPos) {
			break
		}
	}
	return pos, wide
}

// OppositeOp returns the JVM if-opcode that tests the logical negation of
// op, used for the wide-if rewrite `if !op -> skip; goto_w target; skip:`.
func OppositeOp(op byte) byte {
	pairs := map[byte]byte{
		0x99: 0x9a, 0x9a: 0x99, // ifeq/ifne
		0x9b: 0x9c, 0x9c: 0x9b, // iflt/ifge
		0x9d: 0x9e, 0x9e: 0x9d, // ifgt/ifle
		0x9f: 0xa0, 0xa0: 0x9f, // if_icmpeq/if_icmpne
		0xa1: 0xa2, 0xa2: 0xa1, // if_icmplt/if_icmpge
		0xa3: 0xa4, 0xa4: 0xa3, // if_icmpgt/if_icmple
		0xa5: 0xa6, 0xa6: 0xa5, // if_acmpeq/if_acmpne
		0xc6: 0xc7, 0xc7: 0xc6, // ifnull/ifnonnull
	}
	return pairs[op]
}

// CreateBytecode serializes the converged IR to its final Code-attribute
// byte stream, given each instruction's offset and widened-or-not state.
// Labels contribute no bytes; KindOther instructions are emitted
// verbatim; KindRegAccess/KindPrimConstant/KindOtherConstant must already
// have been resolved to KindOther by an earlier emission pass (this
// function only assembles already-packed bytes plus branch targets, it
// does not itself choose opcodes).
func CreateBytecode(ops []ir.Instruction, pos []int, wide []bool, labelPos map[ir.LabelId]int) []byte {
	var out []byte
	for i, in := range ops {
		switch in.Kind {
		case ir.KindLabel:
			continue
		case ir.KindGoto:
			target := labelPos[targetLabel(in)]
			offset := target - pos[i]
			if wide[i] {
				out = append(append(out, 0xc8), b4(offset)...)
			} else {
				out = append(append(out, 0xa7), b2(offset)...)
			}
		case ir.KindIf:
			target := labelPos[targetLabel(in)]
			if wide[i] {
				offset := target - (pos[i] + 3)
				out = append(out, OppositeOp(in.IfOp), 0, 8)
				out = append(append(out, 0xc8), b4(offset)...)
			} else {
				offset := target - pos[i]
				out = append(append(out, in.IfOp), b2(offset)...)
			}
		case ir.KindOther:
			out = append(out, in.Bytes...)
		case ir.KindSwitch:
			out = append(out, switchBytes(in, pos[i], labelPos)...)
		}
	}
	return out
}

func switchBytes(in ir.Instruction, pos int, labelPos map[ir.LabelId]int) []byte {
	var out []byte
	if in.Keys == nil {
		out = append(out, 0xaa) // tableswitch
	} else {
		out = append(out, 0xab) // lookupswitch
	}
	for (pos+len(out))%4 != 0 {
		out = append(out, 0)
	}
	defOff := labelPos[ir.LabelId{Kind: ir.DPos, Pos: in.Default.Pos}] - pos
	out = append(out, b4(defOff)...)
	if in.Keys == nil {
		low := in.Low
		high := in.Low + int32(len(in.CaseTargets)) - 1
		out = append(out, b4(int(low))...)
		out = append(out, b4(int(high))...)
		for _, t := range in.CaseTargets {
			out = append(out, b4(labelPos[ir.LabelId{Kind: ir.DPos, Pos: t.Pos}]-pos)...)
		}
	} else {
		out = append(out, b4(len(in.Keys))...)
		for i, k := range in.Keys {
			out = append(out, b4(int(k))...)
			out = append(out, b4(labelPos[ir.LabelId{Kind: ir.DPos, Pos: in.CaseTargets[i].Pos}]-pos)...)
		}
	}
	return out
}

func b2(v int) []byte { return []byte{byte(v >> 8), byte(v)} }
func b4(v int) []byte { return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)} }
