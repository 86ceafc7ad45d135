package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/ir"
)

func TestCalcMinPositionsAccumulatesOffsets(t *testing.T) {
	ops := []ir.Instruction{
		ir.Other(0x00, []byte{0x00}),
		ir.Goto(0),
		ir.Other(0x00, []byte{0x00, 0x00}),
	}
	wide := make([]bool, len(ops))
	pos := CalcMinPositions(ops, wide)
	require.Equal(t, []int{0, 1, 4}, pos)
}

func TestWidenIfNecessaryFlagsOutOfRangeBackwardBranch(t *testing.T) {
	lbl := ir.LabelId{Kind: ir.DPos, Pos: 0}
	ops := []ir.Instruction{
		ir.Label(lbl),
		ir.Goto(0),
	}
	wide := make([]bool, len(ops))
	pos := []int{0, 0}
	labelPos := map[ir.LabelId]int{lbl: -40000}
	changed := WidenIfNecessary(ops, pos, wide, labelPos)
	require.True(t, changed)
	require.True(t, wide[1])
}

func TestWidenIfNecessaryLeavesInRangeBranchNarrow(t *testing.T) {
	lbl := ir.LabelId{Kind: ir.DPos, Pos: 0}
	ops := []ir.Instruction{
		ir.Label(lbl),
		ir.Goto(0),
	}
	wide := make([]bool, len(ops))
	pos := []int{0, 10}
	labelPos := map[ir.LabelId]int{lbl: 0}
	changed := WidenIfNecessary(ops, pos, wide, labelPos)
	require.False(t, changed)
	require.False(t, wide[1])
}

func TestOptimizeJumpsConvergesForSimpleForwardGoto(t *testing.T) {
	lbl := ir.LabelId{Kind: ir.DPos, Pos: 5}
	ops := []ir.Instruction{
		ir.Goto(5),
		ir.Label(lbl),
	}
	pos, wide := OptimizeJumps(ops)
	require.Len(t, pos, 2)
	require.False(t, wide[0])
}

func TestOppositeOpIsInvolution(t *testing.T) {
	for _, op := range []byte{0x99, 0x9b, 0x9f, 0xc6} {
		opp := OppositeOp(op)
		require.NotEqual(t, op, opp)
		require.Equal(t, op, OppositeOp(opp))
	}
}

func TestCreateBytecodeEmitsNarrowGoto(t *testing.T) {
	lbl := ir.LabelId{Kind: ir.DPos, Pos: 1}
	ops := []ir.Instruction{
		ir.Goto(1),
		ir.Label(lbl),
	}
	pos := []int{0, 3}
	wide := []bool{false, false}
	labelPos := map[ir.LabelId]int{lbl: 3}
	out := CreateBytecode(ops, pos, wide, labelPos)
	require.Equal(t, []byte{0xa7, 0x00, 0x03}, out)
}

func TestCreateBytecodeEmitsWideGotoForIf(t *testing.T) {
	lbl := ir.LabelId{Kind: ir.DPos, Pos: 1}
	ops := []ir.Instruction{
		ir.If(0x99, 1), // ifeq
		ir.Label(lbl),
	}
	pos := []int{0, 100000}
	wide := []bool{true, false}
	labelPos := map[ir.LabelId]int{lbl: 100000}
	out := CreateBytecode(ops, pos, wide, labelPos)
	require.Equal(t, byte(0x9a), out[0], "wide if must emit the opposite test first")
	require.Equal(t, byte(0xc8), out[3], "goto_w follows the opposite-branch skip")
}
