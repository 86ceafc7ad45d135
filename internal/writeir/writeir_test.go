package writeir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/irbuilder"
	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/typeinfer"
)

func TestCatchKeyIsStableForIdenticalLists(t *testing.T) {
	a := []dex.CatchItem{{Ctype: []byte("java/io/IOException"), Target: 3}}
	b := []dex.CatchItem{{Ctype: []byte("java/io/IOException"), Target: 3}}
	require.Equal(t, catchKey(a), catchKey(b))
}

func TestCatchKeyDiffersOnCtypeOrTarget(t *testing.T) {
	base := []dex.CatchItem{{Ctype: []byte("java/io/IOException"), Target: 3}}
	diffType := []dex.CatchItem{{Ctype: []byte("java/lang/Exception"), Target: 3}}
	diffTarget := []dex.CatchItem{{Ctype: []byte("java/io/IOException"), Target: 4}}
	require.NotEqual(t, catchKey(base), catchKey(diffType))
	require.NotEqual(t, catchKey(base), catchKey(diffTarget))
}

func TestCatchKeyEmptyListIsEmptyString(t *testing.T) {
	require.Equal(t, "", catchKey(nil))
}

func TestAppendIntTerminatesWithSentinelByte(t *testing.T) {
	require.Equal(t, []byte{0xff}, appendInt(nil, 0))
	require.Equal(t, []byte{1, 0xff}, appendInt(nil, 1))
}

func TestPredecessorsCountsFallthroughIntoLabel(t *testing.T) {
	id0 := ir.LabelId{Kind: ir.DPos, Pos: 0}
	id1 := ir.LabelId{Kind: ir.DPos, Pos: 1}
	ops := []ir.Instruction{
		ir.Label(id0),
		ir.Other(jvmops.Iadd, []byte{jvmops.Iadd}),
		ir.Label(id1),
	}
	preds := predecessors(ops)
	require.Equal(t, 1, preds[id1])
	require.Zero(t, preds[id0], "the first op is never counted, it has no predecessor in this slice")
}

func TestPredecessorsIgnoresNonFallthroughPredecessor(t *testing.T) {
	id0 := ir.LabelId{Kind: ir.DPos, Pos: 0}
	id1 := ir.LabelId{Kind: ir.DPos, Pos: 1}
	ops := []ir.Instruction{
		ir.Label(id0),
		ir.Goto(1),
		ir.Label(id1),
	}
	preds := predecessors(ops)
	require.Zero(t, preds[id1])
}

func TestPredecessorsIgnoresAdjacentLabels(t *testing.T) {
	id0 := ir.LabelId{Kind: ir.DPos, Pos: 0}
	id1 := ir.LabelId{Kind: ir.DPos, Pos: 1}
	ops := []ir.Instruction{ir.Label(id0), ir.Label(id1)}
	preds := predecessors(ops)
	require.Zero(t, preds[id1])
}

func throwInstr(pos, pos2 int, reg int64) *dex.Instruction {
	return &dex.Instruction{Pos: pos, Pos2: pos2, Opcode: 0x27, Typ: dex.DThrow, Args: dex.Args{A: reg}}
}

func moveResultInstr(pos, pos2 int, reg int64) *dex.Instruction {
	return &dex.Instruction{Pos: pos, Pos2: pos2, Opcode: 0x0a, Typ: dex.DMoveResult, Args: dex.Args{A: reg}}
}

func TestBuildMethodFencesThrowingInstructionAndPopsUnhandledTarget(t *testing.T) {
	ops := []*dex.Instruction{throwInstr(0, 1, 0), moveResultInstr(1, 2, 1)}
	code := &dex.CodeItem{Bytecode: ops}
	inf := typeinfer.Result{
		States:   []typeinfer.TypeInfo{{}, {}},
		Handlers: map[int][]dex.CatchItem{0: {{Ctype: []byte("java/lang/Exception"), Target: 99}}},
	}
	posIndex := map[int]int{0: 0, 1: 1}

	result, err := BuildMethod(&irbuilder.Ctx{}, code, inf, posIndex)
	require.NoError(t, err)

	require.Len(t, result.Exceptions, 1)
	require.Equal(t, ExceptionRange{Start: 0, End: 1, Handler: 99, Ctype: []byte("java/lang/Exception")}, result.Exceptions[0])

	last := result.Instructions[len(result.Instructions)-3:]
	require.Equal(t, ir.LabelId{Kind: ir.EHandler, Idx: 99}, last[0].Label)
	require.Equal(t, byte(jvmops.Pop), last[1].Op, "the handler target isn't a move-result, so the redirection pops the exception first")
	require.Equal(t, ir.KindGoto, last[2].Kind)
	require.Equal(t, 99, last[2].Target.Pos)
}

func TestBuildMethodFallsThroughToMoveResultHandlerWithoutPop(t *testing.T) {
	ops := []*dex.Instruction{throwInstr(0, 1, 0), moveResultInstr(1, 2, 1)}
	code := &dex.CodeItem{Bytecode: ops}
	inf := typeinfer.Result{
		States:   []typeinfer.TypeInfo{{}, {}},
		Handlers: map[int][]dex.CatchItem{0: {{Ctype: []byte("java/lang/Exception"), Target: 1}}},
	}
	posIndex := map[int]int{0: 0, 1: 1}

	result, err := BuildMethod(&irbuilder.Ctx{}, code, inf, posIndex)
	require.NoError(t, err)

	last := result.Instructions[len(result.Instructions)-2:]
	require.Equal(t, ir.LabelId{Kind: ir.EHandler, Idx: 1}, last[0].Label)
	require.Equal(t, ir.KindGoto, last[1].Kind, "a move-result handler target falls straight into the normal stream, no pop")
	require.Equal(t, 1, last[1].Target.Pos)
}

func TestBuildMethodEmitsEStartBeforeTheThrowingInstructionLabel(t *testing.T) {
	ops := []*dex.Instruction{throwInstr(0, 1, 0)}
	code := &dex.CodeItem{Bytecode: ops}
	inf := typeinfer.Result{
		States:   []typeinfer.TypeInfo{{}},
		Handlers: map[int][]dex.CatchItem{0: {{Ctype: []byte("java/lang/Exception"), Target: 5}}},
	}
	posIndex := map[int]int{0: 0}

	result, err := BuildMethod(&irbuilder.Ctx{}, code, inf, posIndex)
	require.NoError(t, err)

	require.Equal(t, ir.KindLabel, result.Instructions[0].Kind)
	require.Equal(t, ir.LabelId{Kind: ir.EStart, Idx: 0}, result.Instructions[0].Label)
	require.Equal(t, ir.LabelId{Kind: ir.DPos, Pos: 0}, result.Instructions[1].Label)
}

func TestBuildMethodOmitsFencingWhenNoHandlersApply(t *testing.T) {
	ops := []*dex.Instruction{throwInstr(0, 1, 0)}
	code := &dex.CodeItem{Bytecode: ops}
	inf := typeinfer.Result{States: []typeinfer.TypeInfo{{}}, Handlers: nil}
	posIndex := map[int]int{0: 0}

	result, err := BuildMethod(&irbuilder.Ctx{}, code, inf, posIndex)
	require.NoError(t, err)
	require.Empty(t, result.Exceptions)
	for _, in := range result.Instructions {
		require.NotEqual(t, ir.EStart, in.Label.Kind)
	}
}
