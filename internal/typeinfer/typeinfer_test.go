package typeinfer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/arraytype"
	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/scalar"
)

func TestTypeInfoAssignThenGet(t *testing.T) {
	var ti TypeInfo
	ti.Assign(3, scalar.Int, arraytype.Invalid)
	s, a := ti.Get(3)
	require.Equal(t, scalar.Int, s)
	require.Equal(t, arraytype.Invalid, a)
}

func TestTypeInfoAssignClearsTaint(t *testing.T) {
	var ti TypeInfo
	ti.Tainted.Set(3, true)
	ti.Assign(3, scalar.Int, arraytype.Invalid)
	require.False(t, ti.IsTainted(3))
}

func TestTypeInfoAssignScalarClearsArrayType(t *testing.T) {
	var ti TypeInfo
	arr := arraytype.FromDesc([]byte("[I"))
	ti.Assign(3, scalar.Obj, arr)
	ti.AssignScalar(3, scalar.Int)
	_, a := ti.Get(3)
	require.Equal(t, arraytype.Invalid, a)
}

func TestTypeInfoMoveCopiesFullTriple(t *testing.T) {
	var ti TypeInfo
	ti.Assign(1, scalar.Obj, arraytype.FromDesc([]byte("[I")))
	ti.Tainted.Set(1, true)
	ti.Move(2, 1)

	s, a := ti.Get(2)
	require.Equal(t, scalar.Obj, s)
	require.Equal(t, arraytype.FromDesc([]byte("[I")), a)
	require.True(t, ti.IsTainted(2))
}

func TestTypeInfoMergeIntersectsScalarsAndOrsTaint(t *testing.T) {
	var a, b TypeInfo
	a.AssignScalar(0, scalar.C32)
	b.AssignScalar(0, scalar.Int)
	b.Tainted.Set(0, true)

	changed := a.Merge(b)
	require.True(t, changed)
	s, _ := a.Get(0)
	require.Equal(t, scalar.Int, s, "AND of C32(Int|Float) and Int is Int")
	require.True(t, a.IsTainted(0))
}

func TestTypeInfoMergeNoChangeReportsFalse(t *testing.T) {
	var a, b TypeInfo
	a.AssignScalar(0, scalar.Int)
	b.AssignScalar(0, scalar.Int)
	require.False(t, a.Merge(b))
}

func TestFromParamsPlacesParamsAtHighRegisterWindow(t *testing.T) {
	spaced := [][]byte{[]byte("I"), []byte("Ljava/lang/String;")}
	ti := FromParams(10, spaced)

	s0, _ := ti.Get(8)
	require.Equal(t, scalar.Int, s0)
	s1, a1 := ti.Get(9)
	require.Equal(t, scalar.Obj, s1)
	require.Equal(t, arraytype.Invalid, a1)

	sUnused, _ := ti.Get(0)
	require.Equal(t, scalar.Invalid, sUnused)
}

func TestFromParamsSkipsWidePaddingSlot(t *testing.T) {
	spaced := [][]byte{[]byte("J"), nil}
	ti := FromParams(2, spaced)
	s, _ := ti.Get(0)
	require.Equal(t, scalar.Long, s)
	sPad, _ := ti.Get(1)
	require.Equal(t, scalar.Invalid, sPad, "the padding slot is never assigned")
}

func TestPruneHandlersDeduplicatesByCatchType(t *testing.T) {
	catches := []dex.CatchItem{
		{Ctype: []byte("java/io/IOException"), Target: 1},
		{Ctype: []byte("java/io/IOException"), Target: 1}, // duplicate, dropped
		{Ctype: []byte("java/lang/Exception"), Target: 2},
	}
	out := pruneHandlers(catches)
	require.Len(t, out, 2)
	require.Equal(t, "java/io/IOException", string(out[0].Ctype))
	require.Equal(t, "java/lang/Exception", string(out[1].Ctype))
}

func TestPruneHandlersTruncatesAfterCatchAll(t *testing.T) {
	catches := []dex.CatchItem{
		{Ctype: []byte("java/io/IOException"), Target: 1},
		{Ctype: []byte("java/lang/Throwable"), Target: 2},
		{Ctype: []byte("java/lang/Exception"), Target: 3}, // unreachable, dropped
	}
	out := pruneHandlers(catches)
	require.Len(t, out, 2)
	require.Equal(t, "java/lang/Throwable", string(out[1].Ctype))
}

func instr(pos int, typ dex.DalvikType, a, b, c int64) *dex.Instruction {
	return &dex.Instruction{Pos: pos, Typ: typ, Args: dex.Args{A: a, B: b, C: c}}
}

func TestDoInferenceLinearConstThenReturn(t *testing.T) {
	ops := []*dex.Instruction{
		instr(0, dex.DConst32, 0, 5, 0),
		instr(1, dex.DReturn, 0, 0, 0),
	}
	posIndex := map[int]int{0: 0, 1: 1}
	noCatches := func(int) []dex.CatchItem { return nil }

	result := DoInference(nil, ops, posIndex, noCatches, TypeInfo{})
	require.Len(t, result.States, 2)

	sBefore, _ := result.States[1].Get(0)
	require.Equal(t, scalar.C32, sBefore, "register 0 holds the nonzero int32 constant by the time of the return")
}

func TestDoInferenceConstZeroYieldsZeroLattice(t *testing.T) {
	ops := []*dex.Instruction{
		instr(0, dex.DConst32, 0, 0, 0),
		instr(1, dex.DReturn, 0, 0, 0),
	}
	posIndex := map[int]int{0: 0, 1: 1}
	noCatches := func(int) []dex.CatchItem { return nil }

	result := DoInference(nil, ops, posIndex, noCatches, TypeInfo{})
	s, a := result.States[1].Get(0)
	require.Equal(t, scalar.Zero, s, "const/4 0 could become int, float, or null")
	require.Equal(t, arraytype.Null, a)
}

func TestDoInferenceGotoMergesIntoTarget(t *testing.T) {
	ops := []*dex.Instruction{
		instr(0, dex.DConst32, 0, 7, 0),
		instr(1, dex.DGoto, 5, 0, 0),
		instr(2, dex.DReturn, 0, 0, 0),
	}
	posIndex := map[int]int{0: 0, 1: 1, 5: 2}
	noCatches := func(int) []dex.CatchItem { return nil }

	result := DoInference(nil, ops, posIndex, noCatches, TypeInfo{})
	s, _ := result.States[2].Get(0)
	require.Equal(t, scalar.C32, s, "the goto target sees the state from its only predecessor")
}

func TestDoInferencePrunedThrowRecordsHandlers(t *testing.T) {
	ops := []*dex.Instruction{
		instr(0, dex.DThrow, 0, 0, 0),
	}
	posIndex := map[int]int{0: 0}
	catches := []dex.CatchItem{{Ctype: []byte("java/lang/Exception"), Target: 0}}
	activeCatches := func(pos int) []dex.CatchItem {
		if pos == 0 {
			return catches
		}
		return nil
	}

	result := DoInference(nil, ops, posIndex, activeCatches, TypeInfo{})
	require.Contains(t, result.Handlers, 0)
	require.Len(t, result.Handlers[0], 1)
}
