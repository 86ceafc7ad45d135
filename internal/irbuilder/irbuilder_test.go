package irbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/arraytype"
	"github.com/enjarify-go/enjarify/internal/constantpool"
	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/scalar"
	"github.com/enjarify-go/enjarify/internal/typeinfer"
)

func instrAt(pos int, typ dex.DalvikType, opcode byte, a, b, c int64) *dex.Instruction {
	return &dex.Instruction{Pos: pos, Opcode: opcode, Typ: typ, Args: dex.Args{A: a, B: b, C: c}}
}

func TestBuildAlwaysPrefixesADPosLabel(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(7, dex.DNop, 0, 0, 0, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Equal(t, ir.KindLabel, out[0].Kind)
	require.Equal(t, ir.LabelId{Kind: ir.DPos, Pos: 7}, out[0].Label)
}

func TestBuildNopEmitsOnlyTheLabel(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DNop, 0, 0, 0, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestBuildMoveNarrowUsesPlainLoadStore(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.AssignScalar(1, scalar.Int)
	out, err := Build(c, instrAt(0, dex.DMove, 0x01, 2, 1, 0), st)
	require.NoError(t, err)
	require.Len(t, out, 3) // label, load, store
	require.False(t, out[1].Ref)
	require.Equal(t, 1, out[1].Key)
	require.Equal(t, 2, out[2].Key)
}

func TestBuildMoveRefUsesLoadRefStoreRef(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.Assign(1, scalar.Obj, arraytype.Invalid)
	out, err := Build(c, instrAt(0, dex.DMove, 0x01, 2, 1, 0), st)
	require.NoError(t, err)
	require.True(t, out[1].Ref)
	require.True(t, out[2].Ref)
}

func TestBuildReturnVoid(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DReturn, 0x0e, 0, 0, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Len(t, out, 2) // label, return
	require.Equal(t, byte(jvmops.Return), out[1].Op)
}

func TestBuildReturnIntLoadsThenIreturns(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.AssignScalar(0, scalar.Int)
	out, err := Build(c, instrAt(0, dex.DReturn, 0x0f, 0, 0, 0), st)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, ir.KindRegAccess, out[1].Kind)
	require.True(t, out[1].Load)
	require.Equal(t, byte(jvmops.Ireturn), out[2].Op)
}

func TestBuildReturnObjUsesLoadRefAndAreturn(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.Assign(0, scalar.Obj, arraytype.Invalid)
	out, err := Build(c, instrAt(0, dex.DReturn, 0x0f, 0, 0, 0), st)
	require.NoError(t, err)
	require.True(t, out[1].Ref)
	require.Equal(t, byte(jvmops.Areturn), out[2].Op)
}

func TestBuildConst32NonzeroIsPrimConstant(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DConst32, 0x12, 0, 5, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Equal(t, ir.KindPrimConstant, out[1].Kind)
	require.EqualValues(t, 5, out[1].PrimInt)
	require.Equal(t, ir.KindRegAccess, out[2].Kind)
	require.False(t, out[2].Load)
}

func TestBuildConst64IsLongPrimConstant(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DConst64, 0x16, 0, 0, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Equal(t, ir.KindPrimConstant, out[1].Kind)
	require.True(t, out[1].PrimIsLong)
	require.True(t, out[2].Wide)
}

func TestBuildMonitorEnterLoadsRefThenEmitsOp(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DMonitorEnter, 0x1d, 3, 0, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.True(t, out[1].Ref)
	require.Equal(t, 3, out[1].Key)
	require.Equal(t, byte(jvmops.Monitorenter), out[2].Op)
}

func TestBuildThrowLoadsRefThenAthrow(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DThrow, 0x27, 1, 0, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.True(t, out[1].Ref)
	require.Equal(t, byte(jvmops.Athrow), out[2].Op)
}

func TestBuildGotoTargetsTheRawOffset(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DGoto, 0x28, 42, 0, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Equal(t, ir.KindGoto, out[1].Kind)
	require.Equal(t, 42, out[1].Target.Pos)
}

func TestBuildCmpLongUsesLcmpAndWideLoads(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DCmp, 0x31, 0, 1, 2), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.True(t, out[1].Wide)
	require.True(t, out[2].Wide)
	require.Equal(t, byte(jvmops.Lcmp), out[3].Op)
}

func TestBuildIfPicksIntCompareWhenBothOperandsAreInt(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.AssignScalar(0, scalar.Int)
	st.AssignScalar(1, scalar.Int)
	out, err := Build(c, instrAt(0, dex.DIf, 0x32, 0, 1, 10), st)
	require.NoError(t, err)
	require.False(t, out[1].Ref)
	require.Equal(t, ir.KindIf, out[3].Kind)
	require.Equal(t, byte(jvmops.IfIcmpeq), out[3].IfOp)
	require.Equal(t, 10, out[3].Target.Pos)
}

func TestBuildIfPicksRefCompareWhenBothOperandsAreObjects(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.Assign(0, scalar.Obj, arraytype.Invalid)
	st.Assign(1, scalar.Obj, arraytype.Invalid)
	out, err := Build(c, instrAt(0, dex.DIf, 0x32, 0, 1, 10), st)
	require.NoError(t, err)
	require.True(t, out[1].Ref)
	require.Equal(t, byte(jvmops.IfAcmpeq), out[3].IfOp)
}

func TestBuildIfZUsesIfnullForRefOperand(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.Assign(0, scalar.Obj, arraytype.Invalid)
	out, err := Build(c, instrAt(0, dex.DIfZ, 0x38, 0, 20, 0), st)
	require.NoError(t, err)
	require.True(t, out[1].Ref)
	require.Equal(t, byte(jvmops.Ifnull), out[2].IfOp)
	require.Equal(t, 20, out[2].Target.Pos)
}

func TestBuildIfZUsesIfeqForIntOperand(t *testing.T) {
	c := &Ctx{}
	var st typeinfer.TypeInfo
	st.AssignScalar(0, scalar.Int)
	out, err := Build(c, instrAt(0, dex.DIfZ, 0x38, 0, 20, 0), st)
	require.NoError(t, err)
	require.Equal(t, byte(jvmops.Ifeq), out[2].IfOp)
}

func TestBuildUnaryNegInt(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DUnaryOp, 0x7b, 0, 1, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Equal(t, byte(jvmops.Ineg), out[2].Op)
}

func TestBuildUnaryNotIntSynthesizesXorMinusOne(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DUnaryOp, 0x7c, 0, 1, 0), typeinfer.TypeInfo{})
	require.NoError(t, err)
	// label, load, const -1, xor, store
	require.Len(t, out, 5)
	require.Equal(t, ir.KindPrimConstant, out[2].Kind)
	require.EqualValues(t, -1, out[2].PrimInt)
	require.Equal(t, byte(jvmops.Ixor), out[3].Op)
}

func TestBuildBinaryAddInt(t *testing.T) {
	c := &Ctx{}
	addInt := instrAt(0, dex.DBinaryOp, 0x90, 0, 1, 2)
	out, err := Build(c, addInt, typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Equal(t, byte(jvmops.Iadd), out[3].Op)
}

func TestBuildBinaryLitForwardOrderLoadsRegisterThenConstant(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DBinaryOpConst, 0xd0, 0, 1, 7), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Equal(t, ir.KindRegAccess, out[1].Kind)
	require.Equal(t, ir.KindPrimConstant, out[2].Kind)
	require.EqualValues(t, 7, out[2].PrimInt)
	require.Equal(t, byte(jvmops.Iadd), out[3].Op)
}

func TestBuildBinaryLitRsubReversesOperandOrder(t *testing.T) {
	c := &Ctx{}
	out, err := Build(c, instrAt(0, dex.DBinaryOpConst, rsubInt, 0, 1, 7), typeinfer.TypeInfo{})
	require.NoError(t, err)
	require.Equal(t, ir.KindPrimConstant, out[1].Kind, "rsub loads the literal first, then the register")
	require.Equal(t, ir.KindRegAccess, out[2].Kind)
}

func TestBuildPayloadsIndexesArrayDataAndSwitchPayloads(t *testing.T) {
	withArray := &dex.Instruction{Pos: 10, ArrayData: &dex.ArrayData{}}
	withSwitch := &dex.Instruction{Pos: 20, SwitchData: &dex.SwitchData{}}
	plain := &dex.Instruction{Pos: 30}

	out := BuildPayloads([]*dex.Instruction{withArray, withSwitch, plain})
	require.Len(t, out, 2)
	require.Same(t, withArray, out[10])
	require.Same(t, withSwitch, out[20])
}

func TestArrayGetThrowsOnStaticallyKnownNullArray(t *testing.T) {
	var st typeinfer.TypeInfo
	st.Assign(1, scalar.Obj, arraytype.Null)
	out, err := arrayGet(&Ctx{}, st, instrAt(0, dex.DArrayGet, 0x44, 0, 1, 2))
	require.NoError(t, err)
	require.Equal(t, ir.KindOtherConstant, out[0].Kind)
	require.Equal(t, "java/lang/NullPointerException", string(out[0].ConstBytes))
	require.Equal(t, byte(jvmops.Athrow), out[1].Op)
}

func TestBuildMoveRefTaintedEmitsCheckcastToKnownArrayType(t *testing.T) {
	c := &Ctx{Pool: constantpool.NewSimplePool()}
	var st typeinfer.TypeInfo
	st.Assign(1, scalar.Obj, arraytype.FromDesc([]byte("[I")))
	st.Tainted.Set(1, true)

	out, err := Build(c, instrAt(0, dex.DMove, 0x01, 2, 1, 0), st)
	require.NoError(t, err)

	require.Equal(t, byte(jvmops.Checkcast), out[2].Op, "the ref load is immediately followed by a checkcast")
	require.Equal(t, ir.KindRegAccess, out[3].Kind, "and only then the store")
}

func TestBuildMoveRefTaintedWithUnknownArrayTypeFallsBackToObject(t *testing.T) {
	c := &Ctx{Pool: constantpool.NewSimplePool()}
	var st typeinfer.TypeInfo
	st.Assign(1, scalar.Obj, arraytype.Invalid)
	st.Tainted.Set(1, true)

	out, err := Build(c, instrAt(0, dex.DMove, 0x01, 2, 1, 0), st)
	require.NoError(t, err)
	require.Equal(t, byte(jvmops.Checkcast), out[2].Op)
}

func TestBuildMoveRefUntaintedEmitsNoCheckcast(t *testing.T) {
	c := &Ctx{Pool: constantpool.NewSimplePool()}
	var st typeinfer.TypeInfo
	st.Assign(1, scalar.Obj, arraytype.FromDesc([]byte("[I")))

	out, err := Build(c, instrAt(0, dex.DMove, 0x01, 2, 1, 0), st)
	require.NoError(t, err)
	require.Len(t, out, 3, "label, load, store: no checkcast when the register isn't tainted")
}

func TestArrayLenTaintedArrayUsesArrayObjectFallback(t *testing.T) {
	c := &Ctx{Pool: constantpool.NewSimplePool()}
	var st typeinfer.TypeInfo
	st.Assign(1, scalar.Obj, arraytype.Invalid)
	st.Tainted.Set(1, true)

	out, err := Build(c, instrAt(0, dex.DArrayLen, 0x21, 0, 1, 0), st)
	require.NoError(t, err)
	require.Equal(t, byte(jvmops.Checkcast), out[2].Op)
	require.Equal(t, byte(jvmops.Arraylength), out[3].Op)
}
