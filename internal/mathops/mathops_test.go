package mathops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/scalar"
)

func TestUnaryOpNegAndConversions(t *testing.T) {
	u := UnaryOp(0x7b) // neg-int
	require.Equal(t, scalar.Int, u.Src)
	require.Equal(t, scalar.Int, u.Dest)
	require.Equal(t, byte(jvmops.Ineg), u.Op)

	u = UnaryOp(0x81) // int-to-long
	require.Equal(t, scalar.Int, u.Src)
	require.Equal(t, scalar.Long, u.Dest)
	require.Equal(t, byte(jvmops.I2l), u.Op)
}

func TestUnaryOpPanicsOnUnknownOpcode(t *testing.T) {
	require.Panics(t, func() { UnaryOp(0x00) })
}

func TestBinaryOpIntFamily(t *testing.T) {
	b := BinaryOp(0x90) // add-int
	require.Equal(t, scalar.Int, b.Src)
	require.Equal(t, scalar.Int, b.Src2)
	require.Equal(t, byte(jvmops.Iadd), b.Op)
}

func TestBinaryOp2addrFormMatchesNonAddrForm(t *testing.T) {
	base := BinaryOp(0x90)
	addr2 := BinaryOp(0xb0) // add-int/2addr, 0x20 apart
	require.Equal(t, base, addr2)
}

func TestBinaryOpLongShiftCountIsInt(t *testing.T) {
	b := BinaryOp(0x90 + 11 + 8) // shl-long
	require.Equal(t, scalar.Long, b.Src)
	require.Equal(t, scalar.Int, b.Src2, "shift count operand is always int, even for long shifts")
	require.Equal(t, byte(jvmops.Lshl), b.Op)
}

func TestBinaryOpFloatAndDoubleFamilies(t *testing.T) {
	f := BinaryOp(0x90 + 22) // add-float
	require.Equal(t, scalar.Float, f.Src)
	require.Equal(t, byte(jvmops.Fadd), f.Op)

	d := BinaryOp(0x90 + 27) // add-double
	require.Equal(t, scalar.Double, d.Src)
	require.Equal(t, byte(jvmops.Dadd), d.Op)
}

func TestMathThrowsOnlyForDivRem(t *testing.T) {
	require.True(t, MathThrows(0x90+3))  // div-int
	require.True(t, MathThrows(0x90+4))  // rem-int
	require.True(t, MathThrows(0x90+14)) // div-long
	require.True(t, MathThrows(0x90+15)) // rem-long
	require.False(t, MathThrows(0x90))   // add-int
	require.False(t, MathThrows(0x90+22)) // add-float
}

func TestBinaryOpLitSharesTableBetweenLit8AndLit16(t *testing.T) {
	lit16 := BinaryOpLit(0xd0) // add-int/lit16
	lit8 := BinaryOpLit(0xd8)  // add-int/lit8
	require.Equal(t, lit16, lit8)
	require.Equal(t, byte(jvmops.Iadd), lit16.Op)
}

func TestBinaryOpLitShiftRange(t *testing.T) {
	require.Equal(t, byte(jvmops.Ishl), BinaryOpLit(0xe0).Op)
	require.Equal(t, byte(jvmops.Iushr), BinaryOpLit(0xe2).Op)
}

func TestBinaryOpLitPanicsOutsideRange(t *testing.T) {
	require.Panics(t, func() { BinaryOpLit(0xe3) })
}
