package scalar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsWide(t *testing.T) {
	require.True(t, Long.IsWide())
	require.True(t, Double.IsWide())
	require.True(t, C64.IsWide())
	require.False(t, Int.IsWide())
	require.False(t, Zero.IsWide())
}

func TestIncludes(t *testing.T) {
	require.True(t, Zero.Includes(Obj))
	require.False(t, C64.Includes(Obj))
	require.True(t, All.Includes(Double))
}

func TestAndIsMeet(t *testing.T) {
	require.Equal(t, C32, C32.And(Zero))
	require.Equal(t, Invalid, C32.And(C64))
}

func TestFromDesc(t *testing.T) {
	cases := []struct {
		desc string
		want T
	}{
		{"I", Int}, {"Z", Int}, {"B", Int}, {"C", Int}, {"S", Int},
		{"F", Float}, {"J", Long}, {"D", Double},
		{"Ljava/lang/Object;", Obj}, {"[I", Obj},
	}
	for _, c := range cases {
		require.Equal(t, c.want, FromDesc([]byte(c.desc)), "desc %q", c.desc)
	}
}

func TestIlfdaOrdering(t *testing.T) {
	require.EqualValues(t, 0, Int.Ilfda())
	require.EqualValues(t, 1, Long.Ilfda())
	require.EqualValues(t, 2, Float.Ilfda())
	require.EqualValues(t, 3, Double.Ilfda())
	require.EqualValues(t, 4, Obj.Ilfda())
}
