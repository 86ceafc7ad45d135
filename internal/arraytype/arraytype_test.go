package arraytype

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/scalar"
)

func TestFromDescNonArrayIsInvalid(t *testing.T) {
	require.Equal(t, Invalid, FromDesc([]byte("I")))
	require.Equal(t, Invalid, FromDesc([]byte("Ljava/lang/Object;")))
}

func TestFromDescCountsDimension(t *testing.T) {
	got := FromDesc([]byte("[[I"))
	require.True(t, got.IsArray())
	require.EqualValues(t, 2, got.Dim)
	require.Equal(t, BaseI, got.Base)
}

func TestFromDescObjectArrayBaseIsInvalid(t *testing.T) {
	require.Equal(t, Invalid, FromDesc([]byte("[Ljava/lang/Object;")))
}

func TestFromDescBooleanMapsToByteBase(t *testing.T) {
	got := FromDesc([]byte("[Z"))
	require.Equal(t, BaseB, got.Base)
}

func TestMergeNullIsIdentity(t *testing.T) {
	arr := FromDesc([]byte("[I"))
	require.Equal(t, arr, Null.Merge(arr))
	require.Equal(t, arr, arr.Merge(Null))
}

func TestMergeEqualValuesUnchanged(t *testing.T) {
	a := FromDesc([]byte("[I"))
	b := FromDesc([]byte("[I"))
	require.Equal(t, a, a.Merge(b))
}

func TestMergeDisagreementCollapsesToInvalid(t *testing.T) {
	a := FromDesc([]byte("[I"))
	b := FromDesc([]byte("[J"))
	require.Equal(t, Invalid, a.Merge(b))
}

func TestNarrowInvalidIsIdentity(t *testing.T) {
	arr := FromDesc([]byte("[I"))
	require.Equal(t, arr, Invalid.Narrow(arr))
	require.Equal(t, arr, arr.Narrow(Invalid))
}

func TestNarrowDisagreementCollapsesToNull(t *testing.T) {
	a := FromDesc([]byte("[I"))
	b := FromDesc([]byte("[J"))
	require.Equal(t, Null, a.Narrow(b))
}

func TestEletPairMultiDimYieldsObjAndOneLessDim(t *testing.T) {
	arr := FromDesc([]byte("[[I"))
	elKind, elType := arr.EletPair()
	require.Equal(t, scalar.Obj, elKind)
	require.True(t, elType.IsArray())
	require.EqualValues(t, 1, elType.Dim)
}

func TestEletPairSingleDimPrimitive(t *testing.T) {
	cases := []struct {
		desc string
		want scalar.T
	}{
		{"[I", scalar.Int}, {"[B", scalar.Int}, {"[J", scalar.Long},
		{"[F", scalar.Float}, {"[D", scalar.Double},
	}
	for _, c := range cases {
		arr := FromDesc([]byte(c.desc))
		elKind, elType := arr.EletPair()
		require.Equal(t, c.want, elKind, "desc %q", c.desc)
		require.Equal(t, Invalid, elType)
	}
}

func TestLoadOpPrimitiveFamilies(t *testing.T) {
	cases := []struct {
		desc string
		op   byte
	}{
		{"[I", jvmops.Iaload}, {"[J", jvmops.Laload}, {"[F", jvmops.Faload},
		{"[D", jvmops.Daload}, {"[B", jvmops.Baload}, {"[C", jvmops.Caload},
		{"[S", jvmops.Saload},
	}
	for _, c := range cases {
		require.Equal(t, c.op, FromDesc([]byte(c.desc)).LoadOp(), "desc %q", c.desc)
	}
}

func TestLoadOpMultiDimIsAaload(t *testing.T) {
	require.Equal(t, byte(jvmops.Aaload), FromDesc([]byte("[[I")).LoadOp())
}

func TestLoadOpInvalidIsAaload(t *testing.T) {
	require.Equal(t, byte(jvmops.Aaload), Invalid.LoadOp())
}

func TestStoreOpMatchesLoadOpOffset(t *testing.T) {
	arr := FromDesc([]byte("[I"))
	require.Equal(t, byte(jvmops.Iastore), arr.StoreOp())
}

func TestToDescRoundTripsDimensionAndBase(t *testing.T) {
	arr := FromDesc([]byte("[[J"))
	require.Equal(t, []byte("[[J"), arr.ToDesc())
}
