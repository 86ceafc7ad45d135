// Package arraytype implements the array-element-type lattice used by
// type inference. Unlike scalar.T this lattice only tracks enough to
// know an array's element descriptor well enough to pick the right
// aaload/aastore-family opcode and checkcast target; anything it can't
// pin down collapses to Invalid.
package arraytype

import (
	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/scalar"
)

type Base uint8

const (
	BaseB Base = iota
	BaseC
	BaseS
	BaseI
	BaseF
	BaseJ
	BaseD
)

type kind uint8

const (
	kindInvalid kind = iota
	kindNull
	kindArray
)

// T is comparable, so it can be used directly as a treelist element and
// compared with ==.
type T struct {
	k    kind
	Dim  uint8
	Base Base
}

var Invalid = T{k: kindInvalid}
var Null = T{k: kindNull}

func array(dim uint8, base Base) T { return T{k: kindArray, Dim: dim, Base: base} }

func (t T) IsNull() bool    { return t.k == kindNull }
func (t T) IsInvalid() bool { return t.k == kindInvalid }
func (t T) IsArray() bool   { return t.k == kindArray }

// FromDesc derives the array type from a JVM/dex type descriptor, e.g.
// "[[I" -> dim=2, base=I. A descriptor with no leading '[' is not an array
// type at all and yields Invalid immediately.
func FromDesc(desc []byte) T {
	dim := 0
	for dim < len(desc) && desc[dim] == '[' {
		dim++
	}
	if dim == 0 {
		return Invalid
	}
	var base Base
	switch desc[dim] {
	case 'Z', 'B':
		base = BaseB
	case 'C':
		base = BaseC
	case 'S':
		base = BaseS
	case 'I':
		base = BaseI
	case 'F':
		base = BaseF
	case 'J':
		base = BaseJ
	case 'D':
		base = BaseD
	default: // 'L' or further '[' beyond dim scan is unreachable; object-array base isn't tracked
		return Invalid
	}
	return array(uint8(dim), base)
}

// Merge is the join of the lattice: Null is the identity element, equal
// values are unchanged, anything else collapses to Invalid.
func (t T) Merge(rhs T) T {
	if t.IsNull() {
		return rhs
	}
	if rhs.IsNull() {
		return t
	}
	if t == rhs {
		return t
	}
	return Invalid
}

// Narrow is the meet (intersection): Invalid is the identity element here
// (asymmetric with Merge's fallback), equal values are unchanged, anything
// else collapses to Null — deliberately permissive, since narrowing two
// disagreeing known types means the narrower fact is "no information",
// not "definitely wrong".
func (t T) Narrow(rhs T) T {
	if t.IsInvalid() {
		return rhs
	}
	if rhs.IsInvalid() {
		return t
	}
	if t == rhs {
		return t
	}
	return Null
}

// EletPair returns the (scalar kind, array type) of one element access
// into an array of this type, e.g. accessing an element of int[][] yields
// (Obj, int[]), and accessing an element of int[] yields (Int, Invalid).
func (t T) EletPair() (scalar.T, T) {
	switch t.k {
	case kindInvalid:
		return scalar.Obj, Invalid
	case kindNull:
		// unreachable in practice: merging always keeps this permissive
		return scalar.All, Null
	default:
		if t.Dim > 1 {
			return scalar.Obj, array(t.Dim-1, t.Base)
		}
		switch t.Base {
		case BaseJ:
			return scalar.Long, Invalid
		case BaseF:
			return scalar.Float, Invalid
		case BaseD:
			return scalar.Double, Invalid
		default: // B, C, S, I
			return scalar.Int, Invalid
		}
	}
}

// LoadOp returns the JVM array-load opcode for this element type: dim==1
// primitive arrays get their specific xALOAD, everything else (multi-dim
// or unknown object arrays) uses AALOAD.
func (t T) LoadOp() byte {
	if t.k == kindArray && t.Dim == 1 {
		switch t.Base {
		case BaseI:
			return jvmops.Iaload
		case BaseJ:
			return jvmops.Laload
		case BaseF:
			return jvmops.Faload
		case BaseD:
			return jvmops.Daload
		case BaseB:
			return jvmops.Baload
		case BaseC:
			return jvmops.Caload
		case BaseS:
			return jvmops.Saload
		}
	}
	return jvmops.Aaload
}

// StoreOp returns the JVM array-store opcode paired with LoadOp, exploiting
// that the JVM lays out every xALOAD/xASTORE pair at the same constant
// offset from each other, regardless of element kind.
func (t T) StoreOp() byte {
	const loadToStore = jvmops.Iastore - jvmops.Iaload
	return t.LoadOp() + loadToStore
}

// ToDesc renders the array descriptor, e.g. dim=2, base=I -> "[[I". Only
// valid for Array-kind values.
func (t T) ToDesc() []byte {
	b := make([]byte, 0, int(t.Dim)+1)
	for i := uint8(0); i < t.Dim; i++ {
		b = append(b, '[')
	}
	var c byte
	switch t.Base {
	case BaseB:
		c = 'B'
	case BaseC:
		c = 'C'
	case BaseS:
		c = 'S'
	case BaseI:
		c = 'I'
	case BaseF:
		c = 'F'
	case BaseJ:
		c = 'J'
	case BaseD:
		c = 'D'
	}
	return append(b, c)
}
