// Package scalar implements the primitive-type lattice used by type
// inference: a small bitset over {int, float, obj, long, double} that
// tracks every scalar kind a register's value could plausibly be.
package scalar

// T is a bitset of possible primitive/reference kinds for one register.
type T uint8

const (
	Invalid T = 0
	Int     T = 1 << 0
	Float   T = 1 << 1
	Obj     T = 1 << 2
	Long    T = 1 << 3
	Double  T = 1 << 4
)

const (
	Zero = Int | Float | Obj
	C32  = Int | Float
	C64  = Long | Double
	All  = Zero | C64
)

// IsWide reports whether t includes a 64-bit (long/double) kind.
func (t T) IsWide() bool { return t&C64 != Invalid }

// Includes reports whether t and rhs share any possible kind.
func (t T) Includes(rhs T) bool { return t&rhs != Invalid }

// And is the meet of the scalar lattice (used by TypeInfo.Merge on prims).
func (t T) And(rhs T) T { return t & rhs }

// FromDesc derives the scalar kind implied by a JVM/dex field or return
// type descriptor's leading byte.
func FromDesc(desc []byte) T {
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return Int
	case 'F':
		return Float
	case 'J':
		return Long
	case 'D':
		return Double
	case 'L', '[':
		return Obj
	default:
		return Invalid
	}
}

// Ilfda returns the index of t into the ordering {int, long, float,
// double, obj}, which matches the order the JVM lays out its per-kind
// opcode families (ILOAD, LLOAD, FLOAD, DLOAD, ALOAD, ...).
func (t T) Ilfda() uint8 {
	switch t {
	case Int:
		return 0
	case Long:
		return 1
	case Float:
		return 2
	case Double:
		return 3
	default:
		return 4 // Obj
	}
}
