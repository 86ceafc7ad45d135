// Package mathops maps Dalvik arithmetic opcodes to the JVM opcode (and
// operand scalar kinds) that implement them.
package mathops

import (
	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/scalar"
)

// Unary describes one Dalvik unary-op opcode (0x7b-0x8f): the scalar kind
// it reads, the scalar kind it produces, and the JVM opcode that does the
// conversion/negation. Dalvik has no bitwise-not opcode of its own; not-int
// and not-long are synthesized from xor with -1, which irbuilder handles
// by special-casing Op == jvmops.Ixor / jvmops.Lxor.
type Unary struct {
	Src, Dest scalar.T
	Op        byte
}

func UnaryOp(opcode byte) Unary {
	switch opcode {
	case 0x7b:
		return Unary{scalar.Int, scalar.Int, jvmops.Ineg}
	case 0x7c:
		return Unary{scalar.Int, scalar.Int, jvmops.Ixor}
	case 0x7d:
		return Unary{scalar.Long, scalar.Long, jvmops.Lneg}
	case 0x7e:
		return Unary{scalar.Long, scalar.Long, jvmops.Lxor}
	case 0x7f:
		return Unary{scalar.Float, scalar.Float, jvmops.Fneg}
	case 0x80:
		return Unary{scalar.Double, scalar.Double, jvmops.Dneg}
	case 0x81:
		return Unary{scalar.Int, scalar.Long, jvmops.I2l}
	case 0x82:
		return Unary{scalar.Int, scalar.Float, jvmops.I2f}
	case 0x83:
		return Unary{scalar.Int, scalar.Double, jvmops.I2d}
	case 0x84:
		return Unary{scalar.Long, scalar.Int, jvmops.L2i}
	case 0x85:
		return Unary{scalar.Long, scalar.Float, jvmops.L2f}
	case 0x86:
		return Unary{scalar.Long, scalar.Double, jvmops.L2d}
	case 0x87:
		return Unary{scalar.Float, scalar.Int, jvmops.F2i}
	case 0x88:
		return Unary{scalar.Float, scalar.Long, jvmops.F2l}
	case 0x89:
		return Unary{scalar.Float, scalar.Double, jvmops.F2d}
	case 0x8a:
		return Unary{scalar.Double, scalar.Int, jvmops.D2i}
	case 0x8b:
		return Unary{scalar.Double, scalar.Long, jvmops.D2l}
	case 0x8c:
		return Unary{scalar.Double, scalar.Float, jvmops.D2f}
	case 0x8d:
		return Unary{scalar.Int, scalar.Int, jvmops.I2b}
	case 0x8e:
		return Unary{scalar.Int, scalar.Int, jvmops.I2c}
	case 0x8f:
		return Unary{scalar.Int, scalar.Int, jvmops.I2s}
	default:
		panic("mathops: not a unary opcode")
	}
}

// Binary describes one Dalvik binary-op opcode (0x90-0xaf, or its 2addr
// form 0xb0-0xcf): the scalar kinds of its two operands (which may differ,
// e.g. the shift count of shl-long/shr-long/ushr-long is always int) and
// the JVM opcode that performs it. The result scalar kind is always Src.
type Binary struct {
	Src, Src2 scalar.T
	Op        byte
}

// intOps/longOps/floatOps/doubleOps hold the 11/11/5/5 op entries in Dalvik's fixed
// layout order: add, sub, mul, div, rem, and, or, xor, shl, shr, ushr (int
// and long), then add, sub, mul, div, rem (float and double).
var intOps = [11]byte{
	jvmops.Iadd, jvmops.Isub, jvmops.Imul, jvmops.Idiv, jvmops.Irem,
	jvmops.Iand, jvmops.Ior, jvmops.Ixor, jvmops.Ishl, jvmops.Ishr, jvmops.Iushr,
}
var longOps = [11]byte{
	jvmops.Ladd, jvmops.Lsub, jvmops.Lmul, jvmops.Ldiv, jvmops.Lrem,
	jvmops.Land, jvmops.Lor, jvmops.Lxor, jvmops.Lshl, jvmops.Lshr, jvmops.Lushr,
}
var floatOps = [5]byte{jvmops.Fadd, jvmops.Fsub, jvmops.Fmul, jvmops.Fdiv, jvmops.Frem}
var doubleOps = [5]byte{jvmops.Dadd, jvmops.Dsub, jvmops.Dmul, jvmops.Ddiv, jvmops.Drem}

func BinaryOp(opcode byte) Binary {
	idx := (opcode - 0x90) % 32 // 0x90-0xaf non-2addr, 0xb0-0xcf 2addr: same layout, mod 32 apart
	switch {
	case idx < 11:
		src2 := scalar.Int
		return Binary{scalar.Int, src2, intOps[idx]}
	case idx < 22:
		i := idx - 11
		src2 := scalar.Long
		if i >= 8 { // shl-long, shr-long, ushr-long: shift count is int
			src2 = scalar.Int
		}
		return Binary{scalar.Long, src2, longOps[i]}
	case idx < 27:
		return Binary{scalar.Float, scalar.Float, floatOps[idx-22]}
	default:
		return Binary{scalar.Double, scalar.Double, doubleOps[idx-27]}
	}
}

// MathThrows reports whether a binary opcode can throw ArithmeticException
// (only integer/long division and remainder can).
func MathThrows(opcode byte) bool {
	idx := (opcode - 0x90) % 32
	return idx == 3 || idx == 4 || idx == 14 || idx == 15 // int div/rem, long div/rem
}

// BinaryLit describes one Dalvik binary-op/lit{8,16} opcode (0xd0-0xe2):
// always int x int -> int. ISUB marks the reverse-subtract (rsub-int)
// forms, which irbuilder handles by loading operands in reversed order.
type BinaryLit struct {
	Op byte
}

var lit8Ops = [8]byte{jvmops.Iadd, jvmops.Isub, jvmops.Imul, jvmops.Idiv, jvmops.Irem, jvmops.Iand, jvmops.Ior, jvmops.Ixor}

func BinaryOpLit(opcode byte) BinaryLit {
	switch {
	case opcode >= 0xd0 && opcode <= 0xd7:
		return BinaryLit{lit8Ops[opcode-0xd0]}
	case opcode >= 0xd8 && opcode <= 0xdf:
		return BinaryLit{lit8Ops[opcode-0xd8]}
	case opcode >= 0xe0 && opcode <= 0xe2:
		return BinaryLit{[3]byte{jvmops.Ishl, jvmops.Ishr, jvmops.Iushr}[opcode-0xe0]}
	default:
		panic("mathops: not a binary/lit opcode")
	}
}
