// Package constants synthesizes primitive constant values as short JVM
// bytecode sequences instead of constant-pool references, so methods that
// only ever need a handful of small constants don't spend pool slots (or
// the 3-5 bytes of an ldc/ldc_w/ldc2_w) on them.
package constants

import (
	"math"

	"github.com/enjarify-go/enjarify/internal/jvmops"
)

// IntBytes returns a bytecode-only sequence producing v on the stack as an
// int: iconst_m1..iconst_5 (1 byte), bipush (2 bytes), sipush (3 bytes),
// sipush+ineg (4 bytes, only for 32768), or a sipush-range base shifted
// left by ishl when that whole sequence is shorter than 5 bytes (1<<30,
// for example). ok is false for every other value (40001, for example).
func IntBytes(v int32) (out []byte, ok bool) {
	switch {
	case v >= -1 && v <= 5:
		return []byte{byte(int(jvmops.IconstM1) + int(v) + 1)}, true
	case v >= -128 && v <= 127:
		return []byte{jvmops.Bipush, byte(v)}, true
	case v >= -32768 && v <= 32767:
		return []byte{jvmops.Sipush, byte(v >> 8), byte(v)}, true
	}
	// Negation: -v fits in sipush range.
	if n := -int64(v); n >= -32768 && n <= 32767 && n != int64(v) {
		b, _ := IntBytes(int32(n))
		return append(b, jvmops.Ineg), true
	}
	// Left shift: v = base << shift, base fits in sipush range, trailing
	// zero bits absorbed by ishl.
	if v != 0 {
		trailing := 0
		u := uint32(v)
		for u&1 == 0 && trailing < 30 {
			u >>= 1
			trailing++
		}
		base := int32(u)
		if int32(u)<<uint(trailing) == v && base >= -32768 && base <= 32767 && trailing > 0 {
			bb, _ := IntBytes(base)
			sb, _ := IntBytes(int32(trailing))
			out := append(append([]byte{}, bb...), sb...)
			out = append(out, jvmops.Ishl)
			if len(out) < 5 {
				return out, true
			}
		}
	}
	return nil, false
}

// LongBytes returns a bytecode-only sequence producing v as a long, via
// i2l of a synthesized int when v fits in int32 range, or otherwise
// (hi' i2l << 32) ^ (lo i2l), where lo is the low 32 bits and hi' the high
// 32 bits xored with lo's sign, so the xor cancels lo's sign extension.
// ok is false when a half cannot be synthesized or the sequence would be
// 10 bytes or longer.
func LongBytes(v int64) (out []byte, ok bool) {
	if v == 0 {
		return []byte{jvmops.Lconst0}, true
	}
	if v == 1 {
		return []byte{jvmops.Lconst1}, true
	}
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		ib, iok := IntBytes(int32(v))
		if iok {
			return append(ib, jvmops.I2l), true
		}
	}
	hi := int32(v >> 32)
	lo := int32(v)
	hib, hok := IntBytes(hi ^ (lo >> 31))
	lob, lok := IntBytes(lo)
	if !hok || !lok {
		return nil, false
	}
	out = append(out, hib...)
	out = append(out, jvmops.I2l)
	out = append(out, constShift32...)
	out = append(out, jvmops.Lshl)
	out = append(out, lob...)
	out = append(out, jvmops.I2l)
	out = append(out, jvmops.Lxor)
	if len(out) < 10 {
		return out, true
	}
	return nil, false
}

var constShift32 = []byte{jvmops.Sipush, 0, 32}

// FloatBytes returns a bytecode-only sequence producing v as a float:
// the three hardcoded special cases, i2f of a losslessly-representable
// int, or false (pool allocation required) for the general case. A full
// mantissa/exponent decomposition for arbitrary floats is not attempted.
func FloatBytes(v float32) (out []byte, ok bool) {
	switch {
	case v == 0 && math.Signbit(float64(v)) == false:
		return []byte{jvmops.Fconst0}, true
	case v == 1:
		return []byte{jvmops.Fconst1}, true
	case v == 2:
		return []byte{jvmops.Fconst2}, true
	}
	// v != 0 excludes negative zero: int32(-0.0) is 0, and i2f of int 0
	// always produces positive zero, which would silently flip the sign
	// the fconst_0 special case above already rejected this value for.
	if iv := int32(v); v != 0 && float32(iv) == v {
		ib, iok := IntBytes(iv)
		if iok {
			return append(ib, jvmops.I2f), true
		}
	}
	return nil, false
}

// DoubleBytes is FloatBytes's double-precision analogue.
func DoubleBytes(v float64) (out []byte, ok bool) {
	switch {
	case v == 0 && !math.Signbit(v):
		return []byte{jvmops.Dconst0}, true
	case v == 1:
		return []byte{jvmops.Dconst1}, true
	}
	if iv := int32(v); v != 0 && float64(iv) == v {
		ib, iok := IntBytes(iv)
		if iok {
			return append(ib, jvmops.I2d), true
		}
	}
	return nil, false
}
