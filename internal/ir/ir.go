// Package ir defines the intermediate instruction representation the
// translator builds per Dalvik method: internal/writeir flattens a
// method into one stream of these, the passes in internal/optimize
// rewrite it, and internal/optimize's CreateBytecode assembles the final
// classfile bytes. A tagged struct rather than a closed sum type, since
// Go has no variant types.
package ir

import "github.com/enjarify-go/enjarify/internal/jvmops"

// Kind tags which fields of an Instruction are meaningful.
type Kind uint8

const (
	KindLabel Kind = iota
	KindRegAccess
	KindPrimConstant
	KindOtherConstant
	KindGoto
	KindIf
	KindSwitch
	KindOther
)

// LabelKind distinguishes the four reasons a position can need a label.
type LabelKind uint8

const (
	DPos     LabelKind = iota // a Dalvik instruction's own position, a branch target
	EStart                    // an exception range's start
	EEnd                      // an exception range's end (exclusive)
	EHandler                  // an exception range's handler entry point
)

// LabelId names a label: DPos is keyed by Dalvik position, EStart/EEnd/
// EHandler by exception-range index.
type LabelId struct {
	Kind LabelKind
	Pos  int // valid when Kind == DPos
	Idx  int // valid otherwise
}

// Instruction is one emitted IR node. Exactly one group of fields is
// meaningful per Kind; see the Kind consts above.
type Instruction struct {
	Kind Kind

	// KindLabel
	Label LabelId

	// KindRegAccess: load or store of local variable slot Key (the key
	// registers are addressed by before allocation assigns it a literal
	// JVM local slot number), optionally wide (long/double). Ref marks an
	// object-reference category access (always narrow); among narrow,
	// non-ref accesses this representation does not distinguish int from
	// float, and among wide accesses it does not distinguish long from
	// double — both collapse to the int/long opcode family, since the
	// JVM's load/store opcodes for those pairs only differ by interpretation,
	// not bit layout.
	Load bool
	Key  int
	Wide bool
	Ref  bool

	// KindPrimConstant: an int/long/float/double value, synthesized via
	// internal/constants or pool-allocated.
	PrimIsLong   bool
	PrimIsFloat  bool
	PrimIsDouble bool
	PrimInt      int32
	PrimLong     int64
	PrimFloat    float32
	PrimDouble   float64

	// KindOtherConstant: synthesizes `new ConstBytes; dup; invokespecial
	// ConstBytes.<init>()V`, leaving the fresh instance on the stack (used
	// to materialize a NullPointerException ahead of an already-emitted
	// athrow at a statically-known-null array/object dereference).
	// ConstIsStr is unused; retained for symmetry with KindPrimConstant's
	// type tags.
	ConstBytes []byte
	ConstIsStr bool

	// KindGoto/KindIf: branch to Target (a DPos label). KindIf additionally
	// carries the JVM if-opcode (IFEQ..IF_ACMPNE family).
	Target Target
	IfOp   byte

	// KindSwitch: tableswitch/lookupswitch. Default and each case target a
	// DPos label; Keys is nil for tableswitch (implicit consecutive keys
	// starting at Low).
	Low         int32
	Keys        []int32
	CaseTargets []Target
	Default     Target

	// KindOther: a fixed-size, self-contained instruction (arithmetic,
	// array access, field access, invoke, athrow, return, dup/pop,
	// newarray, checkcast, instanceof, ...), already packed to its final
	// byte form by internal/irbuilder. Op is kept for fallsthrough/
	// throws introspection even though Bytes is what gets emitted.
	Op    byte
	Bytes []byte
}

// Target is a forward or backward reference to a DPos label, resolved to
// a byte offset by internal/optimize's CreateBytecode once positions are
// finalized.
type Target struct {
	Pos int
}

// Label builds a KindLabel instruction.
func Label(id LabelId) Instruction { return Instruction{Kind: KindLabel, Label: id} }

// Load builds a local-variable load of key, narrow or wide.
func Load(key int, wide bool) Instruction {
	return Instruction{Kind: KindRegAccess, Load: true, Key: key, Wide: wide}
}

// Store builds a local-variable store of key, narrow or wide.
func Store(key int, wide bool) Instruction {
	return Instruction{Kind: KindRegAccess, Load: false, Key: key, Wide: wide}
}

// LoadRef builds an object-reference local-variable load of key.
func LoadRef(key int) Instruction {
	return Instruction{Kind: KindRegAccess, Load: true, Key: key, Ref: true}
}

// StoreRef builds an object-reference local-variable store of key.
func StoreRef(key int) Instruction {
	return Instruction{Kind: KindRegAccess, Load: false, Key: key, Ref: true}
}

// Goto builds an unconditional branch to target.
func Goto(target int) Instruction {
	return Instruction{Kind: KindGoto, Target: Target{Pos: target}}
}

// If builds a conditional branch using op (one of the IFEQ../IF_ACMPNE
// family in internal/jvmops) to target.
func If(op byte, target int) Instruction {
	return Instruction{Kind: KindIf, IfOp: op, Target: Target{Pos: target}}
}

// Other builds a fixed-shape instruction from already-packed bytes.
func Other(op byte, bytes []byte) Instruction {
	return Instruction{Kind: KindOther, Op: op, Bytes: bytes}
}

// Fallsthrough reports whether control can reach the next IR position
// after this instruction (false for goto, tableswitch/lookupswitch,
// return family, and athrow).
func (in Instruction) Fallsthrough() bool {
	switch in.Kind {
	case KindGoto, KindSwitch:
		return false
	case KindOther:
		switch in.Op {
		case jvmops.Ireturn, jvmops.Lreturn, jvmops.Freturn, jvmops.Dreturn,
			jvmops.Areturn, jvmops.Return, jvmops.Athrow:
			return false
		}
	}
	return true
}

// Targets returns every label this instruction can transfer control to,
// excluding ordinary fallthrough.
func (in Instruction) Targets() []Target {
	switch in.Kind {
	case KindGoto, KindIf:
		return []Target{in.Target}
	case KindSwitch:
		out := append([]Target{in.Default}, in.CaseTargets...)
		return out
	default:
		return nil
	}
}

// MinLen returns this instruction's minimum possible encoded length in
// bytes, used by the jump-width fixed point in internal/optimize.
func (in Instruction) MinLen() int {
	switch in.Kind {
	case KindLabel:
		return 0
	case KindRegAccess:
		if in.Key <= 3 {
			return 1
		}
		if in.Key <= 255 {
			return 2
		}
		return 4 // wide-prefixed iload/istore
	case KindGoto:
		return 3
	case KindIf:
		return 3
	case KindSwitch:
		return 9 // opcode + up to 3 bytes padding + default + (tableswitch low/high or lookupswitch count), refined by internal/optimize's jump-width pass
	case KindPrimConstant, KindOtherConstant:
		return 1
	default:
		return len(in.Bytes)
	}
}
