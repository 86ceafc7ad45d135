package classfile

import (
	"fmt"
	"math"

	"github.com/enjarify-go/enjarify/internal/config"
	"github.com/enjarify-go/enjarify/internal/constantpool"
	"github.com/enjarify-go/enjarify/internal/constants"
	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/irbuilder"
	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/optimize"
	"github.com/enjarify-go/enjarify/internal/typeinfer"
	"github.com/enjarify-go/enjarify/internal/writeir"
)

// maxStackConservative is emitted as every Code attribute's max_stack.
// The JVM verifier only needs an upper bound, and this translator's IR
// never nests expressions deeply enough to approach it; computing the
// exact high-water mark would need a second stack-depth simulation pass,
// deliberately skipped here.
const maxStackConservative = 300

// ExceptionTableEntry is one classfile exception_table row, byte-offset
// resolved (StartPC/EndPC/HandlerPC) with CatchType 0 meaning "any"
// (a finally-style catch-all).
type ExceptionTableEntry struct {
	StartPC, EndPC, HandlerPC uint16
	CatchType                 uint16
}

// CompiledMethod is one method's finished Code attribute components,
// ready for writeclass.go to pack into the method_info's attributes.
type CompiledMethod struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Exceptions []ExceptionTableEntry
}

// PreparedMethod is one method after every internal/optimize pass,
// register allocation, and the register-copy prologue have run, but
// before operand resolution: its KindPrimConstant/KindOtherConstant
// nodes are still unresolved, which is exactly the state
// optimize.CollectCandidates needs to see across every method in a class
// before internal/classfile/writeclass.go decides delay_consts pool
// allocations.
type PreparedMethod struct {
	Ops        []ir.Instruction
	Exceptions []writeir.ExceptionRange
	MaxLocals  uint16
}

// PrepareMethod runs one method through type inference, IR lowering,
// exception-range fencing, the configured internal/optimize passes,
// register allocation, and the sort_registers swap prologue. Every Class/
// Fieldref/Methodref/String pool entry an instruction needs is interned
// eagerly here (those can't be deferred); only primitive constants are
// left unresolved for FinishMethod.
func PrepareMethod(cfg config.Options, pool constantpool.Pool, dexf *dex.File, className []byte, m *dex.Method) (PreparedMethod, error) {
	code := m.Code
	c := &irbuilder.Ctx{Dexf: dexf, Pool: pool, ClassName: className, Payloads: irbuilder.BuildPayloads(code.Bytecode)}

	posIndex := make(map[int]int, len(code.Bytecode))
	for i, instr := range code.Bytecode {
		posIndex[instr.Pos] = i
	}
	activeCatches := activeCatchesFor(code.Tries)

	spaced := m.ID.SpacedParamTypes(m.Access&AccStatic != 0)
	initial := typeinfer.FromParams(int(code.Nregs), spaced)

	inf := typeinfer.DoInference(dexf, code.Bytecode, posIndex, activeCatches, initial)

	flat, err := writeir.BuildMethod(c, code, inf, posIndex)
	if err != nil {
		return PreparedMethod{}, fmt.Errorf("class %s method %s: %w", className, m.ID.Name, err)
	}

	ops := flat.Instructions
	if cfg.Has(config.InlineConsts) {
		ops = optimize.InlineConsts(ops)
	}
	if cfg.Has(config.PruneStoreLoads) {
		ops = optimize.StoreLoadPruner(ops)
	}
	if cfg.Has(config.Dup2ize) {
		ops = optimize.GenDupIter(ops)
	}
	if cfg.Has(config.CopyPropagation) {
		ops = optimize.CopySetsMap(ops)
	}
	if cfg.Has(config.RemoveUnusedRegs) {
		ops = optimize.RemoveUnusedRegs(ops)
	}

	paramBase := int(code.Nregs) - len(spaced)
	var alloc optimize.Allocation
	var prologue []ir.Instruction
	if cfg.Has(config.SortRegisters) {
		alloc, prologue = optimize.SortAllocateRegisters(ops, paramBase, len(spaced))
	} else {
		alloc = optimize.SimpleAllocateRegisters(ops, paramBase, len(spaced))
	}
	ops = optimize.ApplyAllocation(ops, alloc)
	ops = append(prologue, ops...)

	maxLocals := 0
	for _, in := range ops {
		if in.Kind != ir.KindRegAccess {
			continue
		}
		width := 1
		if in.Wide {
			width = 2
		}
		if in.Key+width > maxLocals {
			maxLocals = in.Key + width
		}
	}

	return PreparedMethod{Ops: ops, Exceptions: flat.Exceptions, MaxLocals: uint16(maxLocals)}, nil
}

// FinishMethod resolves prep's remaining operands (honoring resolvedConsts,
// the class-wide delay_consts decision keyed by internal/classfile's
// DelayKey, nil/empty when config.DelayConsts is disabled) and runs the
// jump-width fixed point to produce the method's finished Code attribute.
func FinishMethod(pool constantpool.Pool, methodIdx int, prep PreparedMethod, resolvedConsts map[string]uint16) (CompiledMethod, error) {
	ops, err := resolveOperands(prep.Ops, pool, methodIdx, resolvedConsts)
	if err != nil {
		return CompiledMethod{}, err
	}

	pos, wide := optimize.OptimizeJumps(ops)
	labelPos := map[ir.LabelId]int{}
	for i, in := range ops {
		if in.Kind == ir.KindLabel {
			labelPos[in.Label] = pos[i]
		}
	}
	bytecode := optimize.CreateBytecode(ops, pos, wide, labelPos)
	codeLen := len(bytecode)
	if codeLen > 0xffff {
		return CompiledMethod{}, fmt.Errorf("classfile: method code length %d exceeds 65535: %w", codeLen, constantpool.ErrClassfileLimitExceeded)
	}

	entries, err := exceptionTable(prep.Exceptions, pool, labelPos, codeLen)
	if err != nil {
		return CompiledMethod{}, err
	}

	return CompiledMethod{
		MaxStack:   maxStackConservative,
		MaxLocals:  prep.MaxLocals,
		Code:       bytecode,
		Exceptions: entries,
	}, nil
}

// activeCatchesFor builds the per-position active-try-block lookup
// typeinfer.DoInference needs: every try range covering pos, innermost
// (latest-starting) first, flattened to that range's catch list.
func activeCatchesFor(tries []dex.TryItem) func(pos int) []dex.CatchItem {
	return func(pos int) []dex.CatchItem {
		var out []dex.CatchItem
		for i := len(tries) - 1; i >= 0; i-- {
			t := tries[i]
			if pos >= t.Start && pos < t.End {
				out = append(out, t.Catches...)
			}
		}
		return out
	}
}

// exceptionTable resolves a method's Dalvik-position exception ranges to
// final classfile byte offsets: Start/End key the DPos label emitted at
// every real instruction boundary (End falls back to codeLen when the
// range runs to the method's end, past the last instruction), Handler
// keys the EHandler tail-redirect label BuildMethod appended for that
// target. Allocates a CONSTANT_Class entry per distinct non-catch-all
// Ctype.
func exceptionTable(ranges []writeir.ExceptionRange, pool constantpool.Pool, labelPos map[ir.LabelId]int, codeLen int) ([]ExceptionTableEntry, error) {
	out := make([]ExceptionTableEntry, 0, len(ranges))
	for _, r := range ranges {
		start, ok := labelPos[ir.LabelId{Kind: ir.DPos, Pos: r.Start}]
		if !ok {
			return nil, fmt.Errorf("exception range: no label at start pos %d", r.Start)
		}
		end, ok := labelPos[ir.LabelId{Kind: ir.DPos, Pos: r.End}]
		if !ok {
			end = codeLen
		}
		handler, ok := labelPos[ir.LabelId{Kind: ir.EHandler, Idx: r.Handler}]
		if !ok {
			return nil, fmt.Errorf("exception range: no handler label at target %d", r.Handler)
		}
		var catchType uint16
		if r.Ctype != nil && string(r.Ctype) != "java/lang/Throwable" {
			idx, err := pool.Class(r.Ctype)
			if err != nil {
				return nil, err
			}
			catchType = idx
		}
		out = append(out, ExceptionTableEntry{
			StartPC: uint16(start), EndPC: uint16(end), HandlerPC: uint16(handler), CatchType: catchType,
		})
	}
	return out, nil
}

// resolveOperands replaces every KindRegAccess/KindPrimConstant/
// KindOtherConstant node with an equivalent KindOther node carrying its
// final packed bytes, the step internal/optimize's jump-width fixed point
// and final byte assembly require as a precondition.
func resolveOperands(ops []ir.Instruction, pool constantpool.Pool, methodIdx int, resolvedConsts map[string]uint16) ([]ir.Instruction, error) {
	out := make([]ir.Instruction, len(ops))
	for i, in := range ops {
		switch in.Kind {
		case ir.KindRegAccess:
			out[i] = ir.Other(0, regAccessBytes(in))
		case ir.KindPrimConstant:
			b, err := constBytes(in, pool, methodIdx, resolvedConsts)
			if err != nil {
				return nil, err
			}
			out[i] = ir.Other(0, b)
		case ir.KindOtherConstant:
			b, err := newInstanceBytes(in, pool)
			if err != nil {
				return nil, err
			}
			out[i] = ir.Other(0, b)
		default:
			out[i] = in
		}
	}
	return out, nil
}

func regAccessBytes(in ir.Instruction) []byte {
	var loadOp, storeOp, load0, store0 byte
	switch {
	case in.Ref:
		loadOp, storeOp, load0, store0 = jvmops.Aload, jvmops.Astore, jvmops.Aload0, jvmops.Astore0
	case in.Wide:
		loadOp, storeOp, load0, store0 = jvmops.Lload, jvmops.Lstore, jvmops.Lload0, jvmops.Lstore0
	default:
		loadOp, storeOp, load0, store0 = jvmops.Iload, jvmops.Istore, jvmops.Iload0, jvmops.Istore0
	}
	op, op0 := storeOp, store0
	if in.Load {
		op, op0 = loadOp, load0
	}
	key := in.Key
	switch {
	case key >= 0 && key <= 3:
		return []byte{op0 + byte(key)}
	case key <= 255:
		return []byte{op, byte(key)}
	default:
		return []byte{jvmops.Wide, op, byte(key >> 8), byte(key)}
	}
}

func newInstanceBytes(in ir.Instruction, pool constantpool.Pool) ([]byte, error) {
	clsIdx, err := pool.Class(in.ConstBytes)
	if err != nil {
		return nil, err
	}
	initIdx, err := pool.Methodref(in.ConstBytes, []byte("<init>"), []byte("()V"), false)
	if err != nil {
		return nil, err
	}
	return []byte{
		jvmops.New, byte(clsIdx >> 8), byte(clsIdx),
		jvmops.Dup,
		jvmops.Invokespecial, byte(initIdx >> 8), byte(initIdx),
	}, nil
}

func constBytes(in ir.Instruction, pool constantpool.Pool, methodIdx int, resolvedConsts map[string]uint16) ([]byte, error) {
	if idx, ok := resolvedConsts[DelayKey(methodIdx, optimize.ConstKey(in))]; ok {
		return ldcBytes(in, idx), nil
	}
	switch {
	case in.PrimIsLong:
		if b, ok := constants.LongBytes(in.PrimLong); ok {
			return b, nil
		}
		idx, err := pool.Long(uint64(in.PrimLong))
		if err != nil {
			return nil, err
		}
		return u8u16(jvmops.Ldc2W, idx), nil
	case in.PrimIsFloat:
		if b, ok := constants.FloatBytes(in.PrimFloat); ok {
			return b, nil
		}
		idx, err := pool.Float(math.Float32bits(in.PrimFloat))
		if err != nil {
			return nil, err
		}
		return ldcBytes(in, idx), nil
	case in.PrimIsDouble:
		if b, ok := constants.DoubleBytes(in.PrimDouble); ok {
			return b, nil
		}
		idx, err := pool.Double(math.Float64bits(in.PrimDouble))
		if err != nil {
			return nil, err
		}
		return u8u16(jvmops.Ldc2W, idx), nil
	default:
		if b, ok := constants.IntBytes(in.PrimInt); ok {
			return b, nil
		}
		idx, err := pool.Integer(in.PrimInt)
		if err != nil {
			return nil, err
		}
		return ldcBytes(in, idx), nil
	}
}

func ldcBytes(in ir.Instruction, idx uint16) []byte {
	if in.PrimIsLong || in.PrimIsDouble {
		return u8u16(jvmops.Ldc2W, idx)
	}
	if idx <= 0xff {
		return []byte{jvmops.Ldc, byte(idx)}
	}
	return u8u16(jvmops.LdcW, idx)
}

func u8u16(op byte, idx uint16) []byte { return []byte{op, byte(idx >> 8), byte(idx)} }

// DelayKey is the resolvedConsts map key shared between writeclass.go
// (flattening optimize.AllocateRequiredConstants' Candidate.ID-keyed
// result to method index + constant key) and constBytes' lookup.
func DelayKey(methodIdx int, constKey string) string {
	return fmt.Sprintf("%d|%s", methodIdx, constKey)
}
