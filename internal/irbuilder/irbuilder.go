// Package irbuilder lowers one decoded Dalvik instruction (plus the
// TypeInfo state computed by internal/typeinfer) to a small sequence of
// internal/ir instructions, one emission switch per Dalvik instruction
// kind.
package irbuilder

import (
	"fmt"

	"github.com/enjarify-go/enjarify/internal/constantpool"
	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/jvmops"
	"github.com/enjarify-go/enjarify/internal/mathops"
	"github.com/enjarify-go/enjarify/internal/scalar"
	"github.com/enjarify-go/enjarify/internal/typeinfer"
)

// Ctx carries the per-method context the builder needs beyond the single
// instruction: the dex file (to resolve pool references), the constant
// pool being built, and the declaring class name (for invoke-super's
// implicit "this class" and for synthesizing catch-all Throwable refs).
type Ctx struct {
	Dexf      *dex.File
	Pool      constantpool.Pool
	ClassName []byte

	// Payloads maps a Dalvik position to the pseudo-instruction the
	// decoder produced there for a packed-switch/sparse-switch/fill-
	// array-data payload (the magic 0x100/0x200/0x300 code units), since
	// the instruction that *references* the payload (switch, fill-array-
	// data) only carries the payload's position, not its decoded
	// contents.
	Payloads map[int]*dex.Instruction
}

// BuildPayloads scans a method's decoded instructions for switch/fill-
// array-data payloads and indexes them by position, for Ctx.Payloads.
func BuildPayloads(ops []*dex.Instruction) map[int]*dex.Instruction {
	out := map[int]*dex.Instruction{}
	for _, op := range ops {
		if op.ArrayData != nil || op.SwitchData != nil {
			out[op.Pos] = op
		}
	}
	return out
}

// Build lowers instr, given the abstract state before (st) it executes,
// to a slice of IR instructions, always beginning with a position label.
func Build(c *Ctx, instr *dex.Instruction, st typeinfer.TypeInfo) ([]ir.Instruction, error) {
	out := []ir.Instruction{ir.Label(ir.LabelId{Kind: ir.DPos, Pos: instr.Pos})}

	emit, err := lower(c, instr, st)
	if err != nil {
		return nil, fmt.Errorf("pos %d (opcode %#x): %w", instr.Pos, instr.Opcode, err)
	}
	return append(out, emit...), nil
}

func lower(c *Ctx, instr *dex.Instruction, st typeinfer.TypeInfo) ([]ir.Instruction, error) {
	switch instr.Typ {
	case dex.DNop:
		return nil, nil

	case dex.DMove:
		return moveScalars(c, st, uint32(instr.A), uint32(instr.B), false)
	case dex.DMoveWide:
		return moveScalars(c, st, uint32(instr.A), uint32(instr.B), true)

	case dex.DMoveResult:
		s, _ := st.Get(uint32(instr.A))
		if isRefOnly(s) {
			return []ir.Instruction{ir.StoreRef(int(instr.A))}, nil
		}
		return []ir.Instruction{ir.Store(int(instr.A), s.IsWide())}, nil

	case dex.DReturn:
		if instr.Opcode == 0x0e {
			return []ir.Instruction{ir.Other(jvmops.Return, []byte{jvmops.Return})}, nil
		}
		s, _ := st.Get(uint32(instr.A))
		retOp := returnOpFor(s)
		if isRefOnly(s) {
			load, err := loadRefChecked(c, st, int(instr.A))
			if err != nil {
				return nil, err
			}
			return append(load, ir.Other(retOp, []byte{retOp})), nil
		}
		return []ir.Instruction{
			ir.Load(int(instr.A), s.IsWide()),
			ir.Other(retOp, []byte{retOp}),
		}, nil

	case dex.DConst32:
		return constPrims(uint32(instr.A), int32(instr.B), instr.B == 0), nil
	case dex.DConst64:
		return constWide(uint32(instr.A), instr.Long), nil

	case dex.DConstString:
		idx, err := c.Pool.StringC(resolveString(c, instr))
		if err != nil {
			return nil, err
		}
		return []ir.Instruction{ldc(idx), ir.StoreRef(int(instr.A))}, nil

	case dex.DConstClass:
		idx, err := c.Pool.Class(c.Dexf.ClsType(uint32(instr.B)))
		if err != nil {
			return nil, err
		}
		return []ir.Instruction{ldc(idx), ir.StoreRef(int(instr.A))}, nil

	case dex.DMonitorEnter:
		load, err := loadRefChecked(c, st, int(instr.A))
		if err != nil {
			return nil, err
		}
		return append(load, ir.Other(jvmops.Monitorenter, []byte{jvmops.Monitorenter})), nil
	case dex.DMonitorExit:
		load, err := loadRefChecked(c, st, int(instr.A))
		if err != nil {
			return nil, err
		}
		return append(load, ir.Other(jvmops.Monitorexit, []byte{jvmops.Monitorexit})), nil

	case dex.DCheckCast:
		idx, err := c.Pool.Class(c.Dexf.ClsType(uint32(instr.B)))
		if err != nil {
			return nil, err
		}
		return []ir.Instruction{
			ir.LoadRef(int(instr.A)),
			ir.Other(jvmops.Checkcast, u8u16(jvmops.Checkcast, idx)),
			ir.StoreRef(int(instr.A)),
		}, nil

	case dex.DInstanceOf:
		idx, err := c.Pool.Class(c.Dexf.ClsType(uint32(instr.C)))
		if err != nil {
			return nil, err
		}
		return []ir.Instruction{
			ir.LoadRef(int(instr.B)),
			ir.Other(jvmops.Instanceof, u8u16(jvmops.Instanceof, idx)),
			ir.Store(int(instr.A), false),
		}, nil

	case dex.DArrayLen:
		load, err := loadArrayChecked(c, st, int(instr.B))
		if err != nil {
			return nil, err
		}
		return append(load,
			ir.Other(jvmops.Arraylength, []byte{jvmops.Arraylength}),
			ir.Store(int(instr.A), false),
		), nil

	case dex.DNewInstance:
		idx, err := c.Pool.Class(c.Dexf.ClsType(uint32(instr.B)))
		if err != nil {
			return nil, err
		}
		return []ir.Instruction{
			ir.Other(jvmops.New, u8u16(jvmops.New, idx)),
			ir.StoreRef(int(instr.A)),
		}, nil

	case dex.DNewArray:
		return newArray(c, instr)

	case dex.DFilledNewArray:
		return filledNewArray(c, instr)

	case dex.DFillArrayData:
		return fillArrayData(c, st, instr)

	case dex.DThrow:
		load, err := loadRefChecked(c, st, int(instr.A))
		if err != nil {
			return nil, err
		}
		return append(load, ir.Other(jvmops.Athrow, []byte{jvmops.Athrow})), nil

	case dex.DGoto:
		return []ir.Instruction{ir.Goto(int(instr.A))}, nil

	case dex.DSwitch:
		return buildSwitch(c, instr), nil

	case dex.DCmp:
		return buildCmp(instr), nil

	case dex.DIf:
		return buildIf(st, instr), nil
	case dex.DIfZ:
		return buildIfZ(st, instr), nil

	case dex.DArrayGet:
		return arrayGet(c, st, instr)
	case dex.DArrayPut:
		return arrayPut(c, st, instr)

	case dex.DInstanceGet:
		return fieldGet(c, st, instr, false)
	case dex.DInstancePut:
		return fieldPut(c, st, instr, false)
	case dex.DStaticGet:
		return fieldGet(c, st, instr, true)
	case dex.DStaticPut:
		return fieldPut(c, st, instr, true)

	case dex.DInvokeVirtual, dex.DInvokeSuper, dex.DInvokeDirect, dex.DInvokeStatic, dex.DInvokeInterface:
		return buildInvoke(c, st, instr)

	case dex.DUnaryOp:
		return buildUnary(instr), nil
	case dex.DBinaryOp:
		return buildBinary(instr), nil
	case dex.DBinaryOpConst:
		return buildBinaryLit(instr), nil
	}
	return nil, fmt.Errorf("unhandled dalvik type %v", instr.Typ)
}

func u8u16(op byte, idx uint16) []byte { return []byte{op, byte(idx >> 8), byte(idx)} }

func ldc(idx uint16) ir.Instruction {
	if idx <= 0xff {
		return ir.Other(jvmops.Ldc, []byte{jvmops.Ldc, byte(idx)})
	}
	return ir.Other(jvmops.LdcW, u8u16(jvmops.LdcW, idx))
}

func resolveString(c *Ctx, instr *dex.Instruction) []byte {
	return c.Dexf.String(uint32(instr.B))
}

// isRefOnly reports whether s can only hold an object reference, as
// opposed to an int/float (narrow) or long/double (wide) value sharing
// the same bit position in the lattice.
func isRefOnly(s scalar.T) bool {
	return s.Includes(scalar.Obj) && !s.Includes(scalar.C32)
}

// moveScalars emits load-then-store for every scalar kind the lattice at
// src includes (a register can hold more than one plausible kind until
// narrowed).
func moveScalars(c *Ctx, st typeinfer.TypeInfo, dst, src uint32, wide bool) ([]ir.Instruction, error) {
	s, _ := st.Get(src)
	if wide {
		return []ir.Instruction{ir.Load(int(src), true), ir.Store(int(dst), true)}, nil
	}
	if isRefOnly(s) {
		load, err := loadRefChecked(c, st, int(src))
		if err != nil {
			return nil, err
		}
		return append(load, ir.StoreRef(int(dst))), nil
	}
	return []ir.Instruction{ir.Load(int(src), false), ir.Store(int(dst), false)}, nil
}

// loadRefChecked loads reg as an object reference, appending an explicit
// checkcast if reg was narrowed by an implicit instanceof-cast the
// verifier hasn't yet re-checked (TypeInfo.Tainted). The checkcast
// targets the register's tracked array descriptor, or java/lang/Object
// when no array shape is tracked.
func loadRefChecked(c *Ctx, st typeinfer.TypeInfo, reg int) ([]ir.Instruction, error) {
	return loadChecked(c, st, reg, []byte("java/lang/Object"))
}

// loadArrayChecked is loadRefChecked for a register consumed as an array
// reference (array-length, array element access), falling back to
// [Ljava/lang/Object; instead of java/lang/Object when the narrowed type
// isn't itself a tracked array.
func loadArrayChecked(c *Ctx, st typeinfer.TypeInfo, reg int) ([]ir.Instruction, error) {
	return loadChecked(c, st, reg, []byte("[Ljava/lang/Object;"))
}

func loadChecked(c *Ctx, st typeinfer.TypeInfo, reg int, fallback []byte) ([]ir.Instruction, error) {
	load := ir.LoadRef(reg)
	if !st.IsTainted(uint32(reg)) {
		return []ir.Instruction{load}, nil
	}
	_, at := st.Get(uint32(reg))
	target := fallback
	if at.IsArray() {
		target = at.ToDesc()
	}
	idx, err := c.Pool.Class(target)
	if err != nil {
		return nil, err
	}
	return []ir.Instruction{
		load,
		ir.Other(jvmops.Checkcast, u8u16(jvmops.Checkcast, idx)),
	}, nil
}

func loadOpFor(s scalar.T) (byte, bool) {
	switch {
	case s.Includes(scalar.Long):
		return jvmops.Lload, true
	case s.Includes(scalar.Double):
		return jvmops.Dload, true
	case s.Includes(scalar.Float):
		return jvmops.Fload, false
	case s.Includes(scalar.Obj):
		return jvmops.Aload, false
	default:
		return jvmops.Iload, false
	}
}

func returnOpFor(s scalar.T) byte {
	switch {
	case s.Includes(scalar.Long):
		return jvmops.Lreturn
	case s.Includes(scalar.Double):
		return jvmops.Dreturn
	case s.Includes(scalar.Float):
		return jvmops.Freturn
	case s.Includes(scalar.Obj):
		return jvmops.Areturn
	default:
		return jvmops.Ireturn
	}
}

// constPrims pushes and stores a 32-bit constant. isZero is unused here:
// const/4 vz, 0 has a scalar.Zero type (Int/Float/Obj all possible until a
// later use narrows it), but the concrete push stays iconst_0/iconst_m1/
// etc. — a register whose only consumers need a null reference still
// gets this value and relies on the JVM accepting 0 as falsy; synthesizing
// aconst_null for the object-only case would need per-use resolution this
// pass doesn't have.
func constPrims(reg uint32, v int32, isZero bool) []ir.Instruction {
	return []ir.Instruction{
		{Kind: ir.KindPrimConstant, PrimInt: v},
		ir.Store(int(reg), false),
	}
}

func constWide(reg uint32, v int64) []ir.Instruction {
	return []ir.Instruction{
		{Kind: ir.KindPrimConstant, PrimIsLong: true, PrimLong: v},
		ir.Store(int(reg), true),
	}
}

func newArray(c *Ctx, instr *dex.Instruction) ([]ir.Instruction, error) {
	desc := c.Dexf.RawType(uint32(instr.C))
	load := ir.Load(int(instr.B), false)
	if len(desc) >= 2 && desc[0] == '[' {
		elemDesc := desc[1:]
		if atype, ok := primAtype(elemDesc); ok {
			return []ir.Instruction{
				load,
				ir.Other(jvmops.Newarray, []byte{jvmops.Newarray, byte(atype)}),
				ir.StoreRef(int(instr.A)),
			}, nil
		}
		stripped := stripArray(elemDesc)
		idx, err := c.Pool.Class(stripped)
		if err != nil {
			return nil, err
		}
		return []ir.Instruction{
			load,
			ir.Other(jvmops.Anewarray, u8u16(jvmops.Anewarray, idx)),
			ir.StoreRef(int(instr.A)),
		}, nil
	}
	return nil, fmt.Errorf("new-array: bad descriptor %q", desc)
}

func primAtype(desc []byte) (int, bool) {
	if len(desc) == 0 {
		return 0, false
	}
	switch desc[0] {
	case 'Z':
		return jvmops.AtypeBoolean, true
	case 'C':
		return jvmops.AtypeChar, true
	case 'F':
		return jvmops.AtypeFloat, true
	case 'D':
		return jvmops.AtypeDouble, true
	case 'B':
		return jvmops.AtypeByte, true
	case 'S':
		return jvmops.AtypeShort, true
	case 'I':
		return jvmops.AtypeInt, true
	case 'J':
		return jvmops.AtypeLong, true
	}
	return 0, false
}

// stripArray renders a raw type descriptor to the form CONSTANT_Class
// expects for an array type reference: array descriptors ("[...") are
// used verbatim, object descriptors have their "L"/";" wrapper stripped.
func stripArray(desc []byte) []byte {
	if len(desc) > 0 && desc[0] == '[' {
		return desc
	}
	if len(desc) > 1 && desc[0] == 'L' {
		return desc[1 : len(desc)-1]
	}
	return desc
}

// filledNewArray creates an array sized to len(RegList) and stores each
// argument into it: a straight sequential dup/astore/index-store sequence.
// internal/optimize's dup2ize pass still applies afterward at the
// register-load level to coalesce runs of consecutive stores.
func filledNewArray(c *Ctx, instr *dex.Instruction) ([]ir.Instruction, error) {
	desc := c.Dexf.RawType(uint32(instr.A))
	elemDesc := desc
	if len(desc) > 0 && desc[0] == '[' {
		elemDesc = desc[1:]
	}
	var out []ir.Instruction
	out = append(out, constPrims(0, int32(len(instr.RegList)), false)[:1]...) // length constant only, no store
	if atype, ok := primAtype(elemDesc); ok {
		out = append(out, ir.Other(jvmops.Newarray, []byte{jvmops.Newarray, byte(atype)}))
	} else {
		idx, err := c.Pool.Class(stripArray(elemDesc))
		if err != nil {
			return nil, err
		}
		out = append(out, ir.Other(jvmops.Anewarray, u8u16(jvmops.Anewarray, idx)))
	}
	storeOp := arrayStoreOpForDesc(elemDesc)
	wide := elemDesc[0] == 'J' || elemDesc[0] == 'D'
	for i, reg := range instr.RegList {
		out = append(out,
			ir.Other(jvmops.Dup, []byte{jvmops.Dup}),
			ir.Instruction{Kind: ir.KindPrimConstant, PrimInt: int32(i)},
			ir.Load(int(reg), wide),
			ir.Other(storeOp, []byte{storeOp}),
		)
	}
	return out, nil
}

func arrayStoreOpForDesc(desc []byte) byte {
	switch desc[0] {
	case 'I':
		return jvmops.Iastore
	case 'J':
		return jvmops.Lastore
	case 'F':
		return jvmops.Fastore
	case 'D':
		return jvmops.Dastore
	case 'B', 'Z':
		return jvmops.Bastore
	case 'C':
		return jvmops.Castore
	case 'S':
		return jvmops.Sastore
	default:
		return jvmops.Aastore
	}
}

func fillArrayData(c *Ctx, st typeinfer.TypeInfo, instr *dex.Instruction) ([]ir.Instruction, error) {
	_, at := st.Get(uint32(instr.A))
	load := ir.LoadRef(int(instr.A))
	if at.IsNull() {
		return []ir.Instruction{
			ir.Instruction{Kind: ir.KindOtherConstant, ConstBytes: []byte("java/lang/NullPointerException")},
			ir.Other(jvmops.Athrow, []byte{jvmops.Athrow}),
		}, nil
	}
	var data *dex.ArrayData
	if payload := c.Payloads[int(instr.B)]; payload != nil {
		data = payload.ArrayData
	}
	if data == nil || data.Count == 0 {
		return []ir.Instruction{
			load,
			ir.Other(jvmops.Arraylength, []byte{jvmops.Arraylength}),
			ir.Other(jvmops.Pop, []byte{jvmops.Pop}),
		}, nil
	}
	desc := at.ToDesc()
	elemDesc := desc
	if len(desc) > 0 && desc[0] == '[' {
		elemDesc = desc[1:]
	}
	storeOp := arrayStoreOpForDesc(elemDesc)
	wide := elemDesc[0] == 'J' || elemDesc[0] == 'D'
	out := []ir.Instruction{}
	for i := uint32(0); i < data.Count; i++ {
		out = append(out,
			load,
			ir.Instruction{Kind: ir.KindPrimConstant, PrimInt: int32(i)},
			elementConst(data, int(i), wide),
			ir.Other(storeOp, []byte{storeOp}),
		)
	}
	return out, nil
}

func elementConst(data *dex.ArrayData, i int, wide bool) ir.Instruction {
	off := i * data.Width
	var v int64
	for j := 0; j < data.Width && off+j < len(data.Stream); j++ {
		v |= int64(data.Stream[off+j]) << (8 * uint(j))
	}
	if wide {
		return ir.Instruction{Kind: ir.KindPrimConstant, PrimIsLong: true, PrimLong: v}
	}
	return ir.Instruction{Kind: ir.KindPrimConstant, PrimInt: int32(v)}
}

func buildSwitch(c *Ctx, instr *dex.Instruction) []ir.Instruction {
	payload := c.Payloads[int(instr.B)]
	if payload == nil || payload.SwitchData == nil {
		// malformed payload reference: no cases, falls through unconditionally
		return []ir.Instruction{ir.Load(int(instr.A), false), ir.Other(jvmops.Pop, []byte{jvmops.Pop})}
	}
	entries := payload.SwitchData.Entries()
	targets := make([]ir.Target, 0, len(entries))
	keys := make([]int32, 0, len(entries))
	for _, e := range entries {
		if int(e.Target) == instr.Pos2 {
			continue // equal to fallthrough default: dropping it shrinks the table for free
		}
		keys = append(keys, e.Key)
		targets = append(targets, ir.Target{Pos: int(e.Target)})
	}
	if len(keys) == 0 {
		return []ir.Instruction{ir.Load(int(instr.A), false), ir.Other(jvmops.Pop, []byte{jvmops.Pop}), ir.Goto(instr.Pos2)}
	}
	return []ir.Instruction{
		ir.Load(int(instr.A), false),
		{
			Kind:        ir.KindSwitch,
			Keys:        keys,
			CaseTargets: targets,
			Default:     ir.Target{Pos: instr.Pos2},
		},
	}
}

func buildCmp(instr *dex.Instruction) []ir.Instruction {
	var op byte
	switch instr.Opcode {
	case 0x2d:
		op = jvmops.Fcmpl
	case 0x2e:
		op = jvmops.Fcmpg
	case 0x2f:
		op = jvmops.Dcmpl
	case 0x30:
		op = jvmops.Dcmpg
	default: // 0x31 cmp-long
		op = jvmops.Lcmp
	}
	wide := op == jvmops.Lcmp || op == jvmops.Dcmpl || op == jvmops.Dcmpg
	return []ir.Instruction{
		ir.Load(int(instr.B), wide),
		ir.Load(int(instr.C), wide),
		ir.Other(op, []byte{op}),
		ir.Store(int(instr.A), false),
	}
}

func buildIf(st typeinfer.TypeInfo, instr *dex.Instruction) []ir.Instruction {
	sa, _ := st.Get(uint32(instr.A))
	sb, _ := st.Get(uint32(instr.B))
	m := sa.And(sb)
	isRef := m.Includes(scalar.Obj) && !m.Includes(scalar.Int)
	op := ifCmpOp(instr.Opcode, isRef)
	loadA, loadB := ir.Load(int(instr.A), false), ir.Load(int(instr.B), false)
	if isRef {
		loadA, loadB = ir.LoadRef(int(instr.A)), ir.LoadRef(int(instr.B))
	}
	return []ir.Instruction{
		loadA,
		loadB,
		ir.If(op, int(instr.C)),
	}
}

func ifCmpOp(opcode byte, isRef bool) byte {
	i := opcode - 0x32
	if isRef {
		switch i {
		case 0:
			return jvmops.IfAcmpeq
		case 1:
			return jvmops.IfAcmpne
		}
	}
	return [6]byte{jvmops.IfIcmpeq, jvmops.IfIcmpne, jvmops.IfIcmplt, jvmops.IfIcmpge, jvmops.IfIcmpgt, jvmops.IfIcmple}[i]
}

func buildIfZ(st typeinfer.TypeInfo, instr *dex.Instruction) []ir.Instruction {
	sa, _ := st.Get(uint32(instr.A))
	isRef := sa.Includes(scalar.Obj) && !sa.Includes(scalar.Int)
	i := instr.Opcode - 0x38
	var op byte
	if isRef {
		if i == 0 {
			op = jvmops.Ifnull
		} else {
			op = jvmops.Ifnonnull
		}
	} else {
		op = [6]byte{jvmops.Ifeq, jvmops.Ifne, jvmops.Iflt, jvmops.Ifge, jvmops.Ifgt, jvmops.Ifle}[i]
	}
	load := ir.Load(int(instr.A), false)
	if isRef {
		load = ir.LoadRef(int(instr.A))
	}
	return []ir.Instruction{
		load,
		ir.If(op, int(instr.B)),
	}
}

func arrayGet(c *Ctx, st typeinfer.TypeInfo, instr *dex.Instruction) ([]ir.Instruction, error) {
	_, at := st.Get(uint32(instr.B))
	if at.IsNull() {
		return []ir.Instruction{
			ir.Instruction{Kind: ir.KindOtherConstant, ConstBytes: []byte("java/lang/NullPointerException")},
			ir.Other(jvmops.Athrow, []byte{jvmops.Athrow}),
		}, nil
	}
	elt, _ := at.EletPair()
	op := at.LoadOp()
	store := ir.Store(int(instr.A), elt.IsWide())
	if op == jvmops.Aaload {
		store = ir.StoreRef(int(instr.A))
	}
	arrRef, err := loadArrayChecked(c, st, int(instr.B))
	if err != nil {
		return nil, err
	}
	return append(arrRef,
		ir.Load(int(instr.C), false),
		ir.Other(op, []byte{op}),
		store,
	), nil
}

func arrayPut(c *Ctx, st typeinfer.TypeInfo, instr *dex.Instruction) ([]ir.Instruction, error) {
	_, at := st.Get(uint32(instr.B))
	if at.IsNull() {
		return []ir.Instruction{
			ir.Instruction{Kind: ir.KindOtherConstant, ConstBytes: []byte("java/lang/NullPointerException")},
			ir.Other(jvmops.Athrow, []byte{jvmops.Athrow}),
		}, nil
	}
	storeOp := at.StoreOp()
	wide := storeOp == jvmops.Lastore || storeOp == jvmops.Dastore

	arrRef, err := loadArrayChecked(c, st, int(instr.B))
	if err != nil {
		return nil, err
	}
	out := append(arrRef, ir.Load(int(instr.C), false))

	if storeOp == jvmops.Aastore {
		value, err := loadRefChecked(c, st, int(instr.A))
		if err != nil {
			return nil, err
		}
		out = append(out, value...)
	} else {
		out = append(out, ir.Load(int(instr.A), wide))
	}
	return append(out, ir.Other(storeOp, []byte{storeOp})), nil
}

// fieldIdx is instr.C for iget/iput (instr.B is the object register) and
// instr.B for sget/sput (which has no object register at all).
func fieldIdx(instr *dex.Instruction, static bool) int64 {
	if static {
		return instr.B
	}
	return instr.C
}

func fieldGet(c *Ctx, st typeinfer.TypeInfo, instr *dex.Instruction, static bool) ([]ir.Instruction, error) {
	f := c.Dexf.FieldIDAt(uint32(fieldIdx(instr, static)))
	idx, err := c.Pool.Fieldref(f.Cname, f.Name, f.Desc)
	if err != nil {
		return nil, err
	}
	wide := f.Desc[0] == 'J' || f.Desc[0] == 'D'
	isRef := f.Desc[0] == 'L' || f.Desc[0] == '['
	op := byte(jvmops.Getfield)
	var pre []ir.Instruction
	if static {
		op = jvmops.Getstatic
	} else {
		ref, err := loadRefChecked(c, st, int(instr.B))
		if err != nil {
			return nil, err
		}
		pre = append(pre, ref...)
	}
	store := ir.Store(int(instr.A), wide)
	if isRef {
		store = ir.StoreRef(int(instr.A))
	}
	return append(pre, ir.Other(op, u8u16(op, idx)), store), nil
}

func fieldPut(c *Ctx, st typeinfer.TypeInfo, instr *dex.Instruction, static bool) ([]ir.Instruction, error) {
	f := c.Dexf.FieldIDAt(uint32(fieldIdx(instr, static)))
	idx, err := c.Pool.Fieldref(f.Cname, f.Name, f.Desc)
	if err != nil {
		return nil, err
	}
	wide := f.Desc[0] == 'J' || f.Desc[0] == 'D'
	isRef := f.Desc[0] == 'L' || f.Desc[0] == '['
	op := byte(jvmops.Putfield)
	var pre []ir.Instruction
	if static {
		op = jvmops.Putstatic
	} else {
		ref, err := loadRefChecked(c, st, int(instr.B))
		if err != nil {
			return nil, err
		}
		pre = append(pre, ref...)
	}
	var value []ir.Instruction
	if isRef {
		v, err := loadRefChecked(c, st, int(instr.A))
		if err != nil {
			return nil, err
		}
		value = v
	} else {
		value = []ir.Instruction{ir.Load(int(instr.A), wide)}
	}
	return append(append(pre, value...), ir.Other(op, u8u16(op, idx))), nil
}

func buildInvoke(c *Ctx, st typeinfer.TypeInfo, instr *dex.Instruction) ([]ir.Instruction, error) {
	m := c.Dexf.MethodIDAt(uint32(instr.A))
	isStatic := instr.Typ == dex.DInvokeStatic
	iface := instr.Typ == dex.DInvokeInterface
	midx, err := c.Pool.Methodref(m.Cname, m.Name, []byte(m.Desc), iface)
	if err != nil {
		return nil, err
	}
	spaced := m.SpacedParamTypes(isStatic)
	var out []ir.Instruction
	for i, desc := range spaced {
		if desc == nil {
			continue
		}
		if i >= len(instr.RegList) {
			return nil, fmt.Errorf("invoke: argument count mismatch")
		}
		wide := desc[0] == 'J' || desc[0] == 'D'
		if desc[0] == 'L' || desc[0] == '[' {
			ref, err := loadRefChecked(c, st, int(instr.RegList[i]))
			if err != nil {
				return nil, err
			}
			out = append(out, ref...)
		} else {
			out = append(out, ir.Load(int(instr.RegList[i]), wide))
		}
	}
	var op byte
	switch instr.Typ {
	case dex.DInvokeVirtual:
		op = jvmops.Invokevirtual
	case dex.DInvokeSuper, dex.DInvokeDirect:
		op = jvmops.Invokespecial
	case dex.DInvokeStatic:
		op = jvmops.Invokestatic
	case dex.DInvokeInterface:
		op = jvmops.Invokeinterface
	}
	if op == jvmops.Invokeinterface {
		argCount := byte(len(spaced))
		out = append(out, ir.Other(op, []byte{op, byte(midx >> 8), byte(midx), argCount, 0}))
	} else {
		out = append(out, ir.Other(op, u8u16(op, midx)))
	}
	return out, nil
}

func buildUnary(instr *dex.Instruction) []ir.Instruction {
	u := mathops.UnaryOp(instr.Opcode)
	wideSrc := u.Src.IsWide()
	wideDst := u.Dest.IsWide()
	out := []ir.Instruction{ir.Load(int(instr.B), wideSrc)}
	if u.Op == jvmops.Ixor {
		out = append(out, ir.Instruction{Kind: ir.KindPrimConstant, PrimInt: -1}, ir.Other(jvmops.Ixor, []byte{jvmops.Ixor}))
	} else if u.Op == jvmops.Lxor {
		out = append(out, ir.Instruction{Kind: ir.KindPrimConstant, PrimIsLong: true, PrimLong: -1}, ir.Other(jvmops.Lxor, []byte{jvmops.Lxor}))
	} else {
		out = append(out, ir.Other(u.Op, []byte{u.Op}))
	}
	out = append(out, ir.Store(int(instr.A), wideDst))
	return out
}

func buildBinary(instr *dex.Instruction) []ir.Instruction {
	b := mathops.BinaryOp(instr.Opcode)
	wide1 := b.Src.IsWide()
	wide2 := b.Src2.IsWide()
	return []ir.Instruction{
		ir.Load(int(instr.B), wide1),
		ir.Load(int(instr.C), wide2),
		ir.Other(b.Op, []byte{b.Op}),
		ir.Store(int(instr.A), wide1),
	}
}

// rsubInt is the Dalvik rsub-int/rsub-int-lit8 opcode: Isub with operands
// reversed (constant minus register, instead of register minus constant).
const rsubInt = 0xd1
const rsubIntLit8 = 0xd9

func buildBinaryLit(instr *dex.Instruction) []ir.Instruction {
	l := mathops.BinaryOpLit(instr.Opcode)
	lit := ir.Instruction{Kind: ir.KindPrimConstant, PrimInt: int32(instr.C)}
	load := ir.Load(int(instr.B), false)
	var out []ir.Instruction
	if instr.Opcode == rsubInt || instr.Opcode == rsubIntLit8 {
		out = []ir.Instruction{lit, load}
	} else {
		out = []ir.Instruction{load, lit}
	}
	out = append(out, ir.Other(l.Op, []byte{l.Op}), ir.Store(int(instr.A), false))
	return out
}
