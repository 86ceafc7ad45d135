// Package typeinfer runs a work-list type inference pass: a forward
// dataflow fixed point over a method's decoded Dalvik instructions that
// assigns each register a scalar category and (where applicable) an
// array shape at every instruction boundary, and prunes each throwing
// instruction's catch-handler list to the handlers that can actually
// observe it.
package typeinfer

import (
	"github.com/enjarify-go/enjarify/internal/arraytype"
	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/mathops"
	"github.com/enjarify-go/enjarify/internal/scalar"
	"github.com/enjarify-go/enjarify/internal/treelist"
)

// TypeInfo is the abstract state of every register at one instruction
// boundary: its scalar category, its array shape (meaningful only when
// Prims includes Obj), and whether it has been narrowed by an implicit
// instanceof-cast (and so must be re-checked with checkcast before any
// use that relies on the narrowing).
type TypeInfo struct {
	Prims   treelist.Ptr[scalar.T]
	Arrs    treelist.Ptr[arraytype.T]
	Tainted treelist.Ptr[bool]
}

// Get returns register reg's scalar and array type.
func (t TypeInfo) Get(reg uint32) (scalar.T, arraytype.T) {
	return t.Prims.Get(reg), t.Arrs.Get(reg)
}

// IsTainted reports whether register reg carries an implicit-cast taint.
func (t TypeInfo) IsTainted(reg uint32) bool { return t.Tainted.Get(reg) }

// Assign sets register reg's scalar and array type, clearing any taint.
func (t *TypeInfo) Assign(reg uint32, s scalar.T, a arraytype.T) {
	t.Prims.Set(reg, s)
	t.Arrs.Set(reg, a)
	t.Tainted.Set(reg, false)
}

// AssignScalar sets only the scalar category, clearing the array type
// (used for non-object results: ints, longs, floats, doubles).
func (t *TypeInfo) AssignScalar(reg uint32, s scalar.T) {
	t.Assign(reg, s, arraytype.Invalid)
}

// Move copies src's full triple (scalar, array, taint) onto dst.
func (t *TypeInfo) Move(dst, src uint32) {
	t.Prims.Set(dst, t.Prims.Get(src))
	t.Arrs.Set(dst, t.Arrs.Get(src))
	t.Tainted.Set(dst, t.Tainted.Get(src))
}

// Clone returns an independent (structurally-shared) copy.
func (t TypeInfo) Clone() TypeInfo { return t }

func scalarMerge(a, b scalar.T) scalar.T { return a.And(b) }
func arrMerge(a, b arraytype.T) arraytype.T { return a.Merge(b) }
func taintMerge(a, b bool) bool { return a || b }

// Merge folds other into t (the lattice meet: scalar AND — smaller is
// more specific, so intersecting keeps only what both paths agree on;
// array Merge; taint OR), reporting whether t changed.
func (t *TypeInfo) Merge(other TypeInfo) bool {
	c1 := t.Prims.Merge(other.Prims, scalarMerge, true)
	c2 := t.Arrs.Merge(other.Arrs, arrMerge, false)
	c3 := t.Tainted.Merge(other.Tainted, taintMerge, false)
	return c1 || c2 || c3
}

// FromParams builds the initial state at position 0: parameters occupy
// the high register window (nregs - numParamSlots .. nregs), one slot
// per entry of spacedParams (nil entries are the padding slot after a
// wide parameter and are left Invalid/untouched).
func FromParams(nregs int, spacedParams [][]byte) TypeInfo {
	var t TypeInfo
	base := nregs - len(spacedParams)
	for i, desc := range spacedParams {
		if desc == nil {
			continue
		}
		reg := uint32(base + i)
		s := scalar.FromDesc(desc)
		a := arraytype.FromDesc(desc)
		t.Assign(reg, s, a)
	}
	return t
}

// Handlers maps an instruction position to its pruned, deduplicated list
// of catch types and targets (a catch-all entry, recognizable by a nil
// Ctype or a java/lang/Throwable Ctype, always terminates the list).
type Handlers map[int][]dex.CatchItem

// Result is DoInference's output: per-position TypeInfo (keyed by
// instruction index in the decoded instruction slice, not byte offset)
// and the pruned handler map.
type Result struct {
	States   []TypeInfo // States[i] is the state *before* ops[i] executes
	Handlers Handlers
}

// DoInference runs the work-list fixed point over ops (in Dalvik
// position order), given the owning dex file (to resolve the type/field
// operands check-cast, new-array, iget/sget and friends carry as raw
// indices), each position's active try-block catch list (already
// expanded to instruction-index keyed ranges by the caller), and the
// initial parameter state.
func DoInference(dexf *dex.File, ops []*dex.Instruction, posIndex map[int]int, activeCatches func(pos int) []dex.CatchItem, initial TypeInfo) Result {
	n := len(ops)
	states := make([]TypeInfo, n)
	visited := make([]bool, n)
	handlers := Handlers{}

	queue := []int{0}
	queued := make([]bool, n)
	if n > 0 {
		states[0] = initial
		queued[0] = true
	}

	enqueue := func(idx int) {
		if idx >= 0 && idx < n && !queued[idx] {
			queued[idx] = true
			queue = append(queue, idx)
		}
	}

	mergeInto := func(idx int, st TypeInfo) {
		if !visited[idx] {
			states[idx] = st
			visited[idx] = true
			enqueue(idx)
			return
		}
		cur := states[idx]
		if cur.Merge(st) {
			states[idx] = cur
			enqueue(idx)
		}
	}

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		queued[idx] = false

		instr := ops[idx]
		cur := states[idx]
		after := cur.Clone()
		visitNormal(&after, instr, dexf)

		if instr.Typ.IsPrunedThrow() {
			catches := activeCatches(instr.Pos)
			handlers[instr.Pos] = pruneHandlers(catches)
			for _, c := range catches {
				if h, ok := posIndex[int(c.Target)]; ok {
					mergeInto(h, cur)
				}
			}
		}

		switch instr.Typ {
		case dex.DGoto:
			if t, ok := posIndex[int(instr.A)]; ok {
				mergeInto(t, after)
			}
		case dex.DIf:
			if t, ok := posIndex[int(instr.C)]; ok {
				mergeInto(t, after)
			}
			if idx+1 < n {
				mergeInto(idx+1, after)
			}
		case dex.DIfZ:
			takenIdx, takenOk := posIndex[int(instr.B)]
			notTaken := idx + 1
			if instr.ImplicitCasts != nil && (instr.Opcode == 0x38 || instr.Opcode == 0x39) {
				// if-eqz: false branch (fallthrough when opcode==0x38 tested
				// instanceof-result==0, meaning NOT an instance) narrows on
				// the taken branch only for if-nez (opcode 0x39); if-eqz
				// narrows on the not-taken (fallthrough) edge. Apply the
				// narrowing to whichever edge corresponds to "instanceof was
				// true".
				narrowed := applyImplicitCast(after, instr, dexf)
				if instr.Opcode == 0x39 { // if-nez: taken edge means instanceof was true
					if takenOk {
						mergeInto(takenIdx, narrowed)
					}
					if notTaken < n {
						mergeInto(notTaken, after)
					}
				} else { // if-eqz: fallthrough edge means instanceof was true
					if takenOk {
						mergeInto(takenIdx, after)
					}
					if notTaken < n {
						mergeInto(notTaken, narrowed)
					}
				}
			} else {
				if takenOk {
					mergeInto(takenIdx, after)
				}
				if notTaken < n {
					mergeInto(notTaken, after)
				}
			}
		case dex.DSwitch:
			for _, e := range instr.SwitchData.Entries() {
				if t, ok := posIndex[int(e.Target)]; ok {
					mergeInto(t, after)
				}
			}
			if idx+1 < n {
				mergeInto(idx+1, after)
			}
		case dex.DReturn, dex.DThrow:
			// no successors
		default:
			if idx+1 < n {
				mergeInto(idx+1, after)
			}
		}
	}

	return Result{States: states, Handlers: handlers}
}

// applyImplicitCast returns a copy of after with the registers named by
// instr.ImplicitCasts narrowed to the checked type and tainted.
func applyImplicitCast(after TypeInfo, instr *dex.Instruction, dexf *dex.File) TypeInfo {
	if instr.ImplicitCasts == nil {
		return after
	}
	out := after.Clone()
	checked := arraytype.FromDesc(dexf.RawType(instr.ImplicitCasts.DescIdx))
	for _, r := range instr.ImplicitCasts.Regs {
		_, at := out.Get(uint32(r))
		out.Arrs.Set(uint32(r), at.Narrow(checked))
		out.Tainted.Set(uint32(r), true)
	}
	return out
}

// pruneHandlers deduplicates catches by catch type (keeping the first
// occurrence) and truncates at the first catch-all (nil Ctype or
// java/lang/Throwable).
func pruneHandlers(catches []dex.CatchItem) []dex.CatchItem {
	seen := map[string]bool{}
	out := make([]dex.CatchItem, 0, len(catches))
	for _, c := range catches {
		key := string(c.Ctype)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if c.Ctype == nil || key == "java/lang/Throwable" {
			break
		}
	}
	return out
}

// visitNormal applies the abstract transfer function for instr's kind,
// mutating st in place to the state immediately after instr executes.
// dexf resolves the type/field-id operands some cases carry as raw
// pool indices into actual descriptors.
func visitNormal(st *TypeInfo, instr *dex.Instruction, dexf *dex.File) {
	switch instr.Typ {
	case dex.DMove:
		st.Move(uint32(instr.A), uint32(instr.B))
	case dex.DMoveWide:
		st.Move(uint32(instr.A), uint32(instr.B))
	case dex.DMoveResult:
		if len(instr.PrevResult) > 0 {
			st.Assign(uint32(instr.A), scalar.FromDesc(instr.PrevResult), arraytype.FromDesc(instr.PrevResult))
		} else {
			st.AssignScalar(uint32(instr.A), scalar.All)
		}
	case dex.DConst32:
		if instr.B == 0 {
			st.Assign(uint32(instr.A), scalar.Zero, arraytype.Null)
		} else {
			st.AssignScalar(uint32(instr.A), scalar.C32)
		}
	case dex.DConst64:
		st.AssignScalar(uint32(instr.A), scalar.C64)
	case dex.DConstString:
		st.Assign(uint32(instr.A), scalar.Obj, arraytype.Invalid)
	case dex.DConstClass:
		st.Assign(uint32(instr.A), scalar.Obj, arraytype.Invalid)
	case dex.DCheckCast:
		prim, at := st.Get(uint32(instr.A))
		checked := arraytype.FromDesc(dexf.RawType(uint32(instr.B)))
		st.Assign(uint32(instr.A), prim|scalar.Obj, at.Narrow(checked))
	case dex.DInstanceOf:
		st.AssignScalar(uint32(instr.A), scalar.Int)
	case dex.DArrayLen:
		st.AssignScalar(uint32(instr.A), scalar.Int)
	case dex.DNewInstance:
		st.Assign(uint32(instr.A), scalar.Obj, arraytype.Invalid)
	case dex.DNewArray:
		st.Assign(uint32(instr.A), scalar.Obj, arraytype.FromDesc(dexf.RawType(uint32(instr.C))))
	case dex.DFilledNewArray:
		// result lands on a following move-result-object, handled there.
	case dex.DFillArrayData, dex.DMonitorEnter, dex.DMonitorExit, dex.DThrow, dex.DNop:
		// no register assignment
	case dex.DArrayGet:
		_, arrT := st.Get(uint32(instr.B))
		elt, eltArr := arrT.EletPair()
		st.Assign(uint32(instr.A), elt, eltArr)
	case dex.DArrayPut, dex.DInstancePut, dex.DStaticPut:
		// no destination register
	case dex.DInstanceGet, dex.DStaticGet:
		desc := dexf.FieldIDAt(uint32(fieldIdx(instr))).Desc
		st.Assign(uint32(instr.A), scalar.FromDesc(desc), arraytype.FromDesc(desc))
	case dex.DUnaryOp:
		u := mathops.UnaryOp(instr.Opcode)
		st.AssignScalar(uint32(instr.A), u.Dest)
	case dex.DBinaryOp:
		b := mathops.BinaryOp(instr.Opcode)
		st.AssignScalar(uint32(instr.A), b.Src)
	case dex.DBinaryOpConst:
		st.AssignScalar(uint32(instr.A), scalar.Int)
	case dex.DCmp:
		st.AssignScalar(uint32(instr.A), scalar.Int)
	}
}

// fieldIdx is instr.C for iget (instr.B is the object register) and
// instr.B for sget (which has no object register at all). Duplicated from
// internal/irbuilder's identical helper since that package imports this
// one.
func fieldIdx(instr *dex.Instruction) int64 {
	if instr.Typ == dex.DStaticGet {
		return instr.B
	}
	return instr.C
}
