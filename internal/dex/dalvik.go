package dex

// DalvikType classifies a decoded Dalvik instruction by the lowering
// irbuilder needs to apply, collapsing dozens of raw opcodes into the
// handful of semantically distinct shapes.
type DalvikType uint8

const (
	DNop DalvikType = iota
	DMove
	DMoveWide
	DMoveResult
	DReturn
	DConst32
	DConst64
	DConstString
	DConstClass
	DMonitorEnter
	DMonitorExit
	DCheckCast
	DInstanceOf
	DArrayLen
	DNewInstance
	DNewArray
	DFilledNewArray
	DFillArrayData
	DThrow
	DGoto
	DSwitch
	DCmp
	DIf
	DIfZ
	DArrayGet
	DArrayPut
	DInstanceGet
	DInstancePut
	DStaticGet
	DStaticPut
	DInvokeVirtual
	DInvokeSuper
	DInvokeDirect
	DInvokeStatic
	DInvokeInterface
	DUnaryOp
	DBinaryOp
	DBinaryOpConst
)

// IsPrunedThrow reports whether this instruction kind's exception edges
// are subject to prune_handlers: invokes, monitors, casts, allocations,
// array/field accesses, throw, and every binary arithmetic kind
// (DBinaryOp/DBinaryOpConst as a whole, so non-throwing ops such as add
// are included along with div/rem).
func (t DalvikType) IsPrunedThrow() bool {
	switch t {
	case DInvokeVirtual, DInvokeSuper, DInvokeDirect, DInvokeStatic, DInvokeInterface,
		DMonitorEnter, DMonitorExit, DCheckCast, DArrayLen, DNewArray, DNewInstance,
		DFilledNewArray, DFillArrayData, DThrow, DArrayGet, DArrayPut,
		DInstanceGet, DInstancePut, DStaticGet, DStaticPut, DBinaryOp, DBinaryOpConst:
		return true
	default:
		return false
	}
}

func opToType(opcode byte) DalvikType {
	switch {
	case opcode == 0x00:
		return DNop
	case opcode >= 0x01 && opcode <= 0x03, opcode >= 0x07 && opcode <= 0x09:
		return DMove
	case opcode >= 0x04 && opcode <= 0x06:
		return DMoveWide
	case opcode >= 0x0a && opcode <= 0x0d:
		return DMoveResult
	case opcode >= 0x0e && opcode <= 0x11:
		return DReturn
	case opcode >= 0x12 && opcode <= 0x15:
		return DConst32
	case opcode >= 0x16 && opcode <= 0x19:
		return DConst64
	case opcode >= 0x1a && opcode <= 0x1b:
		return DConstString
	case opcode == 0x1c:
		return DConstClass
	case opcode == 0x1d:
		return DMonitorEnter
	case opcode == 0x1e:
		return DMonitorExit
	case opcode == 0x1f:
		return DCheckCast
	case opcode == 0x20:
		return DInstanceOf
	case opcode == 0x21:
		return DArrayLen
	case opcode == 0x22:
		return DNewInstance
	case opcode == 0x23:
		return DNewArray
	case opcode >= 0x24 && opcode <= 0x25:
		return DFilledNewArray
	case opcode == 0x26:
		return DFillArrayData
	case opcode == 0x27:
		return DThrow
	case opcode >= 0x28 && opcode <= 0x2a:
		return DGoto
	case opcode >= 0x2b && opcode <= 0x2c:
		return DSwitch
	case opcode >= 0x2d && opcode <= 0x31:
		return DCmp
	case opcode >= 0x32 && opcode <= 0x37:
		return DIf
	case opcode >= 0x38 && opcode <= 0x3d:
		return DIfZ
	case opcode >= 0x3e && opcode <= 0x43:
		return DNop
	case opcode >= 0x44 && opcode <= 0x4a:
		return DArrayGet
	case opcode >= 0x4b && opcode <= 0x51:
		return DArrayPut
	case opcode >= 0x52 && opcode <= 0x58:
		return DInstanceGet
	case opcode >= 0x59 && opcode <= 0x5f:
		return DInstancePut
	case opcode >= 0x60 && opcode <= 0x66:
		return DStaticGet
	case opcode >= 0x67 && opcode <= 0x6d:
		return DStaticPut
	case opcode == 0x6e || opcode == 0x74:
		return DInvokeVirtual
	case opcode == 0x6f || opcode == 0x75:
		return DInvokeSuper
	case opcode == 0x70 || opcode == 0x76:
		return DInvokeDirect
	case opcode == 0x71 || opcode == 0x77:
		return DInvokeStatic
	case opcode == 0x72 || opcode == 0x78:
		return DInvokeInterface
	case opcode == 0x73 || opcode >= 0x79 && opcode <= 0x7a:
		return DNop
	case opcode >= 0x7b && opcode <= 0x8f:
		return DUnaryOp
	case opcode >= 0x90 && opcode <= 0xcf:
		return DBinaryOp
	case opcode >= 0xd0 && opcode <= 0xe2:
		return DBinaryOpConst
	default: // 0xe3-0xff
		return DNop
	}
}

// ArrayData is a decoded fill-array-data payload: element width in bytes,
// element count, and a reader positioned at the start of the raw element
// bytes.
type ArrayData struct {
	Width  int
	Count  uint32
	Stream []byte
}

// SwitchData is a decoded packed- or sparse-switch payload.
type SwitchData struct {
	Packed bool
	Count  uint32
	Stream []byte // packed: first_key(u32) then count u32 targets; sparse: count u32 keys then count u32 targets
}

// Entries returns the decoded (key, target) pairs of a switch payload.
func (s SwitchData) Entries() []struct {
	Key    int32
	Target uint32
} {
	out := make([]struct {
		Key    int32
		Target uint32
	}, s.Count)
	if s.Packed {
		firstKey := int32(u32le(s.Stream, 0))
		for i := uint32(0); i < s.Count; i++ {
			out[i].Key = firstKey + int32(i)
			out[i].Target = u32le(s.Stream, 4+4*int(i))
		}
	} else {
		keysOff := 0
		targetsOff := 4 * int(s.Count)
		for i := uint32(0); i < s.Count; i++ {
			out[i].Key = int32(u32le(s.Stream, keysOff+4*int(i)))
			out[i].Target = u32le(s.Stream, targetsOff+4*int(i))
		}
	}
	return out
}

func u32le(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

// Instruction is one decoded Dalvik instruction.
type Instruction struct {
	Pos, Pos2 int // Pos2 is the position immediately following this instruction (fallthrough target)
	Opcode    byte
	Typ       DalvikType
	Args

	ArrayData  *ArrayData
	SwitchData *SwitchData

	// PrevResult is the implied return-type/element-type descriptor
	// feeding a MoveResult instruction at this position, computed by the
	// post-pass in ParseBytecode. Nil if this instruction is not reachable
	// as a move-result or has no meaningful predecessor.
	PrevResult []byte

	// ImplicitCasts, set only on if-eqz/if-nez instructions immediately
	// following an instance-of, names the type index checked and the set
	// of registers that can be safely narrowed+tainted on the appropriate
	// branch: the instance-of's object register, plus the source of a move
	// into that register directly before the instance-of.
	ImplicitCasts *ImplicitCasts
}

type ImplicitCasts struct {
	DescIdx uint32
	Regs    []uint16 // sorted, deduplicated
}

// ParseBytecode decodes every instruction in a code item's instruction
// stream (codeStart is a reader positioned at the start of the raw 16-bit
// code units, used to resolve payload offsets relative to it) and runs the
// two post-passes (prev_result, implicit_casts) needed by type inference
// and IR construction.
func ParseBytecode(dexf *File, codeStart []byte, shorts []uint16, catchAddrs map[int]bool) []*Instruction {
	var ops []*Instruction
	pos := 0
	for pos < len(shorts) {
		instr := parseOneInstruction(dexf, codeStart, shorts, pos)
		ops = append(ops, instr)
		pos = instr.Pos2
	}

	// post-pass 1: prev_result
	var prev []byte
	for _, instr := range ops {
		if instr.Typ == DMoveResult {
			if catchAddrs[instr.Pos] {
				prev = []byte("Ljava/lang/Throwable;")
			}
			instr.PrevResult = prev
		}
		switch instr.Typ {
		case DInvokeVirtual, DInvokeSuper, DInvokeDirect, DInvokeStatic, DInvokeInterface:
			prev = dexf.MethodIDAt(uint32(instr.A)).ReturnType
		case DFilledNewArray:
			prev = dexf.RawType(uint32(instr.A))
		default:
			prev = nil
		}
	}

	// post-pass 2: implicit_casts
	type histEntry struct {
		typ        DalvikType
		ra, rb, c  int64
	}
	var prev2, prevh histEntry
	for _, instr := range ops {
		if (instr.Opcode == 0x38 || instr.Opcode == 0x39) && prevh.typ == DInstanceOf {
			descIdx := uint32(prevh.c)
			regs := map[uint16]bool{uint16(prevh.rb): true}
			if prev2.typ == DMove && prev2.ra == prevh.rb {
				regs[uint16(prev2.rb)] = true
			}
			delete(regs, uint16(prevh.ra))
			if len(regs) > 0 {
				sorted := make([]uint16, 0, len(regs))
				for r := range regs {
					sorted = append(sorted, r)
				}
				sortUint16(sorted)
				instr.ImplicitCasts = &ImplicitCasts{DescIdx: descIdx, Regs: sorted}
			}
		}
		prev2 = prevh
		prevh = histEntry{instr.Typ, instr.A, instr.B, instr.C}
	}

	return ops
}

func sortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func parseOneInstruction(dexf *File, codeStart []byte, shorts []uint16, pos int) *Instruction {
	word := shorts[pos]
	opcode := byte(word)

	switch word {
	case 0x100: // packed-switch-payload magic
		count := shorts[pos+1]
		newpos := pos + (2 + (1+int(count))*2)
		data := &SwitchData{Packed: true, Count: uint32(count), Stream: codeStart[pos*2+4:]}
		return &Instruction{Pos: pos, Pos2: newpos, Opcode: 0, Typ: DNop, SwitchData: data}
	case 0x200: // sparse-switch-payload magic
		count := shorts[pos+1]
		newpos := pos + (2 + (int(count)+int(count))*2)
		data := &SwitchData{Packed: false, Count: uint32(count), Stream: codeStart[pos*2+4:]}
		return &Instruction{Pos: pos, Pos2: newpos, Opcode: 0, Typ: DNop, SwitchData: data}
	case 0x300: // fill-array-data-payload magic
		width := int(shorts[pos+1])
		count := uint32(shorts[pos+2]) | uint32(shorts[pos+3])<<16
		newpos := pos + int((uint32(width)*count+1)/2) + 4
		data := &ArrayData{Width: width, Count: count, Stream: codeStart[pos*2+8:]}
		return &Instruction{Pos: pos, Pos2: newpos, Opcode: 0, Typ: DNop, ArrayData: data}
	}

	newpos, args := decodeArgs(shorts, pos, opcode)
	return &Instruction{
		Pos:    pos,
		Pos2:   newpos,
		Opcode: opcode,
		Typ:    opToType(opcode),
		Args:   args,
	}
}
