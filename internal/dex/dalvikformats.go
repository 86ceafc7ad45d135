package dex

// Args holds the decoded operand fields of one Dalvik instruction. A, B, C
// are the raw operand values (registers, literals, pool indices, or
// absolute code-unit positions for branch targets, already rebased from
// their relative encoding by adding pos); Long holds the 64-bit immediate
// for const-wide forms; RegList holds the register list for
// filled-new-array/invoke forms.
type Args struct {
	A, B, C int64
	Long    int64
	RegList []uint16
}

// decodeArgs decodes one instruction's operands starting at shorts[pos],
// returning the code-unit position of the following instruction.
func decodeArgs(shorts []uint16, pos int, opcode byte) (int, Args) {
	size, a := argsAndSize(shorts, pos, opcode)
	return pos + size, a
}

// argsAndSize decodes one instruction's operands starting at shorts[pos],
// returning the instruction's length in 16-bit code units. pos and the
// resulting code-offset fields are in 16-bit code-unit units, dispatched
// off a per-opcode (size, ArgsCount, ArgsType) table.
func argsAndSize(shorts []uint16, pos int, opcode byte) (int, Args) {
	w := shorts[pos]
	var a Args

	switch {
	case opcode == 0x00: // nop
		return 1, a
	case opcode >= 0x01 && opcode <= 0x09: // move, move/from16, move/16 (normal/wide/object)
		switch (opcode - 0x01) % 3 {
		case 0: // move
			a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
			return 1, a
		case 1: // move/from16
			a.A, a.B = int64((w>>8)&0xff), int64(shorts[pos+1])
			return 2, a
		default: // move/16
			a.A, a.B = int64(shorts[pos+1]), int64(shorts[pos+2])
			return 3, a
		}
	case opcode >= 0x0a && opcode <= 0x0d: // move-result, move-result-wide, move-result-object, move-exception
		a.A = int64((w >> 8) & 0xff)
		return 1, a
	case opcode == 0x0e: // return-void
		return 1, a
	case opcode >= 0x0f && opcode <= 0x11: // return, return-wide, return-object
		a.A = int64((w >> 8) & 0xff)
		return 1, a
	case opcode == 0x12: // const/4
		a.A = int64((w >> 8) & 0xf)
		a.B = int64(int8(byte(w>>12)<<4) >> 4)
		return 1, a
	case opcode == 0x13: // const/16
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(int16(shorts[pos+1]))
		return 2, a
	case opcode == 0x14: // const
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(int32(shorts[pos+2]))<<16 | int64(shorts[pos+1])
		return 3, a
	case opcode == 0x15: // const/high16
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(uint32(shorts[pos+1]) << 16)
		return 2, a
	case opcode == 0x16: // const-wide/16
		a.A = int64((w >> 8) & 0xff)
		a.Long = int64(int16(shorts[pos+1]))
		return 2, a
	case opcode == 0x17: // const-wide/32
		a.A = int64((w >> 8) & 0xff)
		a.Long = int64(int32(shorts[pos+2])<<16 | int32(shorts[pos+1]))
		return 3, a
	case opcode == 0x18: // const-wide
		a.A = int64((w >> 8) & 0xff)
		a.Long = int64(shorts[pos+1]) | int64(shorts[pos+2])<<16 | int64(shorts[pos+3])<<32 | int64(shorts[pos+4])<<48
		return 5, a
	case opcode == 0x19: // const-wide/high16
		a.A = int64((w >> 8) & 0xff)
		a.Long = int64(shorts[pos+1]) << 48
		return 2, a
	case opcode == 0x1a: // const-string
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(shorts[pos+1])
		return 2, a
	case opcode == 0x1b: // const-string/jumbo
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(shorts[pos+2])<<16 | int64(shorts[pos+1])
		return 3, a
	case opcode == 0x1c: // const-class
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(shorts[pos+1])
		return 2, a
	case opcode == 0x1d || opcode == 0x1e: // monitor-enter/exit
		a.A = int64((w >> 8) & 0xff)
		return 1, a
	case opcode == 0x1f: // check-cast
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(shorts[pos+1])
		return 2, a
	case opcode == 0x20: // instance-of
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		a.C = int64(shorts[pos+1])
		return 2, a
	case opcode == 0x21: // array-length
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		return 1, a
	case opcode == 0x22: // new-instance
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(shorts[pos+1])
		return 2, a
	case opcode == 0x23: // new-array
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		a.C = int64(shorts[pos+1])
		return 2, a
	case opcode == 0x24: // filled-new-array
		nibcnt := w >> 12
		w2, w3 := shorts[pos+1], shorts[pos+2]
		regs := []uint16{w3 & 0xf, (w3 >> 4) & 0xf, (w3 >> 8) & 0xf, (w3 >> 12) & 0xf, (w >> 8) & 0xf}
		a.RegList = regs[:nibcnt]
		a.A = int64(w2)
		return 3, a
	case opcode == 0x25: // filled-new-array/range
		count := w >> 8
		w2, w3 := shorts[pos+1], shorts[pos+2]
		regs := make([]uint16, count)
		for i := range regs {
			regs[i] = w3 + uint16(i)
		}
		a.RegList = regs
		a.A = int64(w2)
		return 3, a
	case opcode == 0x26: // fill-array-data
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(pos) + (int64(int32(shorts[pos+2])<<16 | int32(shorts[pos+1])))
		return 3, a
	case opcode == 0x27: // throw
		a.A = int64((w >> 8) & 0xff)
		return 1, a
	case opcode == 0x28: // goto
		a.A = int64(pos) + int64(int8(byte(w>>8)))
		return 1, a
	case opcode == 0x29: // goto/16
		a.A = int64(pos) + int64(int16(shorts[pos+1]))
		return 2, a
	case opcode == 0x2a: // goto/32
		a.A = int64(pos) + int64(int32(shorts[pos+2])<<16|int32(shorts[pos+1]))
		return 3, a
	case opcode == 0x2b || opcode == 0x2c: // packed/sparse-switch
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(pos) + int64(int32(shorts[pos+2])<<16|int32(shorts[pos+1]))
		return 3, a
	case opcode >= 0x2d && opcode <= 0x31: // cmp*
		a.A, a.B, a.C = int64((w>>8)&0xff), int64(shorts[pos+1]&0xff), int64(shorts[pos+1]>>8)
		return 2, a
	case opcode >= 0x32 && opcode <= 0x37: // if-* (two-register)
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		a.C = int64(pos) + int64(int16(shorts[pos+1]))
		return 2, a
	case opcode >= 0x38 && opcode <= 0x3d: // if-*z (one-register)
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(pos) + int64(int16(shorts[pos+1]))
		return 2, a
	case opcode >= 0x3e && opcode <= 0x43: // unused
		return 1, a
	case opcode >= 0x44 && opcode <= 0x51: // aget/aput family
		a.A, a.B = int64((w>>8)&0xff), int64(shorts[pos+1]&0xff)
		a.C = int64(shorts[pos+1] >> 8)
		return 2, a
	case opcode >= 0x52 && opcode <= 0x5f: // iget/iput family
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		a.C = int64(shorts[pos+1])
		return 2, a
	case opcode >= 0x60 && opcode <= 0x6d: // sget/sput family
		a.A = int64((w >> 8) & 0xff)
		a.B = int64(shorts[pos+1])
		return 2, a
	case opcode >= 0x6e && opcode <= 0x72: // invoke-kind
		nibcnt := w >> 12
		w2, w3 := shorts[pos+1], shorts[pos+2]
		regs := []uint16{w3 & 0xf, (w3 >> 4) & 0xf, (w3 >> 8) & 0xf, (w3 >> 12) & 0xf, (w >> 8) & 0xf}
		a.RegList = regs[:nibcnt]
		a.A = int64(w2)
		return 3, a
	case opcode == 0x73: // unused
		return 1, a
	case opcode >= 0x74 && opcode <= 0x78: // invoke-kind/range
		count := w >> 8
		w2, w3 := shorts[pos+1], shorts[pos+2]
		regs := make([]uint16, count)
		for i := range regs {
			regs[i] = w3 + uint16(i)
		}
		a.RegList = regs
		a.A = int64(w2)
		return 3, a
	case opcode >= 0x79 && opcode <= 0x7a: // unused
		return 1, a
	case opcode >= 0x7b && opcode <= 0x8f: // unary ops
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		return 1, a
	case opcode >= 0x90 && opcode <= 0xaf: // binary ops
		a.A, a.B = int64((w>>8)&0xff), int64(shorts[pos+1]&0xff)
		a.C = int64(shorts[pos+1] >> 8)
		return 2, a
	case opcode >= 0xb0 && opcode <= 0xcf: // binary ops/2addr
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		return 1, a
	case opcode >= 0xd0 && opcode <= 0xd7: // binary/lit16
		a.A, a.B = int64((w>>8)&0xf), int64((w>>12)&0xf)
		a.C = int64(int16(shorts[pos+1]))
		return 2, a
	case opcode >= 0xd8 && opcode <= 0xe2: // binary/lit8
		a.A, a.B = int64((w>>8)&0xff), int64(shorts[pos+1]&0xff)
		a.C = int64(int8(byte(shorts[pos+1] >> 8)))
		return 2, a
	default: // 0xe3-0xff unused
		return 1, a
	}
}
