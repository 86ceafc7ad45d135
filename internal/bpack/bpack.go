// Package bpack packs short, fixed-shape byte sequences used when emitting
// JVM bytecode instructions whose operand layout mixes single bytes with
// big-endian 16- and 32-bit fields.
package bpack

import "encoding/binary"

// U8H packs a one-byte opcode followed by a big-endian uint16 operand.
func U8H(op byte, h uint16) []byte {
	b := make([]byte, 3)
	b[0] = op
	binary.BigEndian.PutUint16(b[1:], h)
	return b
}

// U8I16 packs a one-byte opcode followed by a big-endian signed int16 operand.
func U8I16(op byte, v int16) []byte {
	return U8H(op, uint16(v))
}

// U8I32 packs a one-byte opcode followed by a big-endian signed int32 operand.
func U8I32(op byte, v int32) []byte {
	b := make([]byte, 5)
	b[0] = op
	binary.BigEndian.PutUint32(b[1:], uint32(v))
	return b
}

// U8I16U8I32 packs op1+int16, op2+int32: the inverted-branch + GOTO_W
// workaround for wide conditional jumps (see internal/optimize/jumps.go).
func U8I16U8I32(op1 byte, v1 int16, op2 byte, v2 int32) []byte {
	b := make([]byte, 0, 8)
	b = append(b, U8I16(op1, v1)...)
	b = append(b, U8I32(op2, v2)...)
	return b
}

// U8U8H packs WIDE-prefixed iload/istore: opcode, sub-opcode, big-endian uint16 local index.
func U8U8H(op1, op2 byte, h uint16) []byte {
	b := make([]byte, 4)
	b[0] = op1
	b[1] = op2
	binary.BigEndian.PutUint16(b[2:], h)
	return b
}

// U8HU8U8 packs invokeinterface: opcode, pool index (u16), arg count, reserved zero byte.
func U8HU8U8(op byte, h uint16, argc, reserved byte) []byte {
	b := make([]byte, 5)
	b[0] = op
	binary.BigEndian.PutUint16(b[1:], h)
	b[3] = argc
	b[4] = reserved
	return b
}
