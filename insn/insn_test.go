package insn

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func word32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func half16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return buf
}

func TestDecodeJAL(t *testing.T) {
	// jal x1, 0x100: rd=1, opcode=0x6f, imm=0x100 (only offset bit8 set,
	// which the J-type imm[10:1] field places at instruction bit 28).
	word := uint32(0x6f) | uint32(1)<<7
	word |= 1 << 28
	ins, err := Decode(word32(word))
	require.NoError(t, err)
	require.Equal(t, KindJal, ins.Kind)
	require.Equal(t, Normal, ins.Size)
	require.Equal(t, 1, ins.Rd)
	target, ok := ins.InferableJumpTarget()
	require.True(t, ok)
	require.Equal(t, int64(0x100), target)
	require.True(t, ins.IsCall())
}

func TestDecodeBranch(t *testing.T) {
	// beq x1, x2, -8: opcode=0x63 funct3=0, rs1=1, rs2=2, imm=-8
	word := uint32(0x63) | uint32(1)<<15 | uint32(2)<<20
	// imm = -8 => binary ...11111000, B-type field bits: imm[12|10:5]=funct7, imm[4:1|11]=rd field
	// imm[4:1] = bits[3:1]=100 -> value 4 at bits[11:8]; imm[11]=bit7 -> 0
	// easier: use helper encode via typeBImm inverse - construct manually
	// imm=-8 binary 13-bit: 1 1111111 1100 0 (imm12=1,imm11=1,imm10:5=111111,imm4:1=1100)
	imm := int64(-8)
	u := uint32(imm) & 0x1fff
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits10_5 := (u >> 5) & 0x3f
	bits4_1 := (u >> 1) & 0xf
	word |= bit12 << 31
	word |= bits10_5 << 25
	word |= bits4_1 << 8
	word |= bit11 << 7
	ins, err := Decode(word32(word))
	require.NoError(t, err)
	require.Equal(t, KindBeq, ins.Kind)
	target, ok := ins.BranchTarget()
	require.True(t, ok)
	require.Equal(t, int64(-8), target)
}

func TestDecodeJALR(t *testing.T) {
	word := uint32(0x67) | uint32(0)<<7 | uint32(1)<<15 // jalr x0, x1, 0 -> ret
	ins, err := Decode(word32(word))
	require.NoError(t, err)
	require.Equal(t, KindJalr, ins.Kind)
	require.True(t, ins.IsReturn())
	reg, off, ok := ins.UninferableJumpTarget()
	require.True(t, ok)
	require.Equal(t, 1, reg)
	require.Equal(t, int64(0), off)
}

func TestDecodeEcallEbreak(t *testing.T) {
	ins, err := Decode(word32(0x73))
	require.NoError(t, err)
	require.Equal(t, KindEcall, ins.Kind)
	require.True(t, ins.IsEcallOrEbreak())
	require.True(t, ins.IsUninferableDiscon())

	ins, err = Decode(word32(0x73 | 1<<20))
	require.NoError(t, err)
	require.Equal(t, KindEbreak, ins.Kind)
}

func TestDecodeMret(t *testing.T) {
	ins, err := Decode(word32(0x73 | 0x302<<20))
	require.NoError(t, err)
	require.Equal(t, KindMret, ins.Kind)
	require.True(t, ins.IsReturnFromTrap())
}

func TestDecodeCJ(t *testing.T) {
	// c.j -2, hand-assembled from the CJ-type scrambled immediate table
	// (every imm bit below bit11 set, offset=-2): 0xbffd.
	ins, err := Decode(half16(0xbffd))
	require.NoError(t, err)
	require.Equal(t, KindCJ, ins.Kind)
	require.Equal(t, Compressed, ins.Size)
	target, ok := ins.InferableJumpTarget()
	require.True(t, ok)
	require.Equal(t, int64(-2), target)
}

func TestDecodeCJr(t *testing.T) {
	// c.jr x1: 0x8082
	ins, err := Decode(half16(0x8082))
	require.NoError(t, err)
	require.Equal(t, KindCJr, ins.Kind)
	require.True(t, ins.IsReturn())
}

func TestDecodeCEbreak(t *testing.T) {
	ins, err := Decode(half16(0x9002))
	require.NoError(t, err)
	require.Equal(t, KindCEbreak, ins.Kind)
	require.True(t, ins.IsEcallOrEbreak())
}

func TestDecodeCLuiReservedRegisters(t *testing.T) {
	// c.lui with rd=x0 is reserved -> KindNone (not KindCLui).
	half := uint16(0x6001) // opcode 01 funct3 011, rd bits[11:7]=0
	ins, err := Decode(half16(half))
	require.NoError(t, err)
	require.Equal(t, KindNone, ins.Kind)
}

func TestDecodeTruncatedErrors(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)

	_, err = Decode([]byte{0x03}) // single byte
	require.Error(t, err)
}

func TestUnrecognizedInstructionIsKindNone(t *testing.T) {
	// addi x1, x2, 5: opcode 0x13 funct3=0 rd=1 rs1=2 -> not nop (rd!=0)
	word := uint32(0x13) | uint32(1)<<7 | uint32(2)<<15 | uint32(5)<<20
	ins, err := Decode(word32(word))
	require.NoError(t, err)
	require.Equal(t, KindNone, ins.Kind)
}
