package insn

import "errors"

// ErrTruncated is returned by Decode when fewer bytes are available than
// the instruction's encoded length requires.
var ErrTruncated = errors.New("insn: truncated instruction")

// Decode reads one instruction starting at buf[0], detecting its length
// from the low bits of the first halfword per the standard RISC-V
// variable-length encoding: a 16-bit (compressed) instruction has its two
// low bits != 0b11; wider forms are detected but not decoded further,
// since the Kind set this package recognizes only ever arises in the
// 16/32-bit space.
func Decode(buf []byte) (Instruction, error) {
	if len(buf) < 2 {
		return Instruction{}, ErrTruncated
	}
	low := uint16(buf[0]) | uint16(buf[1])<<8

	if low&0x3 != 0x3 {
		return decode16(low)
	}
	if low&0x1c != 0x1c {
		if len(buf) < 4 {
			return Instruction{}, ErrTruncated
		}
		word := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		return decode32(word)
	}
	// bits [4:2] == 0b111: 48-bit (bit5=0) or 64-bit+ (bit5=1) encodings.
	// This decoder does not interpret their payload; callers see a
	// KindNone instruction of the corresponding wider size so the tracer
	// can still skip over it by Size.Bytes().
	if low&0x20 == 0 {
		if len(buf) < int(Wide) {
			return Instruction{}, ErrTruncated
		}
		return Instruction{Size: Wide, Kind: KindNone}, nil
	}
	if len(buf) < int(ExtraWide) {
		return Instruction{}, ErrTruncated
	}
	return Instruction{Size: ExtraWide, Kind: KindNone}, nil
}

func decode32(word uint32) (Instruction, error) {
	ins := Instruction{Size: Normal}
	opcode := word & 0x7f
	funct3 := (word >> 12) & 0x7

	switch opcode {
	case 0x63: // BRANCH
		ins.Rs1 = rs1From(word)
		ins.Rs2 = rs2From(word)
		ins.Imm = typeBImm(word)
		switch funct3 {
		case 0x0:
			ins.Kind = KindBeq
		case 0x1:
			ins.Kind = KindBne
		case 0x4:
			ins.Kind = KindBlt
		case 0x5:
			ins.Kind = KindBge
		case 0x6:
			ins.Kind = KindBltu
		case 0x7:
			ins.Kind = KindBgeu
		}
	case 0x6f: // JAL
		ins.Rd = rdFrom(word)
		ins.Imm = typeJImm(word)
		ins.Kind = KindJal
	case 0x67: // JALR
		if funct3 == 0 {
			ins.Rd = rdFrom(word)
			ins.Rs1 = rs1From(word)
			ins.Imm = typeIImm(word)
			ins.Kind = KindJalr
		}
	case 0x37: // LUI
		ins.Rd = rdFrom(word)
		ins.Imm = typeUImm(word)
		ins.Kind = KindLui
	case 0x17: // AUIPC
		ins.Rd = rdFrom(word)
		ins.Imm = typeUImm(word)
		ins.Kind = KindAuipc
	case 0x0f: // MISC-MEM
		switch funct3 {
		case 0x0:
			ins.Kind = KindFence
		case 0x1:
			ins.Kind = KindFenceI
		}
	case 0x73: // SYSTEM
		funct7 := word >> 25
		imm12 := word >> 20
		switch {
		case funct3 != 0:
			// CSR instructions: not control-flow-relevant.
		case funct7 == 0x09:
			ins.Kind = KindSfenceVMA
			ins.Rs1 = rs1From(word)
			ins.Rs2 = rs2From(word)
		case imm12 == 0x000:
			ins.Kind = KindEcall
		case imm12 == 0x001:
			ins.Kind = KindEbreak
		case imm12 == 0x002:
			ins.Kind = KindUret
		case imm12 == 0x102:
			ins.Kind = KindSret
		case imm12 == 0x302:
			ins.Kind = KindMret
		case imm12 == 0x105:
			ins.Kind = KindWfi
		case imm12 == 0x7b2:
			ins.Kind = KindDret
		}
	case 0x13: // OP-IMM (addi x0,x0,0 == nop)
		if funct3 == 0 && rdFrom(word) == 0 && rs1From(word) == 0 && typeIImm(word) == 0 {
			ins.Kind = KindNop
		}
	}
	return ins, nil
}

func decode16(half uint16) (Instruction, error) {
	ins := Instruction{Size: Compressed}
	opcode := half & 0x3
	funct3 := (half >> 13) & 0x7

	switch opcode {
	case 0x1:
		switch funct3 {
		case 0x1: // C.JAL (RV32C only)
			ins.Kind = KindCJal
			ins.Imm = cjImm(half)
		case 0x5: // C.J
			ins.Kind = KindCJ
			ins.Imm = cjImm(half)
		case 0x6: // C.BEQZ
			ins.Kind = KindCBeqz
			ins.Rs1 = crs1PrimeFrom(half)
			ins.Imm = cbImm(half)
		case 0x7: // C.BNEZ
			ins.Kind = KindCBnez
			ins.Rs1 = crs1PrimeFrom(half)
			ins.Imm = cbImm(half)
		case 0x3: // C.LUI or C.ADDI16SP
			rd := int((half >> 7) & 0x1f)
			if rd != 0 && rd != 2 {
				// Reserved when rd = x0 or x2 (x2 is C.ADDI16SP's
				// encoding space, not a valid C.LUI destination).
				ins.Kind = KindCLui
				ins.Rd = rd
				ins.Imm = ciLuiImm(half)
			}
		case 0x0: // C.ADDI, rd=rs1=0, imm=0 -> C.NOP
			rd := int((half >> 7) & 0x1f)
			imm5 := int((half>>12)&0x1)<<5 | int((half>>2)&0x1f)
			if rd == 0 && imm5 == 0 {
				ins.Kind = KindCNop
			}
		}
	case 0x2:
		funct4 := (half >> 12) & 0xf
		rd := int((half >> 7) & 0x1f)
		rs2 := int((half >> 2) & 0x1f)
		switch {
		case funct4 == 0x8 && rd != 0 && rs2 == 0:
			ins.Kind = KindCJr
			ins.Rs1 = rd
		case funct4 == 0x9 && rd == 0 && rs2 == 0:
			ins.Kind = KindCEbreak
		case funct4 == 0x9 && rd != 0 && rs2 == 0:
			ins.Kind = KindCJalr
			ins.Rs1 = rd
		}
	}
	return ins, nil
}
