// Package insn decodes the control-flow-relevant subset of the RISC-V
// base and compressed (C) instruction sets. Only fields needed to drive
// the E-Trace tracer/generator state machines are extracted; instructions
// outside the recognized Kind set decode to a zero-value Kind and are
// treated by callers as "not control-flow-relevant", exactly like an
// unrecognized opcode in the reference decoder.
package insn

import "fmt"

// Size is the instruction's encoded length in bytes. Decode yields
// Compressed or Normal for the 16/32-bit encodings it interprets, and
// Wide or ExtraWide (always with KindNone) for 48- and 64-bit length
// encodings, whose contents it does not decode. A caller supplying
// pre-built Instructions (e.g. via a binary.Table fixture) may use any of
// the four sizes.
type Size int

const (
	Compressed Size = 2
	Normal     Size = 4
	Wide       Size = 6
	ExtraWide  Size = 8
)

// Bytes returns the instruction length in bytes.
func (s Size) Bytes() uint64 { return uint64(s) }

func (s Size) String() string {
	switch s {
	case Compressed:
		return "compressed"
	case Normal:
		return "normal"
	case Wide:
		return "wide"
	case ExtraWide:
		return "extra-wide"
	default:
		return fmt.Sprintf("size(%d)", int(s))
	}
}

// Kind tags the decoded instruction's control-flow-relevant shape. The
// zero value, KindNone, means "not control-flow-relevant" (any
// instruction not in this set, e.g. an ALU op).
type Kind int

const (
	KindNone Kind = iota
	KindMret
	KindSret
	KindUret
	KindDret
	KindFence
	KindSfenceVMA
	KindWfi
	KindEcall
	KindEbreak
	KindFenceI
	KindBeq
	KindBne
	KindBlt
	KindBge
	KindBltu
	KindBgeu
	KindAuipc
	KindLui
	KindCBeqz
	KindCBnez
	KindJal
	KindCJ
	KindCJal
	KindCLui
	KindCJr
	KindCJalr
	KindCEbreak
	KindJalr
	KindNop
	KindCNop
)

var kindNames = map[Kind]string{
	KindNone: "none", KindMret: "mret", KindSret: "sret", KindUret: "uret",
	KindDret: "dret", KindFence: "fence", KindSfenceVMA: "sfence.vma",
	KindWfi: "wfi", KindEcall: "ecall", KindEbreak: "ebreak",
	KindFenceI: "fence.i", KindBeq: "beq", KindBne: "bne", KindBlt: "blt",
	KindBge: "bge", KindBltu: "bltu", KindBgeu: "bgeu", KindAuipc: "auipc",
	KindLui: "lui", KindCBeqz: "c.beqz", KindCBnez: "c.bnez",
	KindJal: "jal", KindCJ: "c.j", KindCJal: "c.jal", KindCLui: "c.lui",
	KindCJr: "c.jr", KindCJalr: "c.jalr", KindCEbreak: "c.ebreak",
	KindJalr: "jalr", KindNop: "nop", KindCNop: "c.nop",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Instruction is the decoded, control-flow-relevant view of one RISC-V
// instruction.
type Instruction struct {
	Size Size
	Kind Kind

	Rd  int
	Rs1 int
	Rs2 int
	Imm int64
}

// branchKinds is the set of conditional-branch Kinds.
var branchKinds = map[Kind]bool{
	KindBeq: true, KindBne: true, KindBlt: true, KindBge: true,
	KindBltu: true, KindBgeu: true, KindCBeqz: true, KindCBnez: true,
}

// BranchTarget returns the PC-relative target of a conditional branch.
func (ins Instruction) BranchTarget() (int64, bool) {
	if branchKinds[ins.Kind] {
		return ins.Imm, true
	}
	return 0, false
}

// InferableJumpTarget returns the PC-relative target of an unconditional
// jump whose destination is encoded in the instruction itself: jal,
// c.jal, c.j, or jalr with rs1=x0 (a jump to an immediate absolute
// address relative to x0, which this decoder reports as PC-relative from
// its own Imm field for uniformity with jal).
func (ins Instruction) InferableJumpTarget() (int64, bool) {
	switch ins.Kind {
	case KindJal, KindCJ, KindCJal:
		return ins.Imm, true
	case KindJalr:
		if ins.Rs1 == 0 {
			return ins.Imm, true
		}
	}
	return 0, false
}

// UninferableJumpTarget reports the base register and immediate offset
// of an indirect jump whose target cannot be computed without external
// information: c.jalr, c.jr, or jalr with rs1 != x0.
func (ins Instruction) UninferableJumpTarget() (reg int, offset int64, ok bool) {
	switch ins.Kind {
	case KindCJr, KindCJalr:
		return ins.Rs1, 0, true
	case KindJalr:
		if ins.Rs1 != 0 {
			return ins.Rs1, ins.Imm, true
		}
	}
	return 0, 0, false
}

// UpperImmediate returns the destination register and the resulting
// absolute value for lui (value = imm) and auipc (value = pc + imm).
func (ins Instruction) UpperImmediate(pc uint64) (reg int, value uint64, ok bool) {
	switch ins.Kind {
	case KindLui, KindCLui:
		return ins.Rd, uint64(ins.Imm), true
	case KindAuipc:
		return ins.Rd, pc + uint64(ins.Imm), true
	}
	return 0, 0, false
}

// IsReturnFromTrap reports mret/sret/uret/dret.
func (ins Instruction) IsReturnFromTrap() bool {
	switch ins.Kind {
	case KindMret, KindSret, KindUret, KindDret:
		return true
	}
	return false
}

// IsEcallOrEbreak reports ecall, ebreak, c.ebreak.
func (ins Instruction) IsEcallOrEbreak() bool {
	switch ins.Kind {
	case KindEcall, KindEbreak, KindCEbreak:
		return true
	}
	return false
}

// IsCall reports a jump-and-link whose link register is x1 (ra).
func (ins Instruction) IsCall() bool {
	switch ins.Kind {
	case KindJal, KindJalr:
		return ins.Rd == 1
	case KindCJal:
		return true // c.jal always links to x1
	}
	return false
}

// IsReturn reports a jump-register whose destination is x0 and whose
// source is x1 (ra): the canonical "ret" idiom.
func (ins Instruction) IsReturn() bool {
	switch ins.Kind {
	case KindJalr:
		return ins.Rd == 0 && ins.Rs1 == 1
	case KindCJr:
		return ins.Rs1 == 1
	}
	return false
}

// IsUninferableDiscon reports whether this instruction is an
// uninferable discontinuity: an indirect jump, a return from trap, or
// ecall/ebreak.
func (ins Instruction) IsUninferableDiscon() bool {
	_, _, uninfJump := ins.UninferableJumpTarget()
	return uninfJump || ins.IsReturnFromTrap() || ins.IsEcallOrEbreak()
}
