// Package generator implements the payload-generation state machine
// (Component I): the inverse of package tracer. It consumes a sequence
// of hart retirement steps and produces the instruction-trace payloads
// that, fed back through a Tracer, reconstruct that same sequence.
package generator

import (
	"github.com/riscv-trace/etrace/insn"
	"github.com/riscv-trace/etrace/types"
)

// Step is one hart retirement event, as reported across the hart-to-
// encoder interface. Implementations should be cheap to copy; the
// generator holds at most two at a time (the current step and its
// one-step lookahead).
type Step interface {
	Address() uint64
	Kind() Kind
	CType() CType
	Context() types.Context
	Timestamp() *uint64
}

// KindTag discriminates the retirement classes a Step may report.
type KindTag int

const (
	KindRetirement KindTag = iota
	KindTrap
	KindTrapReturn
	KindBranch
	KindJump
)

// Kind classifies a single Step's retirement. Only the fields relevant
// to Tag are meaningful.
type Kind struct {
	Tag KindTag

	InsnSize insn.Size // Retirement, TrapReturn, Branch, Jump

	// Trap
	TrapInsnSize *insn.Size // nil for an exception/interrupt with no simultaneous retirement
	Info         types.TrapInfo

	// Branch
	Taken bool

	// Jump
	JumpKind              JumpType
	SequentiallyInferable bool
}

// IsExcOnly reports whether this is a trap without simultaneous
// instruction retirement.
func (k Kind) IsExcOnly() bool {
	return k.Tag == KindTrap && k.TrapInsnSize == nil
}

// IsUpdiscon reports whether this step is an uninferable PC
// discontinuity. Sequentially inferable jumps count as inferable only
// when sijumps is true.
func (k Kind) IsUpdiscon(sijumps bool) bool {
	if k.Tag != KindJump {
		return false
	}
	return !(k.JumpKind.IsInferable() || (sijumps && k.SequentiallyInferable))
}

// InstructionSize returns the size of the instruction this step
// retired, if any. Trap is the only kind that may retire nothing.
func (k Kind) InstructionSize() (insn.Size, bool) {
	switch k.Tag {
	case KindTrap:
		if k.TrapInsnSize == nil {
			return 0, false
		}
		return *k.TrapInsnSize, true
	default:
		return k.InsnSize, true
	}
}

// JumpType classifies a Jump-kind step.
type JumpType int

const (
	JumpUnferCall JumpType = iota
	JumpInferCall
	JumpUnferJump
	JumpInferJump
	JumpCoRoutineSwap
	JumpReturn
	JumpUnferOther
	JumpInferOther
)

// IsCall reports whether j is a function-call jump, inferable or not.
func (j JumpType) IsCall() bool { return j == JumpUnferCall || j == JumpInferCall }

// IsReturn reports whether j is a function-return jump.
func (j JumpType) IsReturn() bool { return j == JumpReturn }

// IsInferable reports whether j's destination is computable without
// external information.
func (j JumpType) IsInferable() bool {
	switch j {
	case JumpInferCall, JumpInferJump, JumpInferOther:
		return true
	default:
		return false
	}
}

// CType reports how a Step's execution-context change is reported.
type CType int

const (
	CTypeUnreported CType = iota
	CTypeImprecisely
	CTypePrecisely
	CTypeAsyncDiscon
)
