package tracer

import (
	"github.com/riscv-trace/etrace/binary"
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/retstack"
)

// Builder assembles a Tracer, mirroring the fluent Builder pattern used
// throughout this codebase's configuration types.
type Builder struct {
	protocol    config.Protocol
	oracle      binary.Oracle
	returnStack retstack.Stack
	hasProtocol bool
}

// NewBuilder starts a fresh Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithOracle sets the instruction oracle the tracer fetches through.
func (b *Builder) WithOracle(o binary.Oracle) *Builder {
	b.oracle = o
	return b
}

// WithProtocol sets the protocol configuration, seeding the tracer's
// initial address mode, implicit-return/sequentially-inferred-jumps
// flags, version, and (unless WithReturnStack overrides it) a ring
// return stack sized to Protocol.ReturnStackSize.
func (b *Builder) WithProtocol(p config.Protocol) *Builder {
	b.protocol = p
	b.hasProtocol = true
	return b
}

// WithReturnStack overrides the default ring return stack derived from
// the protocol's ReturnStackSize.
func (b *Builder) WithReturnStack(s retstack.Stack) *Builder {
	b.returnStack = s
	return b
}

// Build constructs the Tracer.
func (b *Builder) Build() (*Tracer, error) {
	oracle := b.oracle
	if oracle == nil {
		oracle = binary.Empty{}
	}

	rs := b.returnStack
	if rs == nil {
		if b.hasProtocol && b.protocol.ReturnStackSize > 0 {
			rs = retstack.NewRing(b.protocol.ReturnStackSize)
		} else {
			rs = retstack.None{}
		}
	}

	t := &Tracer{
		protocol:       b.protocol,
		oracle:         oracle,
		returnStack:    rs,
		addressMode:    b.protocol.AddressMode,
		sijumps:        b.protocol.SequentiallyInferredJumps,
		implicitReturn: b.protocol.ImplicitReturn,
		version:        b.protocol.Version,
		startOfTrace:   true,
		done:           true,
	}
	return t, nil
}
