package generator

import (
	"github.com/riscv-trace/etrace/branch"
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/packet"
	"github.com/riscv-trace/etrace/types"
)

// Generator is the payload-generation state machine for a single hart:
// the inverse of Tracer. Feed it retirement steps through ProcessStep;
// each call processes the step fed one call earlier, using the new step
// only as one-step lookahead, so the very first ProcessStep call never
// produces a payload.
type Generator struct {
	protocol config.Protocol
	state    *state
	sijumps  bool

	current    Step
	hasCurrent bool

	hasPrevious  bool
	previousKind Kind
	previousCtx  types.Context

	reportedException bool

	ioptions, doptions uint64
	hasOptions         bool
}

// Builder assembles a Generator, mirroring this codebase's fluent
// Builder pattern.
type Builder struct {
	protocol    config.Protocol
	hasProtocol bool
}

// NewBuilder starts a fresh Builder.
func NewBuilder() *Builder { return &Builder{} }

// WithProtocol sets the protocol configuration, seeding the generator's
// address mode and sequentially-inferred-jumps flag.
func (b *Builder) WithProtocol(p config.Protocol) *Builder {
	b.protocol = p
	b.hasProtocol = true
	return b
}

// Build constructs the Generator.
func (b *Builder) Build() *Generator {
	return &Generator{
		protocol: b.protocol,
		state:    newState(b.protocol.AddressMode),
		sijumps:  b.protocol.SequentiallyInferredJumps,
	}
}

// BeginQualification validates the requested instruction/data trace
// options against the features this implementation models, applies the
// supported ones, and returns the Support payload announcing
// qualification has begun.
func (g *Generator) BeginQualification(ioptions, doptions uint64) (*packet.SupportPayload, error) {
	flags := decodeIOptions(g.protocol.Unit.Name(), ioptions)
	if flags.implicitException != nil && *flags.implicitException {
		return nil, &Error{Kind: ErrUnsupportedFeature, Feature: "implicit exception"}
	}
	if flags.branchPrediction != nil && *flags.branchPrediction {
		return nil, &Error{Kind: ErrUnsupportedFeature, Feature: "branch prediction"}
	}
	if flags.jumpTargetCache != nil && *flags.jumpTargetCache {
		return nil, &Error{Kind: ErrUnsupportedFeature, Feature: "jump target cache"}
	}
	if flags.fullAddress != nil {
		if *flags.fullAddress {
			g.state.addressMode = config.AddressFull
		} else {
			g.state.addressMode = config.AddressDelta
		}
	}
	if flags.sijump != nil {
		g.sijumps = *flags.sijump
	}

	g.ioptions = ioptions
	g.doptions = doptions
	g.hasOptions = true

	return &packet.SupportPayload{
		IEnable:     true,
		EncoderMode: packet.EncoderModeBranchTrace,
		QualStatus:  packet.QualNoChange,
		IOptions:    ioptions,
		DEnable:     false,
		DLoss:       false,
		DOptions:    doptions,
	}, nil
}

// ProcessStep feeds one retirement step to the generator and returns the
// payload (if any) the step fed to the previous call requires, now that
// step is available as lookahead.
func (g *Generator) ProcessStep(step Step, event *Event) (*packet.InstructionTrace, error) {
	return g.doStep(step, true, event)
}

// EndQualification stops qualification and returns a Drain that yields
// any payload still owed for the last step fed, followed by a final
// Support packet reporting the qualification ended.
func (g *Generator) EndQualification(ienable bool) *Drain {
	return &Drain{gen: g, ienable: ienable}
}

// doStep runs one cycle of the packet-decision logic against the step
// currently held as g.current, using next (when hasNext) as one-step
// lookahead, and stores next as the new current for the following call.
func (g *Generator) doStep(next Step, hasNext bool, event *Event) (*packet.InstructionTrace, error) {
	if !g.hasCurrent {
		if hasNext {
			g.current = next
			g.hasCurrent = true
		}
		return nil, nil
	}

	current := g.current
	kind := current.Kind()
	logger.Printf("processing step tag=%d at addr=0x%x", kind.Tag, current.Address())
	if kind.Tag == KindBranch {
		if err := g.state.addBranch(kind.Taken); err != nil {
			return nil, err
		}
	}

	builder := func() *payloadBuilder {
		return g.state.payloadBuilder(current.Address(), current.Context(), kind.Tag == KindTrap, kind.Info)
	}

	var payload *packet.InstructionTrace
	var err error

	switch {
	case g.hasPrevious && g.previousKind.IsExcOnly():
		if g.reportedException {
			payload = builder().reportSync()
			g.reportedException = false
		} else {
			payload = builder().reportTrap(false, g.previousKind.Info)
			g.reportedException = true
		}

	case !g.hasPrevious ||
		g.previousCtx.Privilege != current.Context().Privilege ||
		current.CType() == CTypePrecisely ||
		current.CType() == CTypeAsyncDiscon:
		payload = builder().reportSync()
		g.reportedException = false

	case g.hasPrevious && g.previousKind.IsUpdiscon(g.sijumps):
		if kind.Tag == KindTrap {
			payload = builder().reportTrap(true, kind.Info)
		} else {
			payload, err = builder().reportAddress(reasonUpdiscon)
		}

	case event != nil && *event == EventNotify:
		payload, err = builder().reportAddress(reasonNotify)

	case kind.Tag == KindTrap && kind.TrapInsnSize != nil:
		payload, err = builder().reportAddress(reasonOther)

	case event != nil && *event == EventReSync && g.state.branchCount() > 0:
		payload, err = builder().reportAddress(reasonOther)

	case hasNext && g.state.branchCount() > 0 &&
		(next.Kind().IsExcOnly() || next.Context().Privilege != current.Context().Privilege):
		payload, err = builder().reportAddress(reasonOther)

	case g.state.branchCount() == branch.MaxCount:
		if p, ok := builder().reportFullBranchMap(); ok {
			payload = p
		}

	case current.CType() == CTypeImprecisely:
		payload = builder().reportContext()

	default:
		if !hasNext {
			payload, err = builder().reportAddress(reasonOther)
		}
	}

	if err != nil {
		return nil, err
	}

	g.previousKind = kind
	g.previousCtx = current.Context()
	g.hasPrevious = true
	if hasNext {
		g.current = next
		g.hasCurrent = true
	} else {
		g.hasCurrent = false
	}

	return payload, nil
}

// Drain yields whatever a Generator still owes after the last step has
// been fed, ending with a final Support packet.
type Drain struct {
	gen      *Generator
	ienable  bool
	finished bool
}

// Next returns the next pending payload. ok is false once the drain is
// exhausted.
func (d *Drain) Next() (*packet.InstructionTrace, bool, error) {
	if d.finished {
		return nil, false, nil
	}
	if d.gen.hasCurrent {
		payload, err := d.gen.doStep(nil, false, nil)
		if err != nil {
			d.finished = true
			return nil, false, err
		}
		if payload != nil {
			return payload, true, nil
		}
	}

	d.finished = true
	if !d.gen.hasOptions {
		return nil, false, nil
	}
	qs := packet.QualEndedRep
	if !d.ienable {
		qs = packet.QualEndedNtr
	}
	sup := &packet.SupportPayload{
		IEnable:     d.ienable,
		EncoderMode: packet.EncoderModeBranchTrace,
		QualStatus:  qs,
		IOptions:    d.gen.ioptions,
		DEnable:     false,
		DLoss:       false,
		DOptions:    d.gen.doptions,
	}
	return &packet.InstructionTrace{
		Format: packet.FormatSync,
		Sync:   &packet.Synchronization{Subformat: packet.SyncSupport, SupportPkt: sup},
	}, true, nil
}
