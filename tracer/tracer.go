package tracer

import (
	"github.com/riscv-trace/etrace/binary"
	"github.com/riscv-trace/etrace/branch"
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/insn"
	"github.com/riscv-trace/etrace/packet"
	"github.com/riscv-trace/etrace/retstack"
	"github.com/riscv-trace/etrace/types"
)

// stopKind names the reason execution should stop being followed for the
// payload currently being processed.
type stopKind int

const (
	stopAddress stopKind = iota
	stopLastBranch
	stopSync
	stopNotInferred
)

type stopCondition struct {
	kind      stopKind
	privilege *types.Privilege // only meaningful for stopSync
}

// Tracer is the follow-execution-path state machine for a single hart.
// Feed it decoded payloads via ProcessPayload, then drain the resulting
// Items via Next before feeding the next payload; calling ProcessPayload
// with items still pending is a terminal error.
type Tracer struct {
	protocol    config.Protocol
	oracle      binary.Oracle
	returnStack retstack.Stack

	pc      uint64
	lastPC  uint64
	address uint64

	branchMap      branch.Map
	privilege      types.Privilege
	addressMode    config.AddressMode
	sijumps        bool
	implicitReturn bool
	version        config.Version

	startOfTrace bool
	cond         stopCondition

	pending   []Item
	following bool
	done      bool
}

func (t *Tracer) fetch(pc uint64) (insn.Instruction, error) {
	in, err := t.oracle.GetInsn(pc)
	if err != nil {
		return insn.Instruction{}, &Error{Kind: ErrCannotGetInstruction, Addr: pc, Err: err}
	}
	return in, nil
}

func (t *Tracer) refreshDone() {
	t.done = len(t.pending) == 0 && !t.following
}

func maskFor(width int) uint64 {
	switch {
	case width <= 0:
		return 0
	case width >= 64:
		return ^uint64(0)
	default:
		return uint64(1)<<uint(width) - 1
	}
}

// setAddressFromInfo applies a decoded AddressInfo/BranchCount/Branch
// address field to the tracer's reconstructed address, honoring the
// currently configured AddressMode. In Delta mode raw is a signed delta
// relative to the previously reported address (as decoded by the packet
// layer); in Full mode the field is reinterpreted as an unsigned
// absolute address by masking off the sign-extension the packet layer
// always applies.
func (t *Tracer) setAddressFromInfo(raw int64) {
	if t.addressMode == config.AddressFull {
		lsb := uint(t.protocol.IAddressLSB)
		width := t.protocol.IAddressWidth - t.protocol.IAddressLSB
		unsigned := (uint64(raw) >> lsb) & maskFor(width)
		t.address = unsigned << lsb
		return
	}
	t.address = uint64(int64(t.address) + raw)
}

func (t *Tracer) setAddressAbsolute(addr uint64) {
	t.address = addr
}

// nextPC implements spec.md §4.H.1 step 3: determine the PC that follows
// retiring the instruction at pc.
func (t *Tracer) nextPC(pc uint64, in insn.Instruction) (uint64, error) {
	if target, ok := in.InferableJumpTarget(); ok {
		next := uint64(int64(pc) + target)
		if t.implicitReturn && in.IsCall() {
			t.returnStack.Push(pc + in.Size.Bytes())
		}
		return next, nil
	}
	if _, _, ok := in.UninferableJumpTarget(); ok {
		if t.implicitReturn && in.IsReturn() {
			if top, ok := t.returnStack.Top(); ok && top == pc+in.Size.Bytes() {
				t.returnStack.Pop()
				return top, nil
			}
		}
		return t.resolveFromPacket(pc)
	}
	if in.IsEcallOrEbreak() {
		// The fall-through PC after an ecall/ebreak is well-defined in
		// program order; what's unknown until a Trap packet arrives is
		// whether it actually executes there or traps away instead.
		return pc + in.Size.Bytes(), nil
	}
	if in.IsUninferableDiscon() {
		return t.resolveFromPacket(pc)
	}
	if target, ok := in.BranchTarget(); ok {
		taken, ok := t.branchMap.PopOldest()
		if !ok {
			return 0, &Error{Kind: ErrUnresolvableBranch, Addr: pc}
		}
		if taken {
			return uint64(int64(pc) + target), nil
		}
		return pc + in.Size.Bytes(), nil
	}
	return pc + in.Size.Bytes(), nil
}

func (t *Tracer) resolveFromPacket(pc uint64) (uint64, error) {
	if t.cond.kind == stopAddress || t.cond.kind == stopSync {
		return t.address, nil
	}
	return 0, &Error{Kind: ErrUnexpectedUninferableDiscon, Addr: pc}
}

// reachedAddress reports whether curPC is exactly the target of a
// stopAddress/stopSync condition: the instruction at curPC is the one
// that must still be retired before stopping.
func (t *Tracer) reachedAddress(curPC uint64) bool {
	if t.cond.kind == stopSync && t.cond.privilege != nil && t.privilege != *t.cond.privilege {
		return false
	}
	return curPC == t.address && t.branchMap.Empty()
}

// step performs one fetch-emit-advance cycle of the follow-execution-path
// loop and reports whether this was the last item for the current
// payload.
func (t *Tracer) step() (Item, bool, error) {
	curPC := t.pc
	in, err := t.fetch(curPC)
	if err != nil {
		return Item{}, false, err
	}
	item := regularItem(curPC, in)

	switch t.cond.kind {
	case stopAddress, stopSync:
		if t.reachedAddress(curPC) {
			next, err := t.nextPC(curPC, in)
			if err != nil {
				return Item{}, false, err
			}
			t.lastPC = curPC
			t.pc = next
			return item, true, nil
		}
	case stopNotInferred:
		if _, _, ok := in.UninferableJumpTarget(); ok {
			return item, true, nil
		}
		if in.IsUninferableDiscon() {
			return item, true, nil
		}
	}

	next, err := t.nextPC(curPC, in)
	if err != nil {
		return Item{}, false, err
	}
	stop := t.cond.kind == stopLastBranch && t.branchMap.Empty()
	t.lastPC = curPC
	t.pc = next
	return item, stop, nil
}

// ProcessPayload feeds a decoded instruction-trace payload to the
// tracer. Items it implies become available through Next.
func (t *Tracer) ProcessPayload(p *packet.InstructionTrace) error {
	if !t.done {
		return &Error{Kind: ErrUnprocessedInstructions}
	}
	if p.Format == packet.FormatSync {
		return t.processSync(p.Sync)
	}
	if t.startOfTrace {
		return &Error{Kind: ErrStartOfTrace}
	}

	logger.Printf("processing payload format=%d at pc=0x%x", p.Format, t.pc)

	switch p.Format {
	case packet.FormatBranch:
		if p.Branch != nil {
			if err := t.branchMap.Append(p.Branch.BranchMap); err != nil {
				return err
			}
		}
	case packet.FormatExtension:
		if p.Extension != nil && p.Extension.JumpTargetIndex != nil {
			if err := t.branchMap.Append(p.Extension.JumpTargetIndex.BranchMap); err != nil {
				return err
			}
		}
	}

	if addr := p.GetAddressInfo(); addr != nil {
		t.setAddressFromInfo(addr.Address)
		t.cond = stopCondition{kind: stopAddress}
	} else {
		t.cond = stopCondition{kind: stopLastBranch}
	}
	t.following = true
	t.refreshDone()
	return nil
}

func (t *Tracer) processSync(s *packet.Synchronization) error {
	switch s.Subformat {
	case packet.SyncStart:
		return t.processStart(s.Start)
	case packet.SyncTrap:
		return t.processTrap(s.Trap)
	case packet.SyncContext:
		return t.processContext(s.Context)
	case packet.SyncSupport:
		return t.processSupport(s.SupportPkt)
	}
	return nil
}

// processStart implements spec.md §4.H.2's Start handling: on the very
// first synchronization packet of a session it establishes the initial
// PC directly and emits a Context item followed by a single Regular
// item, then suspends. On any later Start it instead runs a full Sync
// stop condition from the currently tracked PC to the reported address.
func (t *Tracer) processStart(s *packet.StartPayload) error {
	if t.startOfTrace {
		t.startOfTrace = false
		in, err := t.fetch(s.Address)
		if err != nil {
			return err
		}
		t.pc = s.Address
		t.lastPC = s.Address
		t.address = s.Address
		t.privilege = s.Context.Privilege
		t.branchMap = branch.Map{}
		if _, ok := in.BranchTarget(); ok {
			t.branchMap.Push(!s.BranchNotTaken)
		}
		t.pending = append(t.pending, contextItem(s.Address, s.Context), regularItem(s.Address, in))
		t.pc = s.Address + in.Size.Bytes()
		t.following = false
		t.refreshDone()
		return nil
	}

	t.setAddressAbsolute(s.Address)
	var priv *types.Privilege
	if t.version == config.VersionV1 {
		p := s.Context.Privilege
		priv = &p
	} else {
		t.privilege = s.Context.Privilege
	}
	t.cond = stopCondition{kind: stopSync, privilege: priv}
	t.following = true
	t.refreshDone()
	return nil
}

// processTrap implements spec.md §4.H.2's Trap handling.
func (t *Tracer) processTrap(tp *packet.TrapPayload) error {
	var epc uint64
	if tp.Info.Interrupt {
		epc = t.lastPC
	} else {
		in, err := t.fetch(t.pc)
		if err != nil {
			return err
		}
		epc = t.pc
		t.pending = append(t.pending, regularItem(t.pc, in))
		t.lastPC = t.pc
		if target, ok := in.InferableJumpTarget(); ok {
			t.pc = uint64(int64(t.pc) + target)
		} else {
			t.pc += in.Size.Bytes()
		}
	}

	t.pending = append(t.pending, trapItem(epc, tp.Info))

	if tp.Thaddr {
		newPriv := t.privilege
		if t.version != config.VersionV1 {
			newPriv = tp.Context.Privilege
		}
		if newPriv != t.privilege {
			t.pending = append(t.pending, contextItem(tp.Address, tp.Context))
		}
		t.privilege = newPriv
		t.setAddressAbsolute(tp.Address)

		in2, err := t.fetch(tp.Address)
		if err != nil {
			return err
		}
		t.pending = append(t.pending, regularItem(tp.Address, in2))
		t.lastPC = tp.Address
		t.pc = tp.Address + in2.Size.Bytes()
	} else if t.version != config.VersionV1 {
		t.privilege = tp.Context.Privilege
	}

	t.following = false
	t.refreshDone()
	return nil
}

// processContext implements spec.md §4.H.2's Context handling: update
// privilege (V2 onward) and emit a Context item at the current PC.
func (t *Tracer) processContext(c *packet.ContextPayload) error {
	if t.version != config.VersionV1 {
		t.privilege = c.Context.Privilege
	}
	t.pending = append(t.pending, contextItem(t.pc, c.Context))
	t.following = false
	t.refreshDone()
	return nil
}

// processSupport implements spec.md §4.H.2's Support handling: reject
// unsupported options, apply the supported ones, and enter the
// depleting sub-mode on a qualification-status change.
func (t *Tracer) processSupport(s *packet.SupportPayload) error {
	flags := decodeIOptions(t.protocol.Unit.Name(), s.IOptions)
	logger.Printf("support packet: qual_status=%d ioptions=%#x", s.QualStatus, s.IOptions)
	if flags.implicitException != nil && *flags.implicitException {
		return &Error{Kind: ErrUnsupportedFeature, Feature: "implicit exception"}
	}
	if flags.branchPrediction != nil && *flags.branchPrediction {
		return &Error{Kind: ErrUnsupportedFeature, Feature: "branch prediction"}
	}
	if flags.jumpTargetCache != nil && *flags.jumpTargetCache {
		return &Error{Kind: ErrUnsupportedFeature, Feature: "jump target cache"}
	}
	if flags.fullAddress != nil {
		if *flags.fullAddress {
			t.addressMode = config.AddressFull
		} else {
			t.addressMode = config.AddressDelta
		}
	}
	if flags.sijump != nil {
		t.sijumps = *flags.sijump
	}
	if flags.implicitReturn != nil {
		t.implicitReturn = *flags.implicitReturn
	}

	if s.QualStatus != packet.QualNoChange {
		t.following = true
		if s.QualStatus == packet.QualEndedNtr {
			t.cond = stopCondition{kind: stopNotInferred}
		}
	}
	t.refreshDone()
	return nil
}

// Next returns the next pending Item for the payload most recently fed
// via ProcessPayload. ok is false once the payload's items are
// exhausted; callers must observe ok==false (or an error) before
// calling ProcessPayload again.
func (t *Tracer) Next() (Item, bool, error) {
	if len(t.pending) > 0 {
		it := t.pending[0]
		t.pending = t.pending[1:]
		t.refreshDone()
		return it, true, nil
	}
	if !t.following {
		t.done = true
		return Item{}, false, nil
	}
	item, stop, err := t.step()
	if err != nil {
		t.following = false
		t.done = true
		return Item{}, false, err
	}
	if stop {
		t.following = false
	}
	t.refreshDone()
	return item, true, nil
}
