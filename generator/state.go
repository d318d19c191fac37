package generator

import (
	"github.com/riscv-trace/etrace/branch"
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/packet"
	"github.com/riscv-trace/etrace/types"
)

// state holds the generator's accumulated, cross-step encoding state: the
// pending branch outcomes not yet flushed in a payload, and the baseline
// address Delta-mode address fields are computed against.
type state struct {
	branches    branch.Map
	lastAddress *uint64
	addressMode config.AddressMode
}

func newState(mode config.AddressMode) *state {
	return &state{addressMode: mode}
}

func (s *state) addBranch(taken bool) error {
	if err := s.branches.Push(taken); err != nil {
		return &Error{Kind: ErrCannotAddBranches, Err: err}
	}
	return nil
}

func (s *state) branchCount() int { return s.branches.Count() }

// takeBranches removes and returns all pending outcomes, leaving the map
// empty for whatever comes after the payload being built.
func (s *state) takeBranches() branch.Map {
	m := s.branches
	s.branches = branch.Map{}
	return m
}

// reset discards any pending outcomes without reporting them, for the
// single bit a synchronization payload can still carry.
func (s *state) reset() { s.branches = branch.Map{} }

// reason selects which AddressInfo flag a reportAddress call sets.
type reason int

const (
	reasonOther reason = iota
	reasonUpdiscon
	reasonNotify
)

// payloadBuilder gathers the per-step context (the address and execution
// context of the step a payload is being built for) needed to assemble
// one instruction-trace payload, and commits state changes (baseline
// address, drained branch map) only once a payload is actually emitted.
type payloadBuilder struct {
	st      *state
	address uint64
	context types.Context
	isTrap  bool
	info    types.TrapInfo
}

func (st *state) payloadBuilder(addr uint64, ctx types.Context, isTrap bool, info types.TrapInfo) *payloadBuilder {
	return &payloadBuilder{st: st, address: addr, context: ctx, isTrap: isTrap, info: info}
}

func (b *payloadBuilder) branches() int { return b.st.branchCount() }

// delta computes the AddressInfo.Address field: the raw absolute address
// in Full mode, or a signed delta against the last reported address in
// Delta mode.
func (b *payloadBuilder) delta() (int64, error) {
	if b.st.addressMode == config.AddressFull {
		return int64(b.address), nil
	}
	if b.st.lastAddress == nil {
		return 0, &Error{Kind: ErrNoAddressReported}
	}
	return int64(b.address) - int64(*b.st.lastAddress), nil
}

func (b *payloadBuilder) record() {
	addr := b.address
	b.st.lastAddress = &addr
}

// popSyncBranch returns the BranchNotTaken bit a Start/Trap payload
// carries and clears the branch map for the new synchronization point.
// At most one outcome is ever pending here: the one pushed moments
// earlier for the very instruction the sync establishes, if it was
// itself a branch.
func (b *payloadBuilder) popSyncBranch() bool {
	taken, ok := b.st.branches.PopOldest()
	b.st.reset()
	if !ok {
		return false
	}
	return !taken
}

// reportSync builds a Start or Trap synchronization payload, choosing
// Trap when the step being synchronized at is itself a trap retirement.
func (b *payloadBuilder) reportSync() *packet.InstructionTrace {
	branchNT := b.popSyncBranch()
	if b.isTrap {
		b.record()
		return &packet.InstructionTrace{
			Format: packet.FormatSync,
			Sync: &packet.Synchronization{
				Subformat: packet.SyncTrap,
				Trap: &packet.TrapPayload{
					BranchNotTaken: branchNT,
					Context:        b.context,
					Thaddr:         true,
					Address:        b.address,
					Info:           b.info,
				},
			},
		}
	}
	b.record()
	return &packet.InstructionTrace{
		Format: packet.FormatSync,
		Sync: &packet.Synchronization{
			Subformat: packet.SyncStart,
			Start: &packet.StartPayload{
				BranchNotTaken: branchNT,
				Context:        b.context,
				Address:        b.address,
			},
		},
	}
}

// reportTrap builds a Trap synchronization payload. reportAddr selects
// whether a trap-handler-entry address (this step's own address)
// accompanies the cause information, or the trap is reported exc-only.
func (b *payloadBuilder) reportTrap(reportAddr bool, info types.TrapInfo) *packet.InstructionTrace {
	branchNT := b.popSyncBranch()
	tp := &packet.TrapPayload{
		BranchNotTaken: branchNT,
		Context:        b.context,
		Thaddr:         reportAddr,
		Info:           info,
	}
	if reportAddr {
		tp.Address = b.address
		b.record()
	}
	return &packet.InstructionTrace{
		Format: packet.FormatSync,
		Sync:   &packet.Synchronization{Subformat: packet.SyncTrap, Trap: tp},
	}
}

// reportAddress builds an Address (Format 2) payload, or a Branch
// (Format 1) payload carrying the same address info when outcomes are
// pending, since an address report is also a convenient place to flush
// them.
func (b *payloadBuilder) reportAddress(r reason) (*packet.InstructionTrace, error) {
	delta, err := b.delta()
	if err != nil {
		return nil, err
	}
	info := &packet.AddressInfo{
		Address:  delta,
		Notify:   r == reasonNotify,
		Updiscon: r == reasonUpdiscon,
	}
	b.record()
	if b.st.branchCount() > 0 {
		bm := b.st.takeBranches()
		return &packet.InstructionTrace{
			Format: packet.FormatBranch,
			Branch: &packet.BranchPayload{BranchMap: bm, Address: info},
		}, nil
	}
	return &packet.InstructionTrace{Format: packet.FormatAddress, Address: info}, nil
}

// reportFullBranchMap builds a no-address Branch payload when the map
// has reached its wire-format cap; ok is false otherwise.
func (b *payloadBuilder) reportFullBranchMap() (payload *packet.InstructionTrace, ok bool) {
	if b.st.branchCount() != branch.MaxCount {
		return nil, false
	}
	bm := b.st.takeBranches()
	return &packet.InstructionTrace{
		Format: packet.FormatBranch,
		Branch: &packet.BranchPayload{BranchMap: bm, Address: nil},
	}, true
}

// reportContext builds a Context synchronization payload.
func (b *payloadBuilder) reportContext() *packet.InstructionTrace {
	return &packet.InstructionTrace{
		Format: packet.FormatSync,
		Sync:   &packet.Synchronization{Subformat: packet.SyncContext, Context: &packet.ContextPayload{Context: b.context}},
	}
}
