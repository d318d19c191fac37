package tracer

import (
	"github.com/riscv-trace/etrace/insn"
	"github.com/riscv-trace/etrace/types"
)

// ItemKind tags the retirement event an Item signals.
type ItemKind int

const (
	// KindRegular signals the retiring of the Instruction at the Item's PC.
	KindRegular ItemKind = iota
	// KindTrap signals a trap. For an exception the Item's PC is the EPC;
	// for an interrupt it is the PC of the last instruction retired
	// before the interrupt.
	KindTrap
	// KindContext signals an updated execution context. The Item's PC is
	// the PC of the first instruction retired after the update.
	KindContext
)

func (k ItemKind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindTrap:
		return "trap"
	case KindContext:
		return "context"
	default:
		return "unknown"
	}
}

// Item is one unit of tracer output: either a retired instruction, a
// trap, or a context change.
type Item struct {
	PC      uint64
	Kind    ItemKind
	Insn    insn.Instruction // meaningful iff Kind == KindRegular
	Trap    types.TrapInfo   // meaningful iff Kind == KindTrap
	Context types.Context    // meaningful iff Kind == KindContext
}

func regularItem(pc uint64, in insn.Instruction) Item {
	return Item{PC: pc, Kind: KindRegular, Insn: in}
}

func trapItem(pc uint64, info types.TrapInfo) Item {
	return Item{PC: pc, Kind: KindTrap, Trap: info}
}

func contextItem(pc uint64, ctx types.Context) Item {
	return Item{PC: pc, Kind: KindContext, Context: ctx}
}
