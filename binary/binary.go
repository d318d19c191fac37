// Package binary provides the address-to-instruction oracle the E-Trace
// tracer and generator fetch through, plus composable adapters (offset,
// range-gated segment, multi-source inline cache, static table) and an
// ELF-backed implementation for tracing real firmware images.
package binary

import (
	"errors"
	"fmt"

	"github.com/riscv-trace/etrace/insn"
)

// ErrMiss is returned by an Oracle that has no instruction at the
// requested address. It is distinguishable from all other errors so
// combinators such as Multi can fall through to the next source; any
// other error is terminal for a tracing session.
var ErrMiss = errors.New("binary: no instruction at address")

// Oracle resolves a virtual address to the instruction found there.
type Oracle interface {
	GetInsn(addr uint64) (insn.Instruction, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(addr uint64) (insn.Instruction, error)

// GetInsn implements Oracle.
func (f Func) GetInsn(addr uint64) (insn.Instruction, error) { return f(addr) }

// Empty is an Oracle that always misses.
type Empty struct{}

// GetInsn implements Oracle.
func (Empty) GetInsn(uint64) (insn.Instruction, error) { return insn.Instruction{}, ErrMiss }

// Offset subtracts Base from every query before delegating to Inner.
// Addresses below Base are reported as misses, matching the reference
// combinator's "below the offset it reports miss" contract.
type Offset struct {
	Base  uint64
	Inner Oracle
}

// GetInsn implements Oracle.
func (o Offset) GetInsn(addr uint64) (insn.Instruction, error) {
	if addr < o.Base {
		return insn.Instruction{}, ErrMiss
	}
	return o.Inner.GetInsn(addr - o.Base)
}

// Segment gates Inner to the half-open address range [Base, Base+Len);
// queries outside the range miss without consulting Inner.
type Segment struct {
	Base  uint64
	Len   uint64
	Inner Oracle
}

// GetInsn implements Oracle.
func (s Segment) GetInsn(addr uint64) (insn.Instruction, error) {
	if addr < s.Base || addr >= s.Base+s.Len {
		return insn.Instruction{}, ErrMiss
	}
	return s.Inner.GetInsn(addr)
}

// Multi tries each source in order, remembering the index of the last
// source that answered a hit so that subsequent queries try it first.
// This is a cheap inline cache exploiting the locality of sequential
// instruction fetch across adjacent binary segments.
type Multi struct {
	sources []Oracle
	lastHit int
}

// NewMulti constructs a Multi over the given sources, tried in order.
func NewMulti(sources ...Oracle) *Multi {
	return &Multi{sources: sources}
}

// GetInsn implements Oracle.
func (m *Multi) GetInsn(addr uint64) (insn.Instruction, error) {
	if len(m.sources) == 0 {
		return insn.Instruction{}, ErrMiss
	}
	if ins, err := m.sources[m.lastHit].GetInsn(addr); err == nil {
		return ins, nil
	} else if !errors.Is(err, ErrMiss) {
		return insn.Instruction{}, err
	}
	for i, src := range m.sources {
		if i == m.lastHit {
			continue
		}
		ins, err := src.GetInsn(addr)
		if err == nil {
			m.lastHit = i
			return ins, nil
		}
		if !errors.Is(err, ErrMiss) {
			return insn.Instruction{}, err
		}
	}
	return insn.Instruction{}, ErrMiss
}

// Table is a static address -> instruction map, the Go rendering of the
// reference implementation's SimpleMap combinator. It is the natural
// oracle for literal test fixtures (spec scenarios hand the decoder a
// short, fixed instruction sequence at fixed addresses).
type Table map[uint64]insn.Instruction

// GetInsn implements Oracle.
func (t Table) GetInsn(addr uint64) (insn.Instruction, error) {
	if ins, ok := t[addr]; ok {
		return ins, nil
	}
	return insn.Instruction{}, ErrMiss
}

// NoInstructionError is returned for addresses that decode without error
// but whose bytes don't correspond to any instruction this decoder
// recognizes well enough to trust as a fetch target (e.g. a request past
// the end of a segment's backing bytes).
type NoInstructionError struct {
	Addr uint64
}

func (e *NoInstructionError) Error() string {
	return fmt.Sprintf("binary: no instruction available at 0x%x", e.Addr)
}
