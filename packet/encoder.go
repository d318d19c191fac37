package packet

import (
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/internal/bitio"
)

// Encoder is the bit-exact inverse of Decoder: it writes fields through
// internal/bitio's Writer, which applies tail-byte compression
// (controlled by Protocol.Compress) when the buffer is finalized.
type Encoder struct {
	Protocol config.Protocol
	w        *bitio.Writer
}

// NewEncoder constructs an Encoder for the given Protocol.
func NewEncoder(p config.Protocol) *Encoder {
	return &Encoder{Protocol: p, w: bitio.NewWriter(p.Compress)}
}

// WriteBit writes a single bit.
func (e *Encoder) WriteBit(v bool) error { return e.w.WriteBit(v) }

// WriteDifferentialBit writes v XORed against the previously written bit.
func (e *Encoder) WriteDifferentialBit(v bool) error { return e.w.WriteDifferentialBit(v) }

// WriteBits writes the low width bits of v.
func (e *Encoder) WriteBits(v uint64, width int) error { return e.w.WriteBitsUint64(v, width) }

// WriteBitsSigned writes the low width bits of v (two's complement).
func (e *Encoder) WriteBitsSigned(v int64, width int) error { return e.w.WriteBitsInt64(v, width) }

// AdvanceToByteBoundary pads with zero bits to the next byte boundary.
func (e *Encoder) AdvanceToByteBoundary() error { return e.w.AdvanceToByteBoundary() }

// BitPos returns the number of bits written so far.
func (e *Encoder) BitPos() int { return e.w.BitPos() }

// Bytes returns the committed (possibly tail-compressed) output.
func (e *Encoder) Bytes() []byte { return e.w.Bytes() }
