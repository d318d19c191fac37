package packet

import (
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/internal/bitio"
)

// Decoder pulls bit-level fields from a byte buffer according to a fixed
// config.Protocol, assembling them into typed packets. It borrows its
// input slice for its entire lifetime; callers needing to decode the
// next packet construct a new Decoder (or call Reset) on the remaining
// bytes, since a failed decode leaves the bit position unspecified.
type Decoder struct {
	Protocol config.Protocol
	cur      *bitio.Cursor
}

// NewDecoder constructs a Decoder over buf.
func NewDecoder(p config.Protocol, buf []byte) *Decoder {
	return &Decoder{Protocol: p, cur: bitio.NewCursor(buf)}
}

// Reset rebinds the decoder to a new buffer at bit 0, keeping the same
// Protocol. Use this to resume decoding after an error, per spec.md §7.
func (d *Decoder) Reset(buf []byte) {
	d.cur.Reset(buf)
}

// BytePos returns the current byte offset.
func (d *Decoder) BytePos() int { return d.cur.BytePos() }

// AdvanceToByteBoundary pads to the next byte boundary.
func (d *Decoder) AdvanceToByteBoundary() { d.cur.AdvanceToByteBoundary() }

// ReadBit reads a single bit.
func (d *Decoder) ReadBit() (bool, error) {
	b, err := d.cur.ReadBit()
	if err != nil {
		return false, wrapCursorErr(err)
	}
	return b, nil
}

// ReadDifferentialBit reads a bit XORed against the previous bit.
func (d *Decoder) ReadDifferentialBit() (bool, error) {
	b, err := d.cur.ReadDifferentialBit()
	if err != nil {
		return false, wrapCursorErr(err)
	}
	return b, nil
}

// ReadBits reads an unsigned field of the given width.
func (d *Decoder) ReadBits(width int) (uint64, error) {
	v, err := d.cur.ReadBitsUint64(width)
	if err != nil {
		return 0, wrapCursorErr(err)
	}
	return v, nil
}

// ReadBitsSigned reads a sign-extended field of the given width.
func (d *Decoder) ReadBitsSigned(width int) (int64, error) {
	v, err := d.cur.ReadBitsInt64(width)
	if err != nil {
		return 0, wrapCursorErr(err)
	}
	return v, nil
}
