// Package bitio implements the unaligned, variable-width bit cursor shared
// by the E-Trace packet decoder and encoder. Fields are assembled
// LSB-first within a byte and MSB-first across bytes. Reads that run past
// the end of the buffer are sign-extended from the last available byte;
// this is the protocol's transparent decompression rule, not an error
// condition, and callers rely on it to decode truncated wire streams.
package bitio

import "fmt"

// Error is returned by Cursor and Writer operations. BytePos records the
// byte offset active when the error occurred, mirroring the position
// tracking the teacher's wasm/internal/readpos.ReadPos performs for its
// own read errors.
type Error struct {
	Msg     string
	BytePos int
	Need    int // lower bound on additional bytes required, when known
}

func (e *Error) Error() string {
	if e.Need > 0 {
		return fmt.Sprintf("bitio: %s at byte %d (need >= %d more byte(s))", e.Msg, e.BytePos, e.Need)
	}
	return fmt.Sprintf("bitio: %s at byte %d", e.Msg, e.BytePos)
}

func insufficient(bytePos, need int) error {
	return &Error{Msg: "insufficient data", BytePos: bytePos, Need: need}
}

// Cursor reads unaligned bit fields from a byte slice.
type Cursor struct {
	buf    []byte
	bitPos int // absolute bit offset from the start of buf
}

// NewCursor wraps buf for bit-level reading starting at bit 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// BitPos returns the current absolute bit offset.
func (c *Cursor) BitPos() int { return c.bitPos }

// BytePos returns the byte containing the current bit offset.
func (c *Cursor) BytePos() int { return c.bitPos / 8 }

// Len returns the number of bytes backing the cursor.
func (c *Cursor) Len() int { return len(c.buf) }

// Reset rewinds the cursor to bit 0 and optionally swaps in a new buffer.
func (c *Cursor) Reset(buf []byte) {
	c.buf = buf
	c.bitPos = 0
}

// AdvanceToByteBoundary moves the cursor forward to the next byte boundary.
// It is a no-op if already aligned.
func (c *Cursor) AdvanceToByteBoundary() {
	if rem := c.bitPos % 8; rem != 0 {
		c.bitPos += 8 - rem
	}
}

// getByte returns the byte at index idx, sign-extending past the end of
// the buffer from the MSB of the last real byte. It errors only if the
// buffer is entirely empty, since then there is no sign bit to extend
// from.
func (c *Cursor) getByte(idx int) (byte, error) {
	if idx < len(c.buf) {
		return c.buf[idx], nil
	}
	if len(c.buf) == 0 {
		return 0, insufficient(idx, idx-len(c.buf)+1)
	}
	last := c.buf[len(c.buf)-1]
	if last&0x80 != 0 {
		return 0xff, nil
	}
	return 0x00, nil
}

// ReadBit reads a single bit and advances the cursor.
func (c *Cursor) ReadBit() (bool, error) {
	byteIdx := c.bitPos / 8
	bitIdx := uint(c.bitPos % 8)
	b, err := c.getByte(byteIdx)
	if err != nil {
		return false, err
	}
	c.bitPos++
	return (b>>bitIdx)&1 != 0, nil
}

// ReadDifferentialBit reads a bit and XORs it against the immediately
// preceding bit in the stream (the protocol's notify/updiscon encoding).
// It is an error to call this at absolute bit position 0, since there is
// no previous bit.
func (c *Cursor) ReadDifferentialBit() (bool, error) {
	if c.bitPos == 0 {
		return false, &Error{Msg: "no previous bit for differential read", BytePos: 0}
	}
	prevByteIdx := (c.bitPos - 1) / 8
	prevBitIdx := uint((c.bitPos - 1) % 8)
	prevByte, err := c.getByte(prevByteIdx)
	if err != nil {
		return false, err
	}
	prev := (prevByte >> prevBitIdx) & 1
	cur, err := c.ReadBit()
	if err != nil {
		return false, err
	}
	var curBit byte
	if cur {
		curBit = 1
	}
	return (curBit ^ prev) != 0, nil
}

// ReadBitsUint64 reads a width-bit (0..=64) unsigned field, LSB-first
// within each byte, MSB-first across bytes (i.e. bit i of the field
// occupies absolute bit position bitPos+i). Width 0 returns 0 without
// advancing the cursor. The shift-accumulate loop is the same idiom the
// teacher's wasm/leb128 varint reader used, adapted here to arbitrary
// bit widths instead of byte-aligned groups of seven.
func (c *Cursor) ReadBitsUint64(width int) (uint64, error) {
	if width == 0 {
		return 0, nil
	}
	if width < 0 || width > 64 {
		return 0, &Error{Msg: fmt.Sprintf("invalid field width %d", width), BytePos: c.BytePos()}
	}
	var result uint64
	for i := 0; i < width; i++ {
		bit, err := c.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit {
			result |= 1 << uint(i)
		}
	}
	return result, nil
}

// ReadBitsInt64 reads a width-bit field and sign-extends it from bit
// width-1.
func (c *Cursor) ReadBitsInt64(width int) (int64, error) {
	u, err := c.ReadBitsUint64(width)
	if err != nil {
		return 0, err
	}
	return SignExtend(u, width), nil
}

// SignExtend sign-extends the low width bits of u to a full int64. Width
// 64 (and width 0) pass the value through unchanged.
func SignExtend(u uint64, width int) int64 {
	if width <= 0 || width >= 64 {
		return int64(u)
	}
	signBit := uint64(1) << uint(width-1)
	if u&signBit != 0 {
		u |= ^uint64(0) << uint(width)
	}
	return int64(u)
}

// Truncate masks v to its low width bits (width in 0..=64).
func Truncate(v uint64, width int) uint64 {
	if width <= 0 {
		return 0
	}
	if width >= 64 {
		return v
	}
	return v & ((uint64(1) << uint(width)) - 1)
}

// Writer assembles unaligned bit fields into a byte buffer, applying tail
// compression: a byte is only committed once complete, and Bytes() leaves
// out the trailing run of committed bytes that each equal the sign
// extension of the byte before them (i.e. are redundant with what a
// decoder would reconstruct anyway). Compression can be disabled for
// callers that need a fixed-length wire frame.
type Writer struct {
	out      []byte
	cur      byte
	curBits  uint
	bitPos   int
	compress bool
}

// NewWriter creates a Writer. When compress is true, trailing bytes that
// are redundant with the sign-extension of the prior byte are elided from
// Bytes(); the decoder reconstructs them transparently.
func NewWriter(compress bool) *Writer {
	return &Writer{compress: compress}
}

// BitPos returns the number of bits written so far.
func (w *Writer) BitPos() int { return w.bitPos }

func (w *Writer) commitByte() {
	w.out = append(w.out, w.cur)
	w.cur = 0
	w.curBits = 0
}

// WriteBit appends a single bit.
func (w *Writer) WriteBit(v bool) error {
	if v {
		w.cur |= 1 << w.curBits
	}
	w.curBits++
	w.bitPos++
	if w.curBits == 8 {
		w.commitByte()
	}
	return nil
}

// WriteDifferentialBit writes v XORed against the previously written bit.
// It is an error at absolute bit position 0.
func (w *Writer) WriteDifferentialBit(v bool) error {
	if w.bitPos == 0 {
		return &Error{Msg: "no previous bit for differential write", BytePos: 0}
	}
	prev := w.previousBit()
	return w.WriteBit(v != prev)
}

func (w *Writer) previousBit() bool {
	// The previous bit is either still pending in w.cur (curBits > 0) or
	// was the MSB of the most recently committed byte.
	if w.curBits > 0 {
		return (w.cur>>(w.curBits-1))&1 != 0
	}
	if len(w.out) > 0 {
		return w.out[len(w.out)-1]&0x80 != 0
	}
	return false
}

// WriteBitsUint64 writes the low width bits of v (width 0..=64).
func (w *Writer) WriteBitsUint64(v uint64, width int) error {
	if width == 0 {
		return nil
	}
	if width < 0 || width > 64 {
		return &Error{Msg: fmt.Sprintf("invalid field width %d", width), BytePos: w.BitPos() / 8}
	}
	for i := 0; i < width; i++ {
		if err := w.WriteBit((v>>uint(i))&1 != 0); err != nil {
			return err
		}
	}
	return nil
}

// WriteBitsInt64 writes the low width bits of v (two's complement).
func (w *Writer) WriteBitsInt64(v int64, width int) error {
	return w.WriteBitsUint64(uint64(v)&maskFor(width), width)
}

func maskFor(width int) uint64 {
	if width <= 0 {
		return 0
	}
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// AdvanceToByteBoundary pads with zero bits up to the next byte boundary.
func (w *Writer) AdvanceToByteBoundary() error {
	for w.curBits != 0 {
		if err := w.WriteBit(false); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the committed byte stream, with a redundant trailing
// suffix elided when compression is enabled: a trailing byte is dropped
// if it equals the sign-extension fill implied by the byte preceding it,
// since a decoder reconstructs it for free via Cursor's end-of-buffer
// rule. At least one byte is always kept so a decoder has a sign bit to
// extend from. Any partial trailing byte not yet a full 8 bits is not
// included; callers must AdvanceToByteBoundary first.
func (w *Writer) Bytes() []byte {
	if !w.compress {
		return w.out
	}
	n := len(w.out)
	for n > 1 {
		prev := w.out[n-2]
		fill := byte(0x00)
		if prev&0x80 != 0 {
			fill = 0xff
		}
		if w.out[n-1] != fill {
			break
		}
		n--
	}
	return w.out[:n]
}
