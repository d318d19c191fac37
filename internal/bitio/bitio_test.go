package bitio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBitsRoundTrip(t *testing.T) {
	tests := []struct {
		width int
		value uint64
	}{
		{1, 1},
		{4, 0xf},
		{8, 0xab},
		{13, 0x1fff},
		{31, 0x7fffffff},
		{32, 0xffffffff},
		{64, 0xdeadbeefcafebabe},
	}
	for _, tt := range tests {
		w := NewWriter(false)
		require.NoError(t, w.WriteBitsUint64(tt.value, tt.width))
		require.NoError(t, w.AdvanceToByteBoundary())

		c := NewCursor(w.Bytes())
		got, err := c.ReadBitsUint64(tt.width)
		require.NoError(t, err)
		require.Equal(t, Truncate(tt.value, tt.width), got)
	}
}

func TestReadBitsSignExtend(t *testing.T) {
	w := NewWriter(false)
	require.NoError(t, w.WriteBitsInt64(-1, 5))
	require.NoError(t, w.AdvanceToByteBoundary())

	c := NewCursor(w.Bytes())
	got, err := c.ReadBitsInt64(5)
	require.NoError(t, err)
	require.Equal(t, int64(-1), got)
}

func TestEndOfBufferSignExtension(t *testing.T) {
	// A single 0x00 byte implies all further bytes are 0x00.
	c := NewCursor([]byte{0x00})
	v, err := c.ReadBitsUint64(32)
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)

	// A single byte with the MSB set implies all further bytes are 0xff.
	c2 := NewCursor([]byte{0x80})
	v2, err := c2.ReadBitsUint64(16)
	require.NoError(t, err)
	require.Equal(t, uint64(0xff80), v2)
}

func TestEmptyBufferErrors(t *testing.T) {
	c := NewCursor(nil)
	_, err := c.ReadBit()
	require.Error(t, err)
}

func TestDifferentialBitRoundTrip(t *testing.T) {
	for _, b := range []bool{true, false} {
		w := NewWriter(false)
		require.NoError(t, w.WriteBit(true))
		require.NoError(t, w.WriteDifferentialBit(b))
		require.NoError(t, w.AdvanceToByteBoundary())

		c := NewCursor(w.Bytes())
		_, err := c.ReadBit()
		require.NoError(t, err)
		got, err := c.ReadDifferentialBit()
		require.NoError(t, err)
		require.Equal(t, b, got)
	}
}

func TestDifferentialBitAtOrigin(t *testing.T) {
	c := NewCursor([]byte{0x00})
	_, err := c.ReadDifferentialBit()
	require.Error(t, err)

	w := NewWriter(false)
	require.Error(t, w.WriteDifferentialBit(true))
}

func TestCompressionDropsRedundantTrailingBytes(t *testing.T) {
	w := NewWriter(true)
	require.NoError(t, w.WriteBitsUint64(0x42, 8))
	require.NoError(t, w.WriteBitsUint64(0x00, 8))
	require.NoError(t, w.WriteBitsUint64(0x00, 8))
	require.Equal(t, []byte{0x42}, w.Bytes())

	c := NewCursor(w.Bytes())
	got, err := c.ReadBitsUint64(24)
	require.NoError(t, err)
	require.Equal(t, uint64(0x42), got)
}

func TestWidthZeroReturnsZeroWithoutAdvancing(t *testing.T) {
	c := NewCursor([]byte{0xff})
	pos := c.BitPos()
	v, err := c.ReadBitsUint64(0)
	require.NoError(t, err)
	require.Zero(t, v)
	require.Equal(t, pos, c.BitPos())
}
