package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riscv-trace/etrace/insn"
)

func TestTableHitAndMiss(t *testing.T) {
	tab := Table{
		0x1000: {Size: insn.Normal, Kind: insn.KindNone},
	}
	_, err := tab.GetInsn(0x1000)
	require.NoError(t, err)

	_, err = tab.GetInsn(0x2000)
	require.ErrorIs(t, err, ErrMiss)
}

func TestOffsetBelowBaseMisses(t *testing.T) {
	o := Offset{Base: 0x8000, Inner: Table{0x0: {Size: insn.Normal}}}
	_, err := o.GetInsn(0x10)
	require.ErrorIs(t, err, ErrMiss)

	ins, err := o.GetInsn(0x8000)
	require.NoError(t, err)
	require.Equal(t, insn.Normal, ins.Size)
}

func TestSegmentGatesRange(t *testing.T) {
	s := Segment{Base: 0x100, Len: 0x10, Inner: Table{0x108: {Size: insn.Compressed}}}
	_, err := s.GetInsn(0x200)
	require.ErrorIs(t, err, ErrMiss)

	ins, err := s.GetInsn(0x108)
	require.NoError(t, err)
	require.Equal(t, insn.Compressed, ins.Size)
}

func TestMultiFallsThroughAndCachesHit(t *testing.T) {
	a := Table{0x10: {Size: insn.Normal}}
	b := Table{0x20: {Size: insn.Compressed}}
	m := NewMulti(a, b)

	ins, err := m.GetInsn(0x20)
	require.NoError(t, err)
	require.Equal(t, insn.Compressed, ins.Size)

	// Second query for an address only 'a' has should still work even
	// though the inline cache points at 'b'.
	ins, err = m.GetInsn(0x10)
	require.NoError(t, err)
	require.Equal(t, insn.Normal, ins.Size)
}

func TestEmptyAlwaysMisses(t *testing.T) {
	_, err := Empty{}.GetInsn(0x1234)
	require.ErrorIs(t, err, ErrMiss)
}
