package branch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	var m Map
	require.NoError(t, m.Push(true))
	require.NoError(t, m.Push(false))
	require.NoError(t, m.Push(true))
	require.Equal(t, 3, m.Count())

	taken, ok := m.PopOldest()
	require.True(t, ok)
	require.True(t, taken)

	taken, ok = m.PopOldest()
	require.True(t, ok)
	require.False(t, taken)

	taken, ok = m.PopOldest()
	require.True(t, ok)
	require.True(t, taken)

	_, ok = m.PopOldest()
	require.False(t, ok)
}

func TestPushFullErrors(t *testing.T) {
	var m Map
	for i := 0; i < MaxCount; i++ {
		require.NoError(t, m.Push(true))
	}
	require.ErrorIs(t, m.Push(true), ErrFull)
}

func TestAppendCombinesCounts(t *testing.T) {
	var a, b Map
	require.NoError(t, a.Push(true))
	require.NoError(t, a.Push(false))
	require.NoError(t, b.Push(false))

	require.NoError(t, a.Append(b))
	require.Equal(t, 3, a.Count())

	// oldest-to-newest order should be true, false, false
	taken, _ := a.PopOldest()
	require.True(t, taken)
	taken, _ = a.PopOldest()
	require.False(t, taken)
	taken, _ = a.PopOldest()
	require.False(t, taken)
}

func TestAppendOverflowErrors(t *testing.T) {
	var a, b Map
	for i := 0; i < MaxCount; i++ {
		require.NoError(t, a.Push(true))
	}
	require.NoError(t, b.Push(true))
	require.ErrorIs(t, a.Append(b), ErrFull)
	require.Equal(t, MaxCount, a.Count())
}

func TestRawMapPolarityIsNotTaken(t *testing.T) {
	var m Map
	require.NoError(t, m.Push(false)) // not taken -> bit set
	require.Equal(t, uint64(1), m.RawMap())

	var m2 Map
	require.NoError(t, m2.Push(true)) // taken -> bit clear
	require.Equal(t, uint64(0), m2.RawMap())
}

func TestFromRawRoundTrip(t *testing.T) {
	m := FromRaw(0b101, 3)
	require.Equal(t, 3, m.Count())
	taken, _ := m.PopOldest() // bit0=1 -> not taken
	require.False(t, taken)
	taken, _ = m.PopOldest() // bit1=0 -> taken
	require.True(t, taken)
	taken, _ = m.PopOldest() // bit2=1 -> not taken
	require.False(t, taken)
}
