// Package branch implements the branch-outcome FIFO shared by the E-Trace
// tracer and generator. The wire convention inverts the obvious polarity:
// a set bit means the branch was NOT taken. Implementations must not
// "helpfully" flip this at the API boundary, or RawMap and the
// encoder/decoder round trip both break.
package branch

import "errors"

// MaxCount is the largest number of pending branch outcomes the map may
// hold. The protocol's own backing word is wider, but the wire format
// never reports more than this many outcomes in one packet.
const MaxCount = 31

// ErrFull is returned by Push and Append when the operation would push
// the outstanding count past MaxCount.
var ErrFull = errors.New("branch: map is full")

// Map is a FIFO of branch-taken outcomes. The oldest outcome occupies bit
// 0; bit set means the branch was not taken.
type Map struct {
	count int
	bits  uint64
}

// Count reports the number of pending outcomes.
func (m Map) Count() int { return m.count }

// RawMap returns the raw wire-polarity bit vector (bit set = not taken),
// with only the low Count bits meaningful.
func (m Map) RawMap() uint64 { return m.bits }

// FromRaw constructs a Map directly from a wire-polarity bit vector and a
// count, as read off the packet decoder.
func FromRaw(bits uint64, count int) Map {
	return Map{bits: bits, count: count}
}

// Push appends a new outcome at the newest end of the FIFO.
func (m *Map) Push(taken bool) error {
	if m.count >= MaxCount {
		return ErrFull
	}
	if !taken {
		m.bits |= 1 << uint(m.count)
	}
	m.count++
	return nil
}

// PopOldest removes and returns the oldest pending outcome (taken=true
// means the branch was taken). It reports ok=false if the map is empty.
func (m *Map) PopOldest() (taken bool, ok bool) {
	if m.count == 0 {
		return false, false
	}
	notTaken := m.bits&1 != 0
	m.bits >>= 1
	m.count--
	return !notTaken, true
}

// Append concatenates other onto the newer end of m. It errors without
// modifying m if the combined count would exceed MaxCount.
func (m *Map) Append(other Map) error {
	if m.count+other.count > MaxCount {
		return ErrFull
	}
	m.bits |= other.bits << uint(m.count)
	m.count += other.count
	return nil
}

// Empty reports whether there are no pending outcomes.
func (m Map) Empty() bool { return m.count == 0 }
