// Package retstack implements the return-address stack(s) used by the
// E-Trace tracer and generator when implicit-return reporting is enabled.
// Overflow is a ring, not a truncation or an error: both sides of the
// protocol must discard the deepest entry identically, or traces diverge
// silently after deep recursion.
package retstack

// Stack is the contract the tracer and generator use for call-return
// bookkeeping. Implementations need not be thread-safe; the protocol is
// single-threaded per hart.
type Stack interface {
	// Push records a return address, evicting the deepest entry if the
	// stack is at capacity.
	Push(addr uint64)
	// Pop removes and returns the most recently pushed address. ok is
	// false if the stack is empty.
	Pop() (addr uint64, ok bool)
	// Top returns the most recently pushed address without removing it.
	Top() (addr uint64, ok bool)
	// Depth reports the number of addresses currently held.
	Depth() int
	// MaxDepth reports the configured capacity.
	MaxDepth() int
}

// Ring is a fixed-capacity ring buffer return stack, matching the wire
// protocol's stack_depth configuration exactly: data[(base+depth)%N].
type Ring struct {
	data     []uint64
	base     int
	depth    int
	maxDepth int
}

// NewRing constructs a Ring with the given maximum depth.
func NewRing(maxDepth int) *Ring {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Ring{data: make([]uint64, maxDepth), maxDepth: maxDepth}
}

// Push implements Stack.
func (r *Ring) Push(addr uint64) {
	if r.maxDepth == 0 {
		return
	}
	idx := (r.base + r.depth) % r.maxDepth
	r.data[idx] = addr
	if r.depth == r.maxDepth {
		r.base = (r.base + 1) % r.maxDepth
	} else {
		r.depth++
	}
}

// Pop implements Stack.
func (r *Ring) Pop() (uint64, bool) {
	if r.depth == 0 {
		return 0, false
	}
	r.depth--
	idx := (r.base + r.depth) % r.maxDepth
	return r.data[idx], true
}

// Top implements Stack.
func (r *Ring) Top() (uint64, bool) {
	if r.depth == 0 {
		return 0, false
	}
	idx := (r.base + r.depth - 1) % r.maxDepth
	return r.data[idx], true
}

// Depth implements Stack.
func (r *Ring) Depth() int { return r.depth }

// MaxDepth implements Stack.
func (r *Ring) MaxDepth() int { return r.maxDepth }

// Dynamic is a slice-backed ring whose capacity is fixed at construction
// time from a runtime-configured value (the protocol's stack_depth field
// is itself not known until a Protocol is built), rather than a
// compile-time array size. Ring overflow semantics are identical to Ring;
// Dynamic exists purely so construction can take an int instead of a
// type parameter.
type Dynamic = Ring

// NewDynamic is an alias for NewRing, kept as a distinct constructor name
// so call sites can express intent ("this depth came from configuration,
// not a literal") even though the implementation is shared.
func NewDynamic(maxDepth int) *Dynamic {
	return NewRing(maxDepth)
}

// None is a no-op Stack used when implicit-return reporting is disabled.
// All pushes are discarded and all pops/tops report empty.
type None struct{}

// Push implements Stack.
func (None) Push(uint64) {}

// Pop implements Stack.
func (None) Pop() (uint64, bool) { return 0, false }

// Top implements Stack.
func (None) Top() (uint64, bool) { return 0, false }

// Depth implements Stack.
func (None) Depth() int { return 0 }

// MaxDepth implements Stack.
func (None) MaxDepth() int { return 0 }
