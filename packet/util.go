package packet

import "github.com/riscv-trace/etrace/branch"

// BranchCount is the 5-bit "number of correctly predicted branches"
// field shared by Format 1 (Branch) and the Format 0 subformat 1
// (JumpTargetIndex) payloads. Per spec.md §3.5, a nonzero value is read
// directly as the width (in bits) of the branch map that follows; the
// special value 0 is interpreted by the caller (Branch reads a full
// 31-bit map with no address in that case; JumpTargetIndex treats 0 as
// an empty map).
type BranchCount int

// FullBranchCount is the sentinel used when a zero field value signals
// "read a full 31-branch map", per the Format 1 (Branch) payload rule.
const FullBranchCount BranchCount = branch.MaxCount

// IsZero reports whether the raw field value was 0.
func (c BranchCount) IsZero() bool { return c == 0 }

// ReadBranchMap reads exactly int(c) branch-outcome bits (0 bits, i.e. an
// empty map, when c is 0) and returns them as a branch.Map.
func (c BranchCount) ReadBranchMap(dec *Decoder) (branch.Map, error) {
	bits, err := dec.ReadBits(int(c))
	if err != nil {
		return branch.Map{}, err
	}
	return branch.FromRaw(bits, int(c)), nil
}

// WriteBranchMap writes exactly int(c) bits of m's raw map.
func (c BranchCount) WriteBranchMap(enc *Encoder, m branch.Map) error {
	return enc.WriteBits(m.RawMap(), int(c))
}

// readAddress reads the iaddress_width - iaddress_lsb bit differential
// address field and shifts it left by iaddress_lsb, per spec.md §4.F.2.
// The result is signed; callers needing a zero-extended absolute address
// (Start/Trap payloads) convert explicitly.
func readAddress(dec *Decoder) (int64, error) {
	p := dec.Protocol
	width := p.IAddressWidth - p.IAddressLSB
	raw, err := dec.ReadBitsSigned(width)
	if err != nil {
		return 0, err
	}
	return raw << uint(p.IAddressLSB), nil
}

func writeAddress(enc *Encoder, addr int64) error {
	p := enc.Protocol
	width := p.IAddressWidth - p.IAddressLSB
	return enc.WriteBitsSigned(addr>>uint(p.IAddressLSB), width)
}

// readAbsoluteAddress reads the same field as readAddress but returns a
// zero-extended uint64, for Start/Trap sync payloads whose address is a
// full absolute value rather than a signed delta.
func readAbsoluteAddress(dec *Decoder) (uint64, error) {
	p := dec.Protocol
	width := p.IAddressWidth - p.IAddressLSB
	raw, err := dec.ReadBits(width)
	if err != nil {
		return 0, err
	}
	return raw << uint(p.IAddressLSB), nil
}

func writeAbsoluteAddress(enc *Encoder, addr uint64) error {
	p := enc.Protocol
	width := p.IAddressWidth - p.IAddressLSB
	return enc.WriteBits(addr>>uint(p.IAddressLSB), width)
}

// readImplicitReturn always reads both the differential report bit and
// the stack_depth-wide depth field; the depth is only semantically
// present when the report bit indicates a change, which is why the
// return type is an *int rather than a plain int.
func readImplicitReturn(dec *Decoder) (*int, error) {
	reported, err := dec.ReadDifferentialBit()
	if err != nil {
		return nil, err
	}
	depth, err := dec.ReadBits(dec.Protocol.StackDepth())
	if err != nil {
		return nil, err
	}
	if !reported {
		return nil, nil
	}
	d := int(depth)
	return &d, nil
}

func writeImplicitReturn(enc *Encoder, depth *int) error {
	if err := enc.WriteDifferentialBit(depth != nil); err != nil {
		return err
	}
	var d int
	if depth != nil {
		d = *depth
	}
	return enc.WriteBits(uint64(d), enc.Protocol.StackDepth())
}
