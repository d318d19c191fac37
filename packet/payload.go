package packet

import "github.com/riscv-trace/etrace/branch"

// InstructionTrace is the decoded form of any instruction-trace payload
// (the four top-level formats of spec.md §3.5). Exactly one of the Extension,
// Branch, Address, or Sync fields is meaningful, selected by Format.
type InstructionTrace struct {
	Format        Format
	Extension     *ExtensionPayload
	Branch        *BranchPayload
	Address       *AddressInfo
	Sync          *Synchronization
}

// Format is the 2-bit top-level payload format selector.
type Format int

const (
	FormatExtension Format = iota
	FormatBranch
	FormatAddress
	FormatSync
)

// GetAddressInfo returns the AddressInfo embedded in this payload, if
// any, mirroring the reference implementation's accessor used by the
// tracer to locate the reported address regardless of which format
// carried it.
func (t InstructionTrace) GetAddressInfo() *AddressInfo {
	switch t.Format {
	case FormatAddress:
		return t.Address
	case FormatBranch:
		if t.Branch != nil {
			return t.Branch.Address
		}
	case FormatExtension:
		if t.Extension != nil && t.Extension.BranchCount != nil {
			return t.Extension.BranchCount.Address
		}
	}
	return nil
}

// ImplicitReturnDepth returns the implicit-return depth reported by
// whichever field of this payload carries it, or nil if none does.
func (t InstructionTrace) ImplicitReturnDepth() *int {
	switch t.Format {
	case FormatAddress:
		return t.Address.IRDepth
	case FormatBranch:
		if t.Branch != nil && t.Branch.Address != nil {
			return t.Branch.Address.IRDepth
		}
	case FormatExtension:
		if t.Extension == nil {
			return nil
		}
		if t.Extension.BranchCount != nil && t.Extension.BranchCount.Address != nil {
			return t.Extension.BranchCount.Address.IRDepth
		}
		if t.Extension.JumpTargetIndex != nil {
			return t.Extension.JumpTargetIndex.IRDepth
		}
	}
	return nil
}

// ExtensionSubformat selects between the two Format 0 payload kinds.
type ExtensionSubformat int

const (
	SubformatBranchCount ExtensionSubformat = iota
	SubformatJumpTargetIndex
)

// ExtensionPayload is a Format 0 packet: exactly one of BranchCount or
// JumpTargetIndex is set.
type ExtensionPayload struct {
	Subformat       ExtensionSubformat
	BranchCount     *BranchCountPayload
	JumpTargetIndex *JumpTargetIndexPayload
}

// BranchFmt determines the layout of a BranchCountPayload.
type BranchFmt int

const (
	BranchFmtNoAddr   BranchFmt = 0b00
	BranchFmtAddr     BranchFmt = 0b10
	BranchFmtAddrFail BranchFmt = 0b11
)

func decodeBranchFmt(dec *Decoder) (BranchFmt, error) {
	v, err := dec.ReadBits(2)
	if err != nil {
		return 0, err
	}
	switch v {
	case 0b00:
		return BranchFmtNoAddr, nil
	case 0b01:
		return 0, &Error{Kind: ErrBadBranchFmt}
	case 0b10:
		return BranchFmtAddr, nil
	case 0b11:
		return BranchFmtAddrFail, nil
	}
	return 0, &Error{Kind: ErrBadBranchFmt}
}

func (f BranchFmt) encode(enc *Encoder) error {
	var v uint64
	switch f {
	case BranchFmtNoAddr:
		v = 0b00
	case BranchFmtAddr:
		v = 0b10
	case BranchFmtAddrFail:
		v = 0b11
	}
	return enc.WriteBits(v, 2)
}

// BranchCountPayload is a Format 0, subformat 0 packet: reports the
// number of correctly predicted branches since the last packet.
type BranchCountPayload struct {
	// Count of correctly predicted branches, stored on the wire as
	// count-31 in a 32-bit field.
	Count       uint32
	BranchFmt   BranchFmt
	Address     *AddressInfo
}

func decodeBranchCountPayload(dec *Decoder) (*BranchCountPayload, error) {
	raw, err := dec.ReadBits(32)
	if err != nil {
		return nil, err
	}
	fmtVal, err := decodeBranchFmt(dec)
	if err != nil {
		return nil, err
	}
	var addr *AddressInfo
	if fmtVal != BranchFmtNoAddr {
		addr, err = decodeAddressInfo(dec)
		if err != nil {
			return nil, err
		}
	}
	return &BranchCountPayload{Count: uint32(raw) + 31, BranchFmt: fmtVal, Address: addr}, nil
}

func (p *BranchCountPayload) encode(enc *Encoder) error {
	if err := enc.WriteBits(uint64(p.Count-31), 32); err != nil {
		return err
	}
	if err := p.BranchFmt.encode(enc); err != nil {
		return err
	}
	if p.BranchFmt != BranchFmtNoAddr {
		return p.Address.encode(enc)
	}
	return nil
}

// JumpTargetIndexPayload is a Format 0, subformat 1 packet. The
// jump-target cache feature itself is a rejected (Non-goal) feature; the
// field is still decoded/encoded since it is present on the wire.
type JumpTargetIndexPayload struct {
	Index     int
	BranchMap branch.Map
	IRDepth   *int
}

func decodeJumpTargetIndexPayload(dec *Decoder) (*JumpTargetIndexPayload, error) {
	idx, err := dec.ReadBits(dec.Protocol.CacheSize)
	if err != nil {
		return nil, err
	}
	cnt, err := dec.ReadBits(5)
	if err != nil {
		return nil, err
	}
	bm, err := BranchCount(cnt).ReadBranchMap(dec)
	if err != nil {
		return nil, err
	}
	ird, err := readImplicitReturn(dec)
	if err != nil {
		return nil, err
	}
	return &JumpTargetIndexPayload{Index: int(idx), BranchMap: bm, IRDepth: ird}, nil
}

func (p *JumpTargetIndexPayload) encode(enc *Encoder) error {
	if err := enc.WriteBits(uint64(p.Index), enc.Protocol.CacheSize); err != nil {
		return err
	}
	if err := enc.WriteBits(uint64(p.BranchMap.Count()), 5); err != nil {
		return err
	}
	if err := BranchCount(p.BranchMap.Count()).WriteBranchMap(enc, p.BranchMap); err != nil {
		return err
	}
	return writeImplicitReturn(enc, p.IRDepth)
}

// BranchPayload is a Format 1 packet.
type BranchPayload struct {
	BranchMap branch.Map
	Address   *AddressInfo // nil when count==0 (full map, no address)
}

func decodeBranchPayload(dec *Decoder) (*BranchPayload, error) {
	cnt, err := dec.ReadBits(5)
	if err != nil {
		return nil, err
	}
	count := BranchCount(cnt)
	if count.IsZero() {
		bm, err := FullBranchCount.ReadBranchMap(dec)
		if err != nil {
			return nil, err
		}
		return &BranchPayload{BranchMap: bm, Address: nil}, nil
	}
	bm, err := count.ReadBranchMap(dec)
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressInfo(dec)
	if err != nil {
		return nil, err
	}
	return &BranchPayload{BranchMap: bm, Address: addr}, nil
}

func (p *BranchPayload) encode(enc *Encoder) error {
	count := p.BranchMap.Count()
	if p.Address == nil {
		if err := enc.WriteBits(0, 5); err != nil {
			return err
		}
		return FullBranchCount.WriteBranchMap(enc, p.BranchMap)
	}
	if err := enc.WriteBits(uint64(count), 5); err != nil {
		return err
	}
	if err := BranchCount(count).WriteBranchMap(enc, p.BranchMap); err != nil {
		return err
	}
	return p.Address.encode(enc)
}

// AddressInfo is a Format 2 packet, and also embeds in Format 0/1
// payloads that carry an address.
type AddressInfo struct {
	// Address is the differential (or, in Full mode, absolute) signed
	// instruction address.
	Address int64

	// Notify indicates this packet's target is an observation point
	// requested by a trigger, not necessarily a jump target.
	Notify bool

	// Updiscon indicates the reported instruction follows an
	// uninferable discontinuity and immediately precedes a sync event.
	Updiscon bool

	IRDepth *int
}

func decodeAddressInfo(dec *Decoder) (*AddressInfo, error) {
	addr, err := readAddress(dec)
	if err != nil {
		return nil, err
	}
	notify, err := dec.ReadDifferentialBit()
	if err != nil {
		return nil, err
	}
	updiscon, err := dec.ReadDifferentialBit()
	if err != nil {
		return nil, err
	}
	ird, err := readImplicitReturn(dec)
	if err != nil {
		return nil, err
	}
	return &AddressInfo{Address: addr, Notify: notify, Updiscon: updiscon, IRDepth: ird}, nil
}

func (a *AddressInfo) encode(enc *Encoder) error {
	if err := writeAddress(enc, a.Address); err != nil {
		return err
	}
	if err := enc.WriteDifferentialBit(a.Notify); err != nil {
		return err
	}
	if err := enc.WriteDifferentialBit(a.Updiscon); err != nil {
		return err
	}
	return writeImplicitReturn(enc, a.IRDepth)
}
