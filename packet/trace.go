package packet

// DecodeInstructionTrace reads the top-level 2-bit format selector and
// dispatches to the matching payload decoder, per spec.md §4.F.1.
// Format 0 additionally reads a 0- or 1-bit subformat selector
// (Protocol.Format0SubformatWidth); when that width is 0 the subformat
// is always BranchCount.
func DecodeInstructionTrace(dec *Decoder) (*InstructionTrace, error) {
	f, err := dec.ReadBits(2)
	if err != nil {
		return nil, err
	}
	t := &InstructionTrace{Format: Format(f)}
	switch Format(f) {
	case FormatExtension:
		t.Extension, err = decodeExtension(dec)
	case FormatBranch:
		t.Branch, err = decodeBranchPayload(dec)
	case FormatAddress:
		t.Address, err = decodeAddressInfo(dec)
	case FormatSync:
		t.Sync, err = decodeSynchronization(dec)
	default:
		return nil, &Error{Kind: ErrUnknownFmt, Value: int(f)}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func decodeExtension(dec *Decoder) (*ExtensionPayload, error) {
	sf := uint64(0)
	if dec.Protocol.Format0SubformatWidth > 0 {
		var err error
		sf, err = dec.ReadBits(dec.Protocol.Format0SubformatWidth)
		if err != nil {
			return nil, err
		}
	}
	e := &ExtensionPayload{Subformat: ExtensionSubformat(sf)}
	var err error
	switch ExtensionSubformat(sf) {
	case SubformatBranchCount:
		e.BranchCount, err = decodeBranchCountPayload(dec)
	case SubformatJumpTargetIndex:
		e.JumpTargetIndex, err = decodeJumpTargetIndexPayload(dec)
	default:
		return nil, &Error{Kind: ErrUnknownFmt, Value: int(sf)}
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// EncodeInstructionTrace is the bit-exact inverse of
// DecodeInstructionTrace.
func EncodeInstructionTrace(enc *Encoder, t *InstructionTrace) error {
	if err := enc.WriteBits(uint64(t.Format), 2); err != nil {
		return err
	}
	switch t.Format {
	case FormatExtension:
		return encodeExtension(enc, t.Extension)
	case FormatBranch:
		return t.Branch.encode(enc)
	case FormatAddress:
		return t.Address.encode(enc)
	case FormatSync:
		return t.Sync.encode(enc)
	}
	return &Error{Kind: ErrUnknownFmt, Value: int(t.Format)}
}

func encodeExtension(enc *Encoder, e *ExtensionPayload) error {
	if enc.Protocol.Format0SubformatWidth > 0 {
		if err := enc.WriteBits(uint64(e.Subformat), enc.Protocol.Format0SubformatWidth); err != nil {
			return err
		}
	}
	switch e.Subformat {
	case SubformatBranchCount:
		return e.BranchCount.encode(enc)
	case SubformatJumpTargetIndex:
		return e.JumpTargetIndex.encode(enc)
	}
	return &Error{Kind: ErrUnknownFmt, Value: int(e.Subformat)}
}
