package packet

// EncapKind distinguishes a null (idle/align) Encap packet from one
// carrying a trace payload.
type EncapKind int

const (
	// EncapNull is a length==0 packet: idle if !Extend, align if Extend.
	EncapNull EncapKind = iota
	EncapNormal
)

// EncapPacket is one RISC-V Unformatted Trace Data Encapsulation frame.
// Purely positional: decoding restricts the underlying slice to exactly
// Length bytes so that an inner payload decoder reading past its end
// sees sign-extension, and the outer framer still advances by exactly
// Length bytes.
type EncapPacket struct {
	Kind EncapKind

	Flow   uint8 // 2 bits, opaque flow indicator
	Extend bool  // only meaningful when Kind == EncapNull

	SrcID     uint64 // hart_index_width bits, only when Kind == EncapNormal
	Timestamp *uint64

	// TraceType is the trace_type_width-bit prefix inside the payload;
	// only instruction trace (0b10 as in SMI) has a decodable payload
	// type in this package.
	TraceType TraceType
	Payload   []byte
}

// DecodeEncap reads one Encap-framed packet from buf, starting at dec's
// current bit position. For a normal packet the returned Payload is
// exactly Length bytes, still prefixed by nothing (the trace_type_width
// bits have already been consumed and recorded in TraceType), ready to
// be handed to a fresh Decoder for inner-payload decoding.
func DecodeEncap(dec *Decoder, buf []byte) (*EncapPacket, error) {
	length, err := dec.ReadBits(5)
	if err != nil {
		return nil, err
	}
	flow, err := dec.ReadBits(2)
	if err != nil {
		return nil, err
	}
	extend, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}

	if length == 0 {
		return &EncapPacket{Kind: EncapNull, Flow: uint8(flow), Extend: extend}, nil
	}

	srcID, err := dec.ReadBits(dec.Protocol.HartIndexWidth)
	if err != nil {
		return nil, err
	}
	var timestamp *uint64
	if dec.Protocol.TimestampWidth > 0 {
		v, err := dec.ReadBits(8 * dec.Protocol.TimestampWidth)
		if err != nil {
			return nil, err
		}
		timestamp = &v
	}
	tt, err := dec.ReadBits(dec.Protocol.TraceTypeWidth)
	if err != nil {
		return nil, err
	}
	if TraceType(tt) != TraceTypeInstruction && TraceType(tt) != TraceTypeData {
		return nil, &Error{Kind: ErrUnknownTraceType, Value: int(tt)}
	}

	dec.AdvanceToByteBoundary()
	start := dec.BytePos()
	end := start + int(length)
	if end > len(buf) {
		return nil, &Error{Kind: ErrInsufficientData, Need: end - len(buf)}
	}
	return &EncapPacket{
		Kind:      EncapNormal,
		Flow:      uint8(flow),
		SrcID:     srcID,
		Timestamp: timestamp,
		TraceType: TraceType(tt),
		Payload:   buf[start:end],
	}, nil
}

// EncodeEncap is the bit-exact inverse of DecodeEncap. For a normal
// packet the Length field is derived from len(p.Payload); callers build
// Payload by encoding the inner payload through a separate Encoder
// first.
func EncodeEncap(enc *Encoder, p *EncapPacket) ([]byte, error) {
	if p.Kind == EncapNull {
		if err := enc.WriteBits(0, 5); err != nil {
			return nil, err
		}
		if err := enc.WriteBits(uint64(p.Flow), 2); err != nil {
			return nil, err
		}
		if err := enc.WriteBit(p.Extend); err != nil {
			return nil, err
		}
		return enc.Bytes(), nil
	}

	if len(p.Payload) > maxSMIPayloadLen {
		return nil, &Error{Kind: ErrPayloadTooBig, Value: len(p.Payload)}
	}
	if err := enc.WriteBits(uint64(len(p.Payload)), 5); err != nil {
		return nil, err
	}
	if err := enc.WriteBits(uint64(p.Flow), 2); err != nil {
		return nil, err
	}
	if err := enc.WriteBit(false); err != nil {
		return nil, err
	}
	if err := enc.WriteBits(p.SrcID, enc.Protocol.HartIndexWidth); err != nil {
		return nil, err
	}
	if enc.Protocol.TimestampWidth > 0 {
		var v uint64
		if p.Timestamp != nil {
			v = *p.Timestamp
		}
		if err := enc.WriteBits(v, 8*enc.Protocol.TimestampWidth); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteBits(uint64(p.TraceType), enc.Protocol.TraceTypeWidth); err != nil {
		return nil, err
	}
	if err := enc.AdvanceToByteBoundary(); err != nil {
		return nil, err
	}
	return append(enc.Bytes(), p.Payload...), nil
}
