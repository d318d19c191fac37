package packet

// TraceType selects between instruction and data trace payloads in the
// SMI outer header. Data trace is a protocol Non-goal: DecodeSMI
// successfully parses the header but callers must not attempt to decode
// a Data payload body (this package has no DataTrace payload type).
type TraceType int

const (
	TraceTypeInstruction TraceType = 0b10
	TraceTypeData        TraceType = 0b11
)

// SMIPacket is the outer System Memory Interface framing: a fixed header
// followed by a byte-aligned payload of exactly PayloadLen bytes.
type SMIPacket struct {
	TraceType TraceType
	TimeTag   *uint16
	Hart      uint64
	Payload   []byte
}

// DecodeSMI reads one SMI-framed packet. The returned Payload slice is
// exactly PayloadLen bytes, ready to be handed to a fresh Decoder (or
// DecodeInstructionTrace via NewDecoder) for inner-payload decoding.
func DecodeSMI(dec *Decoder, buf []byte) (*SMIPacket, error) {
	payloadLen, err := dec.ReadBits(5)
	if err != nil {
		return nil, err
	}
	tt, err := dec.ReadBits(2)
	if err != nil {
		return nil, err
	}
	if TraceType(tt) != TraceTypeInstruction && TraceType(tt) != TraceTypeData {
		return nil, &Error{Kind: ErrUnknownTraceType, Value: int(tt)}
	}
	hasTime, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	var timeTag *uint16
	if hasTime {
		v, err := dec.ReadBits(16)
		if err != nil {
			return nil, err
		}
		tv := uint16(v)
		timeTag = &tv
	}
	hart, err := dec.ReadBits(dec.Protocol.HartIndexWidth)
	if err != nil {
		return nil, err
	}
	dec.AdvanceToByteBoundary()

	start := dec.BytePos()
	end := start + int(payloadLen)
	if end > len(buf) {
		return nil, &Error{Kind: ErrInsufficientData, Need: end - len(buf)}
	}
	return &SMIPacket{
		TraceType: TraceType(tt),
		TimeTag:   timeTag,
		Hart:      hart,
		Payload:   buf[start:end],
	}, nil
}

// maxSMIPayloadLen is the largest value the 5-bit PayloadLen field can
// hold.
const maxSMIPayloadLen = 1<<5 - 1

// EncodeSMI writes p's full wire representation (header plus the
// already-encoded inner payload bytes) and returns it. enc supplies the
// Protocol (for HartIndexWidth) and the bit writer for the header; the
// inner payload must already be encoded into p.Payload by the caller
// (typically via a separate Encoder over EncodeInstructionTrace).
func EncodeSMI(enc *Encoder, p *SMIPacket) ([]byte, error) {
	if len(p.Payload) > maxSMIPayloadLen {
		return nil, &Error{Kind: ErrPayloadTooBig, Value: len(p.Payload)}
	}
	if err := enc.WriteBits(uint64(len(p.Payload)), 5); err != nil {
		return nil, err
	}
	if err := enc.WriteBits(uint64(p.TraceType), 2); err != nil {
		return nil, err
	}
	if err := enc.WriteBit(p.TimeTag != nil); err != nil {
		return nil, err
	}
	if p.TimeTag != nil {
		if err := enc.WriteBits(uint64(*p.TimeTag), 16); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteBits(p.Hart, enc.Protocol.HartIndexWidth); err != nil {
		return nil, err
	}
	if err := enc.AdvanceToByteBoundary(); err != nil {
		return nil, err
	}
	return append(enc.Bytes(), p.Payload...), nil
}
