package main

import (
	"fmt"

	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/packet"
)

// frame is one outer-framed packet, stripped down to what decode/trace
// need regardless of whether it arrived via SMI or Encap framing.
type frame struct {
	Hart      uint64
	TraceType packet.TraceType
	Payload   []byte
	consumed  int // bytes of the original stream this frame occupied
}

// splitFrames walks buf as a sequence of outer-framed packets ("smi" or
// "encap"), returning each frame's inner payload bytes still to be
// decoded as an instruction-trace packet.
func splitFrames(protocol config.Protocol, framing string, buf []byte) ([]frame, error) {
	var frames []frame
	for len(buf) > 0 {
		dec := packet.NewDecoder(protocol, buf)
		switch framing {
		case "smi":
			smi, err := packet.DecodeSMI(dec, buf)
			if err != nil {
				return nil, err
			}
			consumed := dec.BytePos() + len(smi.Payload)
			frames = append(frames, frame{Hart: smi.Hart, TraceType: smi.TraceType, Payload: smi.Payload, consumed: consumed})
			buf = buf[consumed:]
		case "encap":
			enc, err := packet.DecodeEncap(dec, buf)
			if err != nil {
				return nil, err
			}
			consumed := dec.BytePos() + len(enc.Payload)
			if enc.Kind == packet.EncapNull {
				consumed = dec.BytePos()
			}
			frames = append(frames, frame{Hart: enc.SrcID, TraceType: enc.TraceType, Payload: enc.Payload, consumed: consumed})
			buf = buf[consumed:]
		default:
			return nil, fmt.Errorf("unknown framing %q (want smi or encap)", framing)
		}
	}
	return frames, nil
}
