package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/generator"
	"github.com/riscv-trace/etrace/insn"
	"github.com/riscv-trace/etrace/packet"
	"github.com/riscv-trace/etrace/types"
)

// genStep is a minimal generator.Step used to drive the encode/frame/
// split/decode pipeline this command's generate and decode subcommands
// each perform one half of.
type genStep struct {
	addr uint64
	priv types.Privilege
}

func (s genStep) Address() uint64 { return s.addr }
func (s genStep) Kind() generator.Kind {
	return generator.Kind{Tag: generator.KindRetirement, InsnSize: insn.Normal}
}
func (s genStep) CType() generator.CType { return generator.CTypeUnreported }
func (s genStep) Context() types.Context { return types.Context{Privilege: s.priv} }
func (s genStep) Timestamp() *uint64     { return nil }

// TestGeneratedStreamSplitsAndDecodes verifies a stream produced the way
// runGenerate builds one (Generator payloads, each encoded and framed)
// survives being split back into frames and decoded, the way runDecode
// consumes it.
func TestGeneratedStreamSplitsAndDecodes(t *testing.T) {
	protocol := config.NewBuilder().Build()
	gen := generator.NewBuilder().WithProtocol(protocol).Build()

	steps := []genStep{
		{addr: 0x80000000, priv: types.PrivilegeMachine},
		{addr: 0x80000004, priv: types.PrivilegeMachine},
		{addr: 0x80000008, priv: types.PrivilegeMachine},
	}

	var payloads []*packet.InstructionTrace
	for _, s := range steps {
		payload, err := gen.ProcessStep(s, nil)
		require.NoError(t, err)
		if payload != nil {
			payloads = append(payloads, payload)
		}
	}
	drain := gen.EndQualification(false)
	for {
		payload, ok, err := drain.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		payloads = append(payloads, payload)
	}
	require.NotEmpty(t, payloads)

	var stream []byte
	for _, payload := range payloads {
		enc := packet.NewEncoder(protocol)
		require.NoError(t, packet.EncodeInstructionTrace(enc, payload))
		require.NoError(t, enc.AdvanceToByteBoundary())
		framed, err := frameBytes(protocol, "encap", enc.Bytes())
		require.NoError(t, err)
		stream = append(stream, framed...)
	}

	frames, err := splitFrames(protocol, "encap", stream)
	require.NoError(t, err)
	require.Len(t, frames, len(payloads))

	for i, fr := range frames {
		dec := packet.NewDecoder(protocol, fr.Payload)
		out, err := packet.DecodeInstructionTrace(dec)
		require.NoError(t, err)
		require.Equal(t, payloads[i].Format, out.Format)
	}
}
