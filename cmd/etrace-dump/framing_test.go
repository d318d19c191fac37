package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/packet"
)

func TestSplitFramesSMIRoundTrip(t *testing.T) {
	protocol := config.NewBuilder().Build()

	var buf []byte
	for _, payload := range [][]byte{{0x01, 0x02, 0x03}, {0xAA}} {
		framed, err := frameBytes(protocol, "smi", payload)
		require.NoError(t, err)
		buf = append(buf, framed...)
	}

	frames, err := splitFrames(protocol, "smi", buf)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, frames[0].Payload)
	require.Equal(t, []byte{0xAA}, frames[1].Payload)
	require.Equal(t, packet.TraceTypeInstruction, frames[0].TraceType)
}

func TestSplitFramesEncapRoundTrip(t *testing.T) {
	protocol := config.NewBuilder().Build()

	var buf []byte
	for _, payload := range [][]byte{{0x10, 0x20}, {0x30, 0x40, 0x50}} {
		framed, err := frameBytes(protocol, "encap", payload)
		require.NoError(t, err)
		buf = append(buf, framed...)
	}

	frames, err := splitFrames(protocol, "encap", buf)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, []byte{0x10, 0x20}, frames[0].Payload)
	require.Equal(t, []byte{0x30, 0x40, 0x50}, frames[1].Payload)
}

func TestSplitFramesRejectsUnknownFraming(t *testing.T) {
	protocol := config.NewBuilder().Build()
	_, err := splitFrames(protocol, "nonsense", []byte{0x00})
	require.Error(t, err)
}
