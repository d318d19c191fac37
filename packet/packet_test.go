package packet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riscv-trace/etrace/branch"
	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/types"
)

func roundTrip(t *testing.T, p config.Protocol, in *InstructionTrace) *InstructionTrace {
	t.Helper()
	enc := NewEncoder(p)
	require.NoError(t, EncodeInstructionTrace(enc, in))
	require.NoError(t, enc.AdvanceToByteBoundary())
	dec := NewDecoder(p, enc.Bytes())
	out, err := DecodeInstructionTrace(dec)
	require.NoError(t, err)
	return out
}

func TestAddressPayloadRoundTrip(t *testing.T) {
	p := config.NewBuilder().ReturnStackSize(2).Build() // 3-bit depth field
	depth := 3
	in := &InstructionTrace{
		Format: FormatAddress,
		Address: &AddressInfo{
			Address:  -128,
			Notify:   true,
			Updiscon: false,
			IRDepth:  &depth,
		},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, FormatAddress, out.Format)
	require.Equal(t, int64(-128), out.Address.Address)
	require.True(t, out.Address.Notify)
	require.False(t, out.Address.Updiscon)
	require.NotNil(t, out.Address.IRDepth)
	require.Equal(t, 3, *out.Address.IRDepth)
}

func TestBranchPayloadRoundTripWithAddress(t *testing.T) {
	p := config.NewBuilder().Build()
	bm := branch.FromRaw(0b0101, 4)
	in := &InstructionTrace{
		Format: FormatBranch,
		Branch: &BranchPayload{
			BranchMap: bm,
			Address:   &AddressInfo{Address: 64},
		},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, FormatBranch, out.Format)
	require.Equal(t, 4, out.Branch.BranchMap.Count())
	require.Equal(t, uint64(0b0101), out.Branch.BranchMap.RawMap())
	require.NotNil(t, out.Branch.Address)
	require.Equal(t, int64(64), out.Branch.Address.Address)
}

func TestBranchPayloadRoundTripFullMap(t *testing.T) {
	p := config.NewBuilder().Build()
	bm := branch.FromRaw(1<<30, 31)
	in := &InstructionTrace{
		Format: FormatBranch,
		Branch: &BranchPayload{BranchMap: bm, Address: nil},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, FormatBranch, out.Format)
	require.Nil(t, out.Branch.Address)
	require.Equal(t, 31, out.Branch.BranchMap.Count())
	require.Equal(t, uint64(1<<30), out.Branch.BranchMap.RawMap())
}

func TestExtensionBranchCountRoundTrip(t *testing.T) {
	p := config.NewBuilder().Build()
	in := &InstructionTrace{
		Format: FormatExtension,
		Extension: &ExtensionPayload{
			Subformat: SubformatBranchCount,
			BranchCount: &BranchCountPayload{
				Count:     100,
				BranchFmt: BranchFmtAddr,
				Address:   &AddressInfo{Address: 16},
			},
		},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, FormatExtension, out.Format)
	require.Equal(t, SubformatBranchCount, out.Extension.Subformat)
	require.Equal(t, uint32(100), out.Extension.BranchCount.Count)
	require.Equal(t, BranchFmtAddr, out.Extension.BranchCount.BranchFmt)
	require.Equal(t, int64(16), out.Extension.BranchCount.Address.Address)
}

func TestExtensionJumpTargetIndexRoundTrip(t *testing.T) {
	p := config.NewBuilder().CacheSize(4).Build()
	bm := branch.FromRaw(0b101, 3)
	in := &InstructionTrace{
		Format: FormatExtension,
		Extension: &ExtensionPayload{
			Subformat: SubformatJumpTargetIndex,
			JumpTargetIndex: &JumpTargetIndexPayload{
				Index:     9,
				BranchMap: bm,
			},
		},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, SubformatJumpTargetIndex, out.Extension.Subformat)
	require.Equal(t, 9, out.Extension.JumpTargetIndex.Index)
	require.Equal(t, 3, out.Extension.JumpTargetIndex.BranchMap.Count())
	require.Nil(t, out.Extension.JumpTargetIndex.IRDepth)
}

func TestSyncStartRoundTrip(t *testing.T) {
	p := config.NewBuilder().ContextWidth(8).Build()
	ctxID := uint64(7)
	in := &InstructionTrace{
		Format: FormatSync,
		Sync: &Synchronization{
			Subformat: SyncStart,
			Start: &StartPayload{
				BranchNotTaken: true,
				Context:        types.Context{Privilege: types.PrivilegeSupervisor, ContextID: &ctxID},
				Address:        0x80001000,
			},
		},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, SyncStart, out.Sync.Subformat)
	require.True(t, out.Sync.Start.BranchNotTaken)
	require.Equal(t, types.PrivilegeSupervisor, out.Sync.Start.Context.Privilege)
	require.Equal(t, uint64(7), *out.Sync.Start.Context.ContextID)
	require.Equal(t, uint64(0x80001000), out.Sync.Start.Address)
}

func TestSyncTrapRoundTripInterrupt(t *testing.T) {
	p := config.NewBuilder().Build()
	in := &InstructionTrace{
		Format: FormatSync,
		Sync: &Synchronization{
			Subformat: SyncTrap,
			Trap: &TrapPayload{
				Context: types.Context{Privilege: types.PrivilegeMachine},
				Thaddr:  true,
				Address: 0x80000100,
				Info:    types.TrapInfo{Ecause: 11, Interrupt: true},
			},
		},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, SyncTrap, out.Sync.Subformat)
	require.True(t, out.Sync.Trap.Thaddr)
	require.Equal(t, uint64(0x80000100), out.Sync.Trap.Address)
	require.Equal(t, uint64(11), out.Sync.Trap.Info.Ecause)
	require.True(t, out.Sync.Trap.Info.Interrupt)
	require.Nil(t, out.Sync.Trap.Info.Tval)
}

func TestSyncTrapRoundTripException(t *testing.T) {
	p := config.NewBuilder().Build()
	tval := uint64(0xdeadbeef)
	in := &InstructionTrace{
		Format: FormatSync,
		Sync: &Synchronization{
			Subformat: SyncTrap,
			Trap: &TrapPayload{
				Context: types.Context{Privilege: types.PrivilegeUser},
				Thaddr:  false,
				Address: 0,
				Info:    types.TrapInfo{Ecause: 2, Interrupt: false, Tval: &tval},
			},
		},
	}
	out := roundTrip(t, p, in)
	require.False(t, out.Sync.Trap.Thaddr)
	require.Equal(t, uint64(2), out.Sync.Trap.Info.Ecause)
	require.False(t, out.Sync.Trap.Info.Interrupt)
	require.NotNil(t, out.Sync.Trap.Info.Tval)
	require.Equal(t, tval, *out.Sync.Trap.Info.Tval)
}

func TestSyncSupportRoundTrip(t *testing.T) {
	p := config.NewBuilder().Build()
	in := &InstructionTrace{
		Format: FormatSync,
		Sync: &Synchronization{
			Subformat: SyncSupport,
			SupportPkt: &SupportPayload{
				IEnable:     true,
				EncoderMode: EncoderModeBranchTrace,
				QualStatus:  QualEndedNtr,
				IOptions:    0b10101,
				DEnable:     false,
				DLoss:       true,
				DOptions:    0,
			},
		},
	}
	out := roundTrip(t, p, in)
	require.Equal(t, SyncSupport, out.Sync.Subformat)
	require.True(t, out.Sync.SupportPkt.IEnable)
	require.Equal(t, QualEndedNtr, out.Sync.SupportPkt.QualStatus)
	require.Equal(t, uint64(0b10101), out.Sync.SupportPkt.IOptions)
	require.True(t, out.Sync.SupportPkt.DLoss)
}

func TestSMIRoundTrip(t *testing.T) {
	p := config.NewBuilder().HartIndexWidth(8).Build()

	innerEnc := NewEncoder(p)
	inner := &InstructionTrace{
		Format: FormatSync,
		Sync: &Synchronization{
			Subformat: SyncStart,
			Start: &StartPayload{
				Context: types.Context{Privilege: types.PrivilegeMachine},
				Address: 536937572,
			},
		},
	}
	require.NoError(t, EncodeInstructionTrace(innerEnc, inner))
	require.NoError(t, innerEnc.AdvanceToByteBoundary())

	tag := uint16(0x8D)
	smi := &SMIPacket{
		TraceType: TraceTypeInstruction,
		TimeTag:   &tag,
		Hart:      0x31,
		Payload:   innerEnc.Bytes(),
	}
	enc := NewEncoder(p)
	buf, err := EncodeSMI(enc, smi)
	require.NoError(t, err)

	dec := NewDecoder(p, buf)
	out, err := DecodeSMI(dec, buf)
	require.NoError(t, err)
	require.Equal(t, TraceTypeInstruction, out.TraceType)
	require.NotNil(t, out.TimeTag)
	require.Equal(t, uint16(0x8D), *out.TimeTag)
	require.Equal(t, uint64(0x31), out.Hart)

	innerDec := NewDecoder(p, out.Payload)
	decoded, err := DecodeInstructionTrace(innerDec)
	require.NoError(t, err)
	require.Equal(t, FormatSync, decoded.Format)
	require.Equal(t, SyncStart, decoded.Sync.Subformat)
	require.Equal(t, types.PrivilegeMachine, decoded.Sync.Start.Context.Privilege)
	require.Equal(t, uint64(536937572), decoded.Sync.Start.Address)
}

// TestEncapNormalRoundTrip exercises the framing scenario described in
// spec.md §8: an Encap normal packet carrying a Start payload, with a
// byte-wide timestamp field and a privilege/context-bearing Context.
func TestEncapNormalRoundTrip(t *testing.T) {
	p := config.NewBuilder().HartIndexWidth(8).TimestampWidth(1).ContextWidth(8).Build()

	ctxID := uint64(0)
	innerEnc := NewEncoder(p)
	inner := &InstructionTrace{
		Format: FormatSync,
		Sync: &Synchronization{
			Subformat: SyncStart,
			Start: &StartPayload{
				BranchNotTaken: false,
				Context:        types.Context{Privilege: types.PrivilegeMachine, ContextID: &ctxID},
				Address:        536937572,
			},
		},
	}
	require.NoError(t, EncodeInstructionTrace(innerEnc, inner))
	require.NoError(t, innerEnc.AdvanceToByteBoundary())

	ts := uint64(0x8D)
	encapIn := &EncapPacket{
		Kind:      EncapNormal,
		Flow:      2,
		SrcID:     0x31,
		Timestamp: &ts,
		TraceType: TraceTypeInstruction,
		Payload:   innerEnc.Bytes(),
	}
	enc := NewEncoder(p)
	buf, err := EncodeEncap(enc, encapIn)
	require.NoError(t, err)

	dec := NewDecoder(p, buf)
	out, err := DecodeEncap(dec, buf)
	require.NoError(t, err)
	require.Equal(t, EncapNormal, out.Kind)
	require.Equal(t, uint8(2), out.Flow)
	require.Equal(t, uint64(0x31), out.SrcID)
	require.NotNil(t, out.Timestamp)
	require.Equal(t, uint64(0x8D), *out.Timestamp)
	require.Equal(t, TraceTypeInstruction, out.TraceType)

	innerDec := NewDecoder(p, out.Payload)
	decoded, err := DecodeInstructionTrace(innerDec)
	require.NoError(t, err)
	require.Equal(t, SyncStart, decoded.Sync.Subformat)
	require.Equal(t, types.PrivilegeMachine, decoded.Sync.Start.Context.Privilege)
	require.Equal(t, uint64(0), *decoded.Sync.Start.Context.ContextID)
	require.Equal(t, uint64(536937572), decoded.Sync.Start.Address)
}

func TestEncapNullPacket(t *testing.T) {
	p := config.NewBuilder().Build()
	enc := NewEncoder(p)
	buf, err := EncodeEncap(enc, &EncapPacket{Kind: EncapNull, Flow: 1, Extend: true})
	require.NoError(t, err)

	dec := NewDecoder(p, buf)
	out, err := DecodeEncap(dec, buf)
	require.NoError(t, err)
	require.Equal(t, EncapNull, out.Kind)
	require.Equal(t, uint8(1), out.Flow)
	require.True(t, out.Extend)
}

func TestDecodeEncapInsufficientData(t *testing.T) {
	p := config.NewBuilder().HartIndexWidth(8).Build()
	enc := NewEncoder(p)
	buf, err := EncodeEncap(enc, &EncapPacket{
		Kind:      EncapNormal,
		SrcID:     1,
		TraceType: TraceTypeInstruction,
		Payload:   []byte{0x01, 0x02, 0x03, 0x04},
	})
	require.NoError(t, err)

	truncated := buf[:len(buf)-2]
	dec := NewDecoder(p, truncated)
	_, err = DecodeEncap(dec, truncated)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrInsufficientData, perr.Kind)
}

func TestUnknownPrivilegeRejected(t *testing.T) {
	p := config.NewBuilder().Build()
	enc := NewEncoder(p)
	require.NoError(t, enc.WriteBits(uint64(FormatSync), 2))
	require.NoError(t, enc.WriteBits(uint64(SyncContext), 2))
	require.NoError(t, enc.WriteBits(0b10, 2)) // reserved privilege value
	require.NoError(t, enc.AdvanceToByteBoundary())

	dec := NewDecoder(p, enc.Bytes())
	_, err := DecodeInstructionTrace(dec)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrUnknownPrivilege, perr.Kind)
}
