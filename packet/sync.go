package packet

import "github.com/riscv-trace/etrace/types"

// SyncSubformat is the 2-bit Format 3 subformat selector.
type SyncSubformat int

const (
	SyncStart SyncSubformat = iota
	SyncTrap
	SyncContext
	SyncSupport
)

// Synchronization is a Format 3 packet: exactly one of Start, Trap,
// Context, or SupportPkt is set, selected by Subformat.
type Synchronization struct {
	Subformat  SyncSubformat
	Start      *StartPayload
	Trap       *TrapPayload
	Context    *ContextPayload
	SupportPkt *SupportPayload
}

// StartPayload (Format 3, subformat 0) re-establishes the tracer's PC
// without reference to prior packets.
type StartPayload struct {
	BranchNotTaken bool
	Context        types.Context
	Address        uint64 // full address, zero-extended after shift
}

func decodeStart(dec *Decoder) (*StartPayload, error) {
	branchNT, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	ctx, err := decodeContext(dec)
	if err != nil {
		return nil, err
	}
	addr, err := readAbsoluteAddress(dec)
	if err != nil {
		return nil, err
	}
	return &StartPayload{BranchNotTaken: branchNT, Context: ctx, Address: addr}, nil
}

func (p *StartPayload) encode(enc *Encoder) error {
	if err := enc.WriteBit(p.BranchNotTaken); err != nil {
		return err
	}
	if err := encodeContext(enc, p.Context); err != nil {
		return err
	}
	return writeAbsoluteAddress(enc, p.Address)
}

// TrapPayload (Format 3, subformat 1) reports an exception, interrupt,
// or privilege change.
type TrapPayload struct {
	BranchNotTaken bool
	Context        types.Context
	Thaddr         bool // a trap-handler-entry address follows
	Address        uint64
	Info           types.TrapInfo
}

func decodeTrap(dec *Decoder) (*TrapPayload, error) {
	branchNT, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	ctx, err := decodeContext(dec)
	if err != nil {
		return nil, err
	}
	thaddr, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	addr, err := readAbsoluteAddress(dec)
	if err != nil {
		return nil, err
	}
	ecause, err := dec.ReadBits(dec.Protocol.EcauseWidth)
	if err != nil {
		return nil, err
	}
	interrupt, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	var tval *uint64
	if !interrupt {
		v, err := dec.ReadBits(dec.Protocol.IAddressWidth)
		if err != nil {
			return nil, err
		}
		tval = &v
	}
	return &TrapPayload{
		BranchNotTaken: branchNT,
		Context:        ctx,
		Thaddr:         thaddr,
		Address:        addr,
		Info:           types.TrapInfo{Ecause: ecause, Interrupt: interrupt, Tval: tval},
	}, nil
}

func (p *TrapPayload) encode(enc *Encoder) error {
	if err := enc.WriteBit(p.BranchNotTaken); err != nil {
		return err
	}
	if err := encodeContext(enc, p.Context); err != nil {
		return err
	}
	if err := enc.WriteBit(p.Thaddr); err != nil {
		return err
	}
	if err := writeAbsoluteAddress(enc, p.Address); err != nil {
		return err
	}
	if err := enc.WriteBits(p.Info.Ecause, enc.Protocol.EcauseWidth); err != nil {
		return err
	}
	if err := enc.WriteBit(p.Info.Interrupt); err != nil {
		return err
	}
	if !p.Info.Interrupt {
		var v uint64
		if p.Info.Tval != nil {
			v = *p.Info.Tval
		}
		return enc.WriteBits(v, enc.Protocol.IAddressWidth)
	}
	return nil
}

// ContextPayload (Format 3, subformat 2) reports a privilege/time/context
// change without repositioning the PC.
type ContextPayload struct {
	Context types.Context
}

func decodeContextPayload(dec *Decoder) (*ContextPayload, error) {
	ctx, err := decodeContext(dec)
	if err != nil {
		return nil, err
	}
	return &ContextPayload{Context: ctx}, nil
}

func (p *ContextPayload) encode(enc *Encoder) error {
	return encodeContext(enc, p.Context)
}

// decodeContext reads the shared {privilege, time?, context?} tuple
// embedded in Start/Trap/Context payloads.
func decodeContext(dec *Decoder) (types.Context, error) {
	priv, err := dec.ReadBits(dec.Protocol.PrivilegeWidth)
	if err != nil {
		return types.Context{}, err
	}
	if !types.Privilege(priv).Valid() {
		return types.Context{}, &Error{Kind: ErrUnknownPrivilege, Value: int(priv)}
	}
	var timeVal *uint64
	if dec.Protocol.TimeWidth > 0 {
		v, err := dec.ReadBits(dec.Protocol.TimeWidth)
		if err != nil {
			return types.Context{}, err
		}
		timeVal = &v
	}
	var ctxVal *uint64
	if dec.Protocol.ContextWidth > 0 {
		v, err := dec.ReadBits(dec.Protocol.ContextWidth)
		if err != nil {
			return types.Context{}, err
		}
		ctxVal = &v
	}
	return types.Context{Privilege: types.Privilege(priv), Time: timeVal, ContextID: ctxVal}, nil
}

func encodeContext(enc *Encoder, c types.Context) error {
	if err := enc.WriteBits(uint64(c.Privilege), enc.Protocol.PrivilegeWidth); err != nil {
		return err
	}
	if enc.Protocol.TimeWidth > 0 {
		var v uint64
		if c.Time != nil {
			v = *c.Time
		}
		if err := enc.WriteBits(v, enc.Protocol.TimeWidth); err != nil {
			return err
		}
	}
	if enc.Protocol.ContextWidth > 0 {
		var v uint64
		if c.ContextID != nil {
			v = *c.ContextID
		}
		if err := enc.WriteBits(v, enc.Protocol.ContextWidth); err != nil {
			return err
		}
	}
	return nil
}

// QualStatus reports why tracing stopped/changed at a Support packet.
type QualStatus int

const (
	QualNoChange QualStatus = iota
	QualEndedRep
	QualTraceLost
	QualEndedNtr
)

// EncoderMode selects the encoder's trace mode. Only BranchTrace (0) is
// a valid value in this protocol version.
type EncoderMode int

const EncoderModeBranchTrace EncoderMode = 0

// SupportPayload (Format 3, subformat 3) reports trace-unit option state
// and qualification transitions.
type SupportPayload struct {
	IEnable     bool
	EncoderMode EncoderMode
	QualStatus  QualStatus
	IOptions    uint64
	DEnable     bool
	DLoss       bool
	DOptions    uint64
}

func decodeSupport(dec *Decoder) (*SupportPayload, error) {
	ienable, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	modeWidth := dec.Protocol.Unit.EncoderModeWidth()
	mode, err := dec.ReadBits(modeWidth)
	if err != nil {
		return nil, err
	}
	if mode != uint64(EncoderModeBranchTrace) {
		return nil, &Error{Kind: ErrUnknownEncoderMode, Value: int(mode)}
	}
	qs, err := dec.ReadBits(2)
	if err != nil {
		return nil, err
	}
	ioptions, err := dec.ReadBits(dec.Protocol.Unit.IOptionsWidth())
	if err != nil {
		return nil, err
	}
	denable, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	dloss, err := dec.ReadBit()
	if err != nil {
		return nil, err
	}
	doptions, err := dec.ReadBits(dec.Protocol.Unit.DOptionsWidth())
	if err != nil {
		return nil, err
	}
	return &SupportPayload{
		IEnable: ienable, EncoderMode: EncoderMode(mode), QualStatus: QualStatus(qs),
		IOptions: ioptions, DEnable: denable, DLoss: dloss, DOptions: doptions,
	}, nil
}

func (p *SupportPayload) encode(enc *Encoder) error {
	if err := enc.WriteBit(p.IEnable); err != nil {
		return err
	}
	if err := enc.WriteBits(uint64(p.EncoderMode), enc.Protocol.Unit.EncoderModeWidth()); err != nil {
		return err
	}
	if err := enc.WriteBits(uint64(p.QualStatus), 2); err != nil {
		return err
	}
	if err := enc.WriteBits(p.IOptions, enc.Protocol.Unit.IOptionsWidth()); err != nil {
		return err
	}
	if err := enc.WriteBit(p.DEnable); err != nil {
		return err
	}
	if err := enc.WriteBit(p.DLoss); err != nil {
		return err
	}
	return enc.WriteBits(p.DOptions, enc.Protocol.Unit.DOptionsWidth())
}

func decodeSynchronization(dec *Decoder) (*Synchronization, error) {
	sf, err := dec.ReadBits(2)
	if err != nil {
		return nil, err
	}
	s := &Synchronization{Subformat: SyncSubformat(sf)}
	switch SyncSubformat(sf) {
	case SyncStart:
		s.Start, err = decodeStart(dec)
	case SyncTrap:
		s.Trap, err = decodeTrap(dec)
	case SyncContext:
		s.Context, err = decodeContextPayload(dec)
	case SyncSupport:
		s.SupportPkt, err = decodeSupport(dec)
	default:
		return nil, &Error{Kind: ErrUnknownFmt, Value: int(sf)}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Synchronization) encode(enc *Encoder) error {
	if err := enc.WriteBits(uint64(s.Subformat), 2); err != nil {
		return err
	}
	switch s.Subformat {
	case SyncStart:
		return s.Start.encode(enc)
	case SyncTrap:
		return s.Trap.encode(enc)
	case SyncContext:
		return s.Context.encode(enc)
	case SyncSupport:
		return s.SupportPkt.encode(enc)
	}
	return &Error{Kind: ErrUnknownFmt, Value: int(s.Subformat)}
}
