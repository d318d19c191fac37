package packet

import (
	"errors"
	"fmt"

	"github.com/riscv-trace/etrace/internal/bitio"
)

// ErrorKind distinguishes the packet-decoding/encoding error taxonomy of
// spec.md §4.F.4, plus two encoder-only conditions.
type ErrorKind int

const (
	ErrInsufficientData ErrorKind = iota
	ErrUnknownTraceType
	ErrUnknownFmt
	ErrBadBranchFmt
	ErrUnknownPrivilege
	ErrUnknownEncoderMode
	ErrBufferTooSmall
	ErrPayloadTooBig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInsufficientData:
		return "insufficient data"
	case ErrUnknownTraceType:
		return "unknown trace type"
	case ErrUnknownFmt:
		return "unknown format"
	case ErrBadBranchFmt:
		return "bad branch format"
	case ErrUnknownPrivilege:
		return "unknown privilege"
	case ErrUnknownEncoderMode:
		return "unknown encoder mode"
	case ErrBufferTooSmall:
		return "buffer too small"
	case ErrPayloadTooBig:
		return "payload too big"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by every decode/encode
// operation in this package.
type Error struct {
	Kind  ErrorKind
	Value int // trace type, format, subformat, or privilege value, when relevant
	Need  int // for ErrInsufficientData: lower bound on bytes still needed
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInsufficientData:
		return fmt.Sprintf("packet: %s (need >= %d more byte(s))", e.Kind, e.Need)
	case ErrUnknownTraceType, ErrUnknownPrivilege, ErrUnknownEncoderMode:
		return fmt.Sprintf("packet: %s: 0x%x", e.Kind, e.Value)
	case ErrUnknownFmt:
		return fmt.Sprintf("packet: %s: %d", e.Kind, e.Value)
	default:
		return fmt.Sprintf("packet: %s", e.Kind)
	}
}

func wrapCursorErr(err error) error {
	need := 1
	var be *bitio.Error
	if errors.As(err, &be) && be.Need > need {
		need = be.Need
	}
	return &Error{Kind: ErrInsufficientData, Need: need}
}
