// Package config defines the immutable, builder-constructed protocol
// description shared by the packet decoder, encoder, tracer, and
// generator: field widths, mode flags, and the trace-unit option-blob
// layout.
package config

// AddressMode selects whether AddressInfo's address field carries an
// absolute value (Full) or a delta relative to the last reported address
// (Delta, the default).
type AddressMode int

const (
	AddressDelta AddressMode = iota
	AddressFull
)

// Version selects between the two historical Context/Trap privilege
// sequencing behaviors observed across E-Trace spec revisions; see
// SPEC_FULL.md §13 for the resolution this repository settled on.
type Version int

const (
	VersionV2 Version = iota // default
	VersionV1
)

// Protocol is the immutable field-width and mode-flag configuration a
// Decoder, Encoder, Tracer, and Generator are all built against. Builder
// is the only supported construction path.
type Protocol struct {
	IAddressWidth int // 1..64
	IAddressLSB   int // 1..IAddressWidth, always-zero LSBs elided from the wire
	EcauseWidth   int // >=1
	PrivilegeWidth int // fixed at 2
	ContextWidth  int // 0..64, 0 disables the field
	TimeWidth     int // 0..64, 0 disables the field
	CacheSize     int // width of the format-0 jump-target cache index

	Format0SubformatWidth int // 0 or 1

	HartIndexWidth   int
	TimestampWidth   int // bytes of the Encap timestamp; SMI time tags are a fixed 16 bits
	TraceTypeWidth   int // width of the trace-type prefix inside an Encap payload

	SequentiallyInferredJumps bool
	ImplicitReturn            bool
	AddressMode               AddressMode
	Version                   Version

	ReturnStackSize int // number of entries (0 disables implicit return)
	CallCounterSize int // width of a plain nested-call counter, if used instead of a RAS

	Unit Unit

	// Compress enables encoder tail-byte compression (default on).
	Compress bool
}

// StackDepth returns the wire width of the implicit-return depth field,
// per spec.md §3.1: return_stack_size + call_counter_size, plus one extra
// bit if a return stack is configured at all (to represent "stack
// exhausted").
func (p Protocol) StackDepth() int {
	d := p.ReturnStackSize + p.CallCounterSize
	if p.ReturnStackSize > 0 {
		d++
	}
	return d
}

// Unit describes a trace-encoder implementation's option-blob layout:
// the width of the encoder_mode field and the number of bits making up
// the instruction/data option blobs in Support packets.
type Unit interface {
	Name() string
	EncoderModeWidth() int
	IOptionsWidth() int
	DOptionsWidth() int
}

// referenceUnit is the architecturally-defined reference trace encoder:
// 5 instruction-trace option bits (implicit_return, implicit_exception,
// full_address, jump_target_cache, branch_prediction, in that order) and
// 4 data-trace option bits (no_address, no_data, full_address, full_data).
type referenceUnit struct{}

func (referenceUnit) Name() string           { return "reference" }
func (referenceUnit) EncoderModeWidth() int  { return 1 }
func (referenceUnit) IOptionsWidth() int     { return 5 }
func (referenceUnit) DOptionsWidth() int     { return 4 }

// ReferenceUnit is the architecturally-defined reference trace encoder.
var ReferenceUnit Unit = referenceUnit{}

// pulpUnit is the PULP trace encoder variant: 7 instruction-trace option
// bits (jump_target_cache, branch_prediction, implicit_return, sijump,
// implicit_exception, full_address, delta_address) and no data-trace
// options.
type pulpUnit struct{}

func (pulpUnit) Name() string          { return "pulp" }
func (pulpUnit) EncoderModeWidth() int { return 1 }
func (pulpUnit) IOptionsWidth() int    { return 7 }
func (pulpUnit) DOptionsWidth() int    { return 0 }

// PULPUnit is the PULP trace encoder variant.
var PULPUnit Unit = pulpUnit{}

// unitRegistry mirrors the reference implementation's allocation-feature
// Plug/PLUGS registry, used by the CLI's --unit flag.
var unitRegistry = map[string]Unit{
	"reference": ReferenceUnit,
	"pulp":      PULPUnit,
}

// UnitByName looks up a registered Unit by name ("reference" or "pulp").
// ok is false for an unrecognized name.
func UnitByName(name string) (Unit, bool) {
	u, ok := unitRegistry[name]
	return u, ok
}

// Builder fluently constructs a Protocol.
type Builder struct {
	p Protocol
}

// NewBuilder returns a Builder pre-populated with the reference unit,
// delta addressing, V2 sequencing, and compression enabled, mirroring the
// packet::Builder / config::PROTOCOL defaults in the upstream reference.
func NewBuilder() *Builder {
	return &Builder{p: Protocol{
		IAddressWidth:         64,
		IAddressLSB:           1,
		EcauseWidth:           5,
		PrivilegeWidth:        2,
		Format0SubformatWidth: 1,
		HartIndexWidth:        8,
		TraceTypeWidth:        2,
		AddressMode:           AddressDelta,
		Version:               VersionV2,
		Unit:                  ReferenceUnit,
		Compress:              true,
	}}
}

func (b *Builder) IAddressWidth(w int) *Builder { b.p.IAddressWidth = w; return b }
func (b *Builder) IAddressLSB(w int) *Builder   { b.p.IAddressLSB = w; return b }
func (b *Builder) EcauseWidth(w int) *Builder   { b.p.EcauseWidth = w; return b }
func (b *Builder) ContextWidth(w int) *Builder  { b.p.ContextWidth = w; return b }
func (b *Builder) TimeWidth(w int) *Builder     { b.p.TimeWidth = w; return b }
func (b *Builder) CacheSize(w int) *Builder     { b.p.CacheSize = w; return b }
func (b *Builder) Format0SubformatWidth(w int) *Builder {
	b.p.Format0SubformatWidth = w
	return b
}
func (b *Builder) HartIndexWidth(w int) *Builder { b.p.HartIndexWidth = w; return b }
func (b *Builder) TimestampWidth(w int) *Builder  { b.p.TimestampWidth = w; return b }
func (b *Builder) SequentiallyInferredJumps(v bool) *Builder {
	b.p.SequentiallyInferredJumps = v
	return b
}
func (b *Builder) ImplicitReturn(v bool) *Builder { b.p.ImplicitReturn = v; return b }
func (b *Builder) WithAddressMode(m AddressMode) *Builder { b.p.AddressMode = m; return b }
func (b *Builder) WithVersion(v Version) *Builder         { b.p.Version = v; return b }
func (b *Builder) ReturnStackSize(n int) *Builder         { b.p.ReturnStackSize = n; return b }
func (b *Builder) CallCounterSize(n int) *Builder         { b.p.CallCounterSize = n; return b }
func (b *Builder) WithUnit(u Unit) *Builder               { b.p.Unit = u; return b }
func (b *Builder) Compress(v bool) *Builder                { b.p.Compress = v; return b }

// Build returns the finished, immutable Protocol value.
func (b *Builder) Build() Protocol {
	return b.p
}
