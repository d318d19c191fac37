package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/riscv-trace/etrace/config"
	"github.com/riscv-trace/etrace/generator"
	"github.com/riscv-trace/etrace/insn"
	"github.com/riscv-trace/etrace/packet"
	"github.com/riscv-trace/etrace/types"
)

var generateCommand = &cli.Command{
	Name:  "generate",
	Usage: "synthesize a packet stream from a YAML list of hart retirement steps",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "framing", Value: "encap", Usage: "smi or encap"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to this file instead of stdout"},
		&cli.Uint64Flag{Name: "ioptions", Usage: "instruction-trace options word passed to BeginQualification"},
		&cli.Uint64Flag{Name: "doptions", Usage: "data-trace options word passed to BeginQualification"},
		&cli.BoolFlag{Name: "skip-qualification", Usage: "don't call BeginQualification before feeding steps"},
	}, protocolFlags...),
	ArgsUsage: "<steps.yaml>",
	Action:    runGenerate,
}

// stepDoc is one entry of the generate subcommand's YAML input, a
// literal rendering of the generator.Step fields a caller external to
// this repository would actually have on hand.
type stepDoc struct {
	Address    uint64 `yaml:"address"`
	Kind       string `yaml:"kind"` // retirement, trap, trap_return, branch, jump
	Compressed bool   `yaml:"compressed"`

	// Trap
	TrapRetires        bool    `yaml:"trap_retires"`
	TrapInsnCompressed bool    `yaml:"trap_retires_compressed"`
	Ecause             uint64  `yaml:"ecause"`
	Interrupt          bool    `yaml:"interrupt"`
	Tval               *uint64 `yaml:"tval"`

	// Branch
	Taken bool `yaml:"taken"`

	// Jump
	JumpKind              string `yaml:"jump_kind"` // call, infer_call, jump, infer_jump, coroutine, return, other, infer_other
	SequentiallyInferable bool   `yaml:"sequentially_inferable"`

	Privilege string `yaml:"privilege"` // U, S, M
	CType     string `yaml:"ctype"`     // unreported, imprecise, precise, async_discon

	Event string `yaml:"event"` // "", resync, notify
}

// step adapts a stepDoc into generator.Step.
type step struct {
	doc stepDoc
	ctx types.Context
}

func (s step) Address() uint64        { return s.doc.Address }
func (s step) Context() types.Context { return s.ctx }
func (s step) Timestamp() *uint64     { return nil }

func (s step) insnSize() insn.Size {
	if s.doc.Compressed {
		return insn.Compressed
	}
	return insn.Normal
}

func (s step) Kind() generator.Kind {
	size := s.insnSize()
	switch s.doc.Kind {
	case "trap":
		var trapSize *insn.Size
		if s.doc.TrapRetires {
			sz := insn.Normal
			if s.doc.TrapInsnCompressed {
				sz = insn.Compressed
			}
			trapSize = &sz
		}
		var tval *uint64
		if !s.doc.Interrupt {
			tval = s.doc.Tval
		}
		return generator.Kind{
			Tag:          generator.KindTrap,
			TrapInsnSize: trapSize,
			Info: types.TrapInfo{
				Ecause:    s.doc.Ecause,
				Interrupt: s.doc.Interrupt,
				Tval:      tval,
			},
		}
	case "trap_return":
		return generator.Kind{Tag: generator.KindTrapReturn, InsnSize: size}
	case "branch":
		return generator.Kind{Tag: generator.KindBranch, InsnSize: size, Taken: s.doc.Taken}
	case "jump":
		return generator.Kind{
			Tag:                   generator.KindJump,
			InsnSize:              size,
			JumpKind:              jumpKindByName[s.doc.JumpKind],
			SequentiallyInferable: s.doc.SequentiallyInferable,
		}
	default:
		return generator.Kind{Tag: generator.KindRetirement, InsnSize: size}
	}
}

func (s step) CType() generator.CType {
	switch s.doc.CType {
	case "imprecise":
		return generator.CTypeImprecisely
	case "precise":
		return generator.CTypePrecisely
	case "async_discon":
		return generator.CTypeAsyncDiscon
	default:
		return generator.CTypeUnreported
	}
}

var jumpKindByName = map[string]generator.JumpType{
	"call":        generator.JumpUnferCall,
	"infer_call":  generator.JumpInferCall,
	"jump":        generator.JumpUnferJump,
	"infer_jump":  generator.JumpInferJump,
	"coroutine":   generator.JumpCoRoutineSwap,
	"return":      generator.JumpReturn,
	"other":       generator.JumpUnferOther,
	"infer_other": generator.JumpInferOther,
}

var privilegeByName = map[string]types.Privilege{
	"U": types.PrivilegeUser,
	"S": types.PrivilegeSupervisor,
	"M": types.PrivilegeMachine,
}

var eventByName = map[string]generator.Event{
	"resync": generator.EventReSync,
	"notify": generator.EventNotify,
}

func runGenerate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("generate: missing <steps.yaml> argument")
	}
	protocol, err := buildProtocol(c)
	if err != nil {
		return err
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Args().First(), err)
	}
	var docs []stepDoc
	if err := yaml.NewDecoder(f).Decode(&docs); err != nil {
		f.Close()
		return fmt.Errorf("parsing %s: %w", c.Args().First(), err)
	}
	f.Close()
	log.WithField("steps", len(docs)).Debug("loaded step descriptors")

	gen := generator.NewBuilder().WithProtocol(protocol).Build()

	if !c.Bool("skip-qualification") {
		if _, err := gen.BeginQualification(c.Uint64("ioptions"), c.Uint64("doptions")); err != nil {
			return fmt.Errorf("begin qualification: %w", err)
		}
	}

	out := os.Stdout
	if path := c.String("output"); path != "" {
		of, err := os.Create(path)
		if err != nil {
			return err
		}
		defer of.Close()
		out = of
	}

	var payloads []*packet.InstructionTrace
	for i, doc := range docs {
		priv := types.PrivilegeUser
		if p, ok := privilegeByName[doc.Privilege]; ok {
			priv = p
		}
		s := step{doc: doc, ctx: types.Context{Privilege: priv}}

		var event *generator.Event
		if ev, ok := eventByName[doc.Event]; ok {
			event = &ev
		}

		payload, err := gen.ProcessStep(s, event)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if payload != nil {
			payloads = append(payloads, payload)
		}
	}

	drain := gen.EndQualification(true)
	for {
		payload, ok, err := drain.Next()
		if err != nil {
			return fmt.Errorf("draining generator: %w", err)
		}
		if !ok {
			break
		}
		payloads = append(payloads, payload)
	}
	log.WithField("payloads", len(payloads)).Debug("generated instruction-trace payloads")

	framing := c.String("framing")
	for i, payload := range payloads {
		penc := packet.NewEncoder(protocol)
		if err := packet.EncodeInstructionTrace(penc, payload); err != nil {
			return fmt.Errorf("payload %d: encoding: %w", i, err)
		}
		if err := penc.AdvanceToByteBoundary(); err != nil {
			return fmt.Errorf("payload %d: %w", i, err)
		}
		inner := penc.Bytes()

		framed, err := frameBytes(protocol, framing, inner)
		if err != nil {
			return fmt.Errorf("payload %d: framing: %w", i, err)
		}
		if _, err := out.Write(framed); err != nil {
			return fmt.Errorf("payload %d: writing: %w", i, err)
		}
	}
	return nil
}

// frameBytes wraps an already-encoded inner payload in the requested
// outer framing.
func frameBytes(protocol config.Protocol, framing string, inner []byte) ([]byte, error) {
	// The header is written uncompressed: its last bytes are followed by
	// the payload, not by the sign extension a decoder would assume.
	hp := protocol
	hp.Compress = false
	henc := packet.NewEncoder(hp)
	switch framing {
	case "smi":
		return packet.EncodeSMI(henc, &packet.SMIPacket{
			TraceType: packet.TraceTypeInstruction,
			Hart:      0,
			Payload:   inner,
		})
	case "encap":
		return packet.EncodeEncap(henc, &packet.EncapPacket{
			Kind:      packet.EncapNormal,
			SrcID:     0,
			TraceType: packet.TraceTypeInstruction,
			Payload:   inner,
		})
	default:
		return nil, fmt.Errorf("unknown framing %q (want smi or encap)", framing)
	}
}
