package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/riscv-trace/etrace/packet"
)

var formatNames = map[packet.Format]string{
	packet.FormatExtension: "extension",
	packet.FormatBranch:    "branch",
	packet.FormatAddress:   "address",
	packet.FormatSync:      "sync",
}

var decodeCommand = &cli.Command{
	Name:  "decode",
	Usage: "decode an outer-framed packet stream and print it as YAML",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "framing", Value: "encap", Usage: "smi or encap"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to this file instead of stdout"},
	}, protocolFlags...),
	ArgsUsage: "<packet-file>",
	Action:    runDecode,
}

type decodedFrame struct {
	Hart   uint64                   `yaml:"hart"`
	Format string                   `yaml:"format"`
	Packet *packet.InstructionTrace `yaml:"packet"`
}

func runDecode(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("decode: missing <packet-file> argument")
	}
	protocol, err := buildProtocol(c)
	if err != nil {
		return err
	}

	buf, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Args().First(), err)
	}

	frames, err := splitFrames(protocol, c.String("framing"), buf)
	if err != nil {
		return fmt.Errorf("splitting frames: %w", err)
	}
	log.WithField("frames", len(frames)).Debug("split outer framing")

	out := os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := yaml.NewEncoder(out)
	defer enc.Close()

	for i, fr := range frames {
		if fr.TraceType != packet.TraceTypeInstruction {
			log.WithField("frame", i).Warn("skipping data-trace frame")
			continue
		}
		dec := packet.NewDecoder(protocol, fr.Payload)
		pkt, err := packet.DecodeInstructionTrace(dec)
		if err != nil {
			return fmt.Errorf("frame %d: decoding instruction trace: %w", i, err)
		}
		if err := enc.Encode(decodedFrame{Hart: fr.Hart, Format: formatNames[pkt.Format], Packet: pkt}); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}
