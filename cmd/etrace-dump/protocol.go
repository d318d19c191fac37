package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/riscv-trace/etrace/config"
)

// protocolFlags are the config.Protocol knobs shared by every subcommand,
// either set directly or loaded from a --protocol-config YAML file.
var protocolFlags = []cli.Flag{
	&cli.StringFlag{Name: "protocol-config", Usage: "YAML file overriding the default protocol settings"},
	&cli.StringFlag{Name: "unit", Value: "reference", Usage: "trace-encoder unit: reference or pulp"},
	&cli.StringFlag{Name: "address-mode", Value: "delta", Usage: "delta or full"},
	&cli.IntFlag{Name: "iaddress-width", Value: 64},
	&cli.IntFlag{Name: "iaddress-lsb", Value: 1},
	&cli.IntFlag{Name: "ecause-width", Value: 5},
	&cli.IntFlag{Name: "context-width", Value: 0},
	&cli.IntFlag{Name: "time-width", Value: 0},
	&cli.IntFlag{Name: "hart-index-width", Value: 8},
	&cli.IntFlag{Name: "timestamp-width", Value: 0, Usage: "Encap timestamp field width, in bytes"},
	&cli.IntFlag{Name: "return-stack-size", Value: 0},
	&cli.BoolFlag{Name: "sijump", Usage: "sequentially inferred jumps"},
	&cli.BoolFlag{Name: "implicit-return", Usage: "implicit return"},
	&cli.BoolFlag{Name: "no-compress", Usage: "disable encoder tail-byte compression"},
}

// protocolDoc is the YAML document shape accepted by --protocol-config.
// Any field left zero keeps the flag-supplied (or default) value.
type protocolDoc struct {
	Unit                      string `yaml:"unit"`
	AddressMode               string `yaml:"address_mode"`
	IAddressWidth             int    `yaml:"iaddress_width"`
	IAddressLSB               int    `yaml:"iaddress_lsb"`
	EcauseWidth               int    `yaml:"ecause_width"`
	ContextWidth              int    `yaml:"context_width"`
	TimeWidth                 int    `yaml:"time_width"`
	HartIndexWidth            int    `yaml:"hart_index_width"`
	TimestampWidth            int    `yaml:"timestamp_width"`
	ReturnStackSize           int    `yaml:"return_stack_size"`
	SequentiallyInferredJumps bool   `yaml:"sijump"`
	ImplicitReturn            bool   `yaml:"implicit_return"`
	Compress                  *bool  `yaml:"compress"`
}

// buildProtocol assembles a config.Protocol from a cli.Context, applying
// --protocol-config first (if given) and letting explicitly-set flags
// override it.
func buildProtocol(c *cli.Context) (config.Protocol, error) {
	b := config.NewBuilder()

	if path := c.String("protocol-config"); path != "" {
		doc, err := loadProtocolDoc(path)
		if err != nil {
			return config.Protocol{}, err
		}
		applyProtocolDoc(b, doc)
	}

	if c.IsSet("unit") || c.String("unit") != "" {
		u, ok := config.UnitByName(c.String("unit"))
		if !ok {
			return config.Protocol{}, fmt.Errorf("unknown trace-encoder unit %q", c.String("unit"))
		}
		b.WithUnit(u)
	}
	switch c.String("address-mode") {
	case "delta":
		b.WithAddressMode(config.AddressDelta)
	case "full":
		b.WithAddressMode(config.AddressFull)
	default:
		return config.Protocol{}, fmt.Errorf("unknown address mode %q", c.String("address-mode"))
	}
	b.IAddressWidth(c.Int("iaddress-width"))
	b.IAddressLSB(c.Int("iaddress-lsb"))
	b.EcauseWidth(c.Int("ecause-width"))
	b.ContextWidth(c.Int("context-width"))
	b.TimeWidth(c.Int("time-width"))
	b.HartIndexWidth(c.Int("hart-index-width"))
	b.TimestampWidth(c.Int("timestamp-width"))
	b.ReturnStackSize(c.Int("return-stack-size"))
	b.SequentiallyInferredJumps(c.Bool("sijump"))
	b.ImplicitReturn(c.Bool("implicit-return"))
	b.Compress(!c.Bool("no-compress"))

	return b.Build(), nil
}

func loadProtocolDoc(path string) (*protocolDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc protocolDoc
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &doc, nil
}

func applyProtocolDoc(b *config.Builder, doc *protocolDoc) {
	if doc.Unit != "" {
		if u, ok := config.UnitByName(doc.Unit); ok {
			b.WithUnit(u)
		}
	}
	if doc.AddressMode == "full" {
		b.WithAddressMode(config.AddressFull)
	}
	if doc.IAddressWidth > 0 {
		b.IAddressWidth(doc.IAddressWidth)
	}
	if doc.IAddressLSB > 0 {
		b.IAddressLSB(doc.IAddressLSB)
	}
	if doc.EcauseWidth > 0 {
		b.EcauseWidth(doc.EcauseWidth)
	}
	if doc.ContextWidth > 0 {
		b.ContextWidth(doc.ContextWidth)
	}
	if doc.TimeWidth > 0 {
		b.TimeWidth(doc.TimeWidth)
	}
	if doc.HartIndexWidth > 0 {
		b.HartIndexWidth(doc.HartIndexWidth)
	}
	if doc.TimestampWidth > 0 {
		b.TimestampWidth(doc.TimestampWidth)
	}
	if doc.ReturnStackSize > 0 {
		b.ReturnStackSize(doc.ReturnStackSize)
	}
	if doc.SequentiallyInferredJumps {
		b.SequentiallyInferredJumps(true)
	}
	if doc.ImplicitReturn {
		b.ImplicitReturn(true)
	}
	if doc.Compress != nil {
		b.Compress(*doc.Compress)
	}
}
