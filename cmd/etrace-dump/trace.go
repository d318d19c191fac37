package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/riscv-trace/etrace/binary"
	"github.com/riscv-trace/etrace/packet"
	"github.com/riscv-trace/etrace/tracer"
)

var traceCommand = &cli.Command{
	Name:  "trace",
	Usage: "replay a packet stream against a binary image and print retired instructions",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "framing", Value: "encap", Usage: "smi or encap"},
		&cli.StringFlag{Name: "elf", Required: true, Usage: "path to the traced program's ELF image"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to this file instead of stdout"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "if set, serve Prometheus metrics on this address while tracing"},
	}, protocolFlags...),
	ArgsUsage: "<packet-file>",
	Action:    runTrace,
}

var itemsRetired = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "etrace_dump_items_total",
	Help: "Items produced by the tracer, by kind.",
}, []string{"kind"})

func runTrace(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("trace: missing <packet-file> argument")
	}
	protocol, err := buildProtocol(c)
	if err != nil {
		return err
	}

	elf, err := binary.OpenELF(c.String("elf"))
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.String("elf"), err)
	}
	defer elf.Close()

	t, err := tracer.NewBuilder().WithOracle(elf).WithProtocol(protocol).Build()
	if err != nil {
		return err
	}

	var stopMetrics func()
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(itemsRetired)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		stopMetrics = func() { srv.Close() }
		log.WithField("addr", addr).Info("serving prometheus metrics")
	}
	if stopMetrics != nil {
		defer stopMetrics()
	}

	buf, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Args().First(), err)
	}
	frames, err := splitFrames(protocol, c.String("framing"), buf)
	if err != nil {
		return fmt.Errorf("splitting frames: %w", err)
	}

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
			continue
		}
		dec := packet.NewDecoder(protocol, fr.Payload)
		pkt, err := packet.DecodeInstructionTrace(dec)
		if err != nil {
			return fmt.Errorf("frame %d: decoding instruction trace: %w", i, err)
		}
		if err := t.ProcessPayload(pkt); err != nil {
			return fmt.Errorf("frame %d: processing payload: %w", i, err)
		}
		for {
			item, ok, err := t.Next()
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			if !ok {
				break
			}
			itemsRetired.WithLabelValues(item.Kind.String()).Inc()
			if err := enc.Encode(item); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
	}
	return nil
}
