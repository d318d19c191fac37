// Command etrace-dump inspects, replays, and synthesizes RISC-V E-Trace
// instruction-trace packet streams: decode prints a packet stream as
// YAML, trace replays one against a binary image to recover retired
// instructions, and generate synthesizes a packet stream from a
// sequence of hart retirement steps.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/google/uuid"
)

var log = logrus.New()

func main() {
	app := &cli.App{
		Name:  "etrace-dump",
		Usage: "decode, trace, and generate RISC-V E-Trace packet streams",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "panic, fatal, error, warn, info, debug, trace"},
		},
		Before: func(c *cli.Context) error {
			lvl, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			log.WithField("run_id", uuid.New().String()).Debug("starting etrace-dump")
			return nil
		},
		Commands: []*cli.Command{
			decodeCommand,
			traceCommand,
			generateCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
