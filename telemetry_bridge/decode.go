package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"can-telemetry-core/telemetry"
)

const flagFormat = "format"

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "decode captured payloads, one per line, from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString(flagFormat)
		if format == "" {
			format = "console"
		}
		sink, err := openSink(ctx, app.cfg, format, cmd.OutOrStdout(), app.log)
		if err != nil {
			return err
		}
		if c, ok := sink.(io.Closer); ok {
			defer c.Close()
		}
		table, err := loadSignalTable(app.cfg, app.log)
		if err != nil {
			return err
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open input")
			}
			defer f.Close()
			in = f
		}

		proc := telemetry.NewProcessor(sink, telemetry.WithCANMap(table), telemetry.WithLogger(app.log))
		if err := decodeStream(ctx, in, proc); err != nil {
			return err
		}
		s := proc.Stats()
		app.log.Info("decoded %d lines: delivered=%d dropped=%d repaired=%d",
			s.Processed, s.Delivered, s.Dropped, s.Repaired)
		return nil
	},
}

func init() {
	decodeCmd.Flags().String(flagFormat, "console", "console|jsonl|nats")
}

// decodeStream feeds every non-blank line to proc. Lines that fail to decode are
// logged by the processor and skipped.
func decodeStream(ctx context.Context, r io.Reader, proc *telemetry.Processor) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		_ = proc.Handle(ctx, append([]byte(nil), line...))
	}
	return errors.Wrap(sc.Err(), "read input")
}
