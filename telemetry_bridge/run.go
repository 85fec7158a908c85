package main

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"can-telemetry-core/delivery"
	"can-telemetry-core/telemetry"
	"can-telemetry-core/utils"
)

const (
	flagSource = "source"
	flagSink   = "sink"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "decode live telemetry and publish canonical records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString(flagSource)
		sink, _ := cmd.Flags().GetString(flagSink)
		return runBridge(cmd.Context(), app.cfg, app.log, source, sink, cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().String(flagSource, "mqtt", "mqtt|socketcan")
	runCmd.Flags().String(flagSink, "auto", "auto|nats|jsonl|console (auto picks nats when --nats-url is set)")
}

func runBridge(ctx context.Context, cfg Config, log *utils.Logger, source, sinkName string, stdout io.Writer) (err error) {
	table, err := loadSignalTable(cfg, log)
	if err != nil {
		return err
	}

	var closers []io.Closer
	defer func() {
		if cerr := closeAll(closers); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	sink, err := openSink(ctx, cfg, sinkName, stdout, log)
	if err != nil {
		return err
	}
	if c, ok := sink.(io.Closer); ok {
		closers = append(closers, c)
	}

	proc := telemetry.NewProcessor(sink,
		telemetry.WithCANMap(table),
		telemetry.WithLogger(log),
		telemetry.WithDiagnosticsInterval(30*time.Second),
	)

	payloads := make(chan []byte, 1024)
	g, gctx := errgroup.WithContext(ctx)

	switch source {
	case "mqtt":
		src, err := startMQTTSource(gctx, cfg.MQTTBroker, cfg.MQTTTopic, payloads, log)
		if err != nil {
			return err
		}
		closers = append(closers, src)
	case "socketcan":
		reader, err := utils.NewSocketCANReader(gctx, cfg.Interface)
		if err != nil {
			return err
		}
		closers = append(closers, reader)
		g.Go(func() error { return pumpCAN(gctx, reader, payloads, log) })
	default:
		return errors.Newf("unknown source %q", source)
	}

	g.Go(func() error { return pipeline(gctx, proc, payloads) })

	log.Info("bridge running: source=%s sink=%s", source, sinkName)
	err = g.Wait()
	s := proc.Stats()
	log.Info("bridge stopped: processed=%d delivered=%d dropped=%d repaired=%d",
		s.Processed, s.Delivered, s.Dropped, s.Repaired)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openSink(ctx context.Context, cfg Config, name string, stdout io.Writer, log *utils.Logger) (telemetry.Deliverer, error) {
	if name == "auto" {
		name = "jsonl"
		if cfg.NATSURL != "" {
			name = "nats"
		}
	}
	switch name {
	case "nats":
		if cfg.NATSURL == "" {
			return nil, errors.New("sink nats needs --nats-url")
		}
		n, err := delivery.DialNATS(ctx, cfg.NATSURL, cfg.NATSSubject, log)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "jsonl":
		return delivery.NewJSONLines(stdout), nil
	case "console":
		return delivery.NewConsole(stdout), nil
	}
	return nil, errors.Newf("unknown sink %q", name)
}

// pipeline hands payloads to the processor one at a time so deliveries keep the
// order messages arrived in.
func pipeline(ctx context.Context, proc *telemetry.Processor, in <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-in:
			if !ok {
				return nil
			}
			// failures are logged and counted by the processor
			_ = proc.Handle(ctx, p)
		}
	}
}

// pumpCAN renders each received frame as `<id>#<hex>` text for the raw-frame branch.
func pumpCAN(ctx context.Context, r utils.CANReader, out chan<- []byte, log *utils.Logger) error {
	log.Debug("RX loop started")
	defer log.Debug("RX loop stopped")
	for {
		f, err := r.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		line := telemetry.FromCANFrame(f).String()
		log.Trace("RX %s", line)
		select {
		case out <- []byte(line):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func closeAll(closers []io.Closer) error {
	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
