package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"can-telemetry-core/telemetry"
	"can-telemetry-core/utils"
)

const (
	flagScenario     = "scenario"
	flagOut          = "out"
	flagPublishTopic = "publish-topic"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "play a bench scenario as CAN frames over MQTT, SocketCAN or stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		scenPath, _ := cmd.Flags().GetString(flagScenario)
		out, _ := cmd.Flags().GetString(flagOut)
		topic, _ := cmd.Flags().GetString(flagPublishTopic)

		table, err := loadSignalTable(app.cfg, app.log)
		if err != nil {
			return err
		}
		if table == nil {
			return errors.New("simulate needs --dbc or --signal-map")
		}
		scen, err := LoadScenario(scenPath)
		if err != nil {
			return err
		}

		sink, err := openFrameSink(ctx, app.cfg, out, topic, cmd.OutOrStdout(), app.log)
		if err != nil {
			return err
		}
		defer sink.Close()

		sim, err := NewSimulator(table, scen, sink, app.log, clock.New())
		if err != nil {
			return err
		}
		if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	f := simulateCmd.Flags()
	f.String(flagScenario, "bench.json", "bench scenario JSON file")
	f.String(flagOut, "stdout", "stdout|mqtt|socketcan")
	f.String(flagPublishTopic, "vehicle/bench/can", "MQTT topic frames are published to")
}

// FrameSink is where simulated frames go.
type FrameSink interface {
	Send(ctx context.Context, f telemetry.RawFrame) error
	Close() error
}

func openFrameSink(ctx context.Context, cfg Config, out, topic string, stdout io.Writer, log *utils.Logger) (FrameSink, error) {
	switch out {
	case "stdout":
		return &textFrameSink{w: stdout}, nil
	case "mqtt":
		client, err := mqttClient(ctx, cfg.MQTTBroker, "bench", log, nil)
		if err != nil {
			return nil, err
		}
		return &mqttFrameSink{client: client, topic: topic}, nil
	case "socketcan":
		w, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
		if err != nil {
			return nil, err
		}
		return &canFrameSink{w: w}, nil
	}
	return nil, errors.Newf("unknown output %q", out)
}

type textFrameSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *textFrameSink) Send(_ context.Context, f telemetry.RawFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, f.String())
	return err
}

func (s *textFrameSink) Close() error { return nil }

type canFrameSink struct {
	w utils.CANWriter
}

func (s *canFrameSink) Send(ctx context.Context, f telemetry.RawFrame) error {
	cf, ok := f.CANFrame()
	if !ok {
		return errors.Newf("frame 0x%08X: %d bytes do not fit a classic CAN frame", f.ID, len(f.Data))
	}
	return s.w.WriteFrame(ctx, cf)
}

func (s *canFrameSink) Close() error { return s.w.Close() }

type simFrame struct {
	fd    *utils.FrameDef
	cycle time.Duration
}

// Simulator transmits every scenario frame at its own cycle time until the
// scenario ends, or forever when it loops.
type Simulator struct {
	table  *utils.CANMap
	scen   Scenario
	frames []simFrame
	sink   FrameSink
	log    *utils.Logger
	clk    clock.Clock
	sent   atomic.Uint64
}

func NewSimulator(table *utils.CANMap, scen Scenario, sink FrameSink, log *utils.Logger, clk clock.Clock) (*Simulator, error) {
	s := &Simulator{table: table, scen: scen, sink: sink, log: log, clk: clk}
	for _, sf := range scen.Frames {
		fd, err := table.FrameByName(sf.Name)
		if err != nil {
			return nil, errors.Wrap(err, "scenario frame")
		}
		cycle := sf.CycleMS
		if cycle <= 0 {
			cycle = fd.CycleMS
		}
		if cycle <= 0 {
			return nil, errors.Newf("frame %s has no cycle time", fd.Name)
		}
		s.frames = append(s.frames, simFrame{fd: fd, cycle: time.Duration(cycle) * time.Millisecond})
	}
	return s, nil
}

// FrameAt encodes one frame with the scenario values at t seconds.
func (s *Simulator) FrameAt(fd *utils.FrameDef, t float64) (telemetry.RawFrame, error) {
	cf, err := s.table.EncodeEinrideFrame(fd.Name, EvalValues(&s.scen, t))
	if err != nil {
		return telemetry.RawFrame{}, err
	}
	return telemetry.FromCANFrame(cf), nil
}

func (s *Simulator) Sent() uint64 { return s.sent.Load() }

func (s *Simulator) Run(ctx context.Context) error {
	s.log.Info("Starting bench: scenario=%s frames=%d duration=%.2fs loop=%v",
		s.scen.Meta.Name, len(s.frames), s.scen.Timing.DurationS, s.scen.Timing.Loop)

	g, gctx := errgroup.WithContext(ctx)
	for _, sf := range s.frames {
		g.Go(func() error { return s.transmit(gctx, sf) })
	}
	err := g.Wait()
	s.log.Info("Completed bench. frames_sent=%d", s.Sent())
	return err
}

func (s *Simulator) transmit(ctx context.Context, sf simFrame) error {
	start := s.clk.Now()
	ticker := s.clk.Ticker(sf.cycle)
	defer ticker.Stop()

	endAfter := time.Duration(s.scen.Timing.DurationS * float64(time.Second))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				if !s.scen.Timing.Loop {
					return nil
				}
				start = now
				elapsed = 0
			}
			t := elapsed.Seconds()

			f, err := s.FrameAt(sf.fd, t)
			if err != nil {
				s.log.Error("Encode %s failed at t=%.3f: %v", sf.fd.Name, t, err)
				return err
			}
			if err := s.sink.Send(ctx, f); err != nil {
				s.log.Critical("Transmit %s failed at t=%.3f: %v", sf.fd.Name, t, err)
				return err
			}
			s.sent.Add(1)
			s.log.Trace("TX t=%.3f %s", t, f)
		}
	}
}
