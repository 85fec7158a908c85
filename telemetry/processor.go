package telemetry

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"can-telemetry-core/j1939"
	"can-telemetry-core/utils"
)

// Stats counts messages seen by a Processor.
type Stats struct {
	Processed uint64 `json:"processed"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Repaired  uint64 `json:"repaired"`
}

// Processor turns raw MQTT payloads into records. It holds no per-message state
// and may be called from several goroutines once built.
type Processor struct {
	dbc     *utils.CANMap
	clk     clock.Clock
	log     *utils.Logger
	deliver Deliverer

	processed atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	repaired  atomic.Uint64

	diag *rate.Sometimes
}

type Option func(*Processor)

// WithCANMap decodes JSON `data` payloads and unknown raw frames through m.
// m must not be modified after the processor is built.
func WithCANMap(m *utils.CANMap) Option { return func(p *Processor) { p.dbc = m } }

func WithClock(c clock.Clock) Option { return func(p *Processor) { p.clk = c } }

func WithLogger(l *utils.Logger) Option { return func(p *Processor) { p.log = l } }

// WithDiagnosticsInterval sets how often Handle logs its counters.
func WithDiagnosticsInterval(d time.Duration) Option {
	return func(p *Processor) { p.diag = &rate.Sometimes{Interval: d} }
}

func NewProcessor(d Deliverer, opts ...Option) *Processor {
	p := &Processor{
		clk:     clock.New(),
		log:     utils.NopLogger(),
		deliver: d,
		diag:    &rate.Sometimes{Interval: time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process decodes one payload. Payloads starting with '{' take the JSON branch,
// anything else is parsed as `<id>#<hex>`.
func (p *Processor) Process(payload []byte) (Record, error) {
	p.processed.Add(1)
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Record{}, ErrEmptyPayload
	}
	if trimmed[0] == '{' {
		return p.processJSON(string(trimmed))
	}
	return p.processRaw(string(trimmed))
}

// Handle processes payload and delivers the record. Failures are logged and
// counted; the caller can keep feeding messages regardless of the result.
func (p *Processor) Handle(ctx context.Context, payload []byte) error {
	defer p.diag.Do(func() {
		s := p.Stats()
		p.log.Info("pipeline: processed=%d delivered=%d dropped=%d repaired=%d",
			s.Processed, s.Delivered, s.Dropped, s.Repaired)
	})

	rec, err := p.Process(payload)
	if err != nil {
		p.dropped.Add(1)
		p.log.Warn("drop %q: %v", truncate(string(payload), 120), err)
		return err
	}
	if p.deliver == nil {
		return nil
	}
	if err := p.deliver.Deliver(ctx, rec); err != nil {
		p.dropped.Add(1)
		p.log.Error("deliver id=0x%08X: %v", rec.ID, err)
		return errors.Wrap(err, "deliver")
	}
	p.delivered.Add(1)
	return nil
}

func (p *Processor) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Delivered: p.delivered.Load(),
		Dropped:   p.dropped.Load(),
		Repaired:  p.repaired.Load(),
	}
}

func (p *Processor) processRaw(line string) (Record, error) {
	f, err := ParseRawFrame(line)
	if err != nil {
		return Record{}, err
	}
	signals := p.decodeFrame(f.ID, f.Data)
	if len(signals) == 0 {
		p.log.Trace("no signals for id=0x%08X pgn=%s", f.ID, j1939.PGNName(j1939.PGN(f.ID)))
	}
	return Record{
		ID:        f.ID,
		Timestamp: p.clk.Now().UnixMilli(),
		Raw:       line,
		Signals:   signals,
		Resolved:  Standardize(signals, nil),
	}, nil
}

func (p *Processor) processJSON(text string) (Record, error) {
	repaired := RepairJSON(text)
	if repaired != text {
		p.repaired.Add(1)
		p.log.Debug("repaired telemetry json: %s", truncate(repaired, 120))
	}
	env, err := ParseEnvelope([]byte(repaired))
	if err != nil {
		return Record{}, err
	}

	signals := make(map[string]float64, len(env.Signals))
	for k, v := range env.Signals {
		signals[k] = v
	}
	for _, n := range j1939.CoolantTempNames {
		if v, ok := signals[n]; ok {
			if c, fixed := j1939.CorrectCoolantMisScale(v); fixed {
				signals[n] = c
			}
		}
	}
	if env.HasData && env.HasID {
		for k, v := range p.decodeFrame(env.ID, env.Data) {
			if _, ok := signals[k]; !ok {
				signals[k] = v
			}
		}
	}

	rec := Record{
		ID:           env.ID,
		Timestamp:    env.Timestamp,
		Raw:          env.Raw,
		Bus:          env.Bus,
		Name:         env.Name,
		Signals:      signals,
		Resolved:     Standardize(signals, env.Fields),
		OriginalData: env.Original,
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = p.clk.Now().UnixMilli()
	}
	if rec.Raw == "" && env.HasData && env.HasID {
		rec.Raw = RawFrame{ID: env.ID, Data: env.Data}.String()
	}
	return rec, nil
}

// decodeFrame prefers the signal map for ids it describes and falls back to the
// built-in J1939 table for extended ids.
func (p *Processor) decodeFrame(id uint32, data []byte) map[string]float64 {
	if msg, ok := p.dbc.DecodeMessage(id, data); ok {
		return msg.Values
	}
	if id > 0x7FF {
		return j1939.Decode(id, data)
	}
	return map[string]float64{}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
