package telemetry

import (
	"context"
	"encoding/json"
)

// Record is the canonical telemetry message handed to the visualization layer.
// It is built once per inbound message and never changed afterwards.
type Record struct {
	ID        uint32             `json:"id"`
	Timestamp int64              `json:"timestamp"`
	Raw       string             `json:"raw"`
	Bus       string             `json:"bus,omitempty"`
	Name      string             `json:"name,omitempty"`
	Signals   map[string]float64 `json:"signals"`
	Resolved
	OriginalData json.RawMessage `json:"originalData,omitempty"`
}

// Deliverer receives every record the processor produces.
type Deliverer interface {
	Deliver(ctx context.Context, rec Record) error
}

// DeliverFunc adapts a function to Deliverer.
type DeliverFunc func(ctx context.Context, rec Record) error

func (f DeliverFunc) Deliver(ctx context.Context, rec Record) error { return f(ctx, rec) }
