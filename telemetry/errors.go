package telemetry

import "github.com/cockroachdb/errors"

var (
	ErrEmptyPayload   = errors.New("empty payload")
	ErrMalformedFrame = errors.New("malformed raw frame")
	ErrMalformedJSON  = errors.New("malformed telemetry json")
)
