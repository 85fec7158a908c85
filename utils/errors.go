package utils

import "github.com/cockroachdb/errors"

var (
	ErrUnknownFrame = errors.New("unknown frame")
	ErrInvalidDLC   = errors.New("invalid dlc")
)
