// Package telemetry normalizes inbound vehicle telemetry (raw CAN frame text or
// JSON envelopes) into canonical records.
package telemetry

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can"

	"can-telemetry-core/utils"
)

const maxExtendedID = 0x1FFFFFFF

// RawFrame is one CAN frame as received. Data may exceed 8 bytes when the sender
// did not validate it; decoders treat bytes they need but do not find as absent.
type RawFrame struct {
	ID   uint32
	Data []byte
}

// ParseRawFrame parses `<id>#<hex>`, where id is decimal, 0x-prefixed hex or bare hex
// and the payload is an even number of hex digits without separators.
func ParseRawFrame(line string) (RawFrame, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return RawFrame{}, ErrEmptyPayload
	}
	idPart, dataPart, ok := strings.Cut(line, "#")
	if !ok {
		return RawFrame{}, errors.Wrap(ErrMalformedFrame, "missing '#'")
	}
	if idPart == "" {
		return RawFrame{}, errors.Wrap(ErrMalformedFrame, "empty id")
	}
	id, err := utils.ParseCANID(idPart)
	if err != nil {
		return RawFrame{}, errors.Wrapf(ErrMalformedFrame, "id %q: %v", idPart, err)
	}
	if id > maxExtendedID {
		return RawFrame{}, errors.Wrapf(ErrMalformedFrame, "id 0x%X exceeds 29 bits", id)
	}
	if len(dataPart)%2 != 0 {
		return RawFrame{}, errors.Wrapf(ErrMalformedFrame, "odd hex length %d", len(dataPart))
	}
	data, err := hex.DecodeString(dataPart)
	if err != nil {
		return RawFrame{}, errors.Wrapf(ErrMalformedFrame, "payload: %v", err)
	}
	return RawFrame{ID: id, Data: data}, nil
}

// String renders the frame as `0x%08X#HEX`, which ParseRawFrame accepts.
func (f RawFrame) String() string {
	return fmt.Sprintf("0x%08X#%X", f.ID, f.Data)
}

// CANFrame converts to an einride frame; frames longer than 8 bytes do not fit.
func (f RawFrame) CANFrame() (can.Frame, bool) {
	if len(f.Data) > 8 {
		return can.Frame{}, false
	}
	cf := can.Frame{
		ID:         f.ID,
		Length:     uint8(len(f.Data)),
		IsExtended: f.ID > 0x7FF,
	}
	copy(cf.Data[:], f.Data)
	return cf, true
}

// FromCANFrame copies an einride frame.
func FromCANFrame(cf can.Frame) RawFrame {
	data := make([]byte, cf.Length)
	copy(data, cf.Data[:cf.Length])
	return RawFrame{ID: cf.ID, Data: data}
}
