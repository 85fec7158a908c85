package utils

import (
	"math"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can"
)

// DecodedMessage is the result of decoding one frame against the signal map.
type DecodedMessage struct {
	ID     uint32             `json:"id"`
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
}

func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) ([]byte, uint32, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return nil, 0, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return nil, 0, errors.Wrapf(ErrInvalidDLC, "frame %s: %d", fd.Name, fd.DLC)
	}

	out := make([]byte, fd.DLC)
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		if s.Factor == 0 {
			continue
		}

		v = clamp(v, s.Min, s.Max)

		rawFloat := (v - s.Offset) / s.Factor
		raw := int64(math.Round(rawFloat))
		raw = clampRaw(raw, s.BitLength, s.Signed)

		InsertBits(out, s.StartBit, s.BitLength, s.LittleEndian, rawToUnsigned(raw, s.BitLength))
	}
	return out, fd.ID, nil
}

// EncodeEinrideFrame produces a can.Frame ready to transmit.
func (m *CANMap) EncodeEinrideFrame(frameName string, values map[string]float64) (can.Frame, error) {
	payload, id, err := m.EncodeFrame(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}

	var f can.Frame
	f.ID = id
	f.IsExtended = id > 0x7FF
	f.Length = uint8(len(payload))
	copy(f.Data[:], payload)

	return f, nil
}

// DecodeFrame returns the physical value of every signal of frameID whose bits are fully
// present in data. Signals that reach past the end of data (or past the frame's DLC)
// are left out rather than decoded from zero bits, as are unsigned 8, 16 and 32-bit
// fields holding the all-ones "not available" pattern.
func (m *CANMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	return fd.Decode(data), nil
}

func (fd *FrameDef) Decode(data []byte) map[string]float64 {
	n := len(data)
	if fd.DLC > 0 {
		n = min(n, fd.DLC)
	}
	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		if !BitSpanFits(n, s.StartBit, s.BitLength, s.LittleEndian) {
			continue
		}
		if s.NotAvailable(data) {
			continue
		}
		out[s.Name] = s.Physical(data)
	}
	return out
}

// NotAvailable reports whether an unsigned byte, word or double word field carries
// all ones.
func (s SignalDef) NotAvailable(data []byte) bool {
	if s.Signed {
		return false
	}
	switch s.BitLength {
	case 8, 16, 32:
		return ExtractBits(data, s.StartBit, s.BitLength, s.LittleEndian) == fullMask(s.BitLength)
	}
	return false
}

// Physical extracts the signal and applies raw*factor+offset.
func (s SignalDef) Physical(data []byte) float64 {
	u := ExtractBits(data, s.StartBit, s.BitLength, s.LittleEndian)
	if s.Signed {
		return float64(unsignedToRawInt64(u, s.BitLength, true))*s.Factor + s.Offset
	}
	return float64(u)*s.Factor + s.Offset
}

// DecodeMessage decodes a frame by id. A missing table or an unknown id is not an
// error; it simply yields no result.
func (m *CANMap) DecodeMessage(frameID uint32, data []byte) (*DecodedMessage, bool) {
	if m == nil {
		return nil, false
	}
	fd, ok := m.ByID[frameID]
	if !ok {
		return nil, false
	}
	return &DecodedMessage{ID: fd.ID, Name: fd.Name, Values: fd.Decode(data)}, true
}
