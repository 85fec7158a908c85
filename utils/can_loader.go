package utils

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var signalMapColumns = []string{
	"frame_id", "frame_name", "dlc",
	"signal_name", "start_bit", "bit_length", "endianness",
	"signed", "factor", "offset",
}

// LoadCANMap reads a CSV signal map from disk.
func LoadCANMap(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCANMap(f)
}

// ReadCANMap parses a CSV signal map: one row per signal, frames grouped by frame_id.
// direction, cycle_ms, min, max, default, unit and comment columns are optional.
func ReadCANMap(rd io.Reader) (*CANMap, error) {
	r := csv.NewReader(rd)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, k := range signalMapColumns {
		if _, ok := idx[k]; !ok {
			return nil, errors.Newf("signal map missing required column: %q", k)
		}
	}
	col := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	m := NewCANMap()

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		frameID, err := parseHexOrDecUint32(col(rec, "frame_id"))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid frame_id %q", col(rec, "frame_id"))
		}

		frameName := col(rec, "frame_name")
		dlc := mustInt(col(rec, "dlc"))

		endianness := strings.ToLower(col(rec, "endianness"))
		sig := SignalDef{
			Name:         col(rec, "signal_name"),
			StartBit:     mustInt(col(rec, "start_bit")),
			BitLength:    mustInt(col(rec, "bit_length")),
			LittleEndian: endianness != "big",
			Signed:       mustBool(col(rec, "signed")),
			Factor:       mustFloat(col(rec, "factor")),
			Offset:       mustFloat(col(rec, "offset")),
			Min:          mustFloat(col(rec, "min")),
			Max:          mustFloat(col(rec, "max")),
			Default:      mustFloat(col(rec, "default")),
			Unit:         col(rec, "unit"),
			Comment:      col(rec, "comment"),
		}

		if endianness != "" && endianness != "little" && endianness != "big" {
			return nil, errors.Newf("frame %s signal %s: unsupported endianness %q", frameName, sig.Name, endianness)
		}
		if sig.BitLength <= 0 || sig.BitLength > 64 {
			return nil, errors.Newf("frame %s signal %s: invalid bit_length %d", frameName, sig.Name, sig.BitLength)
		}
		if dlc <= 0 || dlc > 8 {
			return nil, errors.Wrapf(ErrInvalidDLC, "frame %s (0x%X): %d", frameName, frameID, dlc)
		}

		fd, ok := m.ByID[frameID]
		if !ok {
			fd = &FrameDef{
				ID:        frameID,
				Name:      frameName,
				DLC:       dlc,
				Direction: col(rec, "direction"),
				CycleMS:   mustInt(col(rec, "cycle_ms")),
			}
			m.add(fd)
		}

		if fd.DLC != dlc {
			return nil, errors.Newf("frame %s (0x%X) has inconsistent DLC (%d vs %d)", frameName, frameID, fd.DLC, dlc)
		}

		fd.Signals = append(fd.Signals, sig)
	}

	for _, fd := range m.ByID {
		sort.SliceStable(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}

	return m, nil
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFrame, "%q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	if m == nil {
		return nil, errors.Wrapf(ErrUnknownFrame, "id 0x%X", id)
	}
	fd, ok := m.ByID[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFrame, "id 0x%X", id)
	}
	return fd, nil
}

// ParseCANID accepts decimal, 0x-prefixed hex, or bare hex containing a-f digits.
func ParseCANID(s string) (uint32, error) {
	return parseHexOrDecUint32(s)
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X"):
		base = 16
		ss = ss[2:]
	case strings.ContainsAny(ss, "abcdefABCDEF"):
		base = 16
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func mustBool(s string) bool {
	ss := strings.TrimSpace(strings.ToLower(s))
	return ss == "true" || ss == "1" || ss == "yes"
}
