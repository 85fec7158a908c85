package telemetry

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"can-telemetry-core/utils"
)

var idKeys = []string{"id", "can_id", "arbitration_id"}

// Envelope is a JSON telemetry message reduced to one strict shape, whatever
// spelling of id and timestamp the producer used.
type Envelope struct {
	ID    uint32
	HasID bool

	// Timestamp in unix milliseconds; zero when the message carried none.
	Timestamp int64

	Bus  string
	Raw  string
	Name string

	// Signals holds the numeric members of the "signals" object.
	Signals map[string]float64
	// Fields holds the numeric top-level members, the fallback for alias resolution.
	Fields map[string]float64

	Data    []byte
	HasData bool

	Original json.RawMessage
}

// ParseEnvelope normalizes one JSON object. Members of unexpected type are ignored
// rather than rejected; only text that is not a JSON object fails.
func ParseEnvelope(b []byte) (Envelope, error) {
	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedJSON, err.Error())
	}
	if root == nil {
		return Envelope{}, errors.Wrap(ErrMalformedJSON, "not an object")
	}

	env := Envelope{
		Signals:  map[string]float64{},
		Fields:   map[string]float64{},
		Original: json.RawMessage(append([]byte(nil), b...)),
	}

	for _, k := range idKeys {
		if id, ok := canID(root[k]); ok {
			env.ID, env.HasID = id, true
			break
		}
	}
	for _, k := range []string{"timestamp", "ts"} {
		if ts, ok := timestampMillis(root[k]); ok {
			env.Timestamp = ts
			break
		}
	}
	env.Bus = stringOf(root["bus"])
	env.Raw = stringOf(root["raw"])
	env.Name = stringOf(root["name"])

	if sig, ok := root["signals"].(map[string]any); ok {
		for k, v := range sig {
			if f, ok := floatOf(v); ok {
				env.Signals[k] = f
			}
		}
	}
	for k, v := range root {
		if k == "signals" {
			continue
		}
		if f, ok := floatOf(v); ok {
			env.Fields[k] = f
		}
	}

	if data, ok := dataBytes(root["data"]); ok {
		env.Data, env.HasData = data, true
	}
	return env, nil
}

func floatOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func canID(v any) (uint32, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t > maxExtendedID || t != math.Trunc(t) {
			return 0, false
		}
		return uint32(t), true
	case string:
		id, err := utils.ParseCANID(t)
		if err != nil || id > maxExtendedID {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

// timestampMillis accepts unix milliseconds as a number or numeric string, or an
// RFC 3339 string.
func timestampMillis(v any) (int64, bool) {
	if f, ok := floatOf(v); ok {
		return int64(f), true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// dataBytes accepts [140, 40, ...] or "8C 28 ..." (separators optional).
func dataBytes(v any) ([]byte, bool) {
	switch t := v.(type) {
	case []any:
		out := make([]byte, 0, len(t))
		for _, e := range t {
			f, ok := e.(float64)
			if !ok || f < 0 || f > 255 || f != math.Trunc(f) {
				return nil, false
			}
			out = append(out, byte(f))
		}
		return out, true
	case string:
		h := strings.Join(strings.Fields(t), "")
		if len(h)%2 != 0 {
			return nil, false
		}
		out, err := hex.DecodeString(h)
		if err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}
