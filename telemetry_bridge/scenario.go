package main

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
)

// Scenario drives the bench simulator: which frames to transmit and what each
// signal reads over time.
type Scenario struct {
	Meta     ScenarioMeta       `json:"meta"`
	Timing   ScenarioTiming     `json:"timing"`
	Frames   []ScenarioFrame    `json:"frames"`
	Defaults map[string]float64 `json:"defaults"`
	Segments []ScenarioSegment  `json:"segments"`
}

type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
	Loop      bool    `json:"loop"`
}

// ScenarioFrame names a frame of the signal table. CycleMS overrides the table's
// cycle time.
type ScenarioFrame struct {
	Name    string `json:"name"`
	CycleMS int    `json:"cycle_ms,omitempty"`
}

// ScenarioSegment sets signal values for t0 <= t < t1; t1 < 0 runs to the end.
// Signals listed in RampTo move linearly from Values to RampTo across the segment.
type ScenarioSegment struct {
	T0      float64            `json:"t0"`
	T1      float64            `json:"t1"`
	Values  map[string]float64 `json:"values"`
	RampTo  map[string]float64 `json:"ramp_to,omitempty"`
	Comment string             `json:"comment,omitempty"`
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, errors.Wrap(err, "read scenario")
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (Scenario, error) {
	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, errors.Wrap(err, "unmarshal scenario")
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, errors.Newf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if len(scen.Frames) == 0 {
		return Scenario{}, errors.New("scenario lists no frames")
	}
	for i, seg := range scen.Segments {
		if seg.T1 >= 0 && seg.T1 <= seg.T0 {
			return Scenario{}, errors.Newf("segment %d: t1 %.3f not after t0 %.3f", i, seg.T1, seg.T0)
		}
		for name := range seg.RampTo {
			if _, ok := seg.Values[name]; !ok {
				return Scenario{}, errors.Newf("segment %d: ramp_to %s has no start value", i, name)
			}
		}
	}
	return scen, nil
}

// EvalValues returns the signal values at time t: the defaults, overridden by the
// first segment covering t.
func EvalValues(scen *Scenario, t float64) map[string]float64 {
	values := make(map[string]float64, len(scen.Defaults))
	for k, v := range scen.Defaults {
		values[k] = v
	}

	for _, seg := range scen.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = scen.Timing.DurationS
		}
		if t < seg.T0 || t >= t1 {
			continue
		}
		frac := (t - seg.T0) / (t1 - seg.T0)
		for k, v := range seg.Values {
			if end, ok := seg.RampTo[k]; ok {
				v += (end - v) * frac
			}
			values[k] = v
		}
		break
	}
	return values
}
