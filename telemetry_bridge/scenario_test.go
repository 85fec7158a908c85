package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"can-telemetry-core/telemetry"
	"can-telemetry-core/utils"
)

func loadBench(t *testing.T) (*utils.CANMap, Scenario) {
	t.Helper()
	table, err := loadTableFile("testdata/j1939_bench.dbc", utils.NopLogger())
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	scen, err := LoadScenario("testdata/bench.json")
	require.NoError(t, err)
	return table, scen
}

func TestEvalValues(t *testing.T) {
	_, scen := loadBench(t)
	tests := []struct {
		name string
		t    float64
		want map[string]float64
	}{
		{"warm-up start", 0, map[string]float64{
			"EngineSpeed": 650, "ActualEnginePercentTorque": 0, "WheelBasedVehicleSpeed": 0, "EngCoolantTemp": 40}},
		{"warm-up ramp", 2.5, map[string]float64{
			"EngineSpeed": 650, "ActualEnginePercentTorque": 0, "WheelBasedVehicleSpeed": 0, "EngCoolantTemp": 50}},
		{"accelerating", 10, map[string]float64{
			"EngineSpeed": 1150, "ActualEnginePercentTorque": 20, "WheelBasedVehicleSpeed": 40, "EngCoolantTemp": 72.5}},
		{"open-ended cruise", 19.9, map[string]float64{
			"EngineSpeed": 1500, "ActualEnginePercentTorque": 35, "WheelBasedVehicleSpeed": 80, "EngCoolantTemp": 85}},
		{"after the end falls back to defaults", 25, map[string]float64{
			"EngineSpeed": 650, "ActualEnginePercentTorque": 0, "WheelBasedVehicleSpeed": 0, "EngCoolantTemp": 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvalValues(&scen, tt.t)
			require.Len(t, got, len(tt.want))
			for k, v := range tt.want {
				assert.InDelta(t, v, got[k], 1e-9, k)
			}
		})
	}
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"no duration", `{"frames":[{"name":"EEC1"}]}`},
		{"no frames", `{"timing":{"duration_s":1}}`},
		{"reversed segment", `{"timing":{"duration_s":1},"frames":[{"name":"EEC1"}],"segments":[{"t0":2,"t1":1}]}`},
		{"ramp without start", `{"timing":{"duration_s":1},"frames":[{"name":"EEC1"}],"segments":[{"t0":0,"t1":1,"ramp_to":{"X":1}}]}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}

// Frames encoded from the DBC decode back through the built-in J1939 table.
func TestSimulator_FramesDecodeThroughJ1939(t *testing.T) {
	table, scen := loadBench(t)
	sim, err := NewSimulator(table, scen, &textFrameSink{w: &bytes.Buffer{}}, utils.NopLogger(), clock.New())
	require.NoError(t, err)
	proc := telemetry.NewProcessor(nil)

	decodeAt := func(frame string, at float64) telemetry.Record {
		fd, err := table.FrameByName(frame)
		require.NoError(t, err)
		f, err := sim.FrameAt(fd, at)
		require.NoError(t, err)
		rec, err := proc.Process([]byte(f.String()))
		require.NoError(t, err)
		return rec
	}

	eec1 := decodeAt("EEC1", 10)
	assert.Equal(t, uint32(0x0CF004FE), eec1.ID)
	assert.Equal(t, 1150.0, eec1.RPM)
	assert.Equal(t, 20.0, eec1.Signals["ActualEngineTorque"])

	ccvs := decodeAt("CCVS", 10)
	assert.Equal(t, 40.0, ccvs.Speed)

	et1 := decodeAt("ET1", 2.5)
	assert.Equal(t, 50.0, et1.CoolantTemp)
}

func TestNewSimulator_Errors(t *testing.T) {
	table, scen := loadBench(t)

	scen.Frames = []ScenarioFrame{{Name: "NOPE", CycleMS: 10}}
	_, err := NewSimulator(table, scen, &textFrameSink{w: &bytes.Buffer{}}, utils.NopLogger(), clock.New())
	assert.Error(t, err)

	// the bench DBC carries no cycle times
	scen.Frames = []ScenarioFrame{{Name: "EEC1"}}
	_, err = NewSimulator(table, scen, &textFrameSink{w: &bytes.Buffer{}}, utils.NopLogger(), clock.New())
	assert.Error(t, err)
}

func TestSimulator_RunStopsAtEnd(t *testing.T) {
	table, scen := loadBench(t)
	scen.Timing.DurationS = 0.05
	scen.Frames = []ScenarioFrame{{Name: "EEC1", CycleMS: 10}}

	var out bytes.Buffer
	sim, err := NewSimulator(table, scen, &textFrameSink{w: &out}, utils.NopLogger(), clock.New())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sim.Run(ctx))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.GreaterOrEqual(t, len(lines), 1)
	assert.LessOrEqual(t, len(lines), 6)
	assert.Equal(t, uint64(len(lines)), sim.Sent())
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "0x0CF004FE#"), l)
	}
}

func TestSimulator_RunHonoursCancel(t *testing.T) {
	table, scen := loadBench(t)
	scen.Timing.Loop = true
	scen.Frames = []ScenarioFrame{{Name: "CCVS", CycleMS: 5}}

	sim, err := NewSimulator(table, scen, &textFrameSink{w: &bytes.Buffer{}}, utils.NopLogger(), clock.New())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sim.Run(ctx), context.DeadlineExceeded)
}
