package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"can-telemetry-core/telemetry"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func sampleRecord() telemetry.Record {
	return telemetry.Record{
		ID:        0x0CF00400,
		Timestamp: 1700000000000,
		Raw:       "217056256#FFFFFF8C28FFFFFF",
		Signals:   map[string]float64{"EngineRPM": 1297.5, "EngineSpeed": 1297.5},
		Resolved:  telemetry.Resolved{RPM: 1297.5},
	}
}

func TestNATS_Deliver(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", "telemetry.new", mock.MatchedBy(func(b []byte) bool {
		var got map[string]any
		if err := json.Unmarshal(b, &got); err != nil {
			return false
		}
		return got["rpm"] == 1297.5 && got["id"] == float64(0x0CF00400)
	})).Return(nil).Once()

	n := NewNATS(pub, "telemetry.new")
	require.NoError(t, n.Deliver(context.Background(), sampleRecord()))
	pub.AssertExpectations(t)
	assert.NoError(t, n.Close())
}

func TestNATS_DeliverError(t *testing.T) {
	boom := errors.New("no responders")
	pub := &mockPublisher{}
	pub.On("Publish", "telemetry.new", mock.Anything).Return(boom)

	err := NewNATS(pub, "telemetry.new").Deliver(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "publish telemetry.new")
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLines(&buf)
	require.NoError(t, w.Deliver(context.Background(), sampleRecord()))
	require.NoError(t, w.Deliver(context.Background(), telemetry.Record{ID: 1, Signals: map[string]float64{}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec telemetry.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, sampleRecord(), rec)
}

func TestConsole(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Deliver(context.Background(), sampleRecord()))
	assert.Equal(t,
		"0x0CF00400 || rpm=1297.5   speed=0.0    coolant=0.0    || EngineRPM=1297.5 EngineSpeed=1297.5\n",
		buf.String())

	assert.True(t, strings.HasSuffix(FormatRecord(telemetry.Record{ID: 5}), "|| no signals"))
}
