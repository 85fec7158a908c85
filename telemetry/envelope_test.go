package telemetry

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	in := `{"arbitration_id":"0x18FEF100","ts":"2024-05-01T10:00:00.250Z","bus":"can1",` +
		`"raw":"x","name":"CCVS","signals":{"VehicleSpeed":88.5,"Gear":"3","Label":"high","Bad":null},` +
		`"Odometer":"1234.5","extra":{"nested":true},"data":"00 80 58"}`

	env, err := ParseEnvelope([]byte(in))
	require.NoError(t, err)

	assert.True(t, env.HasID)
	assert.Equal(t, uint32(0x18FEF100), env.ID)
	assert.Equal(t, int64(1714557600250), env.Timestamp)
	assert.Equal(t, "can1", env.Bus)
	assert.Equal(t, "x", env.Raw)
	assert.Equal(t, "CCVS", env.Name)
	assert.Equal(t, map[string]float64{"VehicleSpeed": 88.5, "Gear": 3}, env.Signals)
	assert.Equal(t, map[string]float64{"Odometer": 1234.5}, env.Fields)
	assert.True(t, env.HasData)
	assert.Equal(t, []byte{0x00, 0x80, 0x58}, env.Data)
	assert.JSONEq(t, in, string(env.Original))
}

func TestParseEnvelope_IDSpellings(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   uint32
		wantOK bool
	}{
		{"numeric id", `{"id":217056256}`, 0x0CF00400, true},
		{"can_id string", `{"can_id":"217056256"}`, 0x0CF00400, true},
		{"id wins over can_id", `{"id":1,"can_id":2}`, 1, true},
		{"falls through unusable id", `{"id":"nope","can_id":5}`, 5, true},
		{"fractional id", `{"id":1.5}`, 0, false},
		{"too wide", `{"id":536870912}`, 0, false},
		{"absent", `{"signals":{}}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, env.HasID)
			assert.Equal(t, tt.want, env.ID)
		})
	}
}

func TestParseEnvelope_Timestamp(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"timestamp":1700000000123,"ts":5}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), env.Timestamp)

	env, err = ParseEnvelope([]byte(`{"ts":"yesterday"}`))
	require.NoError(t, err)
	assert.Zero(t, env.Timestamp)
}

func TestParseEnvelope_Data(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   []byte
		wantOK bool
	}{
		{"byte array", `[140,40,0]`, []byte{0x8C, 0x28, 0x00}, true},
		{"spaced hex", `"8C 28 00"`, []byte{0x8C, 0x28, 0x00}, true},
		{"packed hex", `"8c2800"`, []byte{0x8C, 0x28, 0x00}, true},
		{"out of range byte", `[256]`, nil, false},
		{"odd hex", `"8C 2"`, nil, false},
		{"object", `{}`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(`{"id":1,"data":` + tt.data + `}`))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, env.HasData)
			assert.Equal(t, tt.want, env.Data)
		})
	}
}

func TestParseEnvelope_Malformed(t *testing.T) {
	for _, in := range []string{`{"id":`, `[1,2]`, `null`, `"text"`} {
		_, err := ParseEnvelope([]byte(in))
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrMalformedJSON))
	}
}
