package telemetry

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // expected JSON after parsing
	}{
		{
			name: "empty signals value",
			in:   "{\"id\":1,\"signals\": \n\"ts\":123}",
			want: `{"id":1,"signals":{},"ts":123}`,
		},
		{
			name: "signals spliced into parent",
			in:   `{"id":1,"signals":"A":1.0,"ts":2}`,
			want: `{"id":1,"signals":{"A":1.0},"ts":2}`,
		},
		{
			name: "several orphaned pairs",
			in:   `{"can_id":"0x18FEF100","signals":"VehicleSpeed":88.5, "EngineRPM":1500,"bus":"can0"}`,
			want: `{"can_id":"0x18FEF100","signals":{"VehicleSpeed":88.5,"EngineRPM":1500},"bus":"can0"}`,
		},
		{
			name: "bare keys",
			in:   `{"id":7,"signals":FuelLevel:40,BatteryVoltage:13.8}`,
			want: `{"id":7,"signals":{"FuelLevel":40,"BatteryVoltage":13.8}}`,
		},
		{
			name: "empty signals before closing brace",
			in:   `{"id":1,"signals":}`,
			want: `{"id":1,"signals":{}}`,
		},
		{
			name: "unlisted string member ends the run",
			in:   `{"id":1,"signals":"A":1.0,"vin":"X1","ts":2}`,
			want: `{"id":1,"signals":{"A":1.0},"vin":"X1","ts":2}`,
		},
		{
			name: "unlisted object member ends the run",
			in:   `{"id":1,"signals":"A":-2,"meta":{"fw":3}}`,
			want: `{"id":1,"signals":{"A":-2},"meta":{"fw":3}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RepairJSON(tt.in)
			require.True(t, json.Valid([]byte(out)), "output %q", out)
			assert.JSONEq(t, tt.want, out)
		})
	}
}

func TestRepairJSON_LeavesValidInputAlone(t *testing.T) {
	for _, in := range []string{
		`{"id":1,"signals":{"A":1},"ts":2}`,
		"{\n  \"id\" : 1 ,\n  \"signals\" : { }\n}",
		`{"id":1}`,
		`[]`,
		`"signals"`,
	} {
		assert.Equal(t, in, RepairJSON(in))
	}
}

func TestRepairJSON_GivesUpUnchanged(t *testing.T) {
	for _, in := range []string{
		``,
		`not json`,
		`{"id":1,"signals":"A" 1,"ts":2}`,
		`{"id": 1, oops}`,
		`{"id":1}}`,
		`{"id":1,"sig`,
		`{`,
		`{"id":1,"signals":"A":1`,
		`{"id":1,"signals":{"A":1,"B":2,`,
		`{"id":1,"data":[1,2`,
	} {
		assert.Equal(t, in, RepairJSON(in), "input %q", in)
	}
}

// A value cut off at the end of the input must not come back as a shorter number.
func TestRepairJSON_NeverClosesTruncatedNumbers(t *testing.T) {
	full := `{"id":217056256,"signals":{"EngineRPM":1500,"VehicleSpeed":88.5},"ts":2}`
	spliced := `{"id":217056256,"signals":"EngineRPM":1500,"VehicleSpeed":88.5,"ts":2}`
	for _, src := range []string{full, spliced} {
		for n := 1; n < len(src); n++ {
			cut := src[:n]
			out := RepairJSON(cut)
			if out == cut {
				continue
			}
			var got struct {
				Signals map[string]float64 `json:"signals"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &got), "input %q", cut)
			for k, v := range got.Signals {
				assert.Contains(t, []float64{1500, 88.5}, v, "input %q signal %s", cut, k)
			}
		}
	}
}

func TestRepairJSON_Idempotent(t *testing.T) {
	seeds := []string{
		"{\"id\":1,\"signals\": \n\"ts\":123}",
		`{"id":1,"signals":"A":1.0,"ts":2}`,
		`{"id":1,"signals":{"A":1,"B":[1,{"c":"}"}]},"ts":2}`,
		`{"bus":"can0","signals":Speed:1,"raw":"1#00"}`,
	}
	alphabet := []byte(`{}[]:,"signals AB12.\n`)
	rng := rand.New(rand.NewSource(4510))

	check := func(x string) {
		once := RepairJSON(x)
		assert.Equal(t, once, RepairJSON(once), "input %q", x)
	}
	for _, s := range seeds {
		check(s)
		for i := 0; i < 300; i++ {
			b := []byte(s)
			switch rng.Intn(3) {
			case 0:
				b = b[:rng.Intn(len(b)+1)]
			case 1:
				j := rng.Intn(len(b))
				b = append(b[:j], b[j+1:]...)
			case 2:
				j := rng.Intn(len(b) + 1)
				c := alphabet[rng.Intn(len(alphabet))]
				b = append(b[:j], append([]byte{c}, b[j:]...)...)
			}
			check(string(b))
		}
	}
}
