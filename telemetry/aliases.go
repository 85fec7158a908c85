package telemetry

import "can-telemetry-core/j1939"

// FieldAliases lists, in priority order, the source keys that may carry one flat
// record field.
type FieldAliases struct {
	Field string
	Keys  []string
	slot  func(*Resolved) *float64
}

// Aliases is the resolution table for the flat record fields.
var Aliases = []FieldAliases{
	{
		Field: "speed",
		Keys:  []string{j1939.VehicleSpeed, "WheelBasedVehicleSpeed", "Speed", "speed"},
		slot:  func(r *Resolved) *float64 { return &r.Speed },
	},
	{
		Field: "rpm",
		Keys:  []string{j1939.EngineRPM, j1939.EngineSpeed, j1939.EngSpeed, "RPM", "rpm"},
		slot:  func(r *Resolved) *float64 { return &r.RPM },
	},
	{
		Field: "engineTemp",
		Keys:  []string{j1939.EngOilTemp1, j1939.EngOilTemp, "EngineOilTemp", "EngineTemp", "engineTemp"},
		slot:  func(r *Resolved) *float64 { return &r.EngineTemp },
	},
	{
		Field: "coolantTemp",
		Keys:  []string{j1939.EngCoolantTemp, j1939.EngineCoolantTemp, "CoolantTemp", "coolantTemp"},
		slot:  func(r *Resolved) *float64 { return &r.CoolantTemp },
	},
	{
		Field: "distance",
		Keys:  []string{j1939.TotalVehicleDistance, "TotalDistance", "Odometer", "distance"},
		slot:  func(r *Resolved) *float64 { return &r.Distance },
	},
	{
		Field: "operationTime",
		Keys:  []string{"EngTotalHoursOfOperation", "EngineTotalHoursOfOperation", "EngineHours", "operationTime"},
		slot:  func(r *Resolved) *float64 { return &r.OperationTime },
	},
	{
		Field: "fuelRate",
		Keys:  []string{"EngFuelRate", "FuelRate", "fuelRate"},
		slot:  func(r *Resolved) *float64 { return &r.FuelRate },
	},
	{
		Field: "fuelEco",
		Keys:  []string{"EngInstantaneousFuelEconomy", "FuelEconomy", "fuelEco"},
		slot:  func(r *Resolved) *float64 { return &r.FuelEco },
	},
}

// Resolved holds the flat convenience copies of well-known signals. A field no
// alias matched stays 0.
type Resolved struct {
	Speed         float64 `json:"speed"`
	RPM           float64 `json:"rpm"`
	EngineTemp    float64 `json:"engineTemp"`
	CoolantTemp   float64 `json:"coolantTemp"`
	Distance      float64 `json:"distance"`
	OperationTime float64 `json:"operationTime"`
	FuelRate      float64 `json:"fuelRate"`
	FuelEco       float64 `json:"fuelEco"`
}

// Resolve returns the value of the first key found in signals, then the first found
// in top.
func Resolve(keys []string, signals, top map[string]float64) (float64, bool) {
	for _, src := range []map[string]float64{signals, top} {
		for _, k := range keys {
			if v, ok := src[k]; ok {
				return v, true
			}
		}
	}
	return 0, false
}

// BackfillRPM copies the highest priority RPM spelling present into the missing ones.
func BackfillRPM(signals map[string]float64) {
	v, ok := j1939.Signals(signals).First(j1939.RPMNames...)
	if !ok {
		return
	}
	for _, n := range j1939.RPMNames {
		if _, present := signals[n]; !present {
			signals[n] = v
		}
	}
}

// Standardize back-fills RPM aliases in signals and resolves every flat field.
// signals is modified in place.
func Standardize(signals, top map[string]float64) Resolved {
	BackfillRPM(signals)
	var r Resolved
	for _, fa := range Aliases {
		if v, ok := Resolve(fa.Keys, signals, top); ok {
			*fa.slot(&r) = v
		}
	}
	return r
}
