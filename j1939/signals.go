package j1939

// Signal names produced by the decoder. Several names may carry the same physical
// quantity; consumers pick whichever spelling they already know.
const (
	EngineSpeed          = "EngineSpeed"
	EngineRPM            = "EngineRPM"
	EngSpeed             = "EngSpeed"
	ActualEngineTorque   = "ActualEngineTorque"
	VehicleSpeed         = "VehicleSpeed"
	EngCoolantTemp       = "EngCoolantTemp"
	EngineCoolantTemp    = "EngineCoolantTemp"
	EngFuelTemp1         = "EngFuelTemp1"
	EngIntercoolerTemp   = "EngIntercoolerTemp"
	EngIntercoolerOpen   = "EngIntercoolerThermostatOpening"
	EngOilTemp1          = "EngOilTemp1"
	EngOilTemp           = "EngOilTemp"
	EngTurboOilTemp      = "EngTurboOilTemp"
	EngineOilPressure    = "EngineOilPressure"
	EngOilPress          = "EngOilPress"
	IntakeManifoldPress  = "IntakeManifoldPress"
	BatteryVoltage       = "BatteryVoltage"
	FuelLevel            = "FuelLevel"
	FuelLevelPercent     = "FuelLevelPercent"
	TotalVehicleDistance = "TotalVehicleDistance"
)

// Alias groups: every decoder that computes one of these quantities sets all names
// in the group.
var (
	RPMNames            = []string{EngineRPM, EngineSpeed, EngSpeed}
	CoolantTempNames    = []string{EngCoolantTemp, EngineCoolantTemp}
	OilTempNames        = []string{EngOilTemp1, EngOilTemp}
	OilPressureNames    = []string{EngineOilPressure, EngOilPress}
	IntakeManifoldNames = []string{IntakeManifoldPress, "IntakeManifoldPressure", "EngIntakeManifold1Press", "BoostPressure"}
	BatteryVoltageNames = []string{BatteryVoltage, "BatteryPotential", "BatteryPotentialPowerInput1"}
	FuelLevelNames      = []string{FuelLevel, FuelLevelPercent}
)

// Signals maps signal names to physical values.
type Signals map[string]float64

// SetAll stores v under every name.
func (s Signals) SetAll(v float64, names ...string) {
	for _, n := range names {
		s[n] = v
	}
}

// First returns the value of the first name present.
func (s Signals) First(names ...string) (float64, bool) {
	for _, n := range names {
		if v, ok := s[n]; ok {
			return v, true
		}
	}
	return 0, false
}
