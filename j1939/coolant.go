package j1939

import "math"

// Some upstream firmware reports coolant temperature after scaling the raw byte
// with the 16-bit oil temperature formula (raw*0.03125 - 273) instead of raw-40.
// Those readings land at or below -200 °C, which no coolant sensor can produce.
const (
	coolantMisScaleCeiling = -200.0
	oilTempResolution      = 0.03125
	oilTempOffset          = 273.0
	coolantOffset          = 40.0
)

// CorrectCoolantMisScale undoes the oil-formula mis-scale.
//
// Precondition: v <= -200. Otherwise v is returned unchanged with ok=false.
// Postcondition: when ok is true the implied raw byte is in 0..0xFE and the result
// is raw-40, so it lies in [-40, 214]. If the implied raw byte is out of range the
// reading is left as it was and ok is false.
func CorrectCoolantMisScale(v float64) (corrected float64, ok bool) {
	if math.IsNaN(v) || v > coolantMisScaleCeiling {
		return v, false
	}
	raw := math.Round((v + oilTempOffset) / oilTempResolution)
	if raw < 0 || raw >= notAvailable8 {
		return v, false
	}
	return raw - coolantOffset, true
}
