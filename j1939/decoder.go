package j1939

import "encoding/binary"

// Not-available sentinels. A field holding its sentinel is never emitted.
const (
	notAvailable8  = 0xFF
	notAvailable16 = 0xFFFF
	notAvailable32 = 0xFFFFFFFF
)

type pgnDecoder func(data []byte, out Signals)

var decoders = map[uint16]pgnDecoder{
	PGNEEC1:    decodeEEC1,
	PGNCCVS:    decodeCCVS,
	PGNET1:     decodeET1,
	PGNLFE1:    decodeLFE1,
	PGNIC1:     decodeIC1,
	PGNVEP1:    decodeVEP1,
	PGNDashDsp: decodeDashDisplay,
	PGNVD:      decodeVehicleDistance,
}

// Supported reports whether pgn has a decoder.
func Supported(pgn uint16) bool {
	_, ok := decoders[pgn]
	return ok
}

// Decode resolves the PGN of id and returns the signals its payload carries.
// Unknown PGNs, short payloads and not-available fields simply produce fewer
// signals; Decode never fails.
func Decode(id uint32, data []byte) Signals {
	out := Signals{}
	fn, ok := decoders[PGN(id)]
	if !ok {
		return out
	}
	run(fn, data, out)
	return out
}

// run keeps whatever fields were decoded before a fault in fn.
func run(fn pgnDecoder, data []byte, out Signals) {
	defer func() {
		_ = recover()
	}()
	fn(data, out)
}

func u8(data []byte, i int) (uint8, bool) {
	if i < 0 || i >= len(data) || data[i] == notAvailable8 {
		return 0, false
	}
	return data[i], true
}

func u16le(data []byte, i int) (uint16, bool) {
	if i < 0 || i+2 > len(data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(data[i:])
	if v == notAvailable16 {
		return 0, false
	}
	return v, true
}

func u32le(data []byte, i int) (uint32, bool) {
	if i < 0 || i+4 > len(data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(data[i:])
	if v == notAvailable32 {
		return 0, false
	}
	return v, true
}

func decodeEEC1(data []byte, out Signals) {
	if raw, ok := u16le(data, 3); ok {
		out.SetAll(float64(raw)*0.125, RPMNames...)
	}
	if b, ok := u8(data, 2); ok {
		out[ActualEngineTorque] = float64(b) - 125
	}
}

func decodeCCVS(data []byte, out Signals) {
	if raw, ok := u16le(data, 1); ok {
		out[VehicleSpeed] = float64(raw) / 256
	}
}

func decodeET1(data []byte, out Signals) {
	if b, ok := u8(data, 0); ok {
		v := float64(b) - coolantOffset
		if c, fixed := CorrectCoolantMisScale(v); fixed {
			v = c
		}
		out.SetAll(v, CoolantTempNames...)
	}

	for i, name := range []string{EngFuelTemp1, EngIntercoolerTemp, EngIntercoolerOpen} {
		if b, ok := u8(data, i+1); ok {
			out[name] = float64(b) * 0.4
		}
	}

	switch {
	case len(data) >= 6:
		if raw, ok := u16le(data, 4); ok {
			v := float64(raw)*oilTempResolution - oilTempOffset
			if v > -60 && v < 400 {
				out.SetAll(v, OilTempNames...)
			}
		}
	case len(data) == 5:
		// only the low byte arrived; a coarse 1-byte reading beats none
		if b, ok := u8(data, 4); ok {
			out.SetAll(float64(b)-coolantOffset, OilTempNames...)
		}
	}

	if len(data) >= 8 {
		if raw, ok := u16le(data, 6); ok {
			v := float64(raw)*oilTempResolution - oilTempOffset
			if v > -60 && v < 900 {
				out[EngTurboOilTemp] = v
			}
		}
	}
}

func decodeLFE1(data []byte, out Signals) {
	if b, ok := u8(data, 3); ok {
		out.SetAll(float64(b)*4, OilPressureNames...)
	}
}

func decodeIC1(data []byte, out Signals) {
	b, ok := u8(data, 0)
	if !ok {
		b, ok = u8(data, 1)
	}
	if ok {
		out.SetAll(float64(b)*2, IntakeManifoldNames...)
	}
}

func decodeVEP1(data []byte, out Signals) {
	if raw, ok := u16le(data, 4); ok {
		out.SetAll(float64(raw)*0.05, BatteryVoltageNames...)
	}
}

func decodeDashDisplay(data []byte, out Signals) {
	if b, ok := u8(data, 1); ok {
		out.SetAll(float64(b)*0.4, FuelLevelNames...)
	}
}

func decodeVehicleDistance(data []byte, out Signals) {
	if raw, ok := u32le(data, 0); ok {
		out[TotalVehicleDistance] = float64(raw) * 0.125
	}
}
