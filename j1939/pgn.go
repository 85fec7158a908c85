// Package j1939 turns 29-bit J1939 identifiers and their payloads into named
// physical signals.
package j1939

import "fmt"

// Parameter group numbers this package decodes.
const (
	PGNEEC1    uint16 = 61444 // Electronic Engine Controller 1
	PGNVD      uint16 = 65248 // Vehicle Distance
	PGNET1     uint16 = 65262 // Engine Temperature 1
	PGNLFE1    uint16 = 65263 // engine fluid level/pressure (oil pressure in byte 3)
	PGNCCVS    uint16 = 65265 // Cruise Control/Vehicle Speed
	PGNIC1     uint16 = 65270 // Inlet/Exhaust Conditions 1
	PGNVEP1    uint16 = 65271 // Vehicle Electrical Power 1
	PGNDashDsp uint16 = 65276 // Dash Display
)

const pdu2Threshold = 240

// PGN derives the parameter group number from a 29-bit identifier. For PDU1
// formats (PF < 240) the PS byte is a destination address and does not take part.
func PGN(id uint32) uint16 {
	pf := uint16(id>>16) & 0xFF
	ps := uint16(id>>8) & 0xFF
	if pf < pdu2Threshold {
		return pf << 8
	}
	return pf<<8 | ps
}

// SourceAddress is the low byte of the identifier.
func SourceAddress(id uint32) uint8 {
	return uint8(id)
}

// Priority is the 3-bit priority field at the top of the identifier.
func Priority(id uint32) uint8 {
	return uint8(id>>26) & 0x7
}

var pgnNames = map[uint16]string{
	PGNEEC1:    "EEC1",
	PGNVD:      "VD",
	PGNET1:     "ET1",
	PGNLFE1:    "LFE1",
	PGNCCVS:    "CCVS",
	PGNIC1:     "IC1",
	PGNVEP1:    "VEP1",
	PGNDashDsp: "DD",
}

// PGNName returns the short acronym of a known PGN, or its number.
func PGNName(pgn uint16) string {
	if n, ok := pgnNames[pgn]; ok {
		return n
	}
	return fmt.Sprintf("PGN%d", pgn)
}
