package utils

// Bit positions follow DBC numbering: bit n lives in byte n/8 at bit n%8 (bit 0 = LSB).
// Little-endian (Intel) fields start at their LSB and walk upward. Big-endian (Motorola)
// fields start at their MSB and walk downward inside a byte, continuing at bit 7 of the
// next byte.
//
// Bits that fall outside the buffer read as 0 and are dropped on insert.

// ExtractBits returns the bitLen-bit unsigned value at startBit.
func ExtractBits(data []byte, startBit, bitLen int, littleEndian bool) uint64 {
	if bitLen <= 0 || bitLen > 64 {
		return 0
	}
	var v uint64
	pos := startBit
	for i := 0; i < bitLen; i++ {
		bit := bitAt(data, pos)
		if littleEndian {
			v |= bit << i
			pos++
		} else {
			v = v<<1 | bit
			pos = nextMotorolaBit(pos)
		}
	}
	return v
}

// ExtractSigned is ExtractBits followed by a two's-complement reinterpretation when signed is set.
func ExtractSigned(data []byte, startBit, bitLen int, littleEndian, signed bool) int64 {
	return unsignedToRawInt64(ExtractBits(data, startBit, bitLen, littleEndian), bitLen, signed)
}

// InsertBits writes the low bitLen bits of value at startBit, leaving other bits untouched.
func InsertBits(data []byte, startBit, bitLen int, littleEndian bool, value uint64) {
	if bitLen <= 0 || bitLen > 64 {
		return
	}
	pos := startBit
	for i := 0; i < bitLen; i++ {
		var bit uint64
		if littleEndian {
			bit = (value >> i) & 1
		} else {
			bit = (value >> (bitLen - 1 - i)) & 1
		}
		setBitAt(data, pos, bit)
		if littleEndian {
			pos++
		} else {
			pos = nextMotorolaBit(pos)
		}
	}
}

// BitSpanFits reports whether every bit of the field lies inside a buffer of n bytes.
func BitSpanFits(n, startBit, bitLen int, littleEndian bool) bool {
	if bitLen <= 0 || startBit < 0 {
		return false
	}
	limit := n * 8
	if littleEndian {
		return startBit+bitLen <= limit
	}
	pos := startBit
	for i := 0; i < bitLen; i++ {
		if pos < 0 || pos >= limit {
			return false
		}
		pos = nextMotorolaBit(pos)
	}
	return true
}

func nextMotorolaBit(pos int) int {
	if pos%8 == 0 {
		return pos + 15
	}
	return pos - 1
}

func bitAt(data []byte, pos int) uint64 {
	if pos < 0 || pos/8 >= len(data) {
		return 0
	}
	return uint64(data[pos/8]>>(pos%8)) & 1
}

func setBitAt(data []byte, pos int, bit uint64) {
	if pos < 0 || pos/8 >= len(data) {
		return
	}
	mask := byte(1) << (pos % 8)
	if bit != 0 {
		data[pos/8] |= mask
	} else {
		data[pos/8] &^= mask
	}
}

func fullMask(bitLen int) uint64 {
	if bitLen >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitLen) - 1
}

func unsignedToRawInt64(u uint64, bitLen int, signed bool) int64 {
	if !signed || bitLen <= 0 || bitLen > 64 {
		return int64(u)
	}
	signBit := uint64(1) << (bitLen - 1)
	if (u & signBit) == 0 {
		return int64(u)
	}
	twos := (^u + 1) & fullMask(bitLen)
	if bitLen == 64 {
		return int64(u)
	}
	return -int64(twos)
}

func rawToUnsigned(raw int64, bitLen int) uint64 {
	if raw >= 0 {
		return uint64(raw)
	}
	return uint64(raw) & fullMask(bitLen)
}

func clamp(v, lo, hi float64) float64 {
	if lo == 0 && hi == 0 {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampRaw(raw int64, bitLen int, signed bool) int64 {
	if bitLen <= 0 || bitLen > 63 {
		return raw
	}
	if !signed {
		max := int64((1 << bitLen) - 1)
		if raw < 0 {
			return 0
		}
		if raw > max {
			return max
		}
		return raw
	}
	min := -int64(1 << (bitLen - 1))
	max := int64((1 << (bitLen - 1)) - 1)
	if raw < min {
		return min
	}
	if raw > max {
		return max
	}
	return raw
}
