package common

// MortonBits is the number of bits each axis contributes to a Morton code. Three axes give a 30-bit code.
const MortonBits = 10

const mortonAxisMax = 1<<MortonBits - 1

// spreadBits inserts two zero bits between each of the low 10 bits of v.
func spreadBits(v uint32) uint32 {
	v &= mortonAxisMax
	v = (v | v<<16) & 0x030000FF
	v = (v | v<<8) & 0x0300F00F
	v = (v | v<<4) & 0x030C30C3
	v = (v | v<<2) & 0x09249249
	return v
}

// compactBits is the inverse of spreadBits.
func compactBits(v uint32) uint32 {
	v &= 0x09249249
	v = (v | v>>2) & 0x030C30C3
	v = (v | v>>4) & 0x0300F00F
	v = (v | v>>8) & 0x030000FF
	v = (v | v>>16) & mortonAxisMax
	return v
}

// Morton3 interleaves the low 10 bits of x, y and z into a 30-bit Morton code (x in bit 0, y in bit 1, z in bit 2).
//
// Parameters:
//   - x, y, z: quantized coordinates in [0, 1023]; higher bits are dropped
//
// Returns:
//   - uint32: the interleaved code
func Morton3(x, y, z uint32) uint32 {
	return spreadBits(x) | spreadBits(y)<<1 | spreadBits(z)<<2
}

// Morton3Decode splits a 30-bit Morton code back into its three axis values.
func Morton3Decode(code uint32) (x, y, z uint32) {
	return compactBits(code), compactBits(code >> 1), compactBits(code >> 2)
}

// MortonFromPosition quantizes p into the given bounds (10 bits per axis) and interleaves it.
// Positions outside the bounds are clamped; a degenerate axis maps to 0.
//
// Parameters:
//   - p: the world-space position
//   - b: the scene bounds used for normalization
//
// Returns:
//   - uint32: the 30-bit Morton code
func MortonFromPosition(p [3]float32, b Bounds) uint32 {
	var q [3]uint32
	ext := b.Extent()
	for i := range 3 {
		if ext[i] <= 0 {
			continue
		}
		t := (p[i] - b.Min[i]) / ext[i]
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		q[i] = uint32(t * mortonAxisMax)
	}
	return Morton3(q[0], q[1], q[2])
}
