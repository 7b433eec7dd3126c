package common

import "github.com/x448/float16"

// PackHalfQuat converts a float32 quaternion (x, y, z, w) into four IEEE-754 half floats.
//
// Parameters:
//   - q: the quaternion components
//
// Returns:
//   - [4]uint16: the binary16 bit patterns in the same order
func PackHalfQuat(q [4]float32) [4]uint16 {
	var out [4]uint16
	for i, v := range q {
		out[i] = float16.Fromfloat32(v).Bits()
	}
	return out
}

// UnpackHalfQuat is the inverse of PackHalfQuat.
func UnpackHalfQuat(h [4]uint16) [4]float32 {
	var out [4]float32
	for i, v := range h {
		out[i] = float16.Frombits(v).Float32()
	}
	return out
}
