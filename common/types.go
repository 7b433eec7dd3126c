// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// Bounds is an axis-aligned bounding box in object space.
type Bounds struct {
	// Min is the minimum corner of the box.
	Min [3]float32
	// Max is the maximum corner of the box.
	Max [3]float32
}

// Transform is a local transform in the layout the entity records use: a position, a uniform scale and a
// rotation quaternion stored as (x, y, z, w).
type Transform struct {
	// Position is the translation relative to the parent (or world space for roots).
	Position [3]float32
	// Scale is the uniform scale factor. A zero scale is treated as 1 by the entity store.
	Scale float32
	// Rotation is the orientation quaternion (x, y, z, w).
	Rotation [4]float32
}

// IdentityTransform returns a transform at the origin with unit scale and no rotation.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{
		Scale:    1,
		Rotation: [4]float32{0, 0, 0, 1},
	}
}

// Extent returns the size of the box along each axis.
//
// Returns:
//   - [3]float32: max - min per axis
func (b Bounds) Extent() [3]float32 {
	return [3]float32{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Contains reports whether p lies inside the box (inclusive).
func (b Bounds) Contains(p [3]float32) bool {
	for i := range 3 {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}
