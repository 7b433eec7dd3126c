package common

import "github.com/go-gl/mathgl/mgl32"

// Plane is the half-space n·p + d >= 0.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum is the six planes of a view volume, each facing inward.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// ExtractFrustumFromMatrix derives the clip planes of a column-major view-projection matrix by adding and
// subtracting its first three rows from the fourth (Gribb/Hartmann). Planes are normalized, so Distance is a true
// signed distance.
//
// Parameters:
//   - viewProj: the combined matrix, column-major
//
// Returns:
//   - Frustum: the inward-facing planes
func ExtractFrustumFromMatrix(viewProj [16]float32) Frustum {
	m := mgl32.Mat4(viewProj)
	w := m.Row(3)
	rows := [6]mgl32.Vec4{
		w.Add(m.Row(0)), w.Sub(m.Row(0)),
		w.Add(m.Row(1)), w.Sub(m.Row(1)),
		w.Add(m.Row(2)), w.Sub(m.Row(2)),
	}

	var f Frustum
	for i, r := range rows {
		if l := r.Vec3().Len(); l > 0 {
			r = r.Mul(1 / l)
		}
		f.Planes[i] = Plane{Normal: r.Vec3(), Distance: r[3]}
	}
	return f
}

// Vec4s returns the planes packed as (nx, ny, nz, d), the layout the view-selection records use.
//
// Returns:
//   - [6][4]float32: the six planes in Left, Right, Bottom, Top, Near, Far order
func (f Frustum) Vec4s() [6][4]float32 {
	var out [6][4]float32
	for i, p := range f.Planes {
		out[i] = [4]float32{p.Normal[0], p.Normal[1], p.Normal[2], p.Distance}
	}
	return out
}

// SignedDistance returns the signed distance of point p to plane i. Positive values are inside.
func (f Frustum) SignedDistance(i int, p [3]float32) float32 {
	pl := f.Planes[i]
	return pl.Normal[0]*p[0] + pl.Normal[1]*p[1] + pl.Normal[2]*p[2] + pl.Distance
}

// ContainsSphere reports whether a sphere intersects or lies inside the frustum.
func (f Frustum) ContainsSphere(center [3]float32, radius float32) bool {
	for i := range f.Planes {
		if f.SignedDistance(i, center) < -radius {
			return false
		}
	}
	return true
}
