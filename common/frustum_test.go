package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestExtractFrustumFromMatrix_PlanesAreNormalized(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustumFromMatrix(proj.Mul4(view))

	for i, p := range f.Planes {
		l := math.Sqrt(float64(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2]))
		assert.InDelta(t, 1.0, l, 1e-5, "plane %d", i)
	}
}

func TestExtractFrustumFromMatrix_Containment(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 50)
	f := ExtractFrustumFromMatrix(proj)

	// camera looks down -Z from the origin
	assert.True(t, f.ContainsSphere([3]float32{0, 0, -10}, 0.5))
	assert.False(t, f.ContainsSphere([3]float32{0, 0, 10}, 0.5))
	assert.False(t, f.ContainsSphere([3]float32{0, 0, -80}, 0.5))
	assert.False(t, f.ContainsSphere([3]float32{100, 0, -10}, 0.5))

	// near plane sits at distance 1 in front of the camera
	assert.InDelta(t, 0.0, f.SignedDistance(FrustumNear, [3]float32{0, 0, -1}), 1e-4)
}

func TestFrustum_Vec4s(t *testing.T) {
	f := ExtractFrustumFromMatrix(mgl32.Ident4())
	packed := f.Vec4s()
	for i, p := range f.Planes {
		assert.Equal(t, [4]float32{p.Normal[0], p.Normal[1], p.Normal[2], p.Distance}, packed[i])
	}
}
