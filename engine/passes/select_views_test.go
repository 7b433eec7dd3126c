package passes

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectViews(t *testing.T) {
	cam := camera.NewCamera(camera.WithFov(math.Pi/2), camera.WithPosition(0, 0, 10))
	in := ViewInput{
		View:       store.GPUView{ViewProj: cam.ViewProjectionMatrix(), InvViewProj: cam.InverseViewProjectionMatrix()},
		Projection: cam.Projection(),
	}
	out := SelectViews([]ViewInput{in}, 600)
	require.Len(t, out, 1)

	sel := out[0]
	assert.Equal(t, in.View.ViewProj, sel.ViewProj)
	assert.Equal(t, in.View.InvViewProj, sel.InvViewProj)
	assert.InDelta(t, 300, sel.SizeCull, 1e-3)
	for i, p := range sel.Planes {
		n := math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2]))
		assert.InDelta(t, 1, n, 1e-5, "plane %d", i)
		// the origin is in front of the camera and inside every plane
		assert.Greater(t, p[3], float32(0), "plane %d", i)
	}
	assert.Len(t, sel.Marshal(), 240)
}

func TestSizeCull(t *testing.T) {
	assert.Zero(t, SizeCull(0, 1080))
	assert.InDelta(t, 1080/(2*math.Tan(math.Pi/6)), SizeCull(math.Pi/3, 1080), 1e-2)
}
