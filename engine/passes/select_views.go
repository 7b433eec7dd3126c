package passes

import (
	"math"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
)

// ViewInput pairs a view record with the projection it was built from.
type ViewInput struct {
	View       store.GPUView
	Projection camera.Projection
}

// SelectViews expands view records into the per-view data culling consumes: the matrices, six normalized
// frustum planes and the size-cull constant viewportHeight / (2*tan(fovY/2)).
//
// Parameters:
//   - inputs: one entry per view, in view index order
//   - viewportHeight: the render target height in pixels
//
// Returns:
//   - []store.GPUSelectedView: one record per input
func SelectViews(inputs []ViewInput, viewportHeight float32) []store.GPUSelectedView {
	out := make([]store.GPUSelectedView, len(inputs))
	for i, in := range inputs {
		out[i] = store.GPUSelectedView{
			ViewProj:    in.View.ViewProj,
			InvViewProj: in.View.InvViewProj,
			Planes:      common.ExtractFrustumFromMatrix(in.View.ViewProj).Vec4s(),
			SizeCull:    SizeCull(in.Projection.FovY, viewportHeight),
		}
	}
	return out
}

// SizeCull returns the projected size in pixels of one world unit at distance 1. A non-positive field of view
// yields 0.
func SizeCull(fovY, viewportHeight float32) float32 {
	if fovY <= 0 {
		return 0
	}
	return viewportHeight / (2 * float32(math.Tan(float64(fovY)/2)))
}
