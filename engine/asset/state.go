package asset

import (
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
)

// State is the staged state of one (content id, LOD): EmptyState, Loading, Resident or ErrorState.
// Resident and ErrorState are terminal.
type State interface {
	isState()
}

// EmptyState is the state of Empty content. There is nothing to draw.
type EmptyState struct{}

// Loading marks an outstanding load.
type Loading struct {
	RequestID uint64
}

// Resident is content whose data is in device memory. Camera content has no geometry.
type Resident struct {
	ContentID    string
	LOD          int
	HasGeometry  bool
	Vertex       allocator.Slot
	Index        allocator.Slot
	IndexFormat  allocator.IndexFormat
	IndexCount   uint32
	VertexCount  uint32
	VertexStride uint32
	Camera       camera.Projection
}

// ErrorState is a failed load. Err matches ErrNotFound or ErrLoadFailure.
type ErrorState struct {
	ContentID string
	LOD       int
	Reason    string
	Err       error
}

func (EmptyState) isState() {}
func (Loading) isState()    {}
func (Resident) isState()   {}
func (ErrorState) isState() {}

// IsTerminal reports whether s will never change again.
func IsTerminal(s State) bool {
	switch s.(type) {
	case Resident, ErrorState, EmptyState:
		return true
	}
	return false
}

// Drawable reports whether s is resident geometry that can be drawn.
func Drawable(s State) (Resident, bool) {
	r, ok := s.(Resident)
	return r, ok && r.HasGeometry && r.IndexCount > 0
}
