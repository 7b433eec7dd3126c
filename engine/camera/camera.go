// Package camera holds perspective cameras. A camera owns its placement and projection settings and recomputes
// its matrices whenever one of them changes. Matrices are column-major and follow the OpenGL clip convention
// produced by mathgl.
package camera

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Projection is the perspective a camera renders with. It doubles as the payload of camera content descriptors.
type Projection struct {
	FovY   float32 // vertical field of view in radians
	Aspect float32
	Near   float32
	Far    float32
}

// Matrix returns the projection matrix.
//
// Returns:
//   - [16]float32: the column-major projection matrix
func (p Projection) Matrix() [16]float32 {
	return [16]float32(mgl32.Perspective(p.FovY, p.Aspect, p.Near, p.Far))
}

// Marshal serializes the projection as four little-endian floats (16 bytes).
//
// Returns:
//   - []byte: the serialized projection
func (p Projection) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(p.FovY))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.Aspect))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.Near))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(p.Far))
	return buf
}

type cameraImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	up       [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix               [16]float32
	projectionMatrix         [16]float32
	viewProjectionMatrix     [16]float32
	inverseViewProjectionMtx [16]float32
}

// Camera defines the interface for a perspective camera.
// Every setter recomputes the cached matrices, so the getters are always current.
type Camera interface {
	// Position returns the eye position.
	Position() [3]float32

	// Target returns the point the camera looks at.
	Target() [3]float32

	// Up returns the camera's up vector.
	Up() [3]float32

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Projection returns the projection settings as a value.
	//
	// Returns:
	//   - Projection: fov, aspect, near and far
	Projection() Projection

	// ViewMatrix returns the current 4x4 view matrix (column-major).
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix (column-major).
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns projection * view (column-major).
	ViewProjectionMatrix() [16]float32

	// InverseViewProjectionMatrix returns the inverse of ViewProjectionMatrix, used to unproject clip space back
	// into world space.
	InverseViewProjectionMatrix() [16]float32

	// Update recomputes all matrices from the current settings.
	Update()

	// SetPosition moves the eye.
	//
	// Parameters:
	//   - p: world-space eye position
	SetPosition(p [3]float32)

	// SetTarget changes the look-at point.
	//
	// Parameters:
	//   - t: world-space target
	SetTarget(t [3]float32)

	// SetUp sets the camera's up vector.
	SetUp(u [3]float32)

	// SetFov sets the vertical field of view in radians.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height).
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance.
	SetNear(near float32)

	// SetFar sets the far clipping plane distance.
	SetFar(far float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings, placed at (0,0,5) looking at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: [3]float32{0, 0, 5},
		up:       [3]float32{0, 1, 0},
		fov:      45.0 * (math.Pi / 180.0), // radians
		aspect:   1.0,
		near:     0.1,
		far:      100.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

// FromProjection creates a camera with the given projection at the default placement.
//
// Parameters:
//   - p: the projection
//   - options: additional options, applied after the projection
//
// Returns:
//   - Camera: the camera
func FromProjection(p Projection, options ...CameraBuilderOption) Camera {
	return NewCamera(append([]CameraBuilderOption{WithFov(p.FovY), WithAspect(p.Aspect), WithClip(p.Near, p.Far)}, options...)...)
}

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Projection() Projection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Projection{FovY: c.fov, Aspect: c.aspect, Near: c.near, Far: c.far}
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseViewProjectionMtx
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
}

func (c *cameraImpl) SetPosition(p [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
	c.updateMatrices()
}

func (c *cameraImpl) SetTarget(t [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(u [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = u
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection, view-projection and inverse view-projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	view := mgl32.LookAtV(mgl32.Vec3(c.position), mgl32.Vec3(c.target), mgl32.Vec3(c.up))
	proj := mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	vp := proj.Mul4(view)

	c.viewMatrix = [16]float32(view)
	c.projectionMatrix = [16]float32(proj)
	c.viewProjectionMatrix = [16]float32(vp)
	c.inverseViewProjectionMtx = [16]float32(vp.Inv())
}
