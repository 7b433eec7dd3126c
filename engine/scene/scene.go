// Package scene declares node hierarchies into the record stores and drives the per-frame passes: completion
// polling, flatten, view selection and draw staging.
package scene

import (
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/Carmen-Shannon/oxy-resident/engine/passes"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Node is one element of a declared scene. A node with a Camera also gets a view and a camera record; when it has
// no Content its content becomes the camera's projection.
type Node struct {
	Name      string
	Transform common.Transform
	Flags     uint32
	Content   asset.Content
	Camera    camera.Camera
	Children  []Node
}

// Stores are the record tables a scene writes into. The scene borrows them.
type Stores struct {
	Entities store.Entities
	Cameras  store.Cameras
	Views    store.Views
}

// SceneFrame is the outcome of one Scene.Frame call.
type SceneFrame struct {
	Frame
	// Applied is the number of load completions applied by this frame's poll.
	Applied int
	// Views is the number of selected views uploaded.
	Views int
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	dev      device.Device
	pipeline asset.Pipeline
	stores   Stores
	logger   logrus.FieldLogger

	stager      Stager
	stagerOpts  []StagerBuilderOption
	world       passes.WorldBuffers
	selected    device.Buffer
	bounds      common.Bounds
	viewportH   float32
	cameraNodes map[string]camera.Camera
}

// Scene owns a declared node hierarchy and produces one staged frame per call to Frame.
// All methods are meant for the frame thread; the lock only guards against tooling reads.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Add declares node and its subtree. Entities are written for every node; camera nodes also write a view and a
	// camera record keyed by the node's entity key.
	//
	// Parameters:
	//   - node: the root of the subtree
	//
	// Returns:
	//   - uint32: the entity index of node
	//   - error: a store error
	Add(node Node) (uint32, error)

	// Remove deletes the entity subtree at key and frees the view and camera records of every camera node in it.
	//
	// Parameters:
	//   - key: the entity key of the subtree root
	//
	// Returns:
	//   - error: ErrNotFound for an unknown key, or a store error
	Remove(key string) error

	// Resize applies a new viewport to every view.
	//
	// Parameters:
	//   - width, height: viewport size in pixels
	//
	// Returns:
	//   - error: ErrInvalidArgument for an empty viewport, or a write error
	Resize(width, height int) error

	// Poll applies finished loads on the frame thread.
	//
	// Returns:
	//   - int: number of completions applied
	//   - error: allocator error while staging a completed load
	Poll() (int, error)

	// Stage refreshes camera views, flattens the hierarchy into the world buffers, selects views and stages draws.
	//
	// Returns:
	//   - SceneFrame: what was drawn; Applied is zero
	//   - error: allocator, capacity or device error
	Stage() (SceneFrame, error)

	// Frame runs Poll then Stage.
	//
	// Returns:
	//   - SceneFrame: what was drawn
	//   - error: the first Poll or Stage error
	Frame() (SceneFrame, error)

	// Stores returns the record tables.
	Stores() Stores

	// Pipeline returns the staging pipeline.
	Pipeline() asset.Pipeline

	// Stager returns the draw stager.
	Stager() Stager

	// World returns the flatten pass output buffers.
	World() passes.WorldBuffers

	// SelectedViews returns the buffer of GPUSelectedView records.
	SelectedViews() device.Buffer

	// Release frees the device buffers the scene created.
	Release()
}

var _ Scene = &scene{}

// NewScene creates a scene over borrowed stores. It creates the stager, the flatten double buffer sized to the
// entity pool and the selected view buffer sized to the view count capacity.
//
// Parameters:
//   - name: the name of the scene
//   - dev: the device buffers are created on
//   - pipeline: the staging pipeline
//   - stores: the record tables; all three are required
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the scene
//   - error: ErrInvalidArgument for a missing store, or a buffer creation error
func NewScene(name string, dev device.Device, pipeline asset.Pipeline, stores Stores, options ...SceneBuilderOption) (Scene, error) {
	if dev == nil || pipeline == nil || stores.Entities == nil || stores.Cameras == nil || stores.Views == nil {
		return nil, common.InvalidArgument("scene %q: device, pipeline and stores are required", name)
	}
	s := &scene{
		mu:          &sync.RWMutex{},
		name:        name,
		dev:         dev,
		pipeline:    pipeline,
		stores:      stores,
		bounds:      common.Bounds{Min: [3]float32{-1024, -1024, -1024}, Max: [3]float32{1024, 1024, 1024}},
		viewportH:   720,
		cameraNodes: make(map[string]camera.Camera),
	}
	for _, option := range options {
		option(s)
	}
	s.logger = common.ComponentLogger(s.logger, "scene")

	var err error
	if s.stager, err = NewStager(dev, stores.Entities, pipeline, append([]StagerBuilderOption{WithStagerLogger(s.logger), WithStagerLabel(name)}, s.stagerOpts...)...); err != nil {
		return nil, errors.Wrapf(err, "scene %q", name)
	}
	if s.world, err = passes.NewWorldBuffers(dev, stores.Entities.Pool().Capacity(), passes.WithLabel(name+" World"), passes.WithLogger(s.logger)); err != nil {
		s.stager.Release()
		return nil, errors.Wrapf(err, "scene %q", name)
	}
	var sel store.GPUSelectedView
	if s.selected, err = dev.CreateBuffer(name+" Selected Views", uint64(maxViews)*uint64(sel.Size()), device.BufferUsageStorage); err != nil {
		s.stager.Release()
		s.world.Release()
		return nil, errors.Wrapf(err, "scene %q", name)
	}
	return s, nil
}

// maxViews bounds the selected view buffer.
const maxViews = 64

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Add(node Node) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.stores.Entities.Add(toEntity(node))
	if err != nil {
		return 0, errors.Wrapf(err, "scene %q add %q", s.name, node.Name)
	}
	if err := s.addCameras("", node); err != nil {
		return idx, err
	}
	return idx, nil
}

func toEntity(n Node) store.Entity {
	content := n.Content
	if content == nil && n.Camera != nil {
		content = asset.CameraContent{Projection: n.Camera.Projection()}
	}
	e := store.Entity{
		Name:     n.Name,
		Position: n.Transform.Position,
		Scale:    n.Transform.Scale,
		Rotation: n.Transform.Rotation,
		Flags:    n.Flags,
		Content:  content,
	}
	for _, c := range n.Children {
		e.Children = append(e.Children, toEntity(c))
	}
	return e
}

func (s *scene) addCameras(parent string, n Node) error {
	key := n.Name
	if parent != "" {
		key = parent + "/" + n.Name
	}
	if n.Camera != nil {
		view, err := s.stores.Views.Set(key, n.Camera)
		if err != nil {
			return errors.Wrapf(err, "view %q", key)
		}
		if view > store.MaxCameras {
			return common.CapacityExceeded("view index %d of %q does not fit a camera record", view, key)
		}
		if _, err := s.stores.Cameras.Set(key, uint16(view)); err != nil {
			return errors.Wrapf(err, "camera %q", key)
		}
		s.cameraNodes[key] = n.Camera
	}
	for _, c := range n.Children {
		if err := s.addCameras(key, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *scene) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stores.Entities.Remove(key); err != nil {
		return errors.Wrapf(err, "scene %q remove", s.name)
	}
	for name := range s.cameraNodes {
		if name != key && !strings.HasPrefix(name, key+"/") {
			continue
		}
		delete(s.cameraNodes, name)
		if err := s.stores.Views.Remove(name); err != nil {
			return errors.Wrapf(err, "scene %q remove view", s.name)
		}
		if err := s.stores.Cameras.Remove(name); err != nil {
			return errors.Wrapf(err, "scene %q remove camera", s.name)
		}
	}
	return nil
}

func (s *scene) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stores.Views.Resize(width, height); err != nil {
		return err
	}
	s.viewportH = float32(height)
	return nil
}

func (s *scene) Frame() (SceneFrame, error) {
	applied, err := s.Poll()
	if err != nil {
		return SceneFrame{Applied: applied}, err
	}
	out, err := s.Stage()
	out.Applied = applied
	return out, err
}

func (s *scene) Poll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.pipeline.Poll()
	if err != nil {
		return n, errors.Wrapf(err, "scene %q poll", s.name)
	}
	return n, nil
}

func (s *scene) Stage() (SceneFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out SceneFrame
	for key, cam := range s.cameraNodes {
		if _, err := s.stores.Views.Set(key, cam); err != nil {
			return out, errors.Wrapf(err, "scene %q view %q", s.name, key)
		}
	}

	world, morton := passes.Flatten(s.stores.Entities.Records(), s.bounds)
	if err := s.world.Write(world, morton); err != nil {
		return out, errors.Wrapf(err, "scene %q flatten", s.name)
	}
	s.world.Swap()

	var inputs []passes.ViewInput
	s.stores.Views.Each(func(_ uint32, _ string, view store.GPUView, cam camera.Camera) {
		if len(inputs) < maxViews {
			inputs = append(inputs, passes.ViewInput{View: view, Projection: cam.Projection()})
		}
	})
	if err := passes.Upload(s.dev, s.selected, passes.SelectViews(inputs, s.viewportH)); err != nil {
		return out, errors.Wrapf(err, "scene %q select views", s.name)
	}
	out.Views = len(inputs)

	frame, err := s.stager.Stage(world)
	if err != nil {
		return out, errors.Wrapf(err, "scene %q stage", s.name)
	}
	out.Frame = frame
	return out, nil
}

func (s *scene) Stores() Stores               { return s.stores }
func (s *scene) Pipeline() asset.Pipeline     { return s.pipeline }
func (s *scene) Stager() Stager               { return s.stager }
func (s *scene) World() passes.WorldBuffers   { return s.world }
func (s *scene) SelectedViews() device.Buffer { return s.selected }

func (s *scene) Release() {
	s.stager.Release()
	s.world.Release()
	s.selected.Release()
}
