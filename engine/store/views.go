package store

import (
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type viewEntry struct {
	index  uint32
	camera camera.Camera
	record GPUView
}

type viewsImpl struct {
	pool   allocator.Pool
	views  map[string]*viewEntry
	logger logrus.FieldLogger
}

// Views holds a resolved view-projection matrix and its inverse per named camera.
type Views interface {
	// Set resolves cam's matrices into the view record for name, allocating it on first use.
	//
	// Parameters:
	//   - name: the view name
	//   - cam: the camera to resolve
	//
	// Returns:
	//   - uint32: the view index
	//   - error: allocation or write error
	Set(name string, cam camera.Camera) (uint32, error)

	// Resize applies a new viewport aspect to every camera and rewrites all view records.
	//
	// Parameters:
	//   - width, height: viewport size in pixels
	//
	// Returns:
	//   - error: ErrInvalidArgument for an empty viewport, or a write error
	Resize(width, height int) error

	// Index returns the view index of name.
	Index(name string) (uint32, bool)

	// Matrix returns the stored view record of name.
	Matrix(name string) (GPUView, bool)

	// Camera returns the camera bound to name.
	Camera(name string) (camera.Camera, bool)

	// Each visits views in ascending index order.
	Each(fn func(index uint32, name string, view GPUView, cam camera.Camera))

	// Remove frees the view record of name.
	//
	// Parameters:
	//   - name: the view key
	//
	// Returns:
	//   - error: ErrNotFound for an unknown name, or a pool error
	Remove(name string) error

	// Len returns the number of views.
	Len() int
}

var _ Views = &viewsImpl{}

// NewViews creates a view table over pool.
//
// Parameters:
//   - pool: the borrowed record pool, block size at least 128 bytes
//   - options: variadic list of StoreBuilderOption
//
// Returns:
//   - Views: the table
func NewViews(pool allocator.Pool, options ...StoreBuilderOption) Views {
	_, logger := buildConfig("store.views", options)
	return &viewsImpl{
		pool:   pool,
		views:  make(map[string]*viewEntry),
		logger: logger,
	}
}

func (v *viewsImpl) Set(name string, cam camera.Camera) (uint32, error) {
	entry, ok := v.views[name]
	if !ok {
		idx, err := v.pool.Allocate()
		if err != nil {
			return 0, errors.Wrapf(err, "view %q", name)
		}
		entry = &viewEntry{index: idx}
		v.views[name] = entry
	}
	entry.camera = cam
	if err := v.write(name, entry); err != nil {
		return 0, err
	}
	return entry.index, nil
}

func (v *viewsImpl) write(name string, entry *viewEntry) error {
	entry.record = GPUView{
		ViewProj:    entry.camera.ViewProjectionMatrix(),
		InvViewProj: entry.camera.InverseViewProjectionMatrix(),
	}
	if err := v.pool.Write(entry.index, entry.record.Marshal()); err != nil {
		return errors.Wrapf(err, "write view %q", name)
	}
	v.logger.WithFields(logrus.Fields{"key": name, "index": entry.index}).Debug("view written")
	return nil
}

func (v *viewsImpl) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return common.InvalidArgument("viewport %dx%d", width, height)
	}
	aspect := float32(width) / float32(height)
	for _, name := range slices.Sorted(maps.Keys(v.views)) {
		entry := v.views[name]
		entry.camera.SetAspect(aspect)
		if err := v.write(name, entry); err != nil {
			return err
		}
	}
	return nil
}

func (v *viewsImpl) Index(name string) (uint32, bool) {
	entry, ok := v.views[name]
	if !ok {
		return 0, false
	}
	return entry.index, true
}

func (v *viewsImpl) Matrix(name string) (GPUView, bool) {
	entry, ok := v.views[name]
	if !ok {
		return GPUView{}, false
	}
	return entry.record, true
}

func (v *viewsImpl) Camera(name string) (camera.Camera, bool) {
	entry, ok := v.views[name]
	if !ok {
		return nil, false
	}
	return entry.camera, true
}

func (v *viewsImpl) Each(fn func(index uint32, name string, view GPUView, cam camera.Camera)) {
	entries := slices.SortedFunc(maps.Keys(v.views), func(a, b string) int {
		return int(v.views[a].index) - int(v.views[b].index)
	})
	for _, name := range entries {
		e := v.views[name]
		fn(e.index, name, e.record, e.camera)
	}
}

func (v *viewsImpl) Remove(name string) error {
	entry, ok := v.views[name]
	if !ok {
		return common.NotFound("view %q", name)
	}
	if err := v.pool.Free(entry.index); err != nil {
		return errors.Wrapf(err, "remove view %q", name)
	}
	delete(v.views, name)
	v.logger.WithFields(logrus.Fields{"key": name, "index": entry.index}).Debug("view removed")
	return nil
}

func (v *viewsImpl) Len() int {
	return len(v.views)
}
