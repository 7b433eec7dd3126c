package store

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// MaxCameras is the size of the 16-bit camera index space.
const MaxCameras = 0xFFFF

type camerasImpl struct {
	pool   allocator.Pool
	keys   map[string]uint32
	logger logrus.FieldLogger
}

// Cameras maps camera names to 4-byte camera records.
type Cameras interface {
	// Set writes the camera record for name, allocating it on first use. Every call rewrites the whole record.
	//
	// Parameters:
	//   - name: the camera name
	//   - view: the view index the camera renders through
	//
	// Returns:
	//   - uint32: the camera index
	//   - error: ErrCapacity (also ErrOutOfMemory) when the index space is exhausted, or a write error
	Set(name string, view uint16) (uint32, error)

	// Index returns the camera index of name.
	Index(name string) (uint32, bool)

	// Remove frees the camera record of name.
	Remove(name string) error

	// Len returns the number of cameras.
	Len() int
}

var _ Cameras = &camerasImpl{}

// NewCameras creates a camera table over pool.
//
// Parameters:
//   - pool: the borrowed record pool; its capacity must fit the 16-bit index space
//   - options: variadic list of StoreBuilderOption
//
// Returns:
//   - Cameras: the table
//   - error: ErrCapacity if the pool is larger than MaxCameras
func NewCameras(pool allocator.Pool, options ...StoreBuilderOption) (Cameras, error) {
	if pool.Capacity() > MaxCameras {
		return nil, common.CapacityExceeded("camera pool of %d exceeds %d", pool.Capacity(), MaxCameras)
	}
	_, logger := buildConfig("store.cameras", options)
	return &camerasImpl{
		pool:   pool,
		keys:   make(map[string]uint32),
		logger: logger,
	}, nil
}

func (c *camerasImpl) Set(name string, view uint16) (uint32, error) {
	idx, ok := c.keys[name]
	if !ok {
		var err error
		idx, err = c.pool.Allocate()
		if errors.Is(err, common.ErrOutOfMemory) {
			return 0, common.CapacityExceeded("camera %q: all %d camera indices in use", name, c.pool.Capacity())
		}
		if err != nil {
			return 0, err
		}
		c.keys[name] = idx
	}
	rec := GPUCamera{View: view}
	if err := c.pool.Write(idx, rec.Marshal()); err != nil {
		return 0, errors.Wrapf(err, "write camera %q", name)
	}
	c.logger.WithFields(logrus.Fields{"key": name, "index": idx, "view": view}).Debug("camera written")
	return idx, nil
}

func (c *camerasImpl) Index(name string) (uint32, bool) {
	idx, ok := c.keys[name]
	return idx, ok
}

func (c *camerasImpl) Remove(name string) error {
	idx, ok := c.keys[name]
	if !ok {
		return common.NotFound("camera %q", name)
	}
	if err := c.pool.Free(idx); err != nil {
		return errors.Wrapf(err, "remove camera %q", name)
	}
	delete(c.keys, name)
	return nil
}

func (c *camerasImpl) Len() int {
	return len(c.keys)
}
