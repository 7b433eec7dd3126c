// Package store keeps the keyed record tables that mirror scene state into device buffers: entities, meshes,
// cameras and views. Each store borrows an allocator from its caller and maps names to allocations; updates go
// through narrow partial writes of the changed field only.
package store

import (
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Entity describes one node of an entity hierarchy as handed to Entities.Add.
// A zero Scale means 1 and a zero Rotation means identity.
type Entity struct {
	Name     string
	Position [3]float32
	Scale    float32
	Rotation [4]float32 // quaternion x, y, z, w
	Flags    uint32
	Content  asset.Content
	Children []Entity
}

// EntityRow is the host-side view of a stored entity.
type EntityRow struct {
	Key     string
	Record  GPUEntity
	Content asset.Content
}

type entityRow struct {
	EntityRow
	children []string
}

type entitiesImpl struct {
	pool   allocator.Pool
	keys   map[string]uint32
	rows   map[uint32]*entityRow
	logger logrus.FieldLogger
}

// Entities is the flat entity table. Hierarchy is expressed by parent indices inside the records; child keys are
// path qualified ("parent/child").
type Entities interface {
	// Add inserts an entity and, recursively, its children. Adding an existing key rewrites its record in place.
	//
	// Parameters:
	//   - e: the entity description
	//
	// Returns:
	//   - uint32: the index of e
	//   - error: ErrInvalidArgument for a bad name, or an allocation/write error
	Add(e Entity) (uint32, error)

	// AddChild inserts e under an existing entity.
	//
	// Parameters:
	//   - parentKey: key of the parent
	//   - e: the entity description
	//
	// Returns:
	//   - uint32: the index of e
	//   - error: ErrNotFound if the parent is unknown, or an Add error
	AddChild(parentKey string, e Entity) (uint32, error)

	// SetPosition writes only the position field of key.
	SetPosition(key string, p [3]float32) error

	// SetScale writes only the scale field of key.
	SetScale(key string, s float32) error

	// SetRotation writes only the rotation field of key.
	SetRotation(key string, q [4]float32) error

	// SetFlags writes only the flags field of key.
	SetFlags(key string, flags uint32) error

	// SetSleep sets or clears FlagSleep on key.
	SetSleep(key string, sleep bool) error

	// SetContent changes what key draws. Nothing is written to the device.
	SetContent(key string, c asset.Content) error

	// Remove deletes key and its subtree, freeing children before parents.
	//
	// Parameters:
	//   - key: the entity key
	//
	// Returns:
	//   - error: ErrNotFound if key is unknown
	Remove(key string) error

	// Index returns the pool index of key.
	Index(key string) (uint32, bool)

	// Get returns the host-side row for key.
	Get(key string) (EntityRow, bool)

	// Record returns the record stored at index.
	Record(index uint32) (GPUEntity, bool)

	// Each visits live rows in ascending index order.
	Each(fn func(index uint32, row EntityRow))

	// Records returns a dense copy of all records indexed by pool index, sized to the pool high-water mark.
	// Unused slots are zero records marked asleep.
	Records() []GPUEntity

	// Len returns the number of live entities.
	Len() int

	// Pool returns the pool the records live in.
	Pool() allocator.Pool
}

var _ Entities = &entitiesImpl{}

// NewEntities creates an entity table over pool. The pool's block size must be at least 32 bytes.
//
// Parameters:
//   - pool: the borrowed record pool
//   - options: variadic list of StoreBuilderOption
//
// Returns:
//   - Entities: the table
func NewEntities(pool allocator.Pool, options ...StoreBuilderOption) Entities {
	_, logger := buildConfig("store.entities", options)
	return &entitiesImpl{
		pool:   pool,
		keys:   make(map[string]uint32),
		rows:   make(map[uint32]*entityRow),
		logger: logger,
	}
}

func (s *entitiesImpl) Add(e Entity) (uint32, error) {
	return s.add("", NoParent, e)
}

func (s *entitiesImpl) AddChild(parentKey string, e Entity) (uint32, error) {
	idx, ok := s.keys[parentKey]
	if !ok {
		return 0, common.NotFound("entity %q", parentKey)
	}
	return s.add(parentKey, idx, e)
}

func (s *entitiesImpl) add(parentKey string, parent uint32, e Entity) (uint32, error) {
	if e.Name == "" || strings.Contains(e.Name, "/") {
		return 0, common.InvalidArgument("entity name %q", e.Name)
	}
	key := e.Name
	if parentKey != "" {
		key = parentKey + "/" + e.Name
	}

	rec := GPUEntity{
		Position: e.Position,
		Scale:    common.Coalesce(e.Scale, 1),
		Rotation: common.PackHalfQuat(common.Coalesce(e.Rotation, [4]float32{0, 0, 0, 1})),
		Parent:   parent,
		Flags:    e.Flags,
	}

	idx, exists := s.keys[key]
	if !exists {
		var err error
		if idx, err = s.pool.Allocate(); err != nil {
			return 0, errors.Wrapf(err, "add entity %q", key)
		}
	}
	if err := s.pool.Write(idx, rec.Marshal()); err != nil {
		if !exists {
			_ = s.pool.Free(idx)
		}
		return 0, errors.Wrapf(err, "write entity %q", key)
	}

	row, ok := s.rows[idx]
	if !ok {
		row = &entityRow{}
		s.rows[idx] = row
		s.keys[key] = idx
		if parent != NoParent {
			p := s.rows[parent]
			p.children = append(p.children, key)
		}
	}
	row.Key = key
	row.Record = rec
	row.Content = e.Content
	s.logger.WithFields(logrus.Fields{"key": key, "index": idx, "update": exists}).Debug("entity written")

	for _, child := range e.Children {
		if _, err := s.add(key, idx, child); err != nil {
			return idx, err
		}
	}
	return idx, nil
}

func (s *entitiesImpl) lookup(key string) (uint32, *entityRow, error) {
	idx, ok := s.keys[key]
	if !ok {
		return 0, nil, common.NotFound("entity %q", key)
	}
	return idx, s.rows[idx], nil
}

func (s *entitiesImpl) writeField(key string, offset uint32, update func(*GPUEntity)) error {
	idx, row, err := s.lookup(key)
	if err != nil {
		return err
	}
	update(&row.Record)
	full := row.Record.Marshal()
	var end uint32
	switch offset {
	case EntityPositionOffset:
		end = EntityScaleOffset
	case EntityScaleOffset:
		end = EntityRotationOffset
	case EntityRotationOffset:
		end = EntityParentOffset
	case EntityFlagsOffset:
		end = uint32(len(full))
	}
	return s.pool.WriteField(idx, offset, full[offset:end])
}

func (s *entitiesImpl) SetPosition(key string, p [3]float32) error {
	return s.writeField(key, EntityPositionOffset, func(g *GPUEntity) { g.Position = p })
}

func (s *entitiesImpl) SetScale(key string, scale float32) error {
	return s.writeField(key, EntityScaleOffset, func(g *GPUEntity) { g.Scale = scale })
}

func (s *entitiesImpl) SetRotation(key string, q [4]float32) error {
	return s.writeField(key, EntityRotationOffset, func(g *GPUEntity) { g.Rotation = common.PackHalfQuat(q) })
}

func (s *entitiesImpl) SetFlags(key string, flags uint32) error {
	return s.writeField(key, EntityFlagsOffset, func(g *GPUEntity) { g.Flags = flags })
}

func (s *entitiesImpl) SetSleep(key string, sleep bool) error {
	return s.writeField(key, EntityFlagsOffset, func(g *GPUEntity) {
		if sleep {
			g.Flags |= FlagSleep
		} else {
			g.Flags &^= FlagSleep
		}
	})
}

func (s *entitiesImpl) SetContent(key string, c asset.Content) error {
	_, row, err := s.lookup(key)
	if err != nil {
		return err
	}
	row.Content = c
	return nil
}

func (s *entitiesImpl) Remove(key string) error {
	idx, row, err := s.lookup(key)
	if err != nil {
		return err
	}
	for _, child := range slices.Clone(row.children) {
		if err := s.Remove(child); err != nil {
			return err
		}
	}
	if parent := row.Record.Parent; parent != NoParent {
		if p, ok := s.rows[parent]; ok {
			p.children = slices.DeleteFunc(p.children, func(k string) bool { return k == key })
		}
	}
	if err := s.pool.Free(idx); err != nil {
		return errors.Wrapf(err, "remove entity %q", key)
	}
	delete(s.rows, idx)
	delete(s.keys, key)
	s.logger.WithFields(logrus.Fields{"key": key, "index": idx}).Debug("entity removed")
	return nil
}

func (s *entitiesImpl) Index(key string) (uint32, bool) {
	idx, ok := s.keys[key]
	return idx, ok
}

func (s *entitiesImpl) Get(key string) (EntityRow, bool) {
	idx, ok := s.keys[key]
	if !ok {
		return EntityRow{}, false
	}
	return s.rows[idx].EntityRow, true
}

func (s *entitiesImpl) Record(index uint32) (GPUEntity, bool) {
	row, ok := s.rows[index]
	if !ok {
		return GPUEntity{}, false
	}
	return row.Record, true
}

func (s *entitiesImpl) Each(fn func(index uint32, row EntityRow)) {
	for idx := range s.pool.Size() {
		if row, ok := s.rows[idx]; ok {
			fn(idx, row.EntityRow)
		}
	}
}

func (s *entitiesImpl) Records() []GPUEntity {
	out := make([]GPUEntity, s.pool.Size())
	for i := range out {
		out[i] = GPUEntity{Parent: NoParent, Flags: FlagSleep}
	}
	for idx, row := range s.rows {
		out[idx] = row.Record
	}
	return out
}

func (s *entitiesImpl) Len() int {
	return len(s.rows)
}

func (s *entitiesImpl) Pool() allocator.Pool {
	return s.pool
}
