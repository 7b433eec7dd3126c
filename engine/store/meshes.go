package store

import (
	"math"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// MaxLODs is the number of index ranges a mesh may carry.
const MaxLODs = 4

const quantMax = 32767

// MeshData is the raw vertex and per-LOD index data produced by a mesh's deferred loader.
type MeshData struct {
	Vertices     []byte
	VertexStride uint32
	LODs         [MaxLODs][]uint32
}

// GeometryLoader produces a mesh's geometry on first residency request.
type GeometryLoader func() (MeshData, error)

// LODRange locates one level of detail inside a resident mesh's heap range.
type LODRange struct {
	Offset uint64 // absolute heap byte offset
	Count  uint32 // index count; zero for an absent level
}

// MeshGeometry describes where a resident mesh lives in the geometry heap.
type MeshGeometry struct {
	Slot         allocator.Slot
	VertexOffset uint64
	VertexCount  uint32
	VertexStride uint32
	IndexFormat  allocator.IndexFormat
	LODs         [MaxLODs]LODRange
}

type meshEntry struct {
	index    uint32
	bounds   GPUMeshBounds
	loader   GeometryLoader
	resident *MeshGeometry
}

type meshesImpl struct {
	pool   allocator.Pool
	heap   allocator.Heap
	meshes map[string]*meshEntry
	logger logrus.FieldLogger
}

// Meshes registers meshes by name with their quantized bounds and makes their geometry resident on demand.
type Meshes interface {
	// Register records a mesh's bounds and deferred loader. No geometry is loaded. Registering an existing name
	// rewrites its bounds and replaces the loader; residency is unaffected.
	//
	// Parameters:
	//   - name: unique mesh name
	//   - min, max: object-space bounds
	//   - loader: produces the geometry when first made resident
	//
	// Returns:
	//   - uint32: the bounds record index
	//   - error: allocation or write error
	Register(name string, min, max [3]float32, loader GeometryLoader) (uint32, error)

	// Resident returns the heap layout of name, loading and uploading its geometry on the first call.
	//
	// Parameters:
	//   - name: the mesh name
	//
	// Returns:
	//   - MeshGeometry: the resident layout
	//   - error: ErrNotFound, a loader error, or ErrOutOfMemory from the heap
	Resident(name string) (MeshGeometry, error)

	// IsResident reports whether name's geometry is already in the heap.
	IsResident(name string) bool

	// Bounds returns the stored quantized bounds of name.
	Bounds(name string) (GPUMeshBounds, bool)

	// Index returns the bounds record index of name.
	Index(name string) (uint32, bool)

	// Len returns the number of registered meshes.
	Len() int
}

var _ Meshes = &meshesImpl{}

// NewMeshes creates a mesh table storing bounds in pool and geometry in heap.
//
// Parameters:
//   - pool: the borrowed bounds pool, block size at least 16 bytes
//   - heap: the borrowed geometry heap
//   - options: variadic list of StoreBuilderOption
//
// Returns:
//   - Meshes: the table
func NewMeshes(pool allocator.Pool, heap allocator.Heap, options ...StoreBuilderOption) Meshes {
	_, logger := buildConfig("store.meshes", options)
	return &meshesImpl{
		pool:   pool,
		heap:   heap,
		meshes: make(map[string]*meshEntry),
		logger: logger,
	}
}

// Quantize packs a bounding box into signed 16-bit fixed point relative to the largest absolute coordinate over
// all axes. Rounding is outward so the stored box always contains the original.
//
// Parameters:
//   - min, max: the bounds
//
// Returns:
//   - GPUMeshBounds: the quantized record
func Quantize(min, max [3]float32) GPUMeshBounds {
	var scale float64
	for i := range 3 {
		scale = math.Max(scale, math.Abs(float64(min[i])))
		scale = math.Max(scale, math.Abs(float64(max[i])))
	}
	if scale == 0 {
		scale = 1
	}
	var b GPUMeshBounds
	b.Scale = float32(scale)
	for i := range 3 {
		b.MinQ[i] = int16(math.Max(-quantMax, math.Floor(float64(min[i])/scale*quantMax)))
		b.MaxQ[i] = int16(math.Min(quantMax, math.Ceil(float64(max[i])/scale*quantMax)))
	}
	return b
}

// Dequantize expands a quantized record back into float bounds.
//
// Parameters:
//   - b: the quantized record
//
// Returns:
//   - min, max: the bounds, within Scale/32767 of the originals per axis
func Dequantize(b GPUMeshBounds) (min, max [3]float32) {
	for i := range 3 {
		min[i] = float32(float64(b.MinQ[i]) / quantMax * float64(b.Scale))
		max[i] = float32(float64(b.MaxQ[i]) / quantMax * float64(b.Scale))
	}
	return min, max
}

func (m *meshesImpl) Register(name string, min, max [3]float32, loader GeometryLoader) (uint32, error) {
	if name == "" || loader == nil {
		return 0, common.InvalidArgument("mesh %q: name and loader are required", name)
	}
	bounds := Quantize(min, max)

	entry, exists := m.meshes[name]
	if !exists {
		idx, err := m.pool.Allocate()
		if err != nil {
			return 0, errors.Wrapf(err, "register mesh %q", name)
		}
		entry = &meshEntry{index: idx}
	}
	if err := m.pool.Write(entry.index, bounds.Marshal()); err != nil {
		if !exists {
			_ = m.pool.Free(entry.index)
		}
		return 0, errors.Wrapf(err, "write mesh bounds %q", name)
	}
	entry.bounds = bounds
	entry.loader = loader
	m.meshes[name] = entry
	m.logger.WithFields(logrus.Fields{"key": name, "index": entry.index}).Debug("mesh registered")
	return entry.index, nil
}

func (m *meshesImpl) Resident(name string) (MeshGeometry, error) {
	entry, ok := m.meshes[name]
	if !ok {
		return MeshGeometry{}, common.NotFound("mesh %q", name)
	}
	if entry.resident != nil {
		return *entry.resident, nil
	}

	geo, err := entry.loader()
	if err != nil {
		return MeshGeometry{}, errors.Wrapf(err, "load mesh %q", name)
	}
	if geo.VertexStride == 0 || len(geo.Vertices)%int(geo.VertexStride) != 0 {
		return MeshGeometry{}, common.InvalidArgument("mesh %q: %d vertex bytes with stride %d", name, len(geo.Vertices), geo.VertexStride)
	}

	var all []uint32
	for _, lod := range geo.LODs {
		all = append(all, lod...)
	}
	format := allocator.IndexFormatFor(all)

	vertexBytes := common.Align4(uint64(len(geo.Vertices)))
	encoded := make([][]byte, MaxLODs)
	total := vertexBytes
	for i, lod := range geo.LODs {
		if len(lod) > 0 {
			encoded[i] = allocator.EncodeIndicesAs(lod, format)
			total += uint64(len(encoded[i]))
		}
	}

	slot, err := m.heap.Alloc(total)
	if err != nil {
		return MeshGeometry{}, errors.Wrapf(err, "mesh %q", name)
	}
	if err := m.heap.Write(slot, 0, geo.Vertices); err != nil {
		return MeshGeometry{}, errors.Wrapf(err, "upload mesh %q vertices", name)
	}

	res := MeshGeometry{
		Slot:         slot,
		VertexOffset: slot.Offset,
		VertexCount:  uint32(len(geo.Vertices) / int(geo.VertexStride)),
		VertexStride: geo.VertexStride,
		IndexFormat:  format,
	}
	cursor := vertexBytes
	prev := slot.Offset + vertexBytes
	for i := range MaxLODs {
		if encoded[i] == nil {
			res.LODs[i] = LODRange{Offset: prev}
			continue
		}
		if err := m.heap.Write(slot, cursor, encoded[i]); err != nil {
			return MeshGeometry{}, errors.Wrapf(err, "upload mesh %q lod %d", name, i)
		}
		res.LODs[i] = LODRange{Offset: slot.Offset + cursor, Count: uint32(len(geo.LODs[i]))}
		prev = res.LODs[i].Offset
		cursor += uint64(len(encoded[i]))
	}

	entry.resident = &res
	m.logger.WithFields(logrus.Fields{"key": name, "offset": slot.Offset, "size": slot.Size}).Debug("mesh resident")
	return res, nil
}

func (m *meshesImpl) IsResident(name string) bool {
	entry, ok := m.meshes[name]
	return ok && entry.resident != nil
}

func (m *meshesImpl) Bounds(name string) (GPUMeshBounds, bool) {
	entry, ok := m.meshes[name]
	if !ok {
		return GPUMeshBounds{}, false
	}
	return entry.bounds, true
}

func (m *meshesImpl) Index(name string) (uint32, bool) {
	entry, ok := m.meshes[name]
	if !ok {
		return 0, false
	}
	return entry.index, true
}

func (m *meshesImpl) Len() int {
	return len(m.meshes)
}
