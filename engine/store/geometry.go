package store

import (
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/cockroachdb/errors"
)

// Geometry streams inline mesh payloads into a vertex arena and an index arena, keyed by staging key.
type Geometry struct {
	vertices allocator.Arena[[]byte]
	indices  allocator.Arena[[]uint32]
}

var _ asset.Materializer = &Geometry{}

// NewGeometry pairs a vertex arena with an index arena.
//
// Parameters:
//   - vertices: arena receiving raw vertex bytes
//   - indices: arena receiving indices; built with EncodeIndexList so values are stored at their narrowest width
//
// Returns:
//   - *Geometry: the materializer
func NewGeometry(vertices allocator.Arena[[]byte], indices allocator.Arena[[]uint32]) *Geometry {
	return &Geometry{vertices: vertices, indices: indices}
}

// EncodeIndexList is the arena encoder for index lists.
func EncodeIndexList(indices []uint32) ([]byte, error) {
	data, _ := allocator.EncodeIndices(indices)
	return data, nil
}

// Materialize streams vertices and indices under key. A second call with the same key returns the existing slots
// without uploading. Each LOD of a content id has its own key and so its own slots.
//
// Parameters:
//   - key: the staging key, content id and LOD
//   - vertices: raw vertex bytes
//   - indices: the index list
//
// Returns:
//   - asset.Materialized: where the data lives
//   - error: allocation or device errors
func (g *Geometry) Materialize(key string, vertices []byte, indices []uint32) (asset.Materialized, error) {
	v, err := g.vertices.Stream(key, vertices)
	if err != nil {
		return asset.Materialized{}, errors.Wrapf(err, "vertices of %q", key)
	}
	i, err := g.indices.Stream(key, indices)
	if err != nil {
		return asset.Materialized{}, errors.Wrapf(err, "indices of %q", key)
	}
	return asset.Materialized{Vertex: v, Index: i, IndexFormat: allocator.IndexFormatFor(indices)}, nil
}

// Vertices returns the vertex arena.
func (g *Geometry) Vertices() allocator.Arena[[]byte] {
	return g.vertices
}

// Indices returns the index arena.
func (g *Geometry) Indices() allocator.Arena[[]uint32] {
	return g.indices
}
