package scene

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/Carmen-Shannon/oxy-resident/engine/passes"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStager_GroupsAreContiguous(t *testing.T) {
	f := newFixture(t)
	quad := asset.Mesh{
		Vertices:     make([]byte, 48),
		VertexStride: 12,
		Indices:      []uint32{0, 1, 2, 2, 1, 3},
	}
	ents := f.stores.Entities
	for _, e := range []store.Entity{
		{Name: "t0", Content: triangle()},
		{Name: "q0", Content: quad},
		{Name: "t1", Content: triangle()},
		{Name: "sleeper", Content: quad, Flags: store.FlagSleep},
		{Name: "nothing", Content: asset.Empty{}},
		{Name: "bare"},
	} {
		_, err := ents.Add(e)
		require.NoError(t, err)
	}

	st, err := NewStager(f.dev, ents, f.pipeline)
	require.NoError(t, err)
	world, _ := passes.Flatten(ents.Records(), common.Bounds{})
	frame, err := st.Stage(world)
	require.NoError(t, err)

	require.Len(t, frame.Groups, 2)
	tri, q := frame.Groups[0], frame.Groups[1]
	assert.Equal(t, []uint32{0, 2}, tri.Entities)
	assert.Equal(t, uint32(0), tri.InstanceOffset)
	assert.Equal(t, uint32(2), tri.InstanceCount)
	assert.Equal(t, []uint32{1}, q.Entities)
	assert.Equal(t, uint32(2), q.InstanceOffset)
	assert.Equal(t, uint32(6), q.Command.IndexCount)
	assert.Equal(t, uint32(2), q.Command.FirstInstance)
	assert.Equal(t, 3, frame.Instances)
	assert.Zero(t, frame.Skipped)

	instances := f.dev.Bytes(st.InstanceBuffer())
	w := world[2]
	rec := store.GPUInstance{Position: w.Position, Scale: w.Scale, Rotation: w.Rotation, Entity: 2}
	assert.Equal(t, rec.Marshal(), instances[48:96])

	u, ok := st.Uniform(tri.ContentID)
	require.True(t, ok)
	assert.Same(t, tri.Uniform, u)
}

func TestStager_InstanceCapacity(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a", "b"} {
		_, err := f.stores.Entities.Add(store.Entity{Name: name, Content: triangle()})
		require.NoError(t, err)
	}
	st, err := NewStager(f.dev, f.stores.Entities, f.pipeline, WithInstanceCapacity(1))
	require.NoError(t, err)

	_, err = st.Stage(nil)
	assert.True(t, errors.Is(err, common.ErrCapacity))
}

func TestStager_InstancesCarryWorldTransformAndEntityIndex(t *testing.T) {
	f := newFixture(t)
	ents := f.stores.Entities
	_, err := ents.Add(store.Entity{
		Name:     "root",
		Position: [3]float32{10, 0, 0},
		Children: []store.Entity{
			{Name: "child", Position: [3]float32{1, 0, 0}, Content: triangle()},
		},
	})
	require.NoError(t, err)
	child, ok := ents.Index("root/child")
	require.True(t, ok)

	st, err := NewStager(f.dev, ents, f.pipeline)
	require.NoError(t, err)
	world, _ := passes.Flatten(ents.Records(), common.Bounds{})
	frame, err := st.Stage(world)
	require.NoError(t, err)
	require.Equal(t, 1, frame.Instances)

	instances := f.dev.Bytes(st.InstanceBuffer())
	assert.InDelta(t, 11, math.Float32frombits(binary.LittleEndian.Uint32(instances[0:4])), 1e-6)
	assert.Equal(t, child, binary.LittleEndian.Uint32(instances[32:36]))
}

func TestDrawCommand(t *testing.T) {
	res := asset.Resident{
		IndexCount:   6,
		IndexFormat:  allocator.IndexFormatUint16,
		VertexStride: 16,
	}
	res.Index.Offset = 8
	res.Vertex.Offset = 64
	cmd := drawCommand(res, 5, 3)
	assert.Equal(t, store.GPUDrawCommand{IndexCount: 6, InstanceCount: 3, FirstIndex: 4, FirstInstance: 5, BaseVertex: 4}, cmd)
}
