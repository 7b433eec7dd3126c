package asset

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type arenaMaterializer struct {
	dev      *device.HostDevice
	vertices allocator.Arena[[]byte]
	indices  allocator.Arena[[]byte]
}

func newArenaMaterializer(t *testing.T, chunk uint64) *arenaMaterializer {
	t.Helper()
	dev := device.NewHostDevice()
	v, err := allocator.BytesArena(dev, "vertices", chunk)
	require.NoError(t, err)
	i, err := allocator.BytesArena(dev, "indices", chunk)
	require.NoError(t, err)
	return &arenaMaterializer{dev: dev, vertices: v, indices: i}
}

func (m *arenaMaterializer) Materialize(key string, vertices []byte, indices []uint32) (Materialized, error) {
	v, err := m.vertices.Stream(key, vertices)
	if err != nil {
		return Materialized{}, err
	}
	data, format := allocator.EncodeIndices(indices)
	i, err := m.indices.Stream(key, data)
	if err != nil {
		return Materialized{}, err
	}
	return Materialized{Vertex: v, Index: i, IndexFormat: format}, nil
}

func triangle() Mesh {
	verts := make([]byte, 3*12)
	pos := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	for i, f := range pos {
		binary.LittleEndian.PutUint32(verts[i*4:], math.Float32bits(f))
	}
	return Mesh{ID: "tri", Vertices: verts, VertexStride: 12, Indices: []uint32{0, 1, 2}}
}

func waitAndPoll(t *testing.T, p Pipeline) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
	n, err := p.Poll()
	require.NoError(t, err)
	return n
}

func TestPipeline_EndToEndReference(t *testing.T) {
	p := NewPipeline(newArenaMaterializer(t, 1024), WithWorkers(2))
	require.NoError(t, p.Registry().Register("tri.obj", func(context.Context, string, int) (Content, error) {
		return triangle(), nil
	}))

	st, err := p.Request(Reference{Locator: "tri.obj"}, 0)
	require.NoError(t, err)
	assert.IsType(t, Loading{}, st)
	assert.Equal(t, 1, p.InFlight())

	assert.Equal(t, 1, waitAndPoll(t, p))
	assert.Equal(t, 0, p.InFlight())

	st, err = p.Request(Reference{Locator: "tri.obj"}, 0)
	require.NoError(t, err)
	res, ok := st.(Resident)
	require.True(t, ok, "got %#v", st)
	assert.Equal(t, uint32(3), res.IndexCount)
	assert.Equal(t, uint32(3), res.VertexCount)
	assert.Equal(t, "tri", res.ContentID)
	assert.Equal(t, allocator.IndexFormatUint16, res.IndexFormat)
}

func TestPipeline_LODFallback(t *testing.T) {
	p := NewPipeline(nil).(*pipelineImpl)
	slotA := allocator.Slot{Chunk: 0, Offset: 64, Size: 36}
	p.cache["mesh:0"] = Loading{RequestID: 7}
	p.cache["mesh:1"] = Resident{ContentID: "mesh", LOD: 1, HasGeometry: true, Vertex: slotA, IndexCount: 3}
	p.cache["mesh:3"] = Resident{ContentID: "mesh", LOD: 3, HasGeometry: true}

	st, err := p.Request(Reference{Locator: "mesh"}, 0)
	require.NoError(t, err)
	res, ok := st.(Resident)
	require.True(t, ok, "got %#v", st)
	assert.Equal(t, slotA, res.Vertex)
	assert.Equal(t, 1, res.LOD)
	assert.Equal(t, 1, p.Stats().Fallbacks)
}

func TestPipeline_LoadingWithoutFallback(t *testing.T) {
	p := NewPipeline(nil).(*pipelineImpl)
	p.cache["mesh:1"] = Loading{RequestID: 3}
	p.cache["mesh:0"] = Resident{ContentID: "mesh", LOD: 0, HasGeometry: true}

	st, err := p.Request(Reference{Locator: "mesh"}, 1)
	require.NoError(t, err)
	assert.Equal(t, Loading{RequestID: 3}, st)
}

func TestPipeline_DeduplicatesInFlightLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	p := NewPipeline(newArenaMaterializer(t, 1024))
	require.NoError(t, p.Registry().Register("*.obj", func(context.Context, string, int) (Content, error) {
		calls.Add(1)
		<-release
		return triangle(), nil
	}))

	first, err := p.Request(Reference{Locator: "slow.obj"}, 0)
	require.NoError(t, err)
	second, err := p.Request(Reference{Locator: "slow.obj"}, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.InFlight())

	close(release)
	waitAndPoll(t, p)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPipeline_NotFoundBecomesErrorAndWarns(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewPipeline(nil, WithLogger(logger))

	st, err := p.Request(Reference{Locator: "missing.obj"}, 0)
	require.NoError(t, err)
	es, ok := st.(ErrorState)
	require.True(t, ok, "got %#v", st)
	assert.True(t, errors.Is(es.Err, common.ErrNotFound))
	assert.Equal(t, "missing.obj", es.ContentID)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, 0, p.InFlight())
	assert.Equal(t, 1, p.Stats().NotFound)
}

func TestPipeline_LoadFailureBecomesError(t *testing.T) {
	p := NewPipeline(nil)
	require.NoError(t, p.Registry().Register("bad.obj", func(context.Context, string, int) (Content, error) {
		return nil, errors.New("corrupt header")
	}))
	require.NoError(t, p.Registry().Register("panic.obj", func(context.Context, string, int) (Content, error) {
		panic("boom")
	}))

	_, err := p.Request(Reference{Locator: "bad.obj"}, 0)
	require.NoError(t, err)
	_, err = p.Request(Reference{Locator: "panic.obj"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, waitAndPoll(t, p))

	for _, loc := range []string{"bad.obj", "panic.obj"} {
		st, err := p.Request(Reference{Locator: loc}, 0)
		require.NoError(t, err)
		es, ok := st.(ErrorState)
		require.True(t, ok, "%s: got %#v", loc, st)
		assert.True(t, errors.Is(es.Err, common.ErrLoadFailure), loc)
		assert.Equal(t, 0, es.LOD)
	}
	assert.Equal(t, 2, p.Stats().Failed)
}

func TestPipeline_ChainedReferencesResolve(t *testing.T) {
	p := NewPipeline(newArenaMaterializer(t, 1024))
	require.NoError(t, p.Registry().Register("alias.ref", func(context.Context, string, int) (Content, error) {
		return Reference{Locator: "tri.obj"}, nil
	}))
	require.NoError(t, p.Registry().Register("tri.obj", func(context.Context, string, int) (Content, error) {
		return triangle(), nil
	}))

	st, err := p.Request(Reference{Locator: "alias.ref"}, 0)
	require.NoError(t, err)
	assert.IsType(t, Loading{}, st)

	waitAndPoll(t, p)
	st, err = p.Request(Reference{Locator: "alias.ref"}, 0)
	require.NoError(t, err)
	assert.IsType(t, Loading{}, st)
	assert.Equal(t, 1, p.InFlight())

	waitAndPoll(t, p)
	st, err = p.Request(Reference{Locator: "alias.ref"}, 0)
	require.NoError(t, err)
	res, ok := st.(Resident)
	require.True(t, ok, "got %#v", st)
	assert.Equal(t, uint32(3), res.IndexCount)

	direct, ok := p.State("tri.obj:0")
	require.True(t, ok)
	assert.Equal(t, res, direct)
}

func TestPipeline_InlineMeshIsSynchronousAndIdempotent(t *testing.T) {
	m := newArenaMaterializer(t, 1024)
	p := NewPipeline(m)

	a, err := p.Request(triangle(), 0)
	require.NoError(t, err)
	b, err := p.Request(triangle(), 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 2, m.dev.TotalWrites())

	_, drawable := Drawable(a)
	assert.True(t, drawable)
}

func TestPipeline_EachLODOfAMeshGetsItsOwnSlots(t *testing.T) {
	p := NewPipeline(newArenaMaterializer(t, 1024))

	coarse := triangle()
	coarse.ID = "rock"
	fine := triangle()
	fine.ID = "rock"
	fine.Indices = []uint32{0, 1, 2, 2, 1, 0}

	st, err := p.Request(coarse, 1)
	require.NoError(t, err)
	lod1, ok := Drawable(st)
	require.True(t, ok)
	st, err = p.Request(fine, 0)
	require.NoError(t, err)
	lod0, ok := Drawable(st)
	require.True(t, ok)

	assert.NotEqual(t, lod1.Index, lod0.Index)
	assert.Equal(t, uint32(6), lod0.IndexCount)
	assert.GreaterOrEqual(t, lod0.Index.Size, uint64(lod0.IndexCount*lod0.IndexFormat.Size()))
	assert.GreaterOrEqual(t, lod1.Index.Size, uint64(lod1.IndexCount*lod1.IndexFormat.Size()))
}

func TestPipeline_FullLoaderQueueNeverBlocksRequest(t *testing.T) {
	release := make(chan struct{})
	p := NewPipeline(newArenaMaterializer(t, 1024), WithWorkers(1), WithQueueSize(1))
	require.NoError(t, p.Registry().Register("*.obj", func(context.Context, string, int) (Content, error) {
		<-release
		return triangle(), nil
	}))

	locators := []string{"a.obj", "b.obj", "c.obj", "d.obj"}
	requested := make(chan error, 1)
	go func() {
		for _, loc := range locators {
			st, err := p.Request(Reference{Locator: loc}, 0)
			if err != nil {
				requested <- err
				return
			}
			if _, loading := st.(Loading); !loading {
				requested <- errors.Newf("%s: got %#v", loc, st)
				return
			}
		}
		requested <- nil
	}()
	select {
	case err := <-requested:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Request blocked on a full loader queue")
	}

	assert.Equal(t, len(locators), p.InFlight())
	assert.Equal(t, len(locators)-1, p.Stats().Backlog)

	close(release)
	assert.Equal(t, len(locators), waitAndPoll(t, p))
	assert.Equal(t, 0, p.Stats().Backlog)
	for _, loc := range locators {
		st, ok := p.State(loc + ":0")
		require.True(t, ok)
		_, drawable := Drawable(st)
		assert.True(t, drawable, loc)
	}
}

func TestPipeline_AllocatorErrorsPropagate(t *testing.T) {
	p := NewPipeline(newArenaMaterializer(t, 16))

	big := triangle()
	big.ID = "big"
	st, err := p.Request(big, 0)
	assert.Nil(t, st)
	assert.True(t, errors.Is(err, common.ErrOutOfMemory))
	_, cached := p.State(Key(big, 0))
	assert.False(t, cached)
}

func TestPipeline_EmptyAndCamera(t *testing.T) {
	p := NewPipeline(nil)

	st, err := p.Request(Empty{}, 0)
	require.NoError(t, err)
	assert.Equal(t, EmptyState{}, st)

	proj := camera.Projection{FovY: 1, Aspect: 1.5, Near: 0.1, Far: 100}
	st, err = p.Request(CameraContent{Projection: proj}, 0)
	require.NoError(t, err)
	res, ok := st.(Resident)
	require.True(t, ok)
	assert.Equal(t, proj, res.Camera)
	assert.False(t, res.HasGeometry)
}

func TestPipeline_UnloadIsUnsupported(t *testing.T) {
	p := NewPipeline(nil)
	assert.True(t, errors.Is(p.Unload(Reference{Locator: "x"}, 0), common.ErrUnsupported))
}
