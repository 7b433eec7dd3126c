package store

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntities(t *testing.T, capacity uint32) (Entities, *device.HostDevice) {
	t.Helper()
	dev := device.NewHostDevice()
	pool, err := allocator.NewPool(dev, "entities", 32, capacity)
	require.NoError(t, err)
	return NewEntities(pool), dev
}

func TestEntities_HierarchyUsesParentIndices(t *testing.T) {
	s, dev := newEntities(t, 8)

	root, err := s.Add(Entity{
		Name:     "ship",
		Position: [3]float32{10, 0, 0},
		Children: []Entity{
			{Name: "turret", Position: [3]float32{0, 1, 0}, Content: asset.Reference{Locator: "turret.rmesh"}},
			{Name: "engine", Children: []Entity{{Name: "flame"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())

	turret, ok := s.Index("ship/turret")
	require.True(t, ok)
	flame, ok := s.Index("ship/engine/flame")
	require.True(t, ok)
	engine, _ := s.Index("ship/engine")

	rec, _ := s.Record(turret)
	assert.Equal(t, root, rec.Parent)
	rec, _ = s.Record(flame)
	assert.Equal(t, engine, rec.Parent)
	rec, _ = s.Record(root)
	assert.Equal(t, NoParent, rec.Parent)
	assert.Equal(t, float32(1), rec.Scale)
	assert.Equal(t, uint16(0x3C00), rec.Rotation[3])

	onDevice := UnmarshalEntity(dev.Bytes(s.Pool().Buffer())[turret*32:])
	assert.Equal(t, [3]float32{0, 1, 0}, onDevice.Position)

	row, ok := s.Get("ship/turret")
	require.True(t, ok)
	assert.Equal(t, asset.Reference{Locator: "turret.rmesh"}, row.Content)
}

func TestEntities_SameChildNameUnderDifferentParents(t *testing.T) {
	s, _ := newEntities(t, 8)
	_, err := s.Add(Entity{Name: "a", Children: []Entity{{Name: "wheel"}}})
	require.NoError(t, err)
	_, err = s.Add(Entity{Name: "b", Children: []Entity{{Name: "wheel"}}})
	require.NoError(t, err)

	ia, _ := s.Index("a/wheel")
	ib, _ := s.Index("b/wheel")
	assert.NotEqual(t, ia, ib)
}

func TestEntities_PartialWritesTouchOnlyTheField(t *testing.T) {
	s, dev := newEntities(t, 4)
	idx, err := s.Add(Entity{Name: "box", Position: [3]float32{1, 2, 3}, Scale: 2, Flags: FlagOpaque})
	require.NoError(t, err)
	buf := s.Pool().Buffer()
	writes := dev.WriteCount(buf)

	require.NoError(t, s.SetPosition("box", [3]float32{4, 5, 6}))
	require.NoError(t, s.SetSleep("box", true))
	assert.Equal(t, writes+2, dev.WriteCount(buf))

	got := UnmarshalEntity(dev.Bytes(buf)[idx*32:])
	assert.Equal(t, [3]float32{4, 5, 6}, got.Position)
	assert.Equal(t, float32(2), got.Scale)
	assert.Equal(t, FlagOpaque|FlagSleep, got.Flags)

	require.NoError(t, s.SetSleep("box", false))
	require.NoError(t, s.SetScale("box", 3))
	require.NoError(t, s.SetRotation("box", [4]float32{0, 0, 0, 1}))
	got = UnmarshalEntity(dev.Bytes(buf)[idx*32:])
	assert.Equal(t, FlagOpaque, got.Flags)
	assert.Equal(t, float32(3), got.Scale)

	assert.True(t, errors.Is(s.SetPosition("nope", [3]float32{}), common.ErrNotFound))
}

func TestEntities_ReAddUpdatesInPlace(t *testing.T) {
	s, _ := newEntities(t, 4)
	first, err := s.Add(Entity{Name: "box"})
	require.NoError(t, err)
	second, err := s.Add(Entity{Name: "box", Position: [3]float32{9, 9, 9}})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.Len())
	rec, _ := s.Record(first)
	assert.Equal(t, [3]float32{9, 9, 9}, rec.Position)
}

func TestEntities_RemoveSubtree(t *testing.T) {
	s, _ := newEntities(t, 8)
	_, err := s.Add(Entity{Name: "root", Children: []Entity{{Name: "a", Children: []Entity{{Name: "b"}}}, {Name: "c"}}})
	require.NoError(t, err)

	require.NoError(t, s.Remove("root/a"))
	assert.Equal(t, 2, s.Len())
	_, ok := s.Index("root/a/b")
	assert.False(t, ok)
	assert.Equal(t, uint32(2), s.Pool().Live())

	var keys []string
	s.Each(func(_ uint32, row EntityRow) { keys = append(keys, row.Key) })
	assert.Equal(t, []string{"root", "root/c"}, keys)

	_, err = s.AddChild("root", Entity{Name: "d"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
}

func TestEntities_InvalidNamesAndCapacity(t *testing.T) {
	s, _ := newEntities(t, 1)
	_, err := s.Add(Entity{Name: ""})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	_, err = s.Add(Entity{Name: "a/b"})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	_, err = s.Add(Entity{Name: "one"})
	require.NoError(t, err)
	_, err = s.Add(Entity{Name: "two"})
	assert.True(t, errors.Is(err, common.ErrOutOfMemory))
}

func TestEntities_RecordsMarksGapsAsleep(t *testing.T) {
	s, _ := newEntities(t, 4)
	_, _ = s.Add(Entity{Name: "a"})
	_, _ = s.Add(Entity{Name: "b"})
	_, _ = s.Add(Entity{Name: "c"})
	require.NoError(t, s.Remove("b"))

	recs := s.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, FlagSleep, recs[1].Flags)
	assert.Equal(t, uint32(0), recs[0].Flags)
}

func TestEntities_EachVisitsLiveRowsInIndexOrder(t *testing.T) {
	s, _ := newEntities(t, 8)
	for _, name := range []string{"a", "b", "c", "d"} {
		_, err := s.Add(Entity{Name: name})
		require.NoError(t, err)
	}
	require.NoError(t, s.Remove("b"))
	require.NoError(t, s.Remove("d"))
	idx, err := s.Add(Entity{Name: "e"})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), idx)

	var indices []uint32
	var keys []string
	s.Each(func(i uint32, row EntityRow) {
		indices = append(indices, i)
		keys = append(keys, row.Key)
	})
	assert.Equal(t, []uint32{0, 1, 2}, indices)
	assert.Equal(t, []string{"a", "e", "c"}, keys)
}
