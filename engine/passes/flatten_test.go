package passes

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var identity = common.PackHalfQuat([4]float32{0, 0, 0, 1})

func TestFlatten_ComposesParentBeforeChild(t *testing.T) {
	s := float32(math.Sqrt2 / 2)
	local := []store.GPUEntity{
		// child stored before its parent
		{Position: [3]float32{1, 0, 0}, Scale: 3, Rotation: identity, Parent: 1},
		{Position: [3]float32{10, 0, 0}, Scale: 2, Rotation: common.PackHalfQuat([4]float32{0, 0, s, s}), Parent: store.NoParent},
	}
	world, morton := Flatten(local, common.Bounds{Max: [3]float32{16, 16, 16}})
	require.Len(t, world, 2)
	require.Len(t, morton, 2)

	child := world[0]
	assert.InDelta(t, 10, child.Position[0], 1e-2)
	assert.InDelta(t, 2, child.Position[1], 1e-2)
	assert.InDelta(t, 0, child.Position[2], 1e-2)
	assert.InDelta(t, 6, child.Scale, 1e-6)
	assert.InDelta(t, s, child.Rotation[2], 1e-2)
	assert.InDelta(t, s, child.Rotation[3], 1e-2)

	assert.Equal(t, [3]float32{10, 0, 0}, world[1].Position)
	assert.NotZero(t, morton[1])
}

func TestFlatten_SleepingEntitiesAreZero(t *testing.T) {
	local := []store.GPUEntity{
		{Position: [3]float32{4, 4, 4}, Scale: 1, Rotation: identity, Parent: store.NoParent, Flags: store.FlagSleep},
		{Position: [3]float32{1, 1, 1}, Scale: 1, Rotation: identity, Parent: 0},
	}
	world, morton := Flatten(local, common.Bounds{Max: [3]float32{8, 8, 8}})

	assert.Equal(t, store.GPUWorldEntity{}, world[0])
	assert.Zero(t, morton[0])
	assert.InDelta(t, 5, world[1].Position[0], 1e-6)
	assert.InDelta(t, 5, world[1].Position[2], 1e-6)
}

func TestFlatten_BadParentsBecomeRoots(t *testing.T) {
	local := []store.GPUEntity{
		{Position: [3]float32{1, 0, 0}, Scale: 1, Rotation: identity, Parent: 1},
		{Position: [3]float32{0, 1, 0}, Scale: 1, Rotation: identity, Parent: 0},
		{Position: [3]float32{0, 0, 1}, Scale: 1, Rotation: identity, Parent: 99},
	}
	world, _ := Flatten(local, common.Bounds{Max: [3]float32{1, 1, 1}})
	assert.Equal(t, [3]float32{0, 0, 1}, world[2].Position)
	// the cycle is broken at the entity resolved first
	assert.Equal(t, [3]float32{1, 1, 0}, world[0].Position)
	assert.Equal(t, [3]float32{0, 1, 0}, world[1].Position)
}

func TestFlatten_MortonAtBoundsCorner(t *testing.T) {
	local := []store.GPUEntity{
		{Position: [3]float32{16, 16, 16}, Scale: 1, Rotation: identity, Parent: store.NoParent},
		{Position: [3]float32{-5, -5, -5}, Scale: 1, Rotation: identity, Parent: store.NoParent},
	}
	_, morton := Flatten(local, common.Bounds{Max: [3]float32{16, 16, 16}})
	assert.Equal(t, uint32(1<<30-1), morton[0])
	assert.Zero(t, morton[1])
}
