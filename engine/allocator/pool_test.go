package allocator

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_NeverReturnsLiveOrOutOfRangeIndex(t *testing.T) {
	const capacity = 16
	p, err := NewPool(device.NewHostDevice(), "entities", 32, capacity)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	live := map[uint32]bool{}
	for step := 0; step < 2000; step++ {
		if rng.Intn(3) != 0 {
			idx, err := p.Allocate()
			if len(live) == capacity {
				require.True(t, errors.Is(err, common.ErrOutOfMemory), "step %d", step)
				continue
			}
			require.NoError(t, err, "step %d", step)
			require.Less(t, idx, uint32(capacity))
			require.False(t, live[idx], "index %d handed out twice", idx)
			live[idx] = true
		} else if len(live) > 0 {
			var victim uint32
			n := rng.Intn(len(live))
			for k := range live {
				if n == 0 {
					victim = k
					break
				}
				n--
			}
			require.NoError(t, p.Free(victim))
			delete(live, victim)
		}
		require.Equal(t, uint32(len(live)), p.Live())
	}
}

func TestPool_FreeTopShrinksMark(t *testing.T) {
	p, err := NewPool(device.NewHostDevice(), "p", 4, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.Allocate()
		require.NoError(t, err)
	}
	require.NoError(t, p.Free(2))
	assert.Equal(t, uint32(2), p.Size())

	require.NoError(t, p.Free(0))
	assert.Equal(t, uint32(2), p.Size())
	assert.Equal(t, uint32(1), p.Live())

	idx, err := p.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
}

func TestPool_ScavengedClearedWhenEmpty(t *testing.T) {
	p, err := NewPool(device.NewHostDevice(), "p", 4, 8)
	require.NoError(t, err)
	_, _ = p.Allocate()
	_, _ = p.Allocate()

	require.NoError(t, p.Free(0))
	require.NoError(t, p.Free(1))
	assert.Equal(t, uint32(1), p.Size())

	// index 0 is scavenged, so the pool is logically empty but the mark is still 1
	assert.Equal(t, uint32(0), p.Live())
	idx, err := p.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
	require.NoError(t, p.Free(0))
	assert.Equal(t, uint32(0), p.Size())

	idx, err = p.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
	assert.Equal(t, uint32(1), p.Size())
}

func TestPool_FreeRejectsInvalidIndices(t *testing.T) {
	p, err := NewPool(device.NewHostDevice(), "p", 4, 8)
	require.NoError(t, err)
	_, _ = p.Allocate()
	_, _ = p.Allocate()

	assert.True(t, errors.Is(p.Free(5), common.ErrInvalidArgument))
	require.NoError(t, p.Free(0))
	assert.True(t, errors.Is(p.Free(0), common.ErrInvalidArgument))
}

func TestPool_WriteAddressesBlock(t *testing.T) {
	dev := device.NewHostDevice()
	p, err := NewPool(dev, "p", 8, 4)
	require.NoError(t, err)

	require.NoError(t, p.Write(2, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, p.WriteField(1, 4, []byte{9, 9, 9, 9}))

	got := dev.Bytes(p.Buffer())
	assert.Equal(t, []byte{9, 9, 9, 9}, got[12:16])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, got[16:24])

	assert.True(t, errors.Is(p.Write(0, make([]byte, 9)), common.ErrInvalidArgument))
	assert.True(t, errors.Is(p.WriteField(0, 6, make([]byte, 4)), common.ErrInvalidArgument))
}

func TestPool_ClearKeepsContents(t *testing.T) {
	dev := device.NewHostDevice()
	p, err := NewPool(dev, "p", 4, 4)
	require.NoError(t, err)
	idx, _ := p.Allocate()
	require.NoError(t, p.Write(idx, []byte{7, 7, 7, 7}))

	p.Clear()
	assert.Equal(t, uint32(0), p.Size())
	assert.Equal(t, []byte{7, 7, 7, 7}, dev.Bytes(p.Buffer())[:4])
}
