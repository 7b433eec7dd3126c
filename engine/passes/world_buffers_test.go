package passes

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldBuffers_SwapAlternates(t *testing.T) {
	dev := device.NewHostDevice()
	w, err := NewWorldBuffers(dev, 4, WithLabel("test"))
	require.NoError(t, err)
	assert.Equal(t, 3, dev.BufferCount())
	assert.Equal(t, uint64(4*32), w.Current().Size())

	a, b := w.Current(), w.Previous()
	require.NotSame(t, a, b)
	w.Swap()
	assert.Same(t, b, w.Current())
	assert.Same(t, a, w.Previous())
	w.Swap()
	assert.Same(t, a, w.Current())
}

func TestWorldBuffers_WriteTargetsCurrent(t *testing.T) {
	dev := device.NewHostDevice()
	w, err := NewWorldBuffers(dev, 2)
	require.NoError(t, err)

	rec := store.GPUWorldEntity{Position: [3]float32{1, 2, 3}, Scale: 1, Rotation: [4]float32{0, 0, 0, 1}}
	require.NoError(t, w.Write([]store.GPUWorldEntity{rec}, []uint32{42}))
	assert.Equal(t, 1, dev.WriteCount(w.Current()))
	assert.Equal(t, 0, dev.WriteCount(w.Previous()))
	assert.Equal(t, rec.Marshal(), dev.Bytes(w.Current())[:32])
	assert.Equal(t, common.SliceToBytes([]uint32{42, 0}), dev.Bytes(w.Morton()))

	err = w.Write(make([]store.GPUWorldEntity, 3), make([]uint32, 3))
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	err = w.Write(make([]store.GPUWorldEntity, 1), nil)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	_, err = NewWorldBuffers(dev, 0)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}
