package device

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostDevice_WriteAndRead(t *testing.T) {
	dev := NewHostDevice()
	buf, err := dev.CreateBuffer("test", 6, BufferUsageStorage)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), buf.Size())
	assert.True(t, buf.Usage().Has(BufferUsageStorage|BufferUsageCopyDst))

	require.NoError(t, dev.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, dev.Bytes(buf))
	assert.Equal(t, 1, dev.WriteCount(buf))
}

func TestHostDevice_WriteOverflow(t *testing.T) {
	dev := NewHostDevice()
	buf, err := dev.CreateBuffer("small", 4, BufferUsageUniform)
	require.NoError(t, err)

	err = dev.WriteBuffer(buf, 2, []byte{1, 2, 3, 4})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	assert.Equal(t, 0, dev.WriteCount(buf))
}

func TestHostDevice_ReleasedBufferRejected(t *testing.T) {
	dev := NewHostDevice()
	buf, err := dev.CreateBuffer("gone", 4, BufferUsageUniform)
	require.NoError(t, err)
	buf.Release()

	assert.Error(t, dev.WriteBuffer(buf, 0, []byte{1, 2, 3, 4}))
}

func TestWriteBuffers_SkipsEmptyAndStopsOnError(t *testing.T) {
	dev := NewHostDevice()
	a, _ := dev.CreateBuffer("a", 4, BufferUsageStorage)
	b, _ := dev.CreateBuffer("b", 4, BufferUsageStorage)

	err := WriteBuffers(dev, []BufferWrite{
		{Buffer: a, Offset: 0, Data: []byte{9, 9, 9, 9}},
		{Buffer: a, Offset: 0, Data: nil},
		{Buffer: b, Offset: 8, Data: []byte{1}},
		{Buffer: a, Offset: 0, Data: []byte{7, 7, 7, 7}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)
	assert.Equal(t, 1, dev.WriteCount(a))
	assert.Equal(t, []byte{9, 9, 9, 9}, dev.Bytes(a))
	assert.Equal(t, 1, dev.TotalWrites())
}
