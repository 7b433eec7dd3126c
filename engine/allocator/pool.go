// Package allocator holds the device-memory allocators everything resident is built on: a fixed-block Pool for
// equal-size records, a free-list Arena for variable-size ranges spread over chunk buffers, and a bump Heap.
// Allocators own their buffers and bookkeeping; they are not safe for concurrent use and are meant to be driven
// from the frame thread only.
package allocator

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type pool struct {
	buffer    device.Buffer
	dev       device.Device
	label     string
	blockSize uint32
	capacity  uint32
	size      uint32
	scavenged *roaring.Bitmap
	logger    logrus.FieldLogger
}

// Pool is an index-addressed allocator for equal-size records living in a single device buffer.
// Record i lives at byte offset i*BlockSize().
type Pool interface {
	// Allocate returns a free index. A previously freed index is reused when one exists, otherwise the high-water
	// mark is extended.
	//
	// Returns:
	//   - uint32: the allocated index
	//   - error: ErrOutOfMemory if the pool is full
	Allocate() (uint32, error)

	// Free releases an index. Freeing the top index shrinks the high-water mark; any other index is kept for reuse.
	// When the mark reaches zero the reuse set is cleared.
	//
	// Parameters:
	//   - index: the index to free
	//
	// Returns:
	//   - error: ErrInvalidArgument if the index is not live
	Free(index uint32) error

	// Write uploads a record at index*BlockSize().
	//
	// Parameters:
	//   - index: the record index
	//   - data: the record bytes, at most BlockSize() long
	//
	// Returns:
	//   - error: ErrInvalidArgument for oversized data, or the device write error
	Write(index uint32, data []byte) error

	// WriteField uploads part of a record, starting fieldOffset bytes into it.
	//
	// Parameters:
	//   - index: the record index
	//   - fieldOffset: byte offset of the field within the record
	//   - data: the field bytes
	//
	// Returns:
	//   - error: ErrInvalidArgument if the field does not fit in the block, or the device write error
	WriteField(index, fieldOffset uint32, data []byte) error

	// Clear forgets every allocation. The buffer contents are left as they are.
	Clear()

	// Size returns the high-water mark.
	Size() uint32

	// Live returns the number of allocated, not freed, indices.
	Live() uint32

	// Capacity returns the maximum number of records.
	Capacity() uint32

	// BlockSize returns the record size in bytes.
	BlockSize() uint32

	// Buffer returns the backing device buffer.
	Buffer() device.Buffer
}

var _ Pool = &pool{}

// NewPool creates a Pool and its backing buffer of blockSize*capacity bytes.
// The buffer defaults to storage usage.
//
// Parameters:
//   - dev: the device that owns the buffer
//   - label: debug label
//   - blockSize: record size in bytes
//   - capacity: maximum record count
//   - options: variadic list of AllocatorBuilderOption
//
// Returns:
//   - Pool: the pool
//   - error: error if the sizes are zero or the buffer cannot be created
func NewPool(dev device.Device, label string, blockSize, capacity uint32, options ...AllocatorBuilderOption) (Pool, error) {
	if blockSize == 0 || capacity == 0 {
		return nil, common.InvalidArgument("pool %q: block size %d, capacity %d", label, blockSize, capacity)
	}
	cfg := buildConfig(device.BufferUsageStorage, options)

	buf, err := dev.CreateBuffer(label, uint64(blockSize)*uint64(capacity), cfg.usage)
	if err != nil {
		return nil, errors.Wrapf(err, "pool %q", label)
	}
	return &pool{
		buffer:    buf,
		dev:       dev,
		label:     label,
		blockSize: blockSize,
		capacity:  capacity,
		scavenged: roaring.New(),
		logger:    common.ComponentLogger(cfg.logger, "allocator.pool").WithField("pool", label),
	}, nil
}

func (p *pool) Allocate() (uint32, error) {
	if !p.scavenged.IsEmpty() {
		idx := p.scavenged.Minimum()
		p.scavenged.Remove(idx)
		p.logger.WithField("index", idx).Debug("reused index")
		return idx, nil
	}
	if p.size >= p.capacity {
		return 0, common.OutOfMemory("pool %q: %d of %d blocks in use", p.label, p.size, p.capacity)
	}
	idx := p.size
	p.size++
	p.logger.WithField("index", idx).Debug("allocated index")
	return idx, nil
}

func (p *pool) Free(index uint32) error {
	if index >= p.size {
		return common.InvalidArgument("pool %q: free of index %d beyond size %d", p.label, index, p.size)
	}
	if p.scavenged.Contains(index) {
		return common.InvalidArgument("pool %q: double free of index %d", p.label, index)
	}

	if index == p.size-1 {
		p.size--
	} else {
		p.scavenged.Add(index)
	}
	if p.size == 0 {
		p.scavenged.Clear()
	}
	p.logger.WithField("index", index).Debug("freed index")
	return nil
}

func (p *pool) Write(index uint32, data []byte) error {
	if uint64(len(data)) > uint64(p.blockSize) {
		return common.InvalidArgument("pool %q: %d bytes exceed block size %d", p.label, len(data), p.blockSize)
	}
	return p.WriteField(index, 0, data)
}

func (p *pool) WriteField(index, fieldOffset uint32, data []byte) error {
	if index >= p.capacity {
		return common.InvalidArgument("pool %q: index %d beyond capacity %d", p.label, index, p.capacity)
	}
	if uint64(fieldOffset)+uint64(len(data)) > uint64(p.blockSize) {
		return common.InvalidArgument("pool %q: field [%d,+%d) outside block of %d", p.label, fieldOffset, len(data), p.blockSize)
	}
	offset := uint64(index)*uint64(p.blockSize) + uint64(fieldOffset)
	return p.dev.WriteBuffer(p.buffer, offset, data)
}

func (p *pool) Clear() {
	p.size = 0
	p.scavenged.Clear()
}

func (p *pool) Size() uint32 {
	return p.size
}

func (p *pool) Live() uint32 {
	return p.size - uint32(p.scavenged.GetCardinality())
}

func (p *pool) Capacity() uint32 {
	return p.capacity
}

func (p *pool) BlockSize() uint32 {
	return p.blockSize
}

func (p *pool) Buffer() device.Buffer {
	return p.buffer
}
