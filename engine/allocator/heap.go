package allocator

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type heap struct {
	dev      device.Device
	buffer   device.Buffer
	label    string
	capacity uint64
	size     uint64
	logger   logrus.FieldLogger
}

// Heap is a monotonic allocator over one device buffer. Space is never returned.
type Heap interface {
	// Alloc reserves size bytes at the current end of the heap.
	//
	// Parameters:
	//   - size: number of bytes
	//
	// Returns:
	//   - Slot: the reserved range, Chunk is always zero
	//   - error: ErrOutOfMemory when capacity would be exceeded
	Alloc(size uint64) (Slot, error)

	// Free always fails with ErrUnsupported.
	Free(slot Slot) error

	// Write uploads data into slot starting relOffset bytes into it.
	//
	// Parameters:
	//   - slot: a slot returned by Alloc
	//   - relOffset: offset within the slot
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: ErrInvalidArgument if the data overflows the slot, or the device write error
	Write(slot Slot, relOffset uint64, data []byte) error

	// Size returns the number of bytes handed out.
	Size() uint64

	// Capacity returns the heap size in bytes.
	Capacity() uint64

	// Buffer returns the backing device buffer.
	Buffer() device.Buffer
}

var _ Heap = &heap{}

// NewHeap creates a Heap backed by a buffer of capacity bytes.
//
// Parameters:
//   - dev: the device that owns the buffer
//   - label: debug label
//   - capacity: heap size in bytes
//   - usage: buffer usage flags
//   - options: variadic list of AllocatorBuilderOption
//
// Returns:
//   - Heap: the heap
//   - error: error if the capacity is zero or the buffer cannot be created
func NewHeap(dev device.Device, label string, capacity uint64, usage device.BufferUsage, options ...AllocatorBuilderOption) (Heap, error) {
	if capacity == 0 {
		return nil, common.InvalidArgument("heap %q: zero capacity", label)
	}
	cfg := buildConfig(usage, options)
	buf, err := dev.CreateBuffer(label, capacity, cfg.usage)
	if err != nil {
		return nil, errors.Wrapf(err, "heap %q", label)
	}
	return &heap{
		dev:      dev,
		buffer:   buf,
		label:    label,
		capacity: capacity,
		logger:   common.ComponentLogger(cfg.logger, "allocator.heap").WithField("heap", label),
	}, nil
}

func (h *heap) Alloc(size uint64) (Slot, error) {
	if size > h.capacity-h.size {
		return Slot{}, common.OutOfMemory("heap %q: %d bytes requested, %d of %d used", h.label, size, h.size, h.capacity)
	}
	s := Slot{Offset: h.size, Size: size}
	h.size += size
	h.logger.WithFields(logrus.Fields{"offset": s.Offset, "size": size}).Debug("heap alloc")
	return s, nil
}

func (h *heap) Free(slot Slot) error {
	return common.Unsupported("heap free")
}

func (h *heap) Write(slot Slot, relOffset uint64, data []byte) error {
	if relOffset > slot.Size || uint64(len(data)) > slot.Size-relOffset {
		return common.InvalidArgument("heap %q: write [%d,+%d) outside slot of %d", h.label, relOffset, len(data), slot.Size)
	}
	return h.dev.WriteBuffer(h.buffer, slot.Offset+relOffset, data)
}

func (h *heap) Size() uint64 {
	return h.size
}

func (h *heap) Capacity() uint64 {
	return h.capacity
}

func (h *heap) Buffer() device.Buffer {
	return h.buffer
}
