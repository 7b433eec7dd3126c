package allocator

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type arena[T any] struct {
	dev       device.Device
	label     string
	chunkSize uint64
	usage     device.BufferUsage
	maxChunks int
	encode    func(T) ([]byte, error)
	chunks    []device.Buffer
	free      []Slot
	slots     map[string]Slot
	logger    logrus.FieldLogger
}

// Arena is a keyed free-list allocator for variable-size values spread over fixed-size chunk buffers.
// No allocation spans two chunks. Freed space is never coalesced.
type Arena[T any] interface {
	// FindFreeSlot reserves size bytes using first-fit over the free list in insertion order. An exact fit is taken
	// whole; a larger entry is split, the head returned and the remainder appended to the list. When nothing fits
	// a new chunk is created.
	//
	// Parameters:
	//   - size: number of bytes
	//
	// Returns:
	//   - Slot: the reserved range
	//   - error: ErrInvalidArgument for a zero size, ErrOutOfMemory if size exceeds a chunk or the chunk limit
	//     is reached
	FindFreeSlot(size uint64) (Slot, error)

	// Stream serializes and uploads value under key unless key is already present, in which case the existing
	// slot is returned and nothing is written.
	//
	// Parameters:
	//   - key: unique key
	//   - value: the value to serialize
	//
	// Returns:
	//   - Slot: the slot holding key
	//   - error: encode, allocation or device errors
	Stream(key string, value T) (Slot, error)

	// Add serializes and uploads value under key. An existing slot for key is returned to the free list once the
	// new value is written; on failure the key keeps its old slot.
	//
	// Parameters:
	//   - key: unique key
	//   - value: the value to serialize
	//
	// Returns:
	//   - Slot: the new slot
	//   - error: encode, allocation or device errors
	Add(key string, value T) (Slot, error)

	// Remove always fails with ErrUnsupported.
	Remove(key string) error

	// Get returns the slot recorded for key.
	Get(key string) (Slot, bool)

	// Len returns the number of keys.
	Len() int

	// Chunks returns the number of chunk buffers.
	Chunks() int

	// ChunkBuffer returns chunk i's buffer, or nil when out of range.
	ChunkBuffer(i int) device.Buffer

	// ChunkSize returns the size of every chunk in bytes.
	ChunkSize() uint64

	// FreeSlots returns a copy of the free list in its current order.
	FreeSlots() []Slot
}

var _ Arena[[]byte] = &arena[[]byte]{}

// NewArena creates an empty Arena. No chunk is created until the first allocation.
// Chunks default to vertex, index and storage usage.
//
// Parameters:
//   - dev: the device that owns the chunk buffers
//   - label: debug label prefix for the chunks
//   - chunkSize: bytes per chunk, rounded up to a multiple of 4
//   - encode: serializer for values
//   - options: variadic list of AllocatorBuilderOption
//
// Returns:
//   - Arena[T]: the arena
//   - error: ErrInvalidArgument for a zero chunk size or nil encoder
func NewArena[T any](dev device.Device, label string, chunkSize uint64, encode func(T) ([]byte, error), options ...AllocatorBuilderOption) (Arena[T], error) {
	if chunkSize == 0 || encode == nil {
		return nil, common.InvalidArgument("arena %q: chunk size %d, encoder set %t", label, chunkSize, encode != nil)
	}
	cfg := buildConfig(device.BufferUsageVertex|device.BufferUsageIndex|device.BufferUsageStorage, options)
	return &arena[T]{
		dev:       dev,
		label:     label,
		chunkSize: common.Align4(chunkSize),
		usage:     cfg.usage,
		maxChunks: cfg.maxChunks,
		encode:    encode,
		slots:     make(map[string]Slot),
		logger:    common.ComponentLogger(cfg.logger, "allocator.arena").WithField("arena", label),
	}, nil
}

// BytesArena is an Arena whose values are already serialized.
func BytesArena(dev device.Device, label string, chunkSize uint64, options ...AllocatorBuilderOption) (Arena[[]byte], error) {
	return NewArena(dev, label, chunkSize, func(b []byte) ([]byte, error) { return b, nil }, options...)
}

func (a *arena[T]) FindFreeSlot(size uint64) (Slot, error) {
	if size == 0 {
		return Slot{}, common.InvalidArgument("arena %q: zero-size slot", a.label)
	}
	if size > a.chunkSize {
		return Slot{}, common.OutOfMemory("arena %q: %d bytes exceed chunk size %d", a.label, size, a.chunkSize)
	}

	if slot, ok := a.takeFirstFit(size); ok {
		return slot, nil
	}
	if err := a.grow(); err != nil {
		return Slot{}, err
	}
	slot, _ := a.takeFirstFit(size)
	return slot, nil
}

func (a *arena[T]) takeFirstFit(size uint64) (Slot, bool) {
	for i, f := range a.free {
		if f.Size < size {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if f.Size > size {
			a.free = append(a.free, Slot{Chunk: f.Chunk, Offset: f.Offset + size, Size: f.Size - size})
		}
		return Slot{Chunk: f.Chunk, Offset: f.Offset, Size: size}, true
	}
	return Slot{}, false
}

func (a *arena[T]) grow() error {
	if a.maxChunks > 0 && len(a.chunks) >= a.maxChunks {
		return common.OutOfMemory("arena %q: chunk limit %d reached", a.label, a.maxChunks)
	}
	idx := len(a.chunks)
	buf, err := a.dev.CreateBuffer(fmt.Sprintf("%s Chunk %d", a.label, idx), a.chunkSize, a.usage)
	if err != nil {
		return errors.Wrapf(err, "arena %q: grow", a.label)
	}
	a.chunks = append(a.chunks, buf)
	a.free = append(a.free, Slot{Chunk: idx, Offset: 0, Size: a.chunkSize})
	a.logger.WithField("chunk", idx).Debug("arena grew")
	return nil
}

func (a *arena[T]) Stream(key string, value T) (Slot, error) {
	if slot, ok := a.slots[key]; ok {
		return slot, nil
	}
	return a.upload(key, value)
}

func (a *arena[T]) Add(key string, value T) (Slot, error) {
	data, err := a.encodePadded(key, value)
	if err != nil {
		return Slot{}, err
	}
	old, had := a.slots[key]
	slot, err := a.place(key, data)
	if err != nil {
		return Slot{}, err
	}
	if had {
		a.free = append(a.free, old)
	}
	return slot, nil
}

func (a *arena[T]) upload(key string, value T) (Slot, error) {
	data, err := a.encodePadded(key, value)
	if err != nil {
		return Slot{}, err
	}
	return a.place(key, data)
}

func (a *arena[T]) encodePadded(key string, value T) ([]byte, error) {
	data, err := a.encode(value)
	if err != nil {
		return nil, errors.Wrapf(err, "arena %q: encode %q", a.label, key)
	}
	if pad := common.Align4(uint64(len(data))); pad != uint64(len(data)) {
		padded := make([]byte, pad)
		copy(padded, data)
		data = padded
	}
	return data, nil
}

func (a *arena[T]) place(key string, data []byte) (Slot, error) {
	slot, err := a.FindFreeSlot(uint64(len(data)))
	if err != nil {
		return Slot{}, err
	}
	if err := a.dev.WriteBuffer(a.chunks[slot.Chunk], slot.Offset, data); err != nil {
		a.free = append(a.free, slot)
		return Slot{}, errors.Wrapf(err, "arena %q: upload %q", a.label, key)
	}
	a.slots[key] = slot
	a.logger.WithFields(logrus.Fields{"key": key, "chunk": slot.Chunk, "offset": slot.Offset, "size": slot.Size}).Debug("slot written")
	return slot, nil
}

func (a *arena[T]) Remove(key string) error {
	return common.Unsupported(fmt.Sprintf("arena %q remove %q", a.label, key))
}

func (a *arena[T]) Get(key string) (Slot, bool) {
	s, ok := a.slots[key]
	return s, ok
}

func (a *arena[T]) Len() int {
	return len(a.slots)
}

func (a *arena[T]) Chunks() int {
	return len(a.chunks)
}

func (a *arena[T]) ChunkBuffer(i int) device.Buffer {
	if i < 0 || i >= len(a.chunks) {
		return nil
	}
	return a.chunks[i]
}

func (a *arena[T]) ChunkSize() uint64 {
	return a.chunkSize
}

func (a *arena[T]) FreeSlots() []Slot {
	out := make([]Slot, len(a.free))
	copy(out, a.free)
	return out
}
