// Package passes holds the contracts of the per-frame device passes (flatten, select views) together with CPU
// reference implementations used by headless runs and tests.
package passes

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type worldBuffers struct {
	dev      device.Device
	label    string
	logger   logrus.FieldLogger
	capacity uint32

	world   [2]device.Buffer
	current int
	morton  device.Buffer
}

// WorldBuffers is the double-buffered output of the flatten pass. The pass writes Current while the previous
// frame's result stays readable through Previous; Swap flips them once per dispatch.
type WorldBuffers interface {
	// Current returns the buffer the next flatten writes.
	Current() device.Buffer

	// Previous returns the buffer written by the last flatten before the most recent Swap.
	Previous() device.Buffer

	// Morton returns the buffer of 30-bit Morton codes, one u32 per entity.
	Morton() device.Buffer

	// Swap exchanges Current and Previous.
	Swap()

	// Write uploads a flatten result into Current and the Morton buffer.
	//
	// Parameters:
	//   - world: world records, at most Capacity
	//   - morton: Morton codes, same length as world
	//
	// Returns:
	//   - error: ErrInvalidArgument when the result does not fit, or a device error
	Write(world []store.GPUWorldEntity, morton []uint32) error

	// Capacity returns the number of entity records each buffer holds.
	Capacity() uint32

	// Release frees the three buffers.
	Release()
}

var _ WorldBuffers = &worldBuffers{}

// NewWorldBuffers creates two world buffers and a Morton buffer sized for capacity entities.
//
// Parameters:
//   - dev: the device
//   - capacity: number of entity records
//   - options: variadic list of PassesBuilderOption
//
// Returns:
//   - WorldBuffers: the buffers
//   - error: error if capacity is zero or buffer creation fails
func NewWorldBuffers(dev device.Device, capacity uint32, options ...PassesBuilderOption) (WorldBuffers, error) {
	if capacity == 0 {
		return nil, common.InvalidArgument("world buffers: zero capacity")
	}
	w := &worldBuffers{dev: dev, capacity: capacity}
	w.applyOptions(options)

	var rec store.GPUWorldEntity
	size := uint64(capacity) * uint64(rec.Size())
	for i, suffix := range []string{"_a", "_b"} {
		buf, err := dev.CreateBuffer(w.label+suffix, size, device.BufferUsageStorage|device.BufferUsageCopySrc)
		if err != nil {
			w.Release()
			return nil, errors.Wrap(err, "world buffers")
		}
		w.world[i] = buf
	}
	buf, err := dev.CreateBuffer(w.label+"_morton", uint64(capacity)*4, device.BufferUsageStorage)
	if err != nil {
		w.Release()
		return nil, errors.Wrap(err, "world buffers")
	}
	w.morton = buf
	w.logger.WithFields(logrus.Fields{"capacity": capacity, "size": size}).Debug("world buffers created")
	return w, nil
}

func (w *worldBuffers) Current() device.Buffer  { return w.world[w.current] }
func (w *worldBuffers) Previous() device.Buffer { return w.world[1-w.current] }
func (w *worldBuffers) Morton() device.Buffer   { return w.morton }
func (w *worldBuffers) Capacity() uint32        { return w.capacity }

func (w *worldBuffers) Swap() {
	w.current = 1 - w.current
}

func (w *worldBuffers) Write(world []store.GPUWorldEntity, morton []uint32) error {
	if len(world) != len(morton) {
		return common.InvalidArgument("world buffers: %d records but %d morton codes", len(world), len(morton))
	}
	if uint64(len(world)) > uint64(w.capacity) {
		return common.InvalidArgument("world buffers: %d records exceed capacity %d", len(world), w.capacity)
	}
	if err := Upload(w.dev, w.Current(), world); err != nil {
		return err
	}
	return device.WriteBuffers(w.dev, []device.BufferWrite{
		{Buffer: w.morton, Data: common.SliceToBytes(morton)},
	})
}

func (w *worldBuffers) Release() {
	for _, b := range []device.Buffer{w.world[0], w.world[1], w.morton} {
		if b != nil {
			b.Release()
		}
	}
}

// Upload marshals records back to back and writes them at the start of buf.
//
// Parameters:
//   - dev: the device
//   - buf: the destination buffer
//   - records: the records
//
// Returns:
//   - error: device error, wrapped with the buffer label
func Upload[T any, P interface {
	*T
	Marshal() []byte
}](dev device.Device, buf device.Buffer, records []T) error {
	if len(records) == 0 {
		return nil
	}
	data := make([]byte, 0, len(records)*len(P(&records[0]).Marshal()))
	for i := range records {
		data = append(data, P(&records[i]).Marshal()...)
	}
	return device.WriteBuffers(dev, []device.BufferWrite{{Buffer: buf, Data: data}})
}
