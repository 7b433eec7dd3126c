package device

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/sirupsen/logrus"
)

type hostBuffer struct {
	label    string
	usage    BufferUsage
	data     []byte
	writes   int
	released bool
}

var _ Buffer = &hostBuffer{}

func (b *hostBuffer) Label() string      { return b.label }
func (b *hostBuffer) Size() uint64       { return uint64(len(b.data)) }
func (b *hostBuffer) Usage() BufferUsage { return b.usage }
func (b *hostBuffer) Release()           { b.released = true }

// HostDevice is a Device backed by plain host memory. It keeps every byte written so tests and tools can inspect
// buffer contents, and counts writes per buffer.
type HostDevice struct {
	mu      *sync.Mutex
	logger  logrus.FieldLogger
	buffers []*hostBuffer
}

var _ Device = &HostDevice{}

// NewHostDevice creates a host-memory device.
//
// Parameters:
//   - options: variadic list of DeviceBuilderOption; only WithLogger is honored
//
// Returns:
//   - *HostDevice: the device
func NewHostDevice(options ...DeviceBuilderOption) *HostDevice {
	cfg := defaultDeviceConfig()
	for _, opt := range options {
		opt(cfg)
	}
	return &HostDevice{
		mu:     &sync.Mutex{},
		logger: common.ComponentLogger(cfg.logger, "host-device"),
	}
}

func (d *HostDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := &hostBuffer{label: label, usage: usage | BufferUsageCopyDst, data: make([]byte, common.Align4(size))}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *HostDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := buf.(*hostBuffer)
	if !ok {
		return common.InvalidArgument("buffer %q is not owned by this device", labelOf(buf))
	}
	if b.released {
		return common.InvalidArgument("write to released buffer %q", b.label)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return common.InvalidArgument("write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	b.writes++
	d.logger.WithFields(logrus.Fields{"label": b.label, "offset": offset, "len": len(data)}).Trace("buffer write")
	return nil
}

func (d *HostDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.buffers {
		b.released = true
	}
}

// WriteCount returns how many writes buf has received.
func (d *HostDevice) WriteCount(buf Buffer) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := buf.(*hostBuffer); ok {
		return b.writes
	}
	return 0
}

// TotalWrites returns the number of writes across every buffer created by this device.
func (d *HostDevice) TotalWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.buffers {
		n += b.writes
	}
	return n
}

// Bytes returns a copy of buf's current contents.
func (d *HostDevice) Bytes(buf Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := buf.(*hostBuffer)
	if !ok {
		return nil
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// BufferCount returns the number of buffers created, released or not.
func (d *HostDevice) BufferCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}
