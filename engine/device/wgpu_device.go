package device

import (
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/cockroachdb/errors"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"
)

type wgpuBuffer struct {
	label  string
	size   uint64
	usage  BufferUsage
	buffer *wgpu.Buffer
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string      { return b.label }
func (b *wgpuBuffer) Size() uint64       { return b.size }
func (b *wgpuBuffer) Usage() BufferUsage { return b.usage }

func (b *wgpuBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

// Raw returns the underlying wgpu buffer for bind group creation by the renderer.
func (b *wgpuBuffer) Raw() *wgpu.Buffer {
	return b.buffer
}

type wgpuDevice struct {
	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	logger   logrus.FieldLogger
	buffers  map[*wgpuBuffer]struct{}
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice creates a headless WebGPU device. No surface is requested, so the adapter only needs compute and
// copy capability. The calling goroutine is locked to its OS thread because wgpu handles are thread-affine.
//
// Parameters:
//   - options: variadic list of DeviceBuilderOption
//
// Returns:
//   - Device: the device
//   - error: error if no adapter or device could be acquired
func NewWGPUDevice(options ...DeviceBuilderOption) (Device, error) {
	cfg := defaultDeviceConfig()
	for _, opt := range options {
		opt(cfg)
	}

	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
		logger:   common.ComponentLogger(cfg.logger, "device"),
		buffers:  make(map[*wgpuBuffer]struct{}),
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallback,
	})
	if err != nil {
		d.instance.Release()
		return nil, errors.Wrap(err, "request adapter")
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: cfg.label,
	})
	if err != nil {
		a.Release()
		d.instance.Release()
		return nil, errors.Wrap(err, "request device")
	}
	d.device = dev
	d.queue = dev.GetQueue()

	d.logger.WithField("fallback", cfg.forceFallback).Debug("device acquired")
	return d, nil
}

func toWGPUUsage(u BufferUsage) wgpu.BufferUsage {
	out := wgpu.BufferUsageCopyDst
	if u.Has(BufferUsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if u.Has(BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if u.Has(BufferUsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(BufferUsageIndirect) {
		out |= wgpu.BufferUsageIndirect
	}
	return out
}

func (d *wgpuDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil, common.InvalidArgument("create %q on released device", label)
	}
	// wgpu rejects unaligned buffer sizes for copy destinations.
	size = common.Align4(size)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: toWGPUUsage(usage),
	})
	if err != nil {
		return nil, common.Categorize(errors.Wrapf(err, "create buffer %q (%d bytes)", label, size), common.ErrOutOfMemory)
	}

	b := &wgpuBuffer{label: label, size: size, usage: usage | BufferUsageCopyDst, buffer: buf}
	d.buffers[b] = struct{}{}
	d.logger.WithFields(logrus.Fields{"label": label, "size": size}).Trace("buffer created")
	return b, nil
}

func (d *wgpuDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := buf.(*wgpuBuffer)
	if !ok || b.buffer == nil {
		return common.InvalidArgument("buffer %q is not owned by this device", labelOf(buf))
	}
	if offset+uint64(len(data)) > b.size {
		return common.InvalidArgument("write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.label, b.size)
	}
	// Queue writes must be 4-byte sized; pad a copy when the caller handed us a ragged tail.
	if len(data)%4 != 0 {
		padded := make([]byte, common.Align4(uint64(len(data))))
		copy(padded, data)
		if offset+uint64(len(padded)) > b.size {
			return common.InvalidArgument("padded write at %d overflows %q", offset, b.label)
		}
		data = padded
	}
	d.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for b := range d.buffers {
		b.Release()
	}
	d.buffers = nil
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func labelOf(buf Buffer) string {
	if buf == nil {
		return "<nil>"
	}
	return buf.Label()
}
