// Package device is the explicit GPU capability handed to every allocator and store. Nothing in the engine reaches
// for an ambient GPU context: buffers are created and written only through a Device passed into constructors.
package device

// BufferUsage is a bit set describing how a buffer will be bound. It mirrors the WebGPU usage flags the engine needs.
type BufferUsage uint32

const (
	// BufferUsageCopySrc allows the buffer to be the source of copy operations.
	BufferUsageCopySrc BufferUsage = 1 << iota
	// BufferUsageCopyDst allows the buffer to be written by the queue.
	BufferUsageCopyDst
	// BufferUsageIndex allows binding as an index buffer.
	BufferUsageIndex
	// BufferUsageVertex allows binding as a vertex buffer.
	BufferUsageVertex
	// BufferUsageUniform allows binding as a uniform buffer.
	BufferUsageUniform
	// BufferUsageStorage allows binding as a storage buffer.
	BufferUsageStorage
	// BufferUsageIndirect allows the buffer to hold indirect draw arguments.
	BufferUsageIndirect
)

// Has reports whether all bits of flag are set.
func (u BufferUsage) Has(flag BufferUsage) bool {
	return u&flag == flag
}

// Buffer is an opaque handle to a device buffer.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Size returns the buffer size in bytes.
	Size() uint64

	// Usage returns the usage flags the buffer was created with.
	Usage() BufferUsage

	// Release frees the device memory backing the buffer. Using the buffer afterwards is an error.
	Release()
}

// Device is the subset of a GPU device the resident-scene core consumes: buffer creation and queue writes.
// Pipeline creation and command encoding live outside this module.
type Device interface {
	// CreateBuffer allocates a new device buffer.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - size: size in bytes
	//   - usage: usage flags; BufferUsageCopyDst is always added so the buffer can be written
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: error if the device rejects the allocation
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)

	// WriteBuffer uploads data into buf at the given byte offset.
	//
	// Parameters:
	//   - buf: the destination buffer, created by this device
	//   - offset: destination byte offset
	//   - data: the bytes to upload
	//
	// Returns:
	//   - error: error if the write falls outside the buffer or the buffer is foreign/released
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// Release frees the device and every resource it still tracks.
	Release()
}
