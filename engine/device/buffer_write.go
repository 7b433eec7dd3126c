package device

import "github.com/cockroachdb/errors"

// BufferWrite describes a single GPU buffer write operation targeting a buffer at a given byte offset.
type BufferWrite struct {
	Buffer Buffer
	Offset uint64
	Data   []byte
}

// WriteBuffers submits a batch of writes in order. Writes with no data are skipped. The first failing write aborts
// the batch and its error is returned with the buffer label attached.
//
// Parameters:
//   - dev: the device owning the buffers
//   - writes: the writes to submit
//
// Returns:
//   - error: the first write error, if any
func WriteBuffers(dev Device, writes []BufferWrite) error {
	for _, w := range writes {
		if len(w.Data) == 0 || w.Buffer == nil {
			continue
		}
		if err := dev.WriteBuffer(w.Buffer, w.Offset, w.Data); err != nil {
			return errors.Wrapf(err, "write %q at %d", w.Buffer.Label(), w.Offset)
		}
	}
	return nil
}
