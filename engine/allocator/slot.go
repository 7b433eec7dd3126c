package allocator

// Slot is a byte range inside an allocator's backing buffer. Chunk selects the buffer for allocators that span
// several (Arena); it is always zero for a Heap.
type Slot struct {
	Chunk  int
	Offset uint64
	Size   uint64
}

// End returns the first byte past the slot.
func (s Slot) End() uint64 {
	return s.Offset + s.Size
}

// Overlaps reports whether two slots share any byte of the same chunk.
func (s Slot) Overlaps(o Slot) bool {
	return s.Chunk == o.Chunk && s.Offset < o.End() && o.Offset < s.End()
}
