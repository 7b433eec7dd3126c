package allocator

import (
	"encoding/binary"
	"slices"

	"github.com/Carmen-Shannon/oxy-resident/common"
)

// IndexFormat is the element width of an index buffer.
type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// Size returns the width of one index in bytes.
func (f IndexFormat) Size() uint32 {
	if f == IndexFormatUint16 {
		return 2
	}
	return 4
}

func (f IndexFormat) String() string {
	if f == IndexFormatUint16 {
		return "uint16"
	}
	return "uint32"
}

// IndexFormatFor picks the narrowest format able to hold every index.
//
// Parameters:
//   - indices: the index list
//
// Returns:
//   - IndexFormat: Uint16 when the largest index fits, Uint32 otherwise
func IndexFormatFor(indices []uint32) IndexFormat {
	if len(indices) > 0 && slices.Max(indices) > 0xFFFF {
		return IndexFormatUint32
	}
	return IndexFormatUint16
}

// EncodeIndices serializes an index list in the narrowest width that can hold its maximum value.
// The output is zero-padded to a 4-byte multiple as device copies require.
//
// Parameters:
//   - indices: the index list
//
// Returns:
//   - []byte: little-endian index bytes
//   - IndexFormat: the chosen width
func EncodeIndices(indices []uint32) ([]byte, IndexFormat) {
	format := IndexFormatFor(indices)
	return EncodeIndicesAs(indices, format), format
}

// EncodeIndicesAs serializes an index list with a caller-chosen width, padded to a 4-byte multiple.
// Values wider than a Uint16 format are truncated, so callers pick the format with IndexFormatFor.
func EncodeIndicesAs(indices []uint32, format IndexFormat) []byte {
	width := uint64(format.Size())
	out := make([]byte, common.Align4(width*uint64(len(indices))))
	for i, v := range indices {
		if format == IndexFormatUint16 {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		} else {
			binary.LittleEndian.PutUint32(out[i*4:], v)
		}
	}
	return out
}
