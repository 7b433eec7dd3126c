package loader

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a .rmesh payload is stored.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// RMeshVersion is the only .rmesh version this package reads and writes.
const RMeshVersion uint16 = 1

var rmeshMagic = [4]byte{'R', 'M', 'S', 'H'}

// rmeshHeader is the fixed 20-byte .rmesh header. The payload that follows holds the vertex bytes and then the
// indices at the header's index width, compressed as a single block.
type rmeshHeader struct {
	Magic        [4]byte
	Version      uint16
	Compression  Compression
	IndexFormat  allocator.IndexFormat
	VertexStride uint32
	VertexBytes  uint32
	IndexCount   uint32
}

const rmeshHeaderSize = 20

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode writes m as a .rmesh blob.
// LZ4 falls back to no compression when the payload does not shrink.
//
// Parameters:
//   - w: destination
//   - m: the mesh; its ID is not stored
//   - c: payload compression
//
// Returns:
//   - error: write or compression error
func Encode(w io.Writer, m asset.Mesh, c Compression) error {
	if m.VertexStride == 0 || len(m.Vertices)%int(m.VertexStride) != 0 {
		return common.InvalidArgument("rmesh: %d vertex bytes with stride %d", len(m.Vertices), m.VertexStride)
	}
	format := allocator.IndexFormatFor(m.Indices)
	indexBytes := int(format.Size()) * len(m.Indices)
	payload := make([]byte, 0, len(m.Vertices)+indexBytes)
	payload = append(payload, m.Vertices...)
	payload = append(payload, allocator.EncodeIndicesAs(m.Indices, format)[:indexBytes]...)

	body, used, err := compress(payload, c)
	if err != nil {
		return err
	}

	hdr := rmeshHeader{
		Magic:        rmeshMagic,
		Version:      RMeshVersion,
		Compression:  used,
		IndexFormat:  format,
		VertexStride: m.VertexStride,
		VertexBytes:  uint32(len(m.Vertices)),
		IndexCount:   uint32(len(m.Indices)),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return errors.Wrap(err, "rmesh: write header")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "rmesh: write payload")
	}
	return nil
}

func compress(payload []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return payload, CompressionNone, nil
	case CompressionLZ4:
		out := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, out, nil)
		if err != nil {
			return nil, 0, errors.Wrap(err, "rmesh: lz4")
		}
		if n == 0 {
			return payload, CompressionNone, nil
		}
		return out[:n], CompressionLZ4, nil
	case CompressionZstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(payload, nil), CompressionZstd, nil
	}
	return nil, 0, common.InvalidArgument("rmesh: unknown compression %d", c)
}

// Decode reads a .rmesh blob.
//
// Parameters:
//   - r: the blob
//
// Returns:
//   - asset.Mesh: the mesh, without an ID
//   - error: format, version or decompression error
func Decode(r io.Reader) (asset.Mesh, error) {
	var hdr rmeshHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return asset.Mesh{}, errors.Wrap(err, "rmesh: read header")
	}
	if hdr.Magic != rmeshMagic {
		return asset.Mesh{}, errors.Newf("rmesh: bad magic %q", hdr.Magic[:])
	}
	if hdr.Version != RMeshVersion {
		return asset.Mesh{}, errors.Newf("rmesh: unsupported version %d", hdr.Version)
	}
	if hdr.IndexFormat > allocator.IndexFormatUint32 {
		return asset.Mesh{}, errors.Newf("rmesh: bad index format %d", hdr.IndexFormat)
	}
	if hdr.VertexStride == 0 || hdr.VertexBytes%hdr.VertexStride != 0 {
		return asset.Mesh{}, errors.Newf("rmesh: %d vertex bytes with stride %d", hdr.VertexBytes, hdr.VertexStride)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return asset.Mesh{}, errors.Wrap(err, "rmesh: read payload")
	}
	size := int(hdr.VertexBytes) + int(hdr.IndexCount)*int(hdr.IndexFormat.Size())
	payload, err := decompress(body, hdr.Compression, size)
	if err != nil {
		return asset.Mesh{}, err
	}
	if len(payload) != size {
		return asset.Mesh{}, errors.Newf("rmesh: payload is %d bytes, header says %d", len(payload), size)
	}

	m := asset.Mesh{
		Vertices:     payload[:hdr.VertexBytes],
		VertexStride: hdr.VertexStride,
		Indices:      make([]uint32, hdr.IndexCount),
	}
	idx := payload[hdr.VertexBytes:]
	for i := range m.Indices {
		if hdr.IndexFormat == allocator.IndexFormatUint16 {
			m.Indices[i] = uint32(binary.LittleEndian.Uint16(idx[i*2:]))
		} else {
			m.Indices[i] = binary.LittleEndian.Uint32(idx[i*4:])
		}
	}
	return m, nil
}

func decompress(body []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return body, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, errors.Wrap(err, "rmesh: lz4")
		}
		return out[:n], nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, errors.Wrap(err, "rmesh: zstd")
		}
		return out, nil
	}
	return nil, errors.Newf("rmesh: unknown compression %d", c)
}
