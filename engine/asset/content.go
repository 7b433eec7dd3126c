// Package asset resolves content descriptors into device-resident assets. Descriptors are pure descriptions; the
// Pipeline stages them per (content id, LOD), loading references asynchronously through registered loaders and
// falling back to coarser resident LODs while a load is pending.
package asset

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
	"github.com/cespare/xxhash/v2"
)

// EmptyID is the content id of Empty content.
const EmptyID = "empty"

// Content is a closed set of content descriptors: Empty, Reference, Mesh and CameraContent.
type Content interface {
	contentID() string
}

// Empty describes nothing to draw.
type Empty struct{}

// Reference names content to be produced by a loader registered for Locator.
type Reference struct {
	Locator string
}

// Mesh is inline geometry. ID is optional; without it the content id is a hash of the payload.
type Mesh struct {
	ID           string
	Vertices     []byte
	VertexStride uint32
	Indices      []uint32
}

// CameraContent describes a camera by its projection.
type CameraContent struct {
	Projection camera.Projection
}

func (Empty) contentID() string { return EmptyID }

func (r Reference) contentID() string { return r.Locator }

func (m Mesh) contentID() string {
	if m.ID != "" {
		return m.ID
	}
	h := xxhash.New()
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], m.VertexStride)
	_, _ = h.Write(hdr[:])
	_, _ = h.Write(m.Vertices)
	for _, idx := range m.Indices {
		binary.LittleEndian.PutUint32(hdr[:], idx)
		_, _ = h.Write(hdr[:])
	}
	return fmt.Sprintf("mesh-%016x", h.Sum64())
}

func (c CameraContent) contentID() string {
	return fmt.Sprintf("camera-%016x", xxhash.Sum64(c.Projection.Marshal()))
}

// ContentID derives the structural id of a descriptor. A nil descriptor is treated as Empty.
//
// Parameters:
//   - c: the descriptor
//
// Returns:
//   - string: the content id
func ContentID(c Content) string {
	if c == nil {
		return EmptyID
	}
	return c.contentID()
}

// Key returns the cache key of c at the given LOD, "<content id>:<lod>".
func Key(c Content, lod int) string {
	return ContentID(c) + ":" + strconv.Itoa(lod)
}

// SplitKey splits a cache key into its content id and LOD.
//
// Parameters:
//   - key: a key produced by Key
//
// Returns:
//   - string: the content id
//   - int: the LOD
//   - bool: false if key is malformed
func SplitKey(key string) (string, int, bool) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return "", 0, false
	}
	lod, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, false
	}
	return key[:i], lod, true
}
