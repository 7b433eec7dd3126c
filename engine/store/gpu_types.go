package store

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// NoParent is the parent index of a root entity.
const NoParent uint32 = 0xFFFFFFFF

// Entity flag bits.
const (
	FlagSleep      uint32 = 1 << 0
	FlagOpaque     uint32 = 1 << 1
	FlagCastShadow uint32 = 1 << 2
)

// Byte offsets of GPUEntity fields, used for partial writes.
const (
	EntityPositionOffset = 0
	EntityScaleOffset    = 12
	EntityRotationOffset = 16
	EntityParentOffset   = 24
	EntityFlagsOffset    = 28
)

// GPUEntity is the local-space entity record consumed by the flatten pass.
// Size: 32 bytes.
type GPUEntity struct {
	Position [3]float32 // offset  0
	Scale    float32    // offset 12: uniform scale
	Rotation [4]uint16  // offset 16: quaternion x, y, z, w as IEEE half floats
	Parent   uint32     // offset 24: parent index or NoParent
	Flags    uint32     // offset 28
}

// Size returns the size of the GPUEntity struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUEntity) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUEntity struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUEntity) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec3(buf[EntityPositionOffset:], g.Position)
	binary.LittleEndian.PutUint32(buf[EntityScaleOffset:], math.Float32bits(g.Scale))
	for i := range 4 {
		binary.LittleEndian.PutUint16(buf[EntityRotationOffset+i*2:], g.Rotation[i])
	}
	binary.LittleEndian.PutUint32(buf[EntityParentOffset:], g.Parent)
	binary.LittleEndian.PutUint32(buf[EntityFlagsOffset:], g.Flags)
	return buf
}

// UnmarshalEntity decodes a 32-byte entity record.
//
// Parameters:
//   - buf: at least 32 bytes
//
// Returns:
//   - GPUEntity: the decoded record
func UnmarshalEntity(buf []byte) GPUEntity {
	var g GPUEntity
	g.Position = getVec3(buf[EntityPositionOffset:])
	g.Scale = math.Float32frombits(binary.LittleEndian.Uint32(buf[EntityScaleOffset:]))
	for i := range 4 {
		g.Rotation[i] = binary.LittleEndian.Uint16(buf[EntityRotationOffset+i*2:])
	}
	g.Parent = binary.LittleEndian.Uint32(buf[EntityParentOffset:])
	g.Flags = binary.LittleEndian.Uint32(buf[EntityFlagsOffset:])
	return g
}

// GPUMeshBounds is the quantized object-space bounding box of a mesh.
// Size: 16 bytes.
type GPUMeshBounds struct {
	MinQ  [3]int16 // offset  0
	MaxQ  [3]int16 // offset  6
	Scale float32  // offset 12
}

// Size returns the size of the GPUMeshBounds struct in bytes.
func (g *GPUMeshBounds) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMeshBounds struct into a byte buffer suitable for GPU upload.
func (g *GPUMeshBounds) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(g.MinQ[i]))
		binary.LittleEndian.PutUint16(buf[6+i*2:], uint16(g.MaxQ[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.Scale))
	return buf
}

// UnmarshalMeshBounds decodes a 16-byte bounds record.
func UnmarshalMeshBounds(buf []byte) GPUMeshBounds {
	var g GPUMeshBounds
	for i := range 3 {
		g.MinQ[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		g.MaxQ[i] = int16(binary.LittleEndian.Uint16(buf[6+i*2:]))
	}
	g.Scale = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:]))
	return g
}

// GPUCamera is the camera record: the index of the view the camera renders through.
// Size: 4 bytes.
type GPUCamera struct {
	View uint16 // offset 0
	_pad uint16 // offset 2
}

// Size returns the size of the GPUCamera struct in bytes.
func (g *GPUCamera) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCamera struct into a byte buffer suitable for GPU upload.
func (g *GPUCamera) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint16(buf[0:], g.View)
	return buf
}

// GPUView holds a resolved view-projection matrix and its inverse.
// Size: 128 bytes.
type GPUView struct {
	ViewProj    [16]float32 // offset  0
	InvViewProj [16]float32 // offset 64
}

// Size returns the size of the GPUView struct in bytes.
func (g *GPUView) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUView struct into a byte buffer suitable for GPU upload.
func (g *GPUView) Marshal() []byte {
	buf := make([]byte, g.Size())
	putMat4(buf[0:], g.ViewProj)
	putMat4(buf[64:], g.InvViewProj)
	return buf
}

// GPUDrawCommand is one indexed indirect draw. Field order is fixed by the consumer.
// Size: 20 bytes.
type GPUDrawCommand struct {
	IndexCount    uint32 // offset  0
	InstanceCount uint32 // offset  4
	FirstIndex    uint32 // offset  8
	FirstInstance uint32 // offset 12
	BaseVertex    int32  // offset 16
}

// Size returns the size of the GPUDrawCommand struct in bytes.
func (g *GPUDrawCommand) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDrawCommand struct into a byte buffer suitable for GPU upload.
func (g *GPUDrawCommand) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:], g.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:], g.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:], g.FirstInstance)
	binary.LittleEndian.PutUint32(buf[16:], uint32(g.BaseVertex))
	return buf
}

// GPUWorldEntity is the world-space record written by the flatten pass.
// Size: 32 bytes.
type GPUWorldEntity struct {
	Position [3]float32 // offset  0
	Scale    float32    // offset 12
	Rotation [4]float32 // offset 16: quaternion x, y, z, w
}

// Size returns the size of the GPUWorldEntity struct in bytes.
func (g *GPUWorldEntity) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUWorldEntity struct into a byte buffer suitable for GPU upload.
func (g *GPUWorldEntity) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec3(buf[0:], g.Position)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.Scale))
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Rotation[i]))
	}
	return buf
}

// GPUInstance is one instance record of a draw group: the entity's flattened world transform plus its index in the
// entity and world tables.
// Size: 48 bytes.
type GPUInstance struct {
	Position [3]float32 // offset  0
	Scale    float32    // offset 12
	Rotation [4]float32 // offset 16: quaternion x, y, z, w
	Entity   uint32     // offset 32
	Flags    uint32     // offset 36
	_        [2]uint32  // offset 40: pad to 16-byte alignment
}

// Size returns the size of the GPUInstance struct in bytes.
func (g *GPUInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstance struct into a byte buffer suitable for GPU upload.
func (g *GPUInstance) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec3(buf[0:], g.Position)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.Scale))
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Rotation[i]))
	}
	binary.LittleEndian.PutUint32(buf[32:], g.Entity)
	binary.LittleEndian.PutUint32(buf[36:], g.Flags)
	return buf
}

// GPUSelectedView is the per-view output of the select-views pass.
// Size: 240 bytes.
type GPUSelectedView struct {
	ViewProj    [16]float32   // offset   0
	InvViewProj [16]float32   // offset  64
	Planes      [6][4]float32 // offset 128: left, right, bottom, top, near, far as (normal, d)
	SizeCull    float32       // offset 224: pixels per world unit at distance 1
	_pad        [3]float32    // offset 228
}

// Size returns the size of the GPUSelectedView struct in bytes.
func (g *GPUSelectedView) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSelectedView struct into a byte buffer suitable for GPU upload.
func (g *GPUSelectedView) Marshal() []byte {
	buf := make([]byte, g.Size())
	putMat4(buf[0:], g.ViewProj)
	putMat4(buf[64:], g.InvViewProj)
	for p := range 6 {
		for i := range 4 {
			binary.LittleEndian.PutUint32(buf[128+p*16+i*4:], math.Float32bits(g.Planes[p][i]))
		}
	}
	binary.LittleEndian.PutUint32(buf[224:], math.Float32bits(g.SizeCull))
	return buf
}

// GPUGroupUniform locates one draw group's instances inside the shared instance buffer.
// Size: 16 bytes.
type GPUGroupUniform struct {
	InstanceOffset uint32    // offset 0: first instance, in records
	InstanceCount  uint32    // offset 4
	_pad           [2]uint32 // offset 8
}

// Size returns the size of the GPUGroupUniform struct in bytes.
func (g *GPUGroupUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUGroupUniform struct into a byte buffer suitable for GPU upload.
func (g *GPUGroupUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.InstanceOffset)
	binary.LittleEndian.PutUint32(buf[4:], g.InstanceCount)
	return buf
}

func putVec3(buf []byte, v [3]float32) {
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

func getVec3(buf []byte) [3]float32 {
	var v [3]float32
	for i := range 3 {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func putMat4(buf []byte, m [16]float32) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(m[i]))
	}
}
