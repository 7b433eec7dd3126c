package passes

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	unvisited = iota
	visiting
	visited
)

// Flatten resolves local entity records into world space. A child's world transform is its parent's transform
// applied to its own: scale multiplies, rotation composes, and the local position is scaled, rotated and
// translated by the parent. Sleeping entities still compose for their children but their own world record and
// Morton code are left zero. A parent index outside the table, or a parent cycle, makes the entity a root.
//
// Parameters:
//   - local: the dense entity table, indexed by entity index
//   - bounds: the scene bounds Morton codes are normalized into
//
// Returns:
//   - []store.GPUWorldEntity: world records, same length as local
//   - []uint32: 30-bit Morton codes of the world positions
func Flatten(local []store.GPUEntity, bounds common.Bounds) ([]store.GPUWorldEntity, []uint32) {
	world := make([]store.GPUWorldEntity, len(local))
	state := make([]uint8, len(local))

	var resolve func(i uint32) store.GPUWorldEntity
	resolve = func(i uint32) store.GPUWorldEntity {
		if state[i] == visited {
			return world[i]
		}
		state[i] = visiting
		e := local[i]
		self := store.GPUWorldEntity{
			Position: e.Position,
			Scale:    e.Scale,
			Rotation: quatArray(halfQuat(e.Rotation)),
		}
		if p := e.Parent; p != store.NoParent && int(p) < len(local) && state[p] != visiting {
			self = compose(resolve(p), self)
		}
		world[i] = self
		state[i] = visited
		return self
	}

	for i := range local {
		resolve(uint32(i))
	}

	morton := make([]uint32, len(local))
	for i, e := range local {
		if e.Flags&store.FlagSleep != 0 {
			world[i] = store.GPUWorldEntity{}
			continue
		}
		morton[i] = common.MortonFromPosition(world[i].Position, bounds)
	}
	return world, morton
}

func compose(parent, child store.GPUWorldEntity) store.GPUWorldEntity {
	pr := quat(parent.Rotation)
	offset := pr.Rotate(mgl32.Vec3(child.Position).Mul(parent.Scale))
	return store.GPUWorldEntity{
		Position: mgl32.Vec3(parent.Position).Add(offset),
		Scale:    parent.Scale * child.Scale,
		Rotation: quatArray(pr.Mul(quat(child.Rotation)).Normalize()),
	}
}

func halfQuat(h [4]uint16) mgl32.Quat {
	q := quat(common.UnpackHalfQuat(h))
	if q.Len() == 0 {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}

func quat(v [4]float32) mgl32.Quat {
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

func quatArray(q mgl32.Quat) [4]float32 {
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}
