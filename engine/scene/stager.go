package scene

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Group is one draw: every awake entity whose content is the same resident mesh.
type Group struct {
	ContentID string
	Geometry  asset.Resident
	// Uniform holds the group's GPUGroupUniform. It is created on the group's first frame and reused after.
	Uniform        device.Buffer
	InstanceOffset uint32 // first instance record
	InstanceCount  uint32
	Command        store.GPUDrawCommand
	Entities       []uint32
}

// Frame is the result of one Stage call.
type Frame struct {
	Groups []Group
	// Instances is the number of instance records written.
	Instances int
	// Skipped counts awake entities whose content is still loading or failed to load.
	Skipped int
}

type stager struct {
	dev      device.Device
	entities store.Entities
	pipeline asset.Pipeline
	label    string
	logger   logrus.FieldLogger
	capacity uint32

	instances device.Buffer
	indirect  device.Buffer
	uniforms  map[string]device.Buffer
}

// Stager turns the entity table into per-frame draw groups. Every frame is rebuilt from scratch: entities are
// requested from the pipeline at LOD 0, grouped by resident content in entity index order, their GPUInstance
// records written contiguously into one instance buffer and one indirect draw command emitted per group.
type Stager interface {
	// Stage builds and uploads this frame's draws.
	//
	// Parameters:
	//   - world: this frame's flattened world records, indexed by entity index
	//
	// Returns:
	//   - Frame: the groups drawn this frame
	//   - error: a pipeline allocator error, ErrCapacity when the instance buffer is full, or a device error
	Stage(world []store.GPUWorldEntity) (Frame, error)

	// InstanceBuffer returns the shared instance buffer.
	InstanceBuffer() device.Buffer

	// IndirectBuffer returns the buffer of GPUDrawCommand records, one per group in Frame order.
	IndirectBuffer() device.Buffer

	// Uniform returns the group uniform buffer of a content id, if one was created.
	Uniform(contentID string) (device.Buffer, bool)

	// Release frees every buffer the stager created.
	Release()
}

var _ Stager = &stager{}

// NewStager creates a stager and its instance and indirect buffers.
//
// Parameters:
//   - dev: the device the buffers are created on
//   - entities: the entity table to draw
//   - pipeline: the staging pipeline content is requested from
//   - options: variadic list of StagerBuilderOption
//
// Returns:
//   - Stager: the stager
//   - error: error if buffer creation fails
func NewStager(dev device.Device, entities store.Entities, pipeline asset.Pipeline, options ...StagerBuilderOption) (Stager, error) {
	s := &stager{
		dev:      dev,
		entities: entities,
		pipeline: pipeline,
		label:    "stager",
		capacity: 4096,
		uniforms: make(map[string]device.Buffer),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = common.ComponentLogger(s.logger, "scene.stager")

	var rec store.GPUInstance
	var cmd store.GPUDrawCommand
	var err error
	if s.instances, err = dev.CreateBuffer(s.label+" Instances", uint64(s.capacity)*uint64(rec.Size()), device.BufferUsageStorage); err != nil {
		return nil, errors.Wrap(err, "stager instance buffer")
	}
	if s.indirect, err = dev.CreateBuffer(s.label+" Indirect", uint64(s.capacity)*uint64(cmd.Size()), device.BufferUsageIndirect|device.BufferUsageStorage); err != nil {
		s.instances.Release()
		return nil, errors.Wrap(err, "stager indirect buffer")
	}
	return s, nil
}

func (s *stager) Stage(world []store.GPUWorldEntity) (Frame, error) {
	var frame Frame
	byContent := make(map[string]int)
	var members [][]store.GPUInstance
	var requestErr error

	s.entities.Each(func(index uint32, row store.EntityRow) {
		if requestErr != nil || row.Record.Flags&store.FlagSleep != 0 || row.Content == nil {
			return
		}
		if _, empty := row.Content.(asset.Empty); empty {
			return
		}
		st, err := s.pipeline.Request(row.Content, 0)
		if err != nil {
			requestErr = errors.Wrapf(err, "stage entity %q", row.Key)
			return
		}
		res, ok := asset.Drawable(st)
		if !ok {
			if _, camera := st.(asset.Resident); !camera {
				frame.Skipped++
			}
			return
		}
		g, ok := byContent[res.ContentID]
		if !ok {
			g = len(frame.Groups)
			byContent[res.ContentID] = g
			frame.Groups = append(frame.Groups, Group{ContentID: res.ContentID, Geometry: res})
			members = append(members, nil)
		}
		frame.Groups[g].Entities = append(frame.Groups[g].Entities, index)
		members[g] = append(members[g], instance(index, row.Record, world))
	})
	if requestErr != nil {
		return Frame{}, requestErr
	}

	var instanceData, commandData []byte
	var writes []device.BufferWrite
	var offset uint32
	for i := range frame.Groups {
		g := &frame.Groups[i]
		g.InstanceOffset = offset
		g.InstanceCount = uint32(len(members[i]))
		offset += g.InstanceCount
		if offset > s.capacity {
			return Frame{}, common.CapacityExceeded("stager: %d instances exceed capacity %d", offset, s.capacity)
		}
		for _, rec := range members[i] {
			instanceData = append(instanceData, rec.Marshal()...)
		}

		g.Command = drawCommand(g.Geometry, g.InstanceOffset, g.InstanceCount)
		commandData = append(commandData, g.Command.Marshal()...)

		u, err := s.uniform(g.ContentID)
		if err != nil {
			return Frame{}, err
		}
		g.Uniform = u
		gu := store.GPUGroupUniform{InstanceOffset: g.InstanceOffset, InstanceCount: g.InstanceCount}
		writes = append(writes, device.BufferWrite{Buffer: u, Data: gu.Marshal()})
	}
	writes = append(writes,
		device.BufferWrite{Buffer: s.instances, Data: instanceData},
		device.BufferWrite{Buffer: s.indirect, Data: commandData},
	)
	if err := device.WriteBuffers(s.dev, writes); err != nil {
		return Frame{}, errors.Wrap(err, "stage")
	}

	frame.Instances = int(offset)
	s.logger.WithFields(logrus.Fields{"groups": len(frame.Groups), "instances": offset, "skipped": frame.Skipped}).Trace("frame staged")
	return frame, nil
}

// instance builds the instance record of the entity at index. An entity past the end of world has not been
// flattened yet and is drawn at the origin.
func instance(index uint32, rec store.GPUEntity, world []store.GPUWorldEntity) store.GPUInstance {
	out := store.GPUInstance{Scale: 1, Rotation: [4]float32{0, 0, 0, 1}, Entity: index, Flags: rec.Flags}
	if int(index) < len(world) {
		w := world[index]
		out.Position, out.Scale, out.Rotation = w.Position, w.Scale, w.Rotation
	}
	return out
}

// uniform returns the group uniform buffer for id, creating it on first use.
func (s *stager) uniform(id string) (device.Buffer, error) {
	if u, ok := s.uniforms[id]; ok {
		return u, nil
	}
	var gu store.GPUGroupUniform
	u, err := s.dev.CreateBuffer(s.label+" Group "+id, uint64(gu.Size()), device.BufferUsageUniform)
	if err != nil {
		return nil, errors.Wrapf(err, "group uniform %q", id)
	}
	s.uniforms[id] = u
	s.logger.WithField("content_id", id).Debug("group uniform created")
	return u, nil
}

// drawCommand builds the indexed indirect draw for a resident mesh. Offsets are in elements of the mesh's
// own chunk, so the caller binds Geometry.Vertex.Chunk and Geometry.Index.Chunk.
func drawCommand(res asset.Resident, first, count uint32) store.GPUDrawCommand {
	cmd := store.GPUDrawCommand{
		IndexCount:    res.IndexCount,
		InstanceCount: count,
		FirstInstance: first,
	}
	if size := res.IndexFormat.Size(); size > 0 {
		cmd.FirstIndex = uint32(res.Index.Offset / uint64(size))
	}
	if res.VertexStride > 0 {
		cmd.BaseVertex = int32(res.Vertex.Offset / uint64(res.VertexStride))
	}
	return cmd
}

func (s *stager) InstanceBuffer() device.Buffer { return s.instances }
func (s *stager) IndirectBuffer() device.Buffer { return s.indirect }

func (s *stager) Uniform(contentID string) (device.Buffer, bool) {
	u, ok := s.uniforms[contentID]
	return u, ok
}

func (s *stager) Release() {
	s.instances.Release()
	s.indirect.Release()
	for _, u := range s.uniforms {
		u.Release()
	}
}
