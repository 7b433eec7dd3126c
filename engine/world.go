package engine

import (
	"context"
	"slices"

	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/Carmen-Shannon/oxy-resident/engine/config"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/Carmen-Shannon/oxy-resident/engine/loader"
	"github.com/Carmen-Shannon/oxy-resident/engine/scene"
	"github.com/Carmen-Shannon/oxy-resident/engine/store"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// World is every device-resident table built from one Configuration, sharing one device and one pipeline.
type World struct {
	Config   config.Configuration
	Device   device.Device
	Stores   scene.Stores
	Meshes   store.Meshes
	Geometry *store.Geometry
	Pipeline asset.Pipeline
	Loader   loader.Loader

	logger logrus.FieldLogger
}

// NewWorld validates cfg and builds the pools, arenas, heap, stores, pipeline and loader it describes. The loader is
// registered for .rmesh and .ref locators, reading files under cfg.Loader.Root and, when an endpoint is set, objects
// from the configured S3-compatible store.
//
// Parameters:
//   - ctx: passed to every loader call
//   - dev: the device every buffer is created on
//   - cfg: the configuration
//   - logger: base logger; nil discards
//
// Returns:
//   - *World: the world
//   - error: a validation, allocation or object store error
func NewWorld(ctx context.Context, dev device.Device, cfg config.Configuration, logger logrus.FieldLogger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &World{Config: cfg, Device: dev, logger: logger}
	aopts := []allocator.AllocatorBuilderOption{allocator.WithLogger(logger)}
	sopts := []store.StoreBuilderOption{store.WithLogger(logger)}

	var entityRec store.GPUEntity
	var boundsRec store.GPUMeshBounds
	var cameraRec store.GPUCamera
	var viewRec store.GPUView
	pools := make(map[string]allocator.Pool)
	for _, p := range []struct {
		label    string
		block    int
		capacity uint32
	}{
		{"Entities", entityRec.Size(), cfg.Stores.MaxEntities},
		{"Mesh Bounds", boundsRec.Size(), cfg.Stores.MaxMeshes},
		{"Cameras", cameraRec.Size(), cfg.Stores.MaxCameras},
		{"Views", viewRec.Size(), cfg.Stores.MaxViews},
	} {
		pool, err := allocator.NewPool(dev, p.label, uint32(p.block), p.capacity, aopts...)
		if err != nil {
			return nil, errors.Wrapf(err, "world %s pool", p.label)
		}
		pools[p.label] = pool
	}

	cameras, err := store.NewCameras(pools["Cameras"], sopts...)
	if err != nil {
		return nil, err
	}
	w.Stores = scene.Stores{
		Entities: store.NewEntities(pools["Entities"], sopts...),
		Cameras:  cameras,
		Views:    store.NewViews(pools["Views"], sopts...),
	}

	heap, err := allocator.NewHeap(dev, "Mesh Heap", cfg.Geometry.HeapSize, device.BufferUsageVertex|device.BufferUsageIndex|device.BufferUsageStorage, aopts...)
	if err != nil {
		return nil, errors.Wrap(err, "world mesh heap")
	}
	w.Meshes = store.NewMeshes(pools["Mesh Bounds"], heap, sopts...)

	arenaOpts := append([]allocator.AllocatorBuilderOption{allocator.WithMaxChunks(cfg.Geometry.MaxArenaChunks)}, aopts...)
	vertices, err := allocator.BytesArena(dev, "Vertices", cfg.Geometry.ArenaChunkSize,
		slices.Concat(arenaOpts, []allocator.AllocatorBuilderOption{allocator.WithUsage(device.BufferUsageVertex | device.BufferUsageStorage)})...)
	if err != nil {
		return nil, errors.Wrap(err, "world vertex arena")
	}
	indices, err := allocator.NewArena(dev, "Indices", cfg.Geometry.ArenaChunkSize, store.EncodeIndexList,
		slices.Concat(arenaOpts, []allocator.AllocatorBuilderOption{allocator.WithUsage(device.BufferUsageIndex | device.BufferUsageStorage)})...)
	if err != nil {
		return nil, errors.Wrap(err, "world index arena")
	}
	w.Geometry = store.NewGeometry(vertices, indices)

	w.Pipeline = asset.NewPipeline(w.Geometry,
		asset.WithLogger(logger),
		asset.WithWorkers(cfg.Loader.Workers),
		asset.WithQueueSize(cfg.Loader.QueueSize),
		asset.WithContext(ctx),
	)

	lopts := []loader.LoaderBuilderOption{loader.WithRoot(cfg.Loader.Root), loader.WithLogger(logger)}
	if o := cfg.Objects; o.Endpoint != "" {
		client, err := loader.NewObjectClient(o.Endpoint, o.AccessKey, o.SecretKey, o.Secure)
		if err != nil {
			return nil, errors.Wrapf(err, "world object store %q", o.Endpoint)
		}
		lopts = append(lopts, loader.WithObjectStore(client))
	}
	w.Loader = loader.NewLoader(lopts...)
	if err := w.Loader.Register(w.Pipeline.Registry()); err != nil {
		return nil, err
	}
	return w, nil
}

// NewScene creates a scene over the world's stores and pipeline, sized by the world's configuration.
//
// Parameters:
//   - name: the scene name
//   - options: extra scene options, applied after the configured ones
//
// Returns:
//   - scene.Scene: the scene
//   - error: a buffer creation error
func (w *World) NewScene(name string, options ...scene.SceneBuilderOption) (scene.Scene, error) {
	base := []scene.SceneBuilderOption{
		scene.WithLogger(w.logger),
		scene.WithViewportHeight(w.Config.Viewport.Height),
		scene.WithStagerOptions(scene.WithInstanceCapacity(w.Config.Stores.InstanceCapacity)),
	}
	return scene.NewScene(name, w.Device, w.Pipeline, w.Stores, append(base, options...)...)
}
