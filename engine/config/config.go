// Package config holds the engine-wide capacities and settings, loaded from .env files and OXY_* environment
// variables on top of built-in defaults.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable Load reads.
const EnvPrefix = "OXY_"

// Configuration defines the global engine configuration.
type Configuration struct {
	Stores   StoreConfiguration
	Geometry GeometryConfiguration
	Loader   LoaderConfiguration
	Time     TimeConfiguration
	Viewport ViewportConfiguration
	Objects  ObjectStoreConfiguration
}

// StoreConfiguration sizes the record pools.
type StoreConfiguration struct {
	MaxEntities uint32
	MaxMeshes   uint32
	// MaxCameras must fit the 16-bit camera index space.
	MaxCameras uint32
	MaxViews   uint32
	// InstanceCapacity is the number of instance records the stager can write per frame.
	InstanceCapacity uint32
}

// GeometryConfiguration sizes the geometry arenas and the deferred mesh heap.
type GeometryConfiguration struct {
	ArenaChunkSize uint64
	// MaxArenaChunks caps arena growth; 0 is unbounded.
	MaxArenaChunks int
	HeapSize       uint64
}

// LoaderConfiguration configures the loader worker pool and the file root.
type LoaderConfiguration struct {
	Workers   int
	QueueSize int
	Root      string
}

// TimeConfiguration is used to configure the frame loop.
type TimeConfiguration struct {
	// TickRate is the number of frames per second Run aims for.
	TickRate float64
	// MaxFrames stops Run after that many frames; 0 runs until cancelled.
	MaxFrames uint64
	Profiling bool
}

// ViewportConfiguration is the initial render target size.
type ViewportConfiguration struct {
	Width  int
	Height int
}

// ObjectStoreConfiguration points the loader at an S3-compatible store. An empty endpoint disables it.
type ObjectStoreConfiguration struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Default returns the built-in configuration.
//
// Returns:
//   - Configuration: the defaults
func Default() Configuration {
	return Configuration{
		Stores: StoreConfiguration{
			MaxEntities:      4096,
			MaxMeshes:        1024,
			MaxCameras:       64,
			MaxViews:         64,
			InstanceCapacity: 4096,
		},
		Geometry: GeometryConfiguration{
			ArenaChunkSize: 4 << 20,
			MaxArenaChunks: 16,
			HeapSize:       16 << 20,
		},
		Loader: LoaderConfiguration{
			Workers:   2,
			QueueSize: 256,
			Root:      ".",
		},
		Time: TimeConfiguration{
			TickRate: 60,
		},
		Viewport: ViewportConfiguration{
			Width:  1280,
			Height: 720,
		},
	}
}

// Validate reports the first setting that cannot work.
//
// Returns:
//   - error: ErrInvalidArgument or ErrCapacity describing the setting
func (c Configuration) Validate() error {
	for name, v := range map[string]uint32{
		"max entities":      c.Stores.MaxEntities,
		"max meshes":        c.Stores.MaxMeshes,
		"max cameras":       c.Stores.MaxCameras,
		"max views":         c.Stores.MaxViews,
		"instance capacity": c.Stores.InstanceCapacity,
	} {
		if v == 0 {
			return common.InvalidArgument("config: %s must be positive", name)
		}
	}
	if c.Stores.MaxCameras > 0xFFFF {
		return common.CapacityExceeded("config: max cameras %d exceeds %d", c.Stores.MaxCameras, 0xFFFF)
	}
	if c.Geometry.ArenaChunkSize == 0 || c.Geometry.HeapSize == 0 {
		return common.InvalidArgument("config: arena chunk size and heap size must be positive")
	}
	if c.Geometry.MaxArenaChunks < 0 {
		return common.InvalidArgument("config: max arena chunks %d", c.Geometry.MaxArenaChunks)
	}
	if c.Loader.Workers < 1 || c.Loader.QueueSize < 1 {
		return common.InvalidArgument("config: loader needs at least one worker and one queue slot")
	}
	if c.Time.TickRate <= 0 {
		return common.InvalidArgument("config: tick rate %v", c.Time.TickRate)
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return common.InvalidArgument("config: viewport %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	return nil
}

// Load builds a configuration from the defaults, then the given .env files in order, then the process
// environment. Only OXY_* keys are read. Missing files are skipped.
//
// Parameters:
//   - paths: .env files; later files override earlier ones
//
// Returns:
//   - Configuration: the validated configuration
//   - error: a parse error naming the key, or a Validate error
func Load(paths ...string) (Configuration, error) {
	values := make(map[string]string)
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		file, err := godotenv.Read(p)
		if err != nil {
			return Configuration{}, errors.Wrapf(err, "config: read %q", p)
		}
		for k, v := range file {
			values[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			values[k] = v
		}
	}

	cfg := Default()
	if err := cfg.apply(values); err != nil {
		return Configuration{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Configuration) apply(values map[string]string) error {
	p := parser{values: values}
	p.uint32("MAX_ENTITIES", &c.Stores.MaxEntities)
	p.uint32("MAX_MESHES", &c.Stores.MaxMeshes)
	p.uint32("MAX_CAMERAS", &c.Stores.MaxCameras)
	p.uint32("MAX_VIEWS", &c.Stores.MaxViews)
	p.uint32("INSTANCE_CAPACITY", &c.Stores.InstanceCapacity)
	p.uint64("ARENA_CHUNK_SIZE", &c.Geometry.ArenaChunkSize)
	p.int("MAX_ARENA_CHUNKS", &c.Geometry.MaxArenaChunks)
	p.uint64("HEAP_SIZE", &c.Geometry.HeapSize)
	p.int("LOADER_WORKERS", &c.Loader.Workers)
	p.int("LOADER_QUEUE_SIZE", &c.Loader.QueueSize)
	p.string("ASSET_ROOT", &c.Loader.Root)
	p.float("TICK_RATE", &c.Time.TickRate)
	p.uint64("MAX_FRAMES", &c.Time.MaxFrames)
	p.bool("PROFILING", &c.Time.Profiling)
	p.int("VIEWPORT_WIDTH", &c.Viewport.Width)
	p.int("VIEWPORT_HEIGHT", &c.Viewport.Height)
	p.string("S3_ENDPOINT", &c.Objects.Endpoint)
	p.string("S3_ACCESS_KEY", &c.Objects.AccessKey)
	p.string("S3_SECRET_KEY", &c.Objects.SecretKey)
	p.bool("S3_SECURE", &c.Objects.Secure)
	return p.err
}

// parser reads OXY_-prefixed keys, keeping the first error.
type parser struct {
	values map[string]string
	err    error
}

func (p *parser) lookup(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.values[EnvPrefix+key]
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (p *parser) fail(key string, err error) {
	p.err = errors.Wrapf(common.InvalidArgument("config: %s%s", EnvPrefix, key), "%v", err)
}

func (p *parser) string(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) uint32(key string, dst *uint32) {
	if v, ok := p.lookup(key); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = uint32(n)
	}
}

func (p *parser) uint64(key string, dst *uint64) {
	if v, ok := p.lookup(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = n
	}
}

func (p *parser) int(key string, dst *int) {
	if v, ok := p.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = n
	}
}

func (p *parser) float(key string, dst *float64) {
	if v, ok := p.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = f
	}
}

func (p *parser) bool(key string, dst *bool) {
	if v, ok := p.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, err)
			return
		}
		*dst = b
	}
}
