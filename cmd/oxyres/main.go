// Command oxyres drives a headless world for a fixed number of frames: it writes a sample mesh, declares a small
// scene with a camera, streams the mesh in through the loader and logs what was staged.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/Carmen-Shannon/oxy-resident/engine/camera"
	"github.com/Carmen-Shannon/oxy-resident/engine/config"
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/Carmen-Shannon/oxy-resident/engine/loader"
	"github.com/Carmen-Shannon/oxy-resident/engine/scene"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

var (
	envFile = flag.String("env", ".env", "dotenv file with OXY_* settings")
	useGPU  = flag.Bool("wgpu", false, "create buffers on a WebGPU adapter instead of host memory")
	frames  = flag.Uint64("frames", 0, "frames to run; overrides OXY_MAX_FRAMES")
	grid    = flag.Int("grid", 4, "cubes per side of the sample grid")
	assets  = flag.String("assets", "", "directory to write the sample mesh into and load from; a temp dir when empty")
	verbose = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("oxyres failed")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *frames > 0 {
		cfg.Time.MaxFrames = *frames
	}
	if cfg.Time.MaxFrames == 0 {
		cfg.Time.MaxFrames = 120
	}
	if *assets != "" {
		cfg.Loader.Root = *assets
	} else {
		dir, err := os.MkdirTemp("", "oxyres")
		if err != nil {
			return errors.Wrap(err, "asset root")
		}
		defer os.RemoveAll(dir)
		cfg.Loader.Root = dir
	}
	if err := writeCube(filepath.Join(cfg.Loader.Root, "cube.rmesh")); err != nil {
		return err
	}

	var dev device.Device
	if *useGPU {
		if dev, err = device.NewWGPUDevice(device.WithLabel("oxyres"), device.WithLogger(logger)); err != nil {
			return err
		}
	} else {
		dev = device.NewHostDevice(device.WithLogger(logger))
	}
	defer dev.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	world, err := engine.NewWorld(ctx, dev, cfg, logger)
	if err != nil {
		return err
	}
	s, err := world.NewScene("demo", scene.WithActive(true))
	if err != nil {
		return err
	}
	defer s.Release()

	if err := populate(s, cfg, *grid); err != nil {
		return err
	}

	var staged int
	e := engine.NewEngine(
		engine.WithScene(0, s),
		engine.WithTickRate(cfg.Time.TickRate),
		engine.WithMaxFrames(cfg.Time.MaxFrames),
		engine.WithProfiling(cfg.Time.Profiling),
		engine.WithLogger(logger),
	)
	e.SetFrameCallback(func(_ float32, sf map[int]scene.SceneFrame) {
		if f, ok := sf[0]; ok {
			staged = f.Instances
		}
	})
	if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := world.Pipeline.Stats()
	logger.WithFields(logrus.Fields{
		"frames":    e.Frames(),
		"instances": staged,
		"requests":  stats.Requests,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"resident":  stats.Resident,
		"loading":   stats.Loading,
	}).Info("run finished")
	return nil
}

// populate adds a camera and a grid*grid field of cubes that all reference the same file.
func populate(s scene.Scene, cfg config.Configuration, grid int) error {
	aspect := float32(cfg.Viewport.Width) / float32(max(cfg.Viewport.Height, 1))
	cam := camera.NewCamera(
		camera.WithPosition(0, float32(grid)*2, float32(grid)*3),
		camera.WithTarget(0, 0, 0),
		camera.WithAspect(aspect),
	)
	if _, err := s.Add(scene.Node{Name: "camera", Transform: common.IdentityTransform(), Camera: cam}); err != nil {
		return err
	}

	field := scene.Node{Name: "field", Transform: common.IdentityTransform()}
	half := float32(grid-1) / 2
	for x := range grid {
		for z := range grid {
			t := common.IdentityTransform()
			t.Position = [3]float32{(float32(x) - half) * 2, 0, (float32(z) - half) * 2}
			field.Children = append(field.Children, scene.Node{
				Name:      fmt.Sprintf("cube_%d_%d", x, z),
				Transform: t,
				Content:   asset.Reference{Locator: "cube.rmesh"},
			})
		}
	}
	_, err := s.Add(field)
	return err
}

func writeCube(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "sample mesh")
	}
	defer f.Close()

	vertices := make([]float32, 0, 8*3)
	for i := range 8 {
		vertices = append(vertices,
			float32(i&1)-0.5,
			float32(i>>1&1)-0.5,
			float32(i>>2&1)-0.5,
		)
	}
	indices := []uint32{
		0, 2, 1, 1, 2, 3,
		4, 5, 6, 5, 7, 6,
		0, 1, 4, 1, 5, 4,
		2, 6, 3, 3, 6, 7,
		0, 4, 2, 2, 4, 6,
		1, 3, 5, 3, 7, 5,
	}
	return loader.Encode(f, asset.Mesh{
		Vertices:     common.SliceToBytes(vertices),
		VertexStride: 12,
		Indices:      indices,
	}, loader.CompressionLZ4)
}
