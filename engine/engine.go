package engine

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/profiler"
	"github.com/Carmen-Shannon/oxy-resident/engine/scene"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	logger logrus.FieldLogger

	profiler         *profiler.Profiler
	profilingEnabled bool
	profileInterval  time.Duration

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	frameCallback  func(deltaTime float32, frames map[int]scene.SceneFrame)

	scenes map[int]scene.Scene

	maxFrames uint64
	frames    uint64
}

// Engine is the cooperative frame loop. Everything that mutates scene state runs on the goroutine that calls Run or
// Frame; loader work happens on the pipeline's workers and is applied at the next frame's poll.
type Engine interface {
	// EnableProfiler turns on periodic frame statistics.
	EnableProfiler()

	// DisableProfiler turns off periodic frame statistics.
	DisableProfiler()

	// SetTickRate changes the rate at which Run produces frames. Safe to call while Run is active.
	//
	// Parameters:
	//   - fps: target frames per second; <= 0 means 60
	SetTickRate(fps float64)

	// SetTickCallback sets the game logic callback, run each frame after loads are applied and before staging.
	//
	// Parameters:
	//   - callback: receives the elapsed time since the last frame in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback sets a callback run after staging with each active scene's frame, keyed like Scenes.
	SetFrameCallback(callback func(deltaTime float32, frames map[int]scene.SceneFrame))

	// AddScene registers a scene at the given z-index key.
	AddScene(key int, s scene.Scene)

	// RemoveScene unregisters the scene at key.
	RemoveScene(key int)

	// Scene returns the scene at key, or nil.
	Scene(key int) scene.Scene

	// Scenes returns a copy of the registered scenes.
	Scenes() map[int]scene.Scene

	// Frame runs one frame: poll every active scene, run the tick callback, stage every active scene, run the
	// frame callback, then the profiler.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame
	//
	// Returns:
	//   - error: the first scene error; the frame is abandoned at that point
	Frame(deltaTime float32) error

	// Run produces frames at the tick rate until ctx ends, Quit is called, the frame limit is reached or a frame
	// fails.
	//
	// Parameters:
	//   - ctx: stops the loop when done
	//
	// Returns:
	//   - error: the failing frame's error; nil on a normal stop
	Run(ctx context.Context) error

	// Quit stops Run. Safe to call from any goroutine, more than once.
	Quit()

	// Frames returns the number of frames completed.
	Frames() uint64
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the given options applied.
//
// Parameters:
//   - options: variadic list of EngineBuilderOption
//
// Returns:
//   - Engine: the engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		engineTickRate:  time.Second / 60,
		profileInterval: time.Second,
	}
	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(e.logger, e.profileInterval)
	e.logger = common.ComponentLogger(e.logger, "engine")
	return e
}

func (e *engine) Frame(deltaTime float32) error {
	active := e.activeScenes()
	applied := make(map[int]int, len(active))
	for _, k := range active {
		n, err := e.scenes[k].Poll()
		if err != nil {
			return errors.Wrapf(err, "frame %d", e.frames)
		}
		applied[k] = n
	}

	if e.tickCallback != nil {
		e.tickCallback(deltaTime)
	}

	frames := make(map[int]scene.SceneFrame, len(active))
	fields := logrus.Fields{"scenes": len(active)}
	var groups, instances, skipped, views, loads int
	for _, k := range active {
		f, err := e.scenes[k].Stage()
		if err != nil {
			return errors.Wrapf(err, "frame %d", e.frames)
		}
		f.Applied = applied[k]
		frames[k] = f
		groups += len(f.Groups)
		instances += f.Instances
		skipped += f.Skipped
		views += f.Views
		loads += f.Applied
	}

	if e.frameCallback != nil {
		e.frameCallback(deltaTime, frames)
	}

	if e.profilingEnabled {
		fields["groups"], fields["instances"], fields["skipped"], fields["views"], fields["applied"] = groups, instances, skipped, views, loads
		e.profiler.Tick(fields)
	}
	e.frames++
	return nil
}

func (e *engine) activeScenes() []int {
	var keys []int
	for _, k := range slices.Sorted(maps.Keys(e.scenes)) {
		if e.scenes[k].Active() {
			keys = append(keys, k)
		}
	}
	return keys
}

func (e *engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	e.logger.WithFields(logrus.Fields{"tick_rate": e.engineTickRate, "scenes": len(e.scenes)}).Info("engine started")
	defer func() {
		e.logger.WithField("frames", e.frames).Info("engine stopped")
	}()

	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.quitChannel:
			return nil
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		case now := <-ticker.C:
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if err := e.Frame(dt); err != nil {
				e.logger.WithError(err).Error("frame failed")
				return err
			}
			if e.maxFrames > 0 && e.frames >= e.maxFrames {
				return nil
			}
		}
	}
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetTickRate(fps float64) {
	newRate := tickDuration(fps)
	// keep only the latest pending rate
	select {
	case <-e.tickRateChannel:
	default:
	}
	e.tickRateChannel <- newRate
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetFrameCallback(callback func(deltaTime float32, frames map[int]scene.SceneFrame)) {
	e.frameCallback = callback
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	return maps.Clone(e.scenes)
}

func (e *engine) Frames() uint64 {
	return e.frames
}
