package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-resident/engine/scene"
	"github.com/sirupsen/logrus"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfileInterval sets the minimum time between profiler reports. Defaults to 1 second.
func WithProfileInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.profileInterval = d
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Run produces one frame per tick. Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickDuration(fps)
	}
}

// WithMaxFrames makes Run return after n frames. Zero runs until cancelled.
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
// Scenes are staged in ascending key order.
//
// Parameters:
//   - key: the z-index determining staging order (lower first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithLogger sets the engine logger. The profiler reports through it too.
func WithLogger(logger logrus.FieldLogger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = logger
	}
}

func tickDuration(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}
