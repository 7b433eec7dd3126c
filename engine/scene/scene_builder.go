package scene

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/sirupsen/logrus"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithBounds sets the world bounds Morton codes are normalized into.
// Defaults to a 2048 unit cube centered on the origin.
//
// Parameters:
//   - b: the world bounds
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBounds(b common.Bounds) SceneBuilderOption {
	return func(s *scene) {
		s.bounds = b
	}
}

// WithViewportHeight sets the render target height used for the size-cull constant until the first Resize.
func WithViewportHeight(h int) SceneBuilderOption {
	return func(s *scene) {
		if h > 0 {
			s.viewportH = float32(h)
		}
	}
}

// WithStagerOptions forwards options to the scene's Stager.
func WithStagerOptions(options ...StagerBuilderOption) SceneBuilderOption {
	return func(s *scene) {
		s.stagerOpts = append(s.stagerOpts, options...)
	}
}

// WithLogger sets the scene logger. The stager and pass resources log through it too.
func WithLogger(logger logrus.FieldLogger) SceneBuilderOption {
	return func(s *scene) {
		s.logger = logger
	}
}
