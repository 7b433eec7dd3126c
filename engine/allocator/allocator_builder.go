package allocator

import (
	"github.com/Carmen-Shannon/oxy-resident/engine/device"
	"github.com/sirupsen/logrus"
)

// AllocatorBuilderOption configures a Pool, Arena or Heap at construction time.
// Options that do not apply to a given allocator are ignored by it.
type AllocatorBuilderOption func(*allocatorConfig)

type allocatorConfig struct {
	logger    logrus.FieldLogger
	usage     device.BufferUsage
	maxChunks int
}

// WithLogger sets the logger used to trace allocations.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - AllocatorBuilderOption: the option
func WithLogger(logger logrus.FieldLogger) AllocatorBuilderOption {
	return func(c *allocatorConfig) {
		c.logger = logger
	}
}

// WithUsage overrides the usage flags of the backing buffers.
//
// Parameters:
//   - usage: the buffer usage flags
//
// Returns:
//   - AllocatorBuilderOption: the option
func WithUsage(usage device.BufferUsage) AllocatorBuilderOption {
	return func(c *allocatorConfig) {
		c.usage = usage
	}
}

// WithMaxChunks bounds how many chunks an Arena may grow to. Zero means unbounded.
//
// Parameters:
//   - n: maximum number of chunk buffers
//
// Returns:
//   - AllocatorBuilderOption: the option
func WithMaxChunks(n int) AllocatorBuilderOption {
	return func(c *allocatorConfig) {
		c.maxChunks = n
	}
}

func buildConfig(defaultUsage device.BufferUsage, options []AllocatorBuilderOption) *allocatorConfig {
	c := &allocatorConfig{usage: defaultUsage}
	for _, opt := range options {
		opt(c)
	}
	return c
}
