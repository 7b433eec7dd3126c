package asset

import (
	"context"

	"github.com/sirupsen/logrus"
)

// PipelineBuilderOption configures a Pipeline.
type PipelineBuilderOption func(*pipelineImpl)

// WithRegistry sets the loader registry. Without it the pipeline creates an empty one.
//
// Parameters:
//   - r: the registry
//
// Returns:
//   - PipelineBuilderOption: the option
func WithRegistry(r Registry) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.registry = r
	}
}

// WithLogger sets the pipeline logger.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - PipelineBuilderOption: the option
func WithLogger(logger logrus.FieldLogger) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.logger = logger
	}
}

// WithWorkers sets how many goroutines run loaders.
//
// Parameters:
//   - n: worker count, at least 1
//
// Returns:
//   - PipelineBuilderOption: the option
func WithWorkers(n int) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the loader task queue length.
func WithQueueSize(n int) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithContext sets the context passed to every loader.
func WithContext(ctx context.Context) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.ctx = ctx
	}
}
