package passes

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/sirupsen/logrus"
)

// PassesBuilderOption is a functional option for configuring pass resources.
type PassesBuilderOption func(*worldBuffers)

// WithLabel sets the prefix used for device buffer labels.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - PassesBuilderOption: a function that applies the label option
func WithLabel(label string) PassesBuilderOption {
	return func(w *worldBuffers) {
		w.label = label
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) PassesBuilderOption {
	return func(w *worldBuffers) {
		w.logger = logger
	}
}

func (w *worldBuffers) applyOptions(options []PassesBuilderOption) {
	for _, opt := range options {
		opt(w)
	}
	w.label = common.Coalesce(w.label, "world")
	w.logger = common.ComponentLogger(w.logger, "passes.world")
}
