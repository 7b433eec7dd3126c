package store

import (
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/sirupsen/logrus"
)

// StoreBuilderOption configures a record store.
type StoreBuilderOption func(*storeConfig)

type storeConfig struct {
	logger logrus.FieldLogger
}

// WithLogger sets the logger a store traces its writes to.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - StoreBuilderOption: the option
func WithLogger(logger logrus.FieldLogger) StoreBuilderOption {
	return func(c *storeConfig) {
		c.logger = logger
	}
}

func buildConfig(component string, options []StoreBuilderOption) (*storeConfig, logrus.FieldLogger) {
	c := &storeConfig{}
	for _, opt := range options {
		opt(c)
	}
	return c, common.ComponentLogger(c.logger, component)
}
