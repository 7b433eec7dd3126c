package scene

import "github.com/sirupsen/logrus"

// StagerBuilderOption is a functional option for configuring a Stager.
type StagerBuilderOption func(*stager)

// WithInstanceCapacity sets how many instance records the shared instance buffer holds. Defaults to 4096.
//
// Parameters:
//   - n: the capacity in records (minimum 1)
//
// Returns:
//   - StagerBuilderOption: option function to apply
func WithInstanceCapacity(n uint32) StagerBuilderOption {
	return func(s *stager) {
		s.capacity = max(n, 1)
	}
}

// WithStagerLabel sets the label prefix of the stager's device buffers.
func WithStagerLabel(label string) StagerBuilderOption {
	return func(s *stager) {
		s.label = label
	}
}

// WithStagerLogger sets the stager logger.
func WithStagerLogger(logger logrus.FieldLogger) StagerBuilderOption {
	return func(s *stager) {
		s.logger = logger
	}
}
