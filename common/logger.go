package common

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NopLogger returns a logger that discards everything. Components default to it so that nothing is printed unless
// a logger is supplied through a WithLogger option.
//
// Returns:
//   - logrus.FieldLogger: a silent logger
func NopLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// ComponentLogger tags a logger with the component field used across the engine.
// A nil logger yields a silent one.
//
// Parameters:
//   - l: the base logger (may be nil)
//   - component: component name, e.g. "allocator.pool"
//
// Returns:
//   - logrus.FieldLogger: the tagged logger
func ComponentLogger(l logrus.FieldLogger, component string) logrus.FieldLogger {
	if l == nil {
		l = NopLogger()
	}
	return l.WithField("component", component)
}
