package device

import "github.com/sirupsen/logrus"

// DeviceBuilderOption configures a device created by NewWGPUDevice or NewHostDevice.
type DeviceBuilderOption func(*deviceConfig)

type deviceConfig struct {
	label         string
	forceFallback bool
	logger        logrus.FieldLogger
}

func defaultDeviceConfig() *deviceConfig {
	return &deviceConfig{
		label: "Resident Device",
	}
}

// WithLabel sets the debug label given to the device.
//
// Parameters:
//   - label: the device label
//
// Returns:
//   - DeviceBuilderOption: the option
func WithLabel(label string) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.label = label
	}
}

// WithForceFallbackAdapter requests the software fallback adapter. Useful on CI hosts without a GPU.
//
// Parameters:
//   - force: whether to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: the option
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallback = force
	}
}

// WithLogger sets the logger used for buffer lifecycle tracing.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - DeviceBuilderOption: the option
func WithLogger(logger logrus.FieldLogger) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.logger = logger
	}
}
