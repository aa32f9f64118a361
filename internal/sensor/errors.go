package sensor

import "codeberg.org/mutker/thermctl/internal/errors"

const (
	// Initialization and lifecycle errors
	ErrInitFailed     = errors.ErrorCode("sensor_init_failed")
	ErrDeviceNotFound = errors.ErrorCode("sensor_device_not_found")
	ErrShutdownFailed = errors.ErrorCode("sensor_shutdown_failed")

	// Read errors
	ErrTemperatureRead  = errors.ErrorCode("sensor_temperature_read_failed")
	ErrFrequencyRead    = errors.ErrorCode("sensor_frequency_read_failed")
	ErrMaxFrequencyRead = errors.ErrorCode("sensor_max_frequency_read_failed")
	ErrParseFailed      = errors.ErrorCode("sensor_parse_failed")

	// Write errors
	ErrMaxFrequencyWrite = errors.ErrorCode("sensor_max_frequency_write_failed")
)
