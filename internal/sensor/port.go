// Package sensor is the device boundary: everything the controller knows
// about the host it protects goes through a Port.
package sensor

// Port reads thermal state from a device and applies the frequency cap.
// Max frequency is an opaque device unit (kHz on cpufreq, MHz on NVML);
// callers only round-trip it.
type Port interface {
	// Temperature returns the current temperature in degrees Celsius.
	Temperature() (float64, error)

	// Frequency returns the current clock frequency in GHz.
	Frequency() (float64, error)

	// MaxFrequency returns the device's maximum-frequency ceiling.
	MaxFrequency() (int, error)

	// SetMaxFrequency writes a new maximum-frequency ceiling.
	SetMaxFrequency(value int) error

	// Close releases the device.
	Close() error
}
