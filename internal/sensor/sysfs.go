package sensor

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/thermctl/internal/errors"
	"codeberg.org/mutker/thermctl/internal/logger"
)

const (
	defaultTempPath    = "/sys/class/thermal/thermal_zone0/temp"
	defaultCurFreqPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq"
	defaultMaxFreqPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_max_freq"

	milliDegPerDeg = 1000.0
	kHzPerGHz      = 1e6
)

// SysfsPort reads the thermal zone and cpufreq interface of CPU 0 and
// actuates through scaling_max_freq. Max frequency is in kHz.
type SysfsPort struct {
	tempPath    string
	curFreqPath string
	maxFreqPath string
}

// NewSysfs returns a port bound to the default thermal_zone0/cpu0 paths.
func NewSysfs() *SysfsPort {
	return NewSysfsWithPaths(defaultTempPath, defaultCurFreqPath, defaultMaxFreqPath)
}

// NewSysfsWithPaths returns a port bound to explicit sysfs paths.
func NewSysfsWithPaths(tempPath, curFreqPath, maxFreqPath string) *SysfsPort {
	return &SysfsPort{
		tempPath:    tempPath,
		curFreqPath: curFreqPath,
		maxFreqPath: maxFreqPath,
	}
}

func (p *SysfsPort) Temperature() (float64, error) {
	millideg, err := readIntFile(p.tempPath)
	if err != nil {
		return 0, errors.New().Wrap(ErrTemperatureRead, err)
	}

	return float64(millideg) / milliDegPerDeg, nil
}

func (p *SysfsPort) Frequency() (float64, error) {
	khz, err := readIntFile(p.curFreqPath)
	if err != nil {
		return 0, errors.New().Wrap(ErrFrequencyRead, err)
	}

	return float64(khz) / kHzPerGHz, nil
}

func (p *SysfsPort) MaxFrequency() (int, error) {
	khz, err := readIntFile(p.maxFreqPath)
	if err != nil {
		return 0, errors.New().Wrap(ErrMaxFrequencyRead, err)
	}

	return khz, nil
}

func (p *SysfsPort) SetMaxFrequency(value int) error {
	if err := os.WriteFile(p.maxFreqPath, []byte(strconv.Itoa(value)), 0o644); err != nil {
		return errors.New().Wrap(ErrMaxFrequencyWrite, err)
	}
	logger.Debug().Int("max_frequency_khz", value).Msg("Wrote scaling_max_freq")

	return nil
}

func (*SysfsPort) Close() error {
	return nil
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.New().Wrap(ErrParseFailed, err)
	}

	return value, nil
}
