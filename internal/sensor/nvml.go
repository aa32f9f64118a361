package sensor

import (
	"codeberg.org/mutker/thermctl/internal/errors"
	"codeberg.org/mutker/thermctl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const mhzPerGHz = 1000.0

// NVMLPort drives the first NVIDIA GPU through NVML. The frequency cap is
// applied as a locked graphics clock; max frequency is in MHz. NVML has no
// call to read back the current lock, so the active cap is tracked locally.
type NVMLPort struct {
	device   nvml.Device
	maxClock int // uncapped max graphics clock, MHz
	lock     int // active locked clock, 0 when uncapped
}

// NewNVML initializes NVML and binds to the GPU at index 0.
func NewNVML() (*NVMLPort, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, errFactory.Wrap(ErrInitFailed, nvmlError(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrDeviceNotFound, nvmlError(ret))
	}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		logger.Info().Msgf("Detected GPU: %v", name)
	}

	maxClock, ret := device.GetMaxClockInfo(nvml.CLOCK_GRAPHICS)
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrInitFailed, nvmlError(ret))
	}

	return &NVMLPort{
		device:   device,
		maxClock: int(maxClock),
	}, nil
}

func (p *NVMLPort) Temperature() (float64, error) {
	temp, ret := p.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, errors.New().Wrap(ErrTemperatureRead, nvmlError(ret))
	}

	return float64(temp), nil
}

func (p *NVMLPort) Frequency() (float64, error) {
	clock, ret := p.device.GetClockInfo(nvml.CLOCK_GRAPHICS)
	if ret != nvml.SUCCESS {
		return 0, errors.New().Wrap(ErrFrequencyRead, nvmlError(ret))
	}

	return float64(clock) / mhzPerGHz, nil
}

func (p *NVMLPort) MaxFrequency() (int, error) {
	if p.lock > 0 {
		return p.lock, nil
	}

	return p.maxClock, nil
}

func (p *NVMLPort) SetMaxFrequency(value int) error {
	errFactory := errors.New()

	if value >= p.maxClock {
		// Restoring the original ceiling: drop the lock entirely
		if ret := p.device.ResetGpuLockedClocks(); ret != nvml.SUCCESS {
			return errFactory.Wrap(ErrMaxFrequencyWrite, nvmlError(ret))
		}
		p.lock = 0
		logger.Debug().Msg("Reset GPU locked clocks")

		return nil
	}

	if value < 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, value)
	}

	//nolint:gosec // G115: non-negative and below maxClock
	if ret := p.device.SetGpuLockedClocks(0, uint32(value)); ret != nvml.SUCCESS {
		return errFactory.Wrap(ErrMaxFrequencyWrite, nvmlError(ret))
	}
	p.lock = value
	logger.Debug().Int("max_clock_mhz", value).Msg("Set GPU locked clocks")

	return nil
}

func (p *NVMLPort) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return errors.New().Wrap(ErrShutdownFailed, nvmlError(ret))
	}

	return nil
}

// nvmlReturnError adapts an NVML return code to error
type nvmlReturnError struct {
	ret nvml.Return
}

func (e nvmlReturnError) Error() string {
	return nvml.ErrorString(e.ret)
}

func nvmlError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}

	return nvmlReturnError{ret: ret}
}
