// Package controller runs the closed loop: sense, estimate power, predict,
// decide, actuate, report, once per interval.
package controller

import (
	"context"
	"time"

	"codeberg.org/mutker/thermctl/internal/errors"
	"codeberg.org/mutker/thermctl/internal/logger"
	"codeberg.org/mutker/thermctl/internal/metrics"
	"codeberg.org/mutker/thermctl/internal/mitigation"
	"codeberg.org/mutker/thermctl/internal/sensor"
	"codeberg.org/mutker/thermctl/internal/thermal"
)

// Thresholds are the policy watermarks in degrees Celsius.
// Low < High < Critical is validated at startup.
type Thresholds struct {
	Low      float64
	High     float64
	Critical float64
}

// Loop owns one control iteration per tick. Strictly sequential; no tick
// overlaps another.
type Loop struct {
	port       sensor.Port
	utilize    thermal.UtilizationEstimator
	power      thermal.PowerModel
	model      thermal.Model
	thresholds Thresholds
	mitigator  *mitigation.Controller
	collector  metrics.Collector
	interval   time.Duration
	monitor    bool
}

func New(
	port sensor.Port,
	utilize thermal.UtilizationEstimator,
	power thermal.PowerModel,
	model thermal.Model,
	thresholds Thresholds,
	mitigator *mitigation.Controller,
	collector metrics.Collector,
	interval time.Duration,
	monitor bool,
) *Loop {
	return &Loop{
		port:       port,
		utilize:    utilize,
		power:      power,
		model:      model,
		thresholds: thresholds,
		mitigator:  mitigator,
		collector:  collector,
		interval:   interval,
		monitor:    monitor,
	}
}

// Run ticks until ctx is cancelled, then restores the device ceiling before
// returning. The loop has no other exit: per-tick faults degrade to a
// skipped action, never a stop.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, l.interval)
	}

	if l.monitor {
		logger.Info().Msg("Monitor mode activated, reporting without actuation")
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := l.mitigator.Restore(); err != nil {
				return errors.New().Wrap(errors.ErrRestoreDevice, err)
			}
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	temperature, tempErr := l.port.Temperature()
	frequency, freqErr := l.port.Frequency()

	// Negative readings are the device's own failure sentinel
	if tempErr == nil && temperature < 0 {
		tempErr = errors.New().WithData(errors.ErrSensorUnavailable, temperature)
	}
	if freqErr == nil && frequency < 0 {
		freqErr = errors.New().WithData(errors.ErrSensorUnavailable, frequency)
	}
	if tempErr != nil || freqErr != nil {
		l.failSafe(tempErr, freqErr)
		return
	}

	utilization := l.utilize.Estimate()
	power := l.power.Estimate(utilization, frequency)
	predicted := l.model.Predict(temperature, power)

	if !l.monitor {
		l.decide(predicted)
	}

	logger.Info().
		Float64("temperature", temperature).
		Float64("predicted", predicted).
		Float64("frequency_ghz", frequency).
		Float64("power_w", power).
		Bool("mitigation", l.mitigator.Active()).
		Msg("")

	if predicted > l.thresholds.Critical {
		logger.Error().
			Float64("predicted", predicted).
			Float64("critical", l.thresholds.Critical).
			Msg("Critical predicted temperature, strong throttling advised")
	}

	l.record(ctx, temperature, predicted, frequency, power, utilization)
}

// decide applies the hysteresis policy to the predicted temperature.
// Between the watermarks nothing fires; the dead zone is what stops
// chatter at a single boundary.
func (l *Loop) decide(predicted float64) {
	switch {
	case predicted > l.thresholds.High:
		if err := l.mitigator.Enable(); err != nil {
			logger.Warn().Err(err).Msg("Failed to enable mitigation")
		}
	case predicted < l.thresholds.Low:
		if err := l.mitigator.Disable(); err != nil {
			logger.Warn().Err(err).Msg("Failed to disable mitigation")
		}
	}
}

// failSafe handles sensor loss: with no visibility into thermal state the
// cap must not stay in place, so the ceiling is restored immediately.
func (l *Loop) failSafe(tempErr, freqErr error) {
	err := tempErr
	if err == nil {
		err = freqErr
	}
	logger.Warn().Err(err).Msg("Sensor read failed, entering safe mode")

	if err := l.mitigator.Restore(); err != nil {
		logger.Error().Err(err).Msg("Failed to restore max frequency in safe mode")
	}
}

func (l *Loop) record(ctx context.Context, temperature, predicted, frequency, power, utilization float64) {
	state := l.mitigator.Snapshot()
	snapshot := &metrics.Snapshot{
		Timestamp: time.Now(),
		Temperature: metrics.TempMetrics{
			Current:   temperature,
			Predicted: predicted,
		},
		Frequency: metrics.FreqMetrics{
			CurrentGHz:  frequency,
			OriginalMax: state.OriginalMaxFrequency,
		},
		Power: metrics.PowerMetrics{
			EstimatedWatts: power,
			Utilization:    utilization,
		},
		Mitigation: metrics.StateMetrics{
			Active:  state.Active,
			Monitor: l.monitor,
		},
	}

	if err := l.collector.Record(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Msg("Failed to record metrics snapshot")
	}
}
