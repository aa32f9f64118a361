// Package mitigation holds the reversible frequency-cap state machine.
// Transitions are rate-limited by a cooldown and either complete fully or
// leave the state untouched; the device is never recorded as capped unless
// the original ceiling was captured and the cap write succeeded.
package mitigation

import (
	"time"

	"codeberg.org/mutker/thermctl/internal/errors"
	"codeberg.org/mutker/thermctl/internal/logger"
	"codeberg.org/mutker/thermctl/internal/sensor"
)

const (
	ErrCaptureFailed = errors.ErrorCode("mitigation_capture_failed")
	ErrApplyFailed   = errors.ErrorCode("mitigation_apply_failed")
	ErrRestoreFailed = errors.ErrorCode("mitigation_restore_failed")
)

// Clock supplies the current time; injectable for tests.
type Clock func() time.Time

// State is the mitigation state. Active implies OriginalMaxFrequency holds
// the ceiling captured when the cap was applied.
type State struct {
	Active               bool
	OriginalMaxFrequency int
	LastAction           time.Time
}

// Controller owns the State exclusively and applies transitions through the
// device port.
type Controller struct {
	port     sensor.Port
	factor   float64
	cooldown time.Duration
	now      Clock
	state    State
}

// New builds a controller with the given reduction factor and cooldown.
func New(port sensor.Port, factor float64, cooldown time.Duration) *Controller {
	return &Controller{
		port:     port,
		factor:   factor,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (c *Controller) WithClock(clock Clock) *Controller {
	c.now = clock
	return c
}

func (c *Controller) canAct() bool {
	return c.now().Sub(c.state.LastAction) >= c.cooldown
}

// Enable captures the device's current maximum frequency and writes a
// reduced ceiling. Already-active and within-cooldown requests are silently
// absorbed; repeated triggering while hot is expected.
func (c *Controller) Enable() error {
	if c.state.Active || !c.canAct() {
		return nil
	}

	errFactory := errors.New()

	original, err := c.port.MaxFrequency()
	if err != nil {
		return errFactory.Wrap(ErrCaptureFailed, err)
	}
	if original <= 0 {
		// Failure sentinel from the device, nothing to cap against
		return nil
	}

	capped := int(float64(original) * c.factor)
	if err := c.port.SetMaxFrequency(capped); err != nil {
		return errFactory.Wrap(ErrApplyFailed, err)
	}

	c.state = State{
		Active:               true,
		OriginalMaxFrequency: original,
		LastAction:           c.now(),
	}
	logger.Info().
		Int("original", original).
		Int("capped", capped).
		Msg("Mitigation enabled: max frequency capped")

	return nil
}

// Disable restores the captured ceiling, respecting the cooldown.
func (c *Controller) Disable() error {
	if !c.state.Active || !c.canAct() {
		return nil
	}

	return c.restore()
}

// Restore is the fail-safe and shutdown path: like Disable, but ignores the
// cooldown. Sensor loss and process exit must never leave the cap in place,
// so this path is not rate-limited.
func (c *Controller) Restore() error {
	if !c.state.Active {
		return nil
	}

	return c.restore()
}

func (c *Controller) restore() error {
	if c.state.OriginalMaxFrequency > 0 {
		if err := c.port.SetMaxFrequency(c.state.OriginalMaxFrequency); err != nil {
			// Leave state untouched so the next tick retries
			return errors.New().Wrap(ErrRestoreFailed, err)
		}
	}

	c.state = State{LastAction: c.now()}
	logger.Info().Msg("Mitigation disabled: max frequency restored")

	return nil
}

// Active reports whether the cap is currently applied.
func (c *Controller) Active() bool {
	return c.state.Active
}

// Snapshot returns a copy of the current state for reporting.
func (c *Controller) Snapshot() State {
	return c.state
}
