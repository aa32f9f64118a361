package mitigation

import (
	"testing"
	"time"

	"codeberg.org/mutker/thermctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a scriptable device for exercising the state machine without
// hardware.
type fakePort struct {
	maxFreq    int
	readErr    error
	writeErr   error
	writes     []int
	readCalls  int
	writeCalls int
}

func (f *fakePort) Temperature() (float64, error) { return 0, nil }
func (f *fakePort) Frequency() (float64, error)   { return 0, nil }

func (f *fakePort) MaxFrequency() (int, error) {
	f.readCalls++
	if f.readErr != nil {
		return 0, f.readErr
	}

	return f.maxFreq, nil
}

func (f *fakePort) SetMaxFrequency(value int) error {
	f.writeCalls++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.maxFreq = value
	f.writes = append(f.writes, value)

	return nil
}

func (f *fakePort) Close() error { return nil }

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestController(port *fakePort) (*Controller, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	ctl := New(port, 0.7, 5*time.Second).WithClock(clock.now)

	return ctl, clock
}

func TestEnableCapsFrequency(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, _ := newTestController(port)

	require.NoError(t, ctl.Enable())

	assert.True(t, ctl.Active())
	assert.Equal(t, 2520000, port.maxFreq, "Expected floor(3600000*0.7)")
	assert.Equal(t, 3600000, ctl.Snapshot().OriginalMaxFrequency)
}

func TestEnableIdempotentWhileActive(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, clock := newTestController(port)

	require.NoError(t, ctl.Enable())
	clock.advance(10 * time.Second)
	require.NoError(t, ctl.Enable())

	assert.Equal(t, 1, port.writeCalls, "Second enable must be a no-op")
	assert.Equal(t, 3600000, ctl.Snapshot().OriginalMaxFrequency,
		"Original must not be overwritten by a re-enable")
}

func TestCooldownAllowsOnlyOneTransition(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, clock := newTestController(port)

	clock.advance(10 * time.Second)
	require.NoError(t, ctl.Enable())
	require.True(t, ctl.Active())

	// Disable request within the cooldown is absorbed
	clock.advance(2 * time.Second)
	require.NoError(t, ctl.Disable())
	assert.True(t, ctl.Active(), "Disable inside cooldown must not fire")

	// After the cooldown it goes through
	clock.advance(3 * time.Second)
	require.NoError(t, ctl.Disable())
	assert.False(t, ctl.Active())
}

func TestEnableBlockedDuringCooldown(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, clock := newTestController(port)

	clock.advance(10 * time.Second)
	require.NoError(t, ctl.Enable())
	clock.advance(6 * time.Second)
	require.NoError(t, ctl.Disable())

	// Immediately re-enabling is rate-limited
	require.NoError(t, ctl.Enable())
	assert.False(t, ctl.Active())

	clock.advance(5 * time.Second)
	require.NoError(t, ctl.Enable())
	assert.True(t, ctl.Active())
}

func TestReversibility(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, clock := newTestController(port)

	before := port.maxFreq
	require.NoError(t, ctl.Enable())
	clock.advance(6 * time.Second)
	require.NoError(t, ctl.Disable())

	assert.Equal(t, before, port.maxFreq,
		"Max frequency must round-trip through enable/disable")
	assert.False(t, ctl.Active())
}

func TestNoPartialStateOnWriteFailure(t *testing.T) {
	port := &fakePort{maxFreq: 3600000, writeErr: errors.New().New(errors.ErrActuationFailed)}
	ctl, _ := newTestController(port)

	err := ctl.Enable()
	require.Error(t, err)

	state := ctl.Snapshot()
	assert.False(t, state.Active, "Failed write must not record the cap")
	assert.Zero(t, state.OriginalMaxFrequency, "Original must remain unset")
	assert.True(t, state.LastAction.IsZero(), "Failed transition must not consume the cooldown")
}

func TestNoPartialStateOnCaptureFailure(t *testing.T) {
	port := &fakePort{readErr: errors.New().New(errors.ErrSensorUnavailable)}
	ctl, _ := newTestController(port)

	err := ctl.Enable()
	require.Error(t, err)
	assert.False(t, ctl.Active())
	assert.Equal(t, 0, port.writeCalls, "No write without a captured original")
}

func TestEnableAbsorbsNonPositiveCeiling(t *testing.T) {
	port := &fakePort{maxFreq: 0}
	ctl, _ := newTestController(port)

	require.NoError(t, ctl.Enable())
	assert.False(t, ctl.Active())
	assert.Equal(t, 0, port.writeCalls)
}

func TestDisableFailureKeepsStateForRetry(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, clock := newTestController(port)

	require.NoError(t, ctl.Enable())
	clock.advance(6 * time.Second)

	port.writeErr = errors.New().New(errors.ErrActuationFailed)
	require.Error(t, ctl.Disable())
	assert.True(t, ctl.Active(), "Failed restore must stay active so the next tick retries")

	port.writeErr = nil
	require.NoError(t, ctl.Disable())
	assert.False(t, ctl.Active())
	assert.Equal(t, 3600000, port.maxFreq)
}

func TestRestoreBypassesCooldown(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, clock := newTestController(port)

	require.NoError(t, ctl.Enable())

	// Still inside the cooldown; regular disable is absorbed, the
	// fail-safe path is not
	clock.advance(1 * time.Second)
	require.NoError(t, ctl.Disable())
	assert.True(t, ctl.Active())

	require.NoError(t, ctl.Restore())
	assert.False(t, ctl.Active())
	assert.Equal(t, 3600000, port.maxFreq)
}

func TestRestoreNoopWhenInactive(t *testing.T) {
	port := &fakePort{maxFreq: 3600000}
	ctl, _ := newTestController(port)

	require.NoError(t, ctl.Restore())
	assert.Equal(t, 0, port.writeCalls)
}
