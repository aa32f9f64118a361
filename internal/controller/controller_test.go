package controller

import (
	"context"
	"fmt"
	"testing"
	"time"

	"codeberg.org/mutker/thermctl/internal/metrics"
	"codeberg.org/mutker/thermctl/internal/mitigation"
	"codeberg.org/mutker/thermctl/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPort replays a sequence of temperature readings and tracks the
// frequency ceiling like a real device would.
type scriptedPort struct {
	temps      []float64
	tempIndex  int
	frequency  float64
	maxFreq    int
	sensorDown bool
	writes     []int
}

func (p *scriptedPort) Temperature() (float64, error) {
	if p.sensorDown {
		return 0, fmt.Errorf("thermal zone unreadable")
	}
	if p.tempIndex >= len(p.temps) {
		return p.temps[len(p.temps)-1], nil
	}
	t := p.temps[p.tempIndex]
	p.tempIndex++

	return t, nil
}

func (p *scriptedPort) Frequency() (float64, error) {
	if p.sensorDown {
		return 0, fmt.Errorf("cpufreq unreadable")
	}

	return p.frequency, nil
}

func (p *scriptedPort) MaxFrequency() (int, error) {
	return p.maxFreq, nil
}

func (p *scriptedPort) SetMaxFrequency(value int) error {
	p.maxFreq = value
	p.writes = append(p.writes, value)

	return nil
}

func (*scriptedPort) Close() error { return nil }

// countingCollector records how many snapshots were taken.
type countingCollector struct {
	snapshots []*metrics.Snapshot
}

func (c *countingCollector) Record(_ context.Context, s *metrics.Snapshot) error {
	c.snapshots = append(c.snapshots, s)
	return nil
}

func (*countingCollector) Close() error { return nil }

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLoop(port *scriptedPort, monitor bool) (*Loop, *mitigation.Controller, *countingCollector, *testClock) {
	clock := &testClock{t: time.Unix(1000, 0)}
	mitigator := mitigation.New(port, 0.7, 5*time.Second).WithClock(clock.now)
	collector := &countingCollector{}
	loop := New(
		port,
		thermal.Fixed(0.7),
		thermal.PowerModel{Alpha: 5.0},
		thermal.NewModel(thermal.Params{
			Resistance:  1.0,
			Capacitance: 10.0,
			Ambient:     30.0,
			Interval:    1.0,
		}),
		Thresholds{Low: 70, High: 75, Critical: 85},
		mitigator,
		collector,
		time.Second,
		monitor,
	)

	return loop, mitigator, collector, clock
}

func TestTickDeadZoneNoTransition(t *testing.T) {
	// util=0.7, f=2.0 → P=7W; T=74 predicts 70.3: inside the 70/75 dead
	// zone, so nothing fires.
	port := &scriptedPort{temps: []float64{74.0}, frequency: 2.0, maxFreq: 3600000}
	loop, mitigator, collector, _ := newTestLoop(port, false)

	loop.tick(context.Background())

	assert.False(t, mitigator.Active())
	assert.Empty(t, port.writes, "Dead zone must not touch the device")
	require.Len(t, collector.snapshots, 1)
	assert.InDelta(t, 70.3, collector.snapshots[0].Temperature.Predicted, 1e-9)
	assert.InDelta(t, 7.0, collector.snapshots[0].Power.EstimatedWatts, 1e-9)
}

func TestTickEnablesAboveHighWatermark(t *testing.T) {
	// T=85, P=7 → prediction 80.2 > 75
	port := &scriptedPort{temps: []float64{85.0}, frequency: 2.0, maxFreq: 3600000}
	loop, mitigator, _, _ := newTestLoop(port, false)

	loop.tick(context.Background())

	assert.True(t, mitigator.Active())
	assert.Equal(t, 2520000, port.maxFreq)
}

func TestTickDisablesBelowLowWatermark(t *testing.T) {
	port := &scriptedPort{temps: []float64{85.0, 50.0}, frequency: 2.0, maxFreq: 3600000}
	loop, mitigator, _, clock := newTestLoop(port, false)

	loop.tick(context.Background())
	require.True(t, mitigator.Active())

	// T=50, P=7 → prediction 48.7 < 70, cooldown elapsed
	clock.advance(6 * time.Second)
	loop.tick(context.Background())

	assert.False(t, mitigator.Active())
	assert.Equal(t, 3600000, port.maxFreq, "Ceiling must be restored")
}

func TestTickFailSafeOnSensorLoss(t *testing.T) {
	port := &scriptedPort{temps: []float64{85.0}, frequency: 2.0, maxFreq: 3600000}
	loop, mitigator, collector, _ := newTestLoop(port, false)

	loop.tick(context.Background())
	require.True(t, mitigator.Active())

	// Sensor goes away inside the cooldown window; the cap must still be
	// lifted immediately.
	port.sensorDown = true
	loop.tick(context.Background())

	assert.False(t, mitigator.Active())
	assert.Equal(t, 3600000, port.maxFreq)
	assert.Len(t, collector.snapshots, 1, "No snapshot for a blind tick")
}

func TestTickMonitorModeNeverActuates(t *testing.T) {
	port := &scriptedPort{temps: []float64{95.0, 95.0}, frequency: 2.0, maxFreq: 3600000}
	loop, mitigator, collector, clock := newTestLoop(port, true)

	loop.tick(context.Background())
	clock.advance(6 * time.Second)
	loop.tick(context.Background())

	assert.False(t, mitigator.Active())
	assert.Empty(t, port.writes)
	assert.Len(t, collector.snapshots, 2, "Monitor mode still reports")
}

func TestTickCriticalStillReportsWhileActive(t *testing.T) {
	// Prediction stays critical across ticks; the loop keeps reporting and
	// must not panic or double-apply the cap.
	port := &scriptedPort{temps: []float64{120.0, 120.0}, frequency: 2.0, maxFreq: 3600000}
	loop, mitigator, collector, clock := newTestLoop(port, false)

	loop.tick(context.Background())
	clock.advance(6 * time.Second)
	loop.tick(context.Background())

	assert.True(t, mitigator.Active())
	assert.Len(t, port.writes, 1, "Cap applied exactly once")
	assert.Len(t, collector.snapshots, 2)
}

func TestRunStopsAndRestoresOnCancel(t *testing.T) {
	port := &scriptedPort{temps: []float64{85.0}, frequency: 2.0, maxFreq: 3600000}
	loop, mitigator, _, _ := newTestLoop(port, false)
	loop.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Give the loop a few ticks to apply the cap
	require.Eventually(t, func() bool { return mitigator.Active() },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.False(t, mitigator.Active())
	assert.Equal(t, 3600000, port.maxFreq, "Ceiling restored on shutdown")
}

func TestRunRejectsNonPositiveInterval(t *testing.T) {
	port := &scriptedPort{temps: []float64{50.0}, frequency: 2.0, maxFreq: 3600000}
	loop, _, _, _ := newTestLoop(port, false)
	loop.interval = 0

	require.Error(t, loop.Run(context.Background()))
}
