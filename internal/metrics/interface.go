package metrics

import (
	"context"
	"time"
)

// Collector records per-tick snapshots of the control loop
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for snapshot storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one control-loop tick
type Snapshot struct {
	Timestamp   time.Time
	Temperature TempMetrics
	Frequency   FreqMetrics
	Power       PowerMetrics
	Mitigation  StateMetrics
}

// Domain value objects
type TempMetrics struct {
	Current   float64
	Predicted float64
}

type FreqMetrics struct {
	CurrentGHz  float64
	OriginalMax int
}

type PowerMetrics struct {
	EstimatedWatts float64
	Utilization    float64
}

type StateMetrics struct {
	Active  bool
	Monitor bool
}
