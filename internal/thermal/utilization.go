package thermal

// DefaultUtilization is the safe placeholder used when no sampler is
// configured.
const DefaultUtilization = 0.7

// UtilizationEstimator supplies the utilization fraction fed into the power
// model. Implementations may sample the host or return a constant.
type UtilizationEstimator interface {
	Estimate() float64
}

// Fixed is a constant utilization estimate.
type Fixed float64

func (f Fixed) Estimate() float64 {
	return float64(f)
}
