// Package thermal implements the fixed-coefficient first-order RC thermal
// model and the linear power model driving the mitigation policy.
package thermal

// Params are the RC model coefficients, fixed at startup.
type Params struct {
	Resistance  float64 // thermal resistance R
	Capacitance float64 // thermal capacitance C
	Ambient     float64 // ambient temperature, °C
	Interval    float64 // integration step dt, seconds
}

// Model predicts near-future temperature by forward-integrating
// C·dT/dt = P − (T − Tambient)/R one step at a time.
type Model struct {
	params Params
}

func NewModel(params Params) Model {
	return Model{params: params}
}

// Predict returns the temperature one interval ahead of the current reading
// under the given power draw. The result is deliberately unclamped:
// pathological inputs produce out-of-range predictions, which the control
// policy treats as any other threshold crossing.
func (m Model) Predict(current, power float64) float64 {
	p := m.params

	return current + (p.Interval/p.Capacitance)*(power-(current-p.Ambient)/p.Resistance)
}

// PowerModel estimates power draw as alpha * utilization * frequency.
type PowerModel struct {
	Alpha float64
}

// Estimate returns the estimated power in watts for a utilization fraction
// and a frequency in GHz. Utilization is clamped to [0,1]; the formula is
// undefined outside that range.
func (p PowerModel) Estimate(utilization, frequencyGHz float64) float64 {
	if utilization < 0 {
		utilization = 0
	} else if utilization > 1 {
		utilization = 1
	}

	return p.Alpha * utilization * frequencyGHz
}
