package sim

import "math"

// Metric accumulates a scalar over a closed-loop run.
type Metric interface {
	Name() string
	Observe(s Step)
	Value() float64
	Reset()
}

// TrackingRMS is the root-mean-square position tracking error.
type TrackingRMS struct {
	sum float64
	n   int
}

func (m *TrackingRMS) Name() string { return "tracking_rms" }

func (m *TrackingRMS) Observe(s Step) {
	var sq float64
	for i := 0; i < 3; i++ {
		d := s.Ref.Position[i] - s.State[i]
		sq += d * d
	}
	m.sum += sq
	m.n++
}

func (m *TrackingRMS) Value() float64 {
	if m.n == 0 {
		return 0
	}
	return math.Sqrt(m.sum / float64(m.n))
}

func (m *TrackingRMS) Reset() { m.sum, m.n = 0, 0 }

// ControlEffort integrates the commanded thrust over time.
type ControlEffort struct {
	sum   float64
	dt    float64
	prevT float64
	first bool
}

func NewControlEffort() *ControlEffort { return &ControlEffort{first: true} }

func (m *ControlEffort) Name() string { return "control_effort" }

func (m *ControlEffort) Observe(s Step) {
	if m.first {
		m.prevT = s.T
		m.first = false
		return
	}
	m.sum += math.Abs(s.Cmd.Thrust) * (s.T - m.prevT)
	m.prevT = s.T
}

func (m *ControlEffort) Value() float64 { return m.sum }

func (m *ControlEffort) Reset() { m.sum, m.first = 0, true }

// SaturationTicks counts ticks with the thrust pinned at either bound.
type SaturationTicks struct {
	limit float64
	count int
}

func NewSaturationTicks(thrustLimit float64) *SaturationTicks {
	return &SaturationTicks{limit: thrustLimit}
}

func (m *SaturationTicks) Name() string { return "saturation_ticks" }

func (m *SaturationTicks) Observe(s Step) {
	if s.Cmd.Thrust <= 0 || s.Cmd.Thrust >= m.limit {
		m.count++
	}
}

func (m *SaturationTicks) Value() float64 { return float64(m.count) }

func (m *SaturationTicks) Reset() { m.count = 0 }
