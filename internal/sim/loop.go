// Package sim closes the loop between a controller and the simulated
// plant, producing per-tick traces and summary metrics.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/uavctl/internal/nsf"
	"github.com/san-kum/uavctl/internal/uav"
)

// Controller is the per-tick contract both controller variants satisfy.
// A nil command means "nothing to issue this tick" and the previous
// command stays applied.
type Controller interface {
	Update(state nsf.VehicleState, ref nsf.Reference) *nsf.Command
}

type Config struct {
	Dt       float64
	Duration float64
	Frame    string
}

// Step is one recorded tick of the closed loop.
type Step struct {
	T     float64
	State uav.State
	Ref   nsf.Reference
	Cmd   nsf.Command
}

type Result struct {
	Steps   []Step
	Metrics map[string]float64
}

// Loop drives controller and plant in lockstep. Vehicle-state timestamps
// are synthesized from the simulation clock against a wall-clock base.
type Loop struct {
	plant   *uav.Plant
	ctrl    Controller
	integ   Integrator
	refFn   ReferenceFunc
	metrics []Metric

	frame string
	base  time.Time

	x uav.State
	t float64
}

func New(plant *uav.Plant, ctrl Controller, integ Integrator, refFn ReferenceFunc) *Loop {
	return &Loop{
		plant: plant,
		ctrl:  ctrl,
		integ: integ,
		refFn: refFn,
		frame: "world",
		base:  time.Now(),
	}
}

func (l *Loop) AddMetric(m Metric) { l.metrics = append(l.metrics, m) }

// Reset places the plant at x0 and rewinds the simulation clock.
func (l *Loop) Reset(x0 uav.State) {
	l.x = x0.Clone()
	l.t = 0
	for _, m := range l.metrics {
		m.Reset()
	}
}

// State returns the current plant state vector.
func (l *Loop) State() uav.State { return l.x }

// Time returns the current simulation time.
func (l *Loop) Time() float64 { return l.t }

// VehicleState exposes the plant state the way the controller consumes it.
func (l *Loop) VehicleState() nsf.VehicleState {
	return nsf.VehicleState{
		Timestamp: l.base.Add(time.Duration(l.t * float64(time.Second))),
		FrameID:   l.frame,
		Position:  nsf.Vec3{l.x[uav.X], l.x[uav.Y], l.x[uav.Z]},
		Velocity:  nsf.Vec3{l.x[uav.VX], l.x[uav.VY], l.x[uav.VZ]},
		Roll:      l.x[uav.Roll],
		Pitch:     l.x[uav.Pitch],
		Yaw:       l.x[uav.Yaw],
	}
}

// Tick runs one control tick and one integration step.
func (l *Loop) Tick(dt float64) (Step, error) {
	ref := l.refFn(l.t)

	if cmd := l.ctrl.Update(l.VehicleState(), ref); cmd != nil {
		l.plant.Apply(*cmd)
	}

	step := Step{T: l.t, State: l.x.Clone(), Ref: ref, Cmd: l.plant.Command()}
	for _, m := range l.metrics {
		m.Observe(step)
	}

	next := l.integ.Step(l.plant.Derivative, l.x, l.t, dt)
	if !next.IsValid() {
		return step, fmt.Errorf("sim: invalid state (NaN/Inf) at t=%.4f", l.t)
	}
	l.x = next
	l.t += dt
	return step, nil
}

// Run executes the closed loop for the configured duration.
func (l *Loop) Run(ctx context.Context, x0 uav.State, cfg Config) (*Result, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("sim: dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("sim: duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Frame != "" {
		l.frame = cfg.Frame
	}

	l.Reset(x0)

	steps := int(cfg.Duration / cfg.Dt)
	result := &Result{
		Steps:   make([]Step, 0, steps),
		Metrics: make(map[string]float64),
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		step, err := l.Tick(cfg.Dt)
		result.Steps = append(result.Steps, step)
		if err != nil {
			return result, err
		}
	}

	for _, m := range l.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}
