package sim

import "github.com/san-kum/uavctl/internal/uav"

// Derivative evaluates the plant ODE at state x and time t.
type Derivative func(x uav.State, t float64) uav.State

// Integrator advances the plant state by one fixed step.
type Integrator interface {
	Step(f Derivative, x uav.State, t, dt float64) uav.State
}

type Euler struct{}

func (Euler) Step(f Derivative, x uav.State, t, dt float64) uav.State {
	d := f(x, t)
	out := make(uav.State, len(x))
	for i := range x {
		out[i] = x[i] + d[i]*dt
	}
	return out
}

type RK4 struct{}

func (RK4) Step(f Derivative, x uav.State, t, dt float64) uav.State {
	k1 := f(x, t)
	k2 := f(shift(x, k1, dt/2), t+dt/2)
	k3 := f(shift(x, k2, dt/2), t+dt/2)
	k4 := f(shift(x, k3, dt), t+dt)

	out := make(uav.State, len(x))
	for i := range x {
		out[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}

func shift(x, d uav.State, h float64) uav.State {
	out := make(uav.State, len(x))
	for i := range x {
		out[i] = x[i] + d[i]*h
	}
	return out
}

// NewIntegrator selects an integrator by name, defaulting to RK4.
func NewIntegrator(name string) Integrator {
	if name == "euler" {
		return Euler{}
	}
	return RK4{}
}
