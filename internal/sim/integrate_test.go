package sim

import (
	"math"
	"testing"

	"github.com/san-kum/uavctl/internal/uav"
)

func TestEulerConstantDerivative(t *testing.T) {
	f := func(x uav.State, t float64) uav.State {
		return uav.State{2}
	}
	out := Euler{}.Step(f, uav.State{1}, 0, 0.5)
	if out[0] != 2 {
		t.Errorf("euler step = %f, want 2", out[0])
	}
}

func TestRK4BeatsEulerOnDecay(t *testing.T) {
	// dx/dt = -x, exact solution e^-t
	f := func(x uav.State, t float64) uav.State {
		return uav.State{-x[0]}
	}

	dt := 0.1
	exact := math.Exp(-dt)

	euler := Euler{}.Step(f, uav.State{1}, 0, dt)
	rk4 := RK4{}.Step(f, uav.State{1}, 0, dt)

	errEuler := math.Abs(euler[0] - exact)
	errRK4 := math.Abs(rk4[0] - exact)
	if errRK4 >= errEuler {
		t.Errorf("rk4 error %e not better than euler error %e", errRK4, errEuler)
	}
	if errRK4 > 1e-7 {
		t.Errorf("rk4 error %e too large for dt=%.2f", errRK4, dt)
	}
}

func TestNewIntegratorSelection(t *testing.T) {
	if _, ok := NewIntegrator("euler").(Euler); !ok {
		t.Error(`NewIntegrator("euler") is not Euler`)
	}
	if _, ok := NewIntegrator("rk4").(RK4); !ok {
		t.Error(`NewIntegrator("rk4") is not RK4`)
	}
	if _, ok := NewIntegrator("").(RK4); !ok {
		t.Error("default integrator is not RK4")
	}
}
