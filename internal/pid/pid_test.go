package pid

import (
	"math"
	"testing"
	"time"

	"github.com/san-kum/uavctl/internal/logging"
	"github.com/san-kum/uavctl/internal/nsf"
)

func testWarn() *logging.Throttle {
	return logging.NewThrottle(logging.Nop(), time.Second)
}

func TestProportionalAction(t *testing.T) {
	p := New("x", 2, 0, 0, 0.1, 10, derivFilter, testWarn())
	p.Reset(1)

	if got := p.Update(1, 0.01); math.Abs(got-2) > 1e-12 {
		t.Errorf("Update(1) = %f, want 2", got)
	}
}

func TestDerivativeIsFiltered(t *testing.T) {
	// filter constant 0 gives the raw difference quotient
	p := New("x", 0, 1, 0, 0.1, 100, 0, testWarn())
	p.Reset(1)

	if got := p.Update(2, 0.1); math.Abs(got-10) > 1e-12 {
		t.Errorf("raw derivative action = %f, want 10", got)
	}

	// filter constant 1 ignores the quotient entirely
	p = New("x", 0, 1, 0, 0.1, 100, 1, testWarn())
	p.Reset(3)

	if got := p.Update(100, 0.1); math.Abs(got-3) > 1e-12 {
		t.Errorf("fully filtered derivative action = %f, want 3", got)
	}
}

func TestOutputSaturation(t *testing.T) {
	p := New("x", 10, 0, 0, 0.1, 1, derivFilter, testWarn())
	p.Reset(5)

	if got := p.Update(5, 0.01); got != 1 {
		t.Errorf("saturated output = %f, want 1", got)
	}
	p.Reset(-5)
	if got := p.Update(-5, 0.01); got != -1 {
		t.Errorf("saturated output = %f, want -1", got)
	}
}

func TestDirectionalAntiWindup(t *testing.T) {
	p := New("x", 10, 0, 1, 50, 1, derivFilter, testWarn())
	p.Reset(5)

	// saturated in the error's direction: the integral must not grow
	p.Update(5, 0.01)
	if p.integral != 0 {
		t.Errorf("integral grew to %f while saturated with the error", p.integral)
	}

	// saturated against the error still integrates
	p.integral = 40 // output = 10*(-0.5) + 40 = 35, clipped to +1, errVal < 0
	p.Update(-0.5, 0.01)
	if p.integral != 39.5 {
		t.Errorf("integral = %f, want 39.5", p.integral)
	}
}

func TestIntegralClamp(t *testing.T) {
	p := New("x", 0.01, 0, 1, 0.1, 10, derivFilter, testWarn())
	p.Reset(1)

	for i := 0; i < 20; i++ {
		p.Update(1, 0.01)
	}
	if p.integral != 0.1 {
		t.Errorf("integral = %f, want the limit 0.1", p.integral)
	}
}

func TestNonFiniteErrorResets(t *testing.T) {
	p := New("x", 1, 0, 1, 0.1, 10, derivFilter, testWarn())
	p.Reset(0)

	if got := p.Update(math.NaN(), 0.01); got != 0 {
		t.Errorf("output = %f for a NaN error, want 0", got)
	}
	if p.integral != 0 {
		t.Errorf("integral = %f after a NaN error, want 0", p.integral)
	}
}

func testControllerParams() Params {
	return Params{
		KpXY: 2, KdXY: 0, KiXY: 0,
		KpZ: 1, KdZ: 0, KiZ: 0,
		HoverThrust: 0.5,
		MaxTilt:     0.6,
	}
}

func TestControllerFirstTickEmitsNothing(t *testing.T) {
	c := NewController(testControllerParams(), logging.Nop())

	state := nsf.VehicleState{Timestamp: time.Now()}
	if cmd := c.Update(state, nsf.Reference{Position: nsf.Vec3{1, 0, 0}}); cmd != nil {
		t.Errorf("first tick produced %+v, want nil", cmd)
	}
}

func TestControllerHoverThrustPassthrough(t *testing.T) {
	c := NewController(testControllerParams(), logging.Nop())

	t0 := time.Now()
	c.Update(nsf.VehicleState{Timestamp: t0}, nsf.Reference{})

	cmd := c.Update(nsf.VehicleState{Timestamp: t0.Add(10 * time.Millisecond)}, nsf.Reference{})
	if cmd == nil {
		t.Fatal("no command produced")
	}
	if math.Abs(cmd.Thrust-0.5) > 1e-12 {
		t.Errorf("thrust = %f at zero error, want the hover thrust 0.5", cmd.Thrust)
	}
	if cmd.Mode != nsf.ModeEulerAttitude {
		t.Errorf("mode = %q", cmd.Mode)
	}
}

func TestControllerYawRotation(t *testing.T) {
	c := NewController(testControllerParams(), logging.Nop())

	t0 := time.Now()
	state := nsf.VehicleState{Timestamp: t0, Yaw: math.Pi / 2}
	c.Update(state, nsf.Reference{Position: nsf.Vec3{0.1, 0, 0}})

	state.Timestamp = t0.Add(10 * time.Millisecond)
	cmd := c.Update(state, nsf.Reference{Position: nsf.Vec3{0.1, 0, 0}})
	if cmd == nil {
		t.Fatal("no command produced")
	}

	// at 90 degrees yaw an x error maps onto the roll channel
	if math.Abs(cmd.TiltPitch) > 1e-9 {
		t.Errorf("tilt pitch = %f, want 0", cmd.TiltPitch)
	}
	if math.Abs(cmd.TiltRoll-0.2) > 1e-9 {
		t.Errorf("tilt roll = %f, want 0.2", cmd.TiltRoll)
	}
}

func TestControllerTinyDtReturnsLastOutput(t *testing.T) {
	c := NewController(testControllerParams(), logging.Nop())

	t0 := time.Now()
	state := nsf.VehicleState{Timestamp: t0}
	c.Update(state, nsf.Reference{})

	// no real tick has run yet: nothing to repeat
	if cmd := c.Update(state, nsf.Reference{}); cmd != nil {
		t.Errorf("tiny-dt tick produced %+v with no previous output", cmd)
	}

	state.Timestamp = t0.Add(10 * time.Millisecond)
	first := c.Update(state, nsf.Reference{Position: nsf.Vec3{1, 0, 0}})

	second := c.Update(state, nsf.Reference{Position: nsf.Vec3{-1, 0, 0}})
	if second == nil || *second != *first {
		t.Errorf("tiny-dt command %+v differs from the previous output %+v", second, first)
	}
}
