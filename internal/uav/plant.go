// Package uav provides a point-mass multirotor plant used to close the
// loop around the controllers in simulation.
//
// The plant integrates translational dynamics driven by the attitude and
// thrust command: tilt redirects the thrust vector laterally, attitude
// tracks the command through a first-order lag, and the motor thrust
// curve is inverted to recover force from the normalized thrust.
package uav

import (
	"math"

	"github.com/san-kum/uavctl/internal/nsf"
)

// State vector layout.
const (
	X = iota
	Y
	Z
	VX
	VY
	VZ
	Roll
	Pitch
	Yaw
	StateDim
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Plant is the simulated vehicle. Commands are applied with zero-order
// hold between control ticks.
type Plant struct {
	Mass    float64
	Gravity float64

	// thrust curve: thrust = sqrt(force)*MotorA + MotorB
	MotorA float64
	MotorB float64

	AttitudeTau float64 // attitude lag time constant
	YawTau      float64
	Drag        float64

	cmd nsf.Command
}

func NewPlant(mass, gravity, motorA, motorB float64) *Plant {
	return &Plant{
		Mass:        mass,
		Gravity:     gravity,
		MotorA:      motorA,
		MotorB:      motorB,
		AttitudeTau: 0.15,
		YawTau:      0.4,
		Drag:        0.1,
	}
}

// Apply sets the command held until the next one arrives.
func (p *Plant) Apply(cmd nsf.Command) {
	p.cmd = cmd
}

// Command returns the currently held command.
func (p *Plant) Command() nsf.Command {
	return p.cmd
}

// HoverThrust is the normalized thrust that balances gravity.
func (p *Plant) HoverThrust() float64 {
	return math.Sqrt(p.Mass*p.Gravity)*p.MotorA + p.MotorB
}

// Force inverts the motor thrust curve.
func (p *Plant) Force(thrust float64) float64 {
	if thrust <= p.MotorB {
		return 0
	}
	r := (thrust - p.MotorB) / p.MotorA
	return r * r
}

// Derivative evaluates the plant ODE at state x.
func (p *Plant) Derivative(x State, t float64) State {
	roll, pitch, yaw := x[Roll], x[Pitch], x[Yaw]

	// the tilt command lives in the controller's body frame with a
	// flipped lateral axis; undo the yaw rotation and the flip to get
	// world-frame accelerations
	sinYaw, cosYaw := math.Sincos(yaw)
	tiltWX := pitch*cosYaw + roll*sinYaw
	tiltWY := -pitch*sinYaw + roll*cosYaw

	ax := p.Gravity*math.Tan(tiltWX) - p.Drag*x[VX]
	ay := -p.Gravity*math.Tan(tiltWY) - p.Drag*x[VY]

	force := p.Force(p.cmd.Thrust)
	az := force*math.Cos(roll)*math.Cos(pitch)/p.Mass - p.Gravity - p.Drag*x[VZ]

	d := make(State, StateDim)
	d[X] = x[VX]
	d[Y] = x[VY]
	d[Z] = x[VZ]
	d[VX] = ax
	d[VY] = ay
	d[VZ] = az
	d[Roll] = (p.cmd.TiltRoll - roll) / p.AttitudeTau
	d[Pitch] = (p.cmd.TiltPitch - pitch) / p.AttitudeTau
	d[Yaw] = wrapAngle(p.cmd.Yaw-yaw) / p.YawTau
	return d
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
