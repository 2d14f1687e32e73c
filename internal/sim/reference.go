package sim

import (
	"math"

	"github.com/san-kum/uavctl/internal/nsf"
)

// ReferenceFunc produces the tracking reference at simulation time t.
type ReferenceFunc func(t float64) nsf.Reference

// Hover holds a fixed position and heading.
func Hover(pos nsf.Vec3, yaw float64) ReferenceFunc {
	return func(t float64) nsf.Reference {
		return nsf.Reference{Position: pos, Yaw: yaw}
	}
}

// StepAt switches from one hold position to another at time t0.
func StepAt(t0 float64, from, to nsf.Vec3, yaw float64) ReferenceFunc {
	return func(t float64) nsf.Reference {
		p := from
		if t >= t0 {
			p = to
		}
		return nsf.Reference{Position: p, Yaw: yaw}
	}
}

// Circle orbits at the given radius and angular rate with analytically
// consistent velocity and acceleration feed-forward.
func Circle(radius, omega, altitude float64) ReferenceFunc {
	return func(t float64) nsf.Reference {
		s, c := math.Sincos(omega * t)
		return nsf.Reference{
			Position:     nsf.Vec3{radius * c, radius * s, altitude},
			Velocity:     nsf.Vec3{-radius * omega * s, radius * omega * c, 0},
			Acceleration: nsf.Vec3{-radius * omega * omega * c, -radius * omega * omega * s, 0},
			Yaw:          math.Atan2(-c, s),
		}
	}
}

// NewReference selects a reference trajectory by name.
func NewReference(name string, altitude float64) ReferenceFunc {
	switch name {
	case "step":
		return StepAt(2.0, nsf.Vec3{0, 0, altitude}, nsf.Vec3{2, 1, altitude + 1}, 0)
	case "circle":
		return Circle(2.0, 0.5, altitude)
	default:
		return Hover(nsf.Vec3{0, 0, altitude}, 0)
	}
}
