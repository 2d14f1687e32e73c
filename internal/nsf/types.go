package nsf

import (
	"errors"
	"math"
	"time"
)

// Domain errors for controller operations.
var (
	// ErrNoSeed indicates activation without the previous controller's
	// command; there is no other source for the mass difference and
	// integrator seeds.
	ErrNoSeed = errors.New("nsf: activation requires the previous controller command")
)

// ModeEulerAttitude is the only output mode this controller produces:
// euler attitude plus collective thrust.
const ModeEulerAttitude = "euler_attitude+thrust"

type Vec2 [2]float64

type Vec3 [3]float64

// Rotate returns v rotated by angle radians (counterclockwise).
func (v Vec2) Rotate(angle float64) Vec2 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Vec2{c*v[0] - s*v[1], s*v[0] + c*v[1]}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vec3) XY() Vec2 {
	return Vec2{v[0], v[1]}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// VehicleState is the estimated state consumed once per control tick.
type VehicleState struct {
	Timestamp time.Time
	FrameID   string
	Position  Vec3
	Velocity  Vec3
	Roll      float64
	Pitch     float64
	Yaw       float64
}

// Reference is the tracking reference consumed once per control tick.
type Reference struct {
	Position     Vec3
	Velocity     Vec3
	Acceleration Vec3
	Yaw          float64

	// DisablePositionGains mutes the lateral gains while set; the
	// mute-off transition restores them within a single filter tick.
	DisablePositionGains bool
}

// Command is the controller output. A fresh value is produced each tick
// and ownership passes to the caller.
type Command struct {
	Timestamp time.Time

	TiltPitch float64
	TiltRoll  float64
	Yaw       float64
	Thrust    float64 // normalized actuator range [0, 1]

	MassDifference float64
	TotalMass      float64

	// Disturbance force estimates in newtons, body and world frame.
	BodyDisturbance  Vec2
	WorldDisturbance Vec2

	Mode string
}

// Status is the controller's answer to a status query.
type Status struct {
	Active bool
}

// TransformFunc re-expresses a vector from one frame in another. It is
// supplied by the coordinate-transform collaborator during frame switches.
type TransformFunc func(fromFrame, toFrame string, v Vec2) (Vec2, error)
