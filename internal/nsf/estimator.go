package nsf

import (
	"sync"
)

// satFlags reports which raw-feedback axes were saturated this tick.
type satFlags struct {
	x, y, z bool
}

// disturbanceEstimator owns the world-frame and body-frame error
// integrals and the mass-difference estimator. The integrals are stored
// in the tilt-angle representation; ForceWorld/ForceBody convert to
// newtons for reporting.
//
// The world integral is anti-windup gated: an axis whose feedback is
// saturated in the same direction as its position error stops
// accumulating. The body integral is deliberately not gated and relies on
// its clamp alone.
type disturbanceEstimator struct {
	mu       sync.Mutex
	worldInt Vec2 // world frame
	bodyInt  Vec2 // body frame
	massDiff float64

	sat saturator
}

func newDisturbanceEstimator(sat saturator) *disturbanceEstimator {
	return &disturbanceEstimator{sat: sat}
}

// snapshot returns a consistent copy of all estimator state.
func (e *disturbanceEstimator) snapshot() (world, body Vec2, massDiff float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.worldInt, e.bodyInt, e.massDiff
}

// update runs one estimation step. ep is the world-frame position error,
// epBody its body-frame rotation, fb the saturated feedback vector and
// flags the per-axis saturation results.
func (e *disturbanceEstimator) update(ep Vec3, epBody Vec2, fb Vec3, flags satFlags, g Gains, dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// world integral, gated per axis: integrating further into an
	// already-saturated feedback of the same sign only deepens windup
	gateX, gateY := 1.0, 1.0
	if flags.x && sign(fb[0]) == sign(ep[0]) {
		gateX = 0
	}
	if flags.y && sign(fb[1]) == sign(ep[1]) {
		gateY = 0
	}
	e.worldInt[0] += g.KiwXY * gateX * ep[0] * dt
	e.worldInt[1] += g.KiwXY * gateY * ep[1] * dt
	e.worldInt[0], _ = e.sat.clamp("world_integral[x]", e.worldInt[0], -g.KiwLim, g.KiwLim)
	e.worldInt[1], _ = e.sat.clamp("world_integral[y]", e.worldInt[1], -g.KiwLim, g.KiwLim)

	// body integral, ungated
	e.bodyInt[0] += g.KibXY * epBody[0] * dt
	e.bodyInt[1] += g.KibXY * epBody[1] * dt
	e.bodyInt[0], _ = e.sat.clamp("body_integral[x]", e.bodyInt[0], -g.KibLim, g.KibLim)
	e.bodyInt[1], _ = e.sat.clamp("body_integral[y]", e.bodyInt[1], -g.KibLim, g.KibLim)

	// mass difference, gated on thrust saturation
	if !flags.z {
		e.massDiff += g.Km * ep[2] * dt
	}
	var saturated bool
	e.massDiff, saturated = e.sat.clamp("mass_difference", e.massDiff, -g.KmLim, g.KmLim)
	if saturated {
		e.sat.warn.Warnf("mass difference estimate saturated at %.3f kg", e.massDiff)
	}
}

// seed restores the estimator from the previous controller's command by
// inverting the disturbance-to-tilt relation.
func (e *disturbanceEstimator) seed(cmd *Command, gravity float64) {
	hoverForce := gravity * cmd.TotalMass

	e.mu.Lock()
	defer e.mu.Unlock()
	e.massDiff = cmd.MassDifference
	e.bodyInt[0] = e.sat.asin("seed body_integral[x]", cmd.BodyDisturbance[0]/hoverForce)
	e.bodyInt[1] = e.sat.asin("seed body_integral[y]", cmd.BodyDisturbance[1]/hoverForce)
	e.worldInt[0] = e.sat.asin("seed world_integral[x]", cmd.WorldDisturbance[0]/hoverForce)
	e.worldInt[1] = e.sat.asin("seed world_integral[y]", cmd.WorldDisturbance[1]/hoverForce)
}

// resetMass clears the mass-difference estimate; the integrals survive
// deactivation.
func (e *disturbanceEstimator) resetMass() {
	e.mu.Lock()
	e.massDiff = 0
	e.mu.Unlock()
}

// reset zeroes both disturbance integrals.
func (e *disturbanceEstimator) reset() {
	e.mu.Lock()
	e.worldInt = Vec2{}
	e.bodyInt = Vec2{}
	e.mu.Unlock()
}

// transformWorld re-expresses the world integral in the target frame. The
// transform runs outside the lock; on failure the integral is zeroed
// rather than left in the wrong frame.
func (e *disturbanceEstimator) transformWorld(fromFrame, toFrame string, transform TransformFunc) error {
	e.mu.Lock()
	v := e.worldInt
	e.mu.Unlock()

	out, err := transform(fromFrame, toFrame, v)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.worldInt = Vec2{}
		return err
	}
	e.worldInt = out
	return nil
}
