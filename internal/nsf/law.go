package nsf

import (
	"math"
)

// controlLaw combines tracking errors, feed-forward and the disturbance
// estimates into the saturated feedback vector and its body-frame
// projection.
type controlLaw struct {
	nominalMass float64
	gravity     float64
	motorA      float64 // thrust curve: hover = sqrt(m*g)*A + B
	motorB      float64

	sat saturator
}

type lawInput struct {
	ep, ev Vec3
	ref    Reference

	roll, pitch, yaw float64

	gains Gains

	worldInt Vec2
	bodyInt  Vec2
	massDiff float64
}

type lawOutput struct {
	fbWorld Vec3 // saturated; x/y tilt angles, z thrust
	fbBody  Vec2
	flags   satFlags

	hover     float64
	totalMass float64
}

// compute evaluates one tick of the feedback law. The hover thrust is
// recomputed from the current total mass estimate every tick so the mass
// estimator feeds straight back into the vertical channel.
func (l *controlLaw) compute(in lawInput) lawOutput {
	g := in.gains

	totalMass := l.nominalMass + in.massDiff
	hover := math.Sqrt(totalMass*l.gravity)*l.motorA + l.motorB

	// body integral expressed in the world frame
	bodyIntWorld := in.bodyInt.Rotate(-in.yaw)

	cosTilt := math.Cos(in.roll) * math.Cos(in.pitch)

	// the lateral reference acceleration maps to a tilt angle; the y
	// axis carries the handedness flip of the reference inputs
	ff := Vec3{
		l.sat.asin("feed_forward[x]", in.ref.Acceleration[0]*cosTilt/l.gravity),
		l.sat.asin("feed_forward[y]", -in.ref.Acceleration[1]*cosTilt/l.gravity),
		in.ref.Acceleration[2] * hover / l.gravity,
	}

	kp := Vec3{g.KpXY, g.KpXY, g.KpZ}
	kv := Vec3{g.KvXY, g.KvXY, g.KvZ}
	ka := Vec3{g.KaXY, g.KaXY, g.KaZ}

	var fb Vec3
	for i := range fb {
		fb[i] = kp[i]*in.ep[i] + kv[i]*in.ev[i] + ka[i]*ff[i]
	}
	fb[0] += in.worldInt[0] + bodyIntWorld[0]
	fb[1] += in.worldInt[1] + bodyIntWorld[1]
	fb[2] += hover

	// tilting redirects thrust away from vertical; compensate
	fb[2] /= cosTilt

	var out lawOutput
	out.hover = hover
	out.totalMass = totalMass
	out.fbWorld[0], out.flags.x = l.sat.clamp("feedback_w[x]", fb[0], -g.MaxTilt, g.MaxTilt)
	out.fbWorld[1], out.flags.y = l.sat.clamp("feedback_w[y]", fb[1], -g.MaxTilt, g.MaxTilt)
	// the thrust floor is 0, not symmetric
	out.fbWorld[2], out.flags.z = l.sat.clamp("feedback_w[z]", fb[2], 0, g.ThrustSaturation)

	if out.flags.z {
		l.sat.warn.Warnf("thrust saturated to %.2f", out.fbWorld[2])
	}

	// the tilt command is issued in the body frame
	out.fbBody = out.fbWorld.XY().Rotate(in.yaw)

	return out
}
