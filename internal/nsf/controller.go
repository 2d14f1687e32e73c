package nsf

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/san-kum/uavctl/internal/logging"
)

// minDt is the duplicate/out-of-order state guard. Ticks closer together
// than this reuse the previous output and mutate nothing.
const minDt = 0.001

// Params is the validated startup configuration of the controller.
type Params struct {
	UAVMass float64 // kg, nominal
	Gravity float64 // m/s^2

	// motor thrust curve: hover = sqrt(mass*g)*MotorA + MotorB
	MotorA float64
	MotorB float64

	Gains Gains // initial live and desired gain set

	LateralMuteCoeff float64

	FilterRateHz        float64
	FilterChangeRate    float64 // fraction per second
	FilterMinChangeRate float64
}

// Controller is the orchestrator: an Inactive/Active state machine
// driving the per-tick error -> law -> saturation -> estimator pipeline.
type Controller struct {
	params Params
	log    *zap.SugaredLogger
	warn   *logging.Throttle
	report *logging.Throttle

	filter *gainFilter
	est    *disturbanceEstimator
	law    *controlLaw

	mu            sync.Mutex
	active        bool
	firstTick     bool
	lastUpdate    time.Time
	lastState     *VehicleState
	activationCmd *Command
	lastOutput    *Command
}

// New builds an inactive controller from validated parameters.
func New(p Params, log *zap.SugaredLogger) *Controller {
	warn := logging.NewThrottle(log, time.Second)
	sat := saturator{warn: warn}
	return &Controller{
		params: p,
		log:    log,
		warn:   warn,
		report: logging.NewThrottle(log, 5*time.Second),
		filter: newGainFilter(p.Gains, p.FilterRateHz, p.FilterChangeRate, p.FilterMinChangeRate, p.LateralMuteCoeff, logging.NewThrottle(log, time.Second)),
		est:    newDisturbanceEstimator(sat),
		law: &controlLaw{
			nominalMass: p.UAVMass,
			gravity:     p.Gravity,
			motorA:      p.MotorA,
			motorB:      p.MotorB,
			sat:         sat,
		},
	}
}

// Activate seeds the controller from the previous controller's command
// and transitions to Active. Without a seed there is no source for the
// mass difference or the integrators, so activation fails.
func (c *Controller) Activate(prev *Command) error {
	if prev == nil {
		c.log.Warn("activated without the last controller's command")
		return ErrNoSeed
	}

	c.est.seed(prev, c.params.Gravity)

	seed := *prev
	c.mu.Lock()
	c.activationCmd = &seed
	c.firstTick = true
	c.active = true
	c.mu.Unlock()

	c.log.Infof("activated: mass difference %.2f kg, body disturbance (%.2f, %.2f) N, world disturbance (%.2f, %.2f) N",
		prev.MassDifference, prev.BodyDisturbance[0], prev.BodyDisturbance[1], prev.WorldDisturbance[0], prev.WorldDisturbance[1])
	return nil
}

// Deactivate transitions to Inactive. The mass-difference estimate is
// cleared; the disturbance integrals survive for the next activation.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	c.active = false
	c.firstTick = false
	c.mu.Unlock()

	c.est.resetMass()
	c.log.Info("deactivated")
}

// Active reports whether the controller is producing commands.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Status answers a status query.
func (c *Controller) Status() Status {
	return Status{Active: c.Active()}
}

// Update runs one control tick. It returns nil while inactive. The
// returned command is freshly allocated and owned by the caller.
func (c *Controller) Update(state VehicleState, ref Reference) *Command {
	c.mu.Lock()
	snapshot := state
	c.lastState = &snapshot

	if !c.active {
		c.mu.Unlock()
		return nil
	}

	if c.firstTick {
		// bootstrap tick: dt is undefined until a second state
		// arrives, so replay the activation command verbatim
		c.lastUpdate = state.Timestamp
		c.firstTick = false
		cmd := *c.activationCmd
		c.mu.Unlock()
		return &cmd
	}

	dt := state.Timestamp.Sub(c.lastUpdate).Seconds()
	if dt <= minDt {
		// duplicate or out-of-order state; reuse the last output,
		// touch nothing
		var cmd Command
		if c.lastOutput != nil {
			cmd = *c.lastOutput
		} else {
			cmd = *c.activationCmd
		}
		c.mu.Unlock()
		c.warn.Warnf("vehicle state arrived too close to the previous one (dt=%.4f s)", dt)
		return &cmd
	}
	c.lastUpdate = state.Timestamp
	c.mu.Unlock()

	c.filter.setMute(ref.DisablePositionGains)

	gains := c.filter.Snapshot()

	// the reference and state use opposite-handed lateral frames; the
	// y axis is negated on the way in and the tilt command carries the
	// flip back out
	rp := Vec3{ref.Position[0], -ref.Position[1], ref.Position[2]}
	rv := Vec3{ref.Velocity[0], -ref.Velocity[1], ref.Velocity[2]}
	op := Vec3{state.Position[0], -state.Position[1], state.Position[2]}
	ov := Vec3{state.Velocity[0], -state.Velocity[1], state.Velocity[2]}

	ep := rp.Sub(op)
	ev := rv.Sub(ov)

	worldInt, bodyInt, massDiff := c.est.snapshot()

	out := c.law.compute(lawInput{
		ep:       ep,
		ev:       ev,
		ref:      ref,
		roll:     state.Roll,
		pitch:    state.Pitch,
		yaw:      state.Yaw,
		gains:    gains,
		worldInt: worldInt,
		bodyInt:  bodyInt,
		massDiff: massDiff,
	})

	epBody := ep.XY().Rotate(state.Yaw)
	c.est.update(ep, epBody, out.fbWorld, out.flags, gains, dt)

	worldInt, bodyInt, massDiff = c.est.snapshot()
	hoverForce := c.params.Gravity * out.totalMass

	cmd := &Command{
		Timestamp:      time.Now(),
		TiltPitch:      out.fbBody[0],
		TiltRoll:       out.fbBody[1],
		Yaw:            ref.Yaw,
		Thrust:         out.fbWorld[2],
		MassDifference: massDiff,
		TotalMass:      out.totalMass,
		BodyDisturbance: Vec2{
			hoverForce * math.Sin(bodyInt[0]),
			hoverForce * math.Sin(bodyInt[1]),
		},
		WorldDisturbance: Vec2{
			hoverForce * math.Sin(worldInt[0]),
			hoverForce * math.Sin(worldInt[1]),
		},
		Mode: ModeEulerAttitude,
	}

	c.report.Infof("disturbances: world (%.2f, %.2f) N, body (%.2f, %.2f) N, mass difference %.3f kg",
		cmd.WorldDisturbance[0], cmd.WorldDisturbance[1], cmd.BodyDisturbance[0], cmd.BodyDisturbance[1], massDiff)

	stored := *cmd
	c.mu.Lock()
	c.lastOutput = &stored
	c.mu.Unlock()

	return cmd
}

// SwitchFrame re-projects the world disturbance integral into the target
// reference frame, using the frame of the last seen vehicle state as the
// source. On transform failure the integral degrades to zero.
func (c *Controller) SwitchFrame(targetFrame string, transform TransformFunc) {
	c.mu.Lock()
	fromFrame := ""
	if c.lastState != nil {
		fromFrame = c.lastState.FrameID
	}
	c.mu.Unlock()

	c.log.Infof("switching reference frame to %q", targetFrame)

	if err := c.est.transformWorld(fromFrame, targetFrame, transform); err != nil {
		c.warn.Errorf("could not transform the world integral to the new frame: %v", err)
	}
}

// ResetDisturbanceEstimators zeroes both disturbance integrals.
func (c *Controller) ResetDisturbanceEstimators() {
	c.est.reset()
}

// Disturbances reports the current integrals (tilt-angle representation)
// and mass-difference estimate.
func (c *Controller) Disturbances() (world, body Vec2, massDiff float64) {
	return c.est.snapshot()
}

// SetDesiredGains hands a new target gain set to the filter. The live
// gains converge at the configured bounded rate.
func (c *Controller) SetDesiredGains(g Gains) {
	c.filter.SetDesired(g)
	c.log.Info("desired gains updated")
}

// GainSnapshot returns the live gain set used by the next tick.
func (c *Controller) GainSnapshot() Gains {
	return c.filter.Snapshot()
}

// FilterGains advances the gain filter one tick. Normally driven by
// RunGainFilter; exposed for callers with their own scheduling.
func (c *Controller) FilterGains() {
	c.filter.Tick()
}

// RunGainFilter drives the gain filter at its configured rate until ctx
// is canceled. Run it on its own goroutine.
func (c *Controller) RunGainFilter(ctx context.Context, clk clock.Clock) {
	c.filter.Run(ctx, clk)
}
