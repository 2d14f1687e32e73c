package pid

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/uavctl/internal/logging"
	"github.com/san-kum/uavctl/internal/nsf"
)

// Per-axis constants of the attitude variant. The integral limit and
// derivative filter are not exposed as configuration.
const (
	integralLimit  = 0.1
	derivFilter    = 0.99
	thrustPidLimit = 1.0
	minDt          = 0.001
)

// Params configures the three-axis PID attitude controller.
type Params struct {
	KpXY, KdXY, KiXY float64
	KpZ, KdZ, KiZ    float64

	HoverThrust float64
	MaxTilt     float64 // radians
}

// Controller is the proportional-integral-derivative attitude variant: a
// degenerate special case of the state-feedback controller with one PID
// per translation axis and no disturbance estimation.
type Controller struct {
	params Params
	log    *zap.SugaredLogger

	mu         sync.Mutex
	x, y, z    *Pid
	firstTick  bool
	lastUpdate time.Time
	lastOutput *nsf.Command
}

func NewController(p Params, log *zap.SugaredLogger) *Controller {
	warn := logging.NewThrottle(log, time.Second)
	return &Controller{
		params:    p,
		log:       log,
		x:         New("x", p.KpXY, p.KdXY, p.KiXY, integralLimit, p.MaxTilt, derivFilter, warn),
		y:         New("y", p.KpXY, p.KdXY, p.KiXY, integralLimit, p.MaxTilt, derivFilter, warn),
		z:         New("z", p.KpZ, p.KdZ, p.KiZ, integralLimit, thrustPidLimit, derivFilter, warn),
		firstTick: true,
	}
}

// SetGains retunes all three axes at once.
func (c *Controller) SetGains(p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p
	c.x.SetGains(p.KpXY, p.KdXY, p.KiXY)
	c.y.SetGains(p.KpXY, p.KdXY, p.KiXY)
	c.z.SetGains(p.KpZ, p.KdZ, p.KiZ)
}

// Update runs one control tick. The first tick resets the PIDs against
// the current error and emits no command.
func (c *Controller) Update(state nsf.VehicleState, ref nsf.Reference) *nsf.Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	errX := ref.Position[0] - state.Position[0]
	errY := ref.Position[1] - state.Position[1]
	errZ := ref.Position[2] - state.Position[2]

	if c.firstTick {
		c.x.Reset(errX)
		c.y.Reset(errY)
		c.z.Reset(errZ)
		c.lastUpdate = state.Timestamp
		c.firstTick = false
		c.log.Info("first iteration, resetting the pids")
		return nil
	}

	dt := state.Timestamp.Sub(c.lastUpdate).Seconds()
	if dt <= minDt {
		c.log.Warnf("update called with too small dt (%.4f s)", dt)
		if c.lastOutput == nil {
			return nil
		}
		cmd := *c.lastOutput
		return &cmd
	}
	c.lastUpdate = state.Timestamp

	actionX := c.x.Update(errX, dt)
	actionY := c.y.Update(errY, dt)
	actionZ := (c.z.Update(errZ, dt) + c.params.HoverThrust) / (math.Cos(state.Roll) * math.Cos(state.Pitch))

	sinYaw, cosYaw := math.Sincos(state.Yaw)

	cmd := &nsf.Command{
		Timestamp: time.Now(),
		TiltPitch: actionX*cosYaw - actionY*sinYaw,
		TiltRoll:  actionY*cosYaw + actionX*sinYaw,
		Yaw:       ref.Yaw,
		Thrust:    actionZ,
		TotalMass: 0,
		Mode:      nsf.ModeEulerAttitude,
	}

	stored := *cmd
	c.lastOutput = &stored
	return cmd
}
