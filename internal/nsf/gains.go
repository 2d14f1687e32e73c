package nsf

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/san-kum/uavctl/internal/logging"
)

// Gains is the full tunable surface of the controller. The live set is an
// immutable snapshot swapped atomically by the gain filter; the control
// tick reads exactly one snapshot per tick.
type Gains struct {
	// lateral
	KpXY  float64
	KvXY  float64
	KaXY  float64
	KiwXY float64 // world integral gain
	KibXY float64 // body integral gain

	// vertical
	KpZ float64
	KvZ float64
	KaZ float64

	// mass-difference estimator
	Km    float64
	KmLim float64 // kg

	// integrator limits (tilt-angle representation, radians)
	KiwLim float64
	KibLim float64

	// constraints
	MaxTilt          float64 // radians
	ThrustSaturation float64
}

// gainFilter advances the live gains toward the desired set at a bounded
// fractional rate per tick, so operator retuning never produces a
// discontinuous command jump.
type gainFilter struct {
	live    atomic.Pointer[Gains]
	desired atomic.Pointer[Gains]

	rateHz    float64
	maxChange float64 // fraction per tick, derived once at startup
	minChange float64
	muteCoeff float64

	mu          sync.Mutex
	mute        bool
	afterToggle bool // one-shot rate-limit bypass after mute-off

	info *logging.Throttle
}

func newGainFilter(initial Gains, rateHz, percChangeRate, minChangeRate, muteCoeff float64, info *logging.Throttle) *gainFilter {
	f := &gainFilter{
		rateHz:    rateHz,
		maxChange: percChangeRate / rateHz,
		minChange: minChangeRate / rateHz,
		muteCoeff: muteCoeff,
		info:      info,
	}
	live, des := initial, initial
	f.live.Store(&live)
	f.desired.Store(&des)
	return f
}

// Snapshot returns the current live gain set.
func (f *gainFilter) Snapshot() Gains {
	return *f.live.Load()
}

// SetDesired replaces the target gain set.
func (f *gainFilter) SetDesired(g Gains) {
	f.desired.Store(&g)
}

// Desired returns the current target gain set.
func (f *gainFilter) Desired() Gains {
	return *f.desired.Load()
}

// setMute tracks the lateral-gain mute flag. The transition from muted
// back to unmuted arms a single-tick rate-limit bypass so the next filter
// tick restores full gains immediately instead of ramping.
func (f *gainFilter) setMute(mute bool) {
	f.mu.Lock()
	if f.mute && !mute {
		f.afterToggle = true
	}
	f.mute = mute
	f.mu.Unlock()
}

// Tick advances every live gain one filter step toward its desired value.
func (f *gainFilter) Tick() {
	f.mu.Lock()
	bypass := f.mute || f.afterToggle
	f.afterToggle = false
	coeff := 1.0
	if f.mute {
		coeff = f.muteCoeff
	}
	f.mu.Unlock()

	cur := *f.live.Load()
	des := *f.desired.Load()

	next := cur
	next.KpXY = f.advance(cur.KpXY, des.KpXY*coeff, bypass, "kpxy")
	next.KvXY = f.advance(cur.KvXY, des.KvXY*coeff, bypass, "kvxy")
	next.KaXY = f.advance(cur.KaXY, des.KaXY*coeff, bypass, "kaxy")
	next.KiwXY = f.advance(cur.KiwXY, des.KiwXY*coeff, bypass, "kiwxy")
	next.KibXY = f.advance(cur.KibXY, des.KibXY*coeff, bypass, "kibxy")
	next.KpZ = f.advance(cur.KpZ, des.KpZ, false, "kpz")
	next.KvZ = f.advance(cur.KvZ, des.KvZ, false, "kvz")
	next.KaZ = f.advance(cur.KaZ, des.KaZ, false, "kaz")
	next.Km = f.advance(cur.Km, des.Km, false, "km")
	next.KmLim = f.advance(cur.KmLim, des.KmLim, false, "km_lim")
	next.KiwLim = f.advance(cur.KiwLim, des.KiwLim, false, "kiwxy_lim")
	next.KibLim = f.advance(cur.KibLim, des.KibLim, false, "kibxy_lim")
	next.MaxTilt = f.advance(cur.MaxTilt, des.MaxTilt, false, "max_tilt")
	next.ThrustSaturation = f.advance(cur.ThrustSaturation, des.ThrustSaturation, false, "thrust_saturation")

	f.live.Store(&next)
}

// Run drives Tick at the configured rate until ctx is done.
func (f *gainFilter) Run(ctx context.Context, clk clock.Clock) {
	ticker := clk.Ticker(time.Duration(float64(time.Second) / f.rateHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Tick()
		}
	}
}

// advance moves current toward desired by at most maxChange as a fraction
// of the current value, falling back to minChange of the full delta so
// the step never collapses to an arbitrarily small value near
// convergence. With bypass the desired value is returned directly.
func (f *gainFilter) advance(current, desired float64, bypass bool, name string) float64 {
	change := desired - current

	if !bypass {
		if math.Abs(current) < 1e-6 {
			// degenerate division below; scale the full delta instead
			change *= f.maxChange
		} else {
			saturated := change

			percChange := (current+saturated)/current - 1
			if percChange > f.maxChange {
				saturated = current * f.maxChange
			} else if percChange < -f.maxChange {
				saturated = current * -f.maxChange
			}

			if math.Abs(saturated) < math.Abs(change)*f.minChange {
				change *= f.minChange
			} else {
				change = saturated
			}
		}
	}

	if math.Abs(change) > 1e-3 {
		f.info.Infof("changing gain %q from %f to %f", name, current, desired)
	}

	return current + change
}
