package nsf

import (
	"math"

	"github.com/san-kum/uavctl/internal/logging"
)

// saturator clamps scalars to configured bounds and absorbs non-finite
// values instead of letting them propagate through the control law.
type saturator struct {
	warn *logging.Throttle
}

// clamp bounds v to [lo, hi]. A non-finite input yields (0, false) and a
// throttled warning; saturated is true iff clamping changed the value.
func (s saturator) clamp(name string, v, lo, hi float64) (out float64, saturated bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s.warn.Errorf("non-finite value in %q, resetting to 0", name)
		return 0, false
	}
	if v > hi {
		return hi, true
	}
	if v < lo {
		return lo, true
	}
	return v, false
}

// asin is math.Asin with the out-of-domain case treated as a recoverable
// numeric fault producing 0. Aggressive acceleration references can push
// the feed-forward argument outside [-1, 1].
func (s saturator) asin(name string, x float64) float64 {
	v := math.Asin(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s.warn.Errorf("non-finite value in %q, resetting to 0", name)
		return 0
	}
	return v
}
