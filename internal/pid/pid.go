// Package pid implements the single-axis PID used by the simpler
// attitude controller variant: exponentially filtered derivative, output
// saturation and directional anti-windup.
package pid

import (
	"math"

	"github.com/san-kum/uavctl/internal/logging"
)

// Pid is one axis of the controller. Not safe for concurrent use; each
// axis belongs to exactly one control loop.
type Pid struct {
	name string

	kp float64
	kd float64
	ki float64

	filterConst   float64 // exponential smoothing of the derivative
	integralLimit float64
	outputLimit   float64

	integral  float64
	lastError float64

	warn *logging.Throttle
}

func New(name string, kp, kd, ki, integralLimit, outputLimit, filterConst float64, warn *logging.Throttle) *Pid {
	return &Pid{
		name:          name,
		kp:            kp,
		kd:            kd,
		ki:            ki,
		filterConst:   filterConst,
		integralLimit: integralLimit,
		outputLimit:   outputLimit,
		warn:          warn,
	}
}

// SetGains replaces the proportional, derivative and integral gains.
func (p *Pid) SetGains(kp, kd, ki float64) {
	p.kp = kp
	p.kd = kd
	p.ki = ki
}

// Update runs one PID step and returns the saturated control action.
func (p *Pid) Update(errVal, dt float64) float64 {
	difference := p.filterConst*p.lastError + (1-p.filterConst)*((errVal-p.lastError)/dt)
	p.lastError = errVal

	output := p.kp*errVal + p.kd*difference + p.ki*p.integral

	saturated := false
	if math.IsNaN(output) || math.IsInf(output, 0) {
		output = 0
		p.warn.Warnf("non-finite output in the %q PID, resetting to 0", p.name)
	} else if output > p.outputLimit {
		output = p.outputLimit
		saturated = true
	} else if output < -p.outputLimit {
		output = -p.outputLimit
		saturated = true
	}

	if saturated {
		p.warn.Warnf("the %q PID is saturated", p.name)
		// integrate only against the saturation direction
		if (output > 0 && errVal < 0) || (output < 0 && errVal > 0) {
			p.integral += errVal
		}
	} else {
		p.integral += errVal
	}

	if math.IsNaN(p.integral) || math.IsInf(p.integral, 0) {
		p.integral = 0
		p.warn.Warnf("non-finite integral in the %q PID, resetting to 0", p.name)
	} else if p.integral > p.integralLimit {
		p.integral = p.integralLimit
		p.warn.Warnf("the %q PID integral is saturated", p.name)
	} else if p.integral < -p.integralLimit {
		p.integral = -p.integralLimit
		p.warn.Warnf("the %q PID integral is saturated", p.name)
	}

	return output
}

// Reset clears the integral and primes the derivative filter.
func (p *Pid) Reset(lastError float64) {
	p.integral = 0
	p.lastError = lastError
}
