// Package nsf implements a nonlinear state-feedback attitude controller
// for a multirotor vehicle with online disturbance estimation.
//
// The controller turns a position/velocity/acceleration reference and the
// estimated vehicle state into an attitude-and-thrust command once per
// control tick:
//
//   - [Controller]: lifecycle state machine and per-tick pipeline
//   - [Gains]: the live, rate-limit-filtered gain set
//   - [Command]: the attitude/thrust output handed back to the caller
//
// Disturbances are estimated by two integrators, one in the world frame
// (anti-windup gated against feedback saturation) and one in the body
// frame, plus a scalar mass-difference estimator driven by vertical
// tracking error. All three persist across activation cycles; only the
// mass difference is cleared on deactivation.
//
// # Gain filtering
//
// Desired gains arrive asynchronously. A fixed-rate filter moves the live
// gains toward the desired set at a bounded fractional rate per tick, so
// retuning never produces a discontinuous command jump:
//
//	ctrl.SetDesiredGains(g)
//	go ctrl.RunGainFilter(ctx, clock.New())
//
// # Thread safety
//
// Update, Activate, Deactivate, SwitchFrame, SetDesiredGains and the gain
// filter may all run concurrently. The control tick reads one consistent
// gain snapshot and never blocks on the filter.
package nsf
