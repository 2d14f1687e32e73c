package nsf

import (
	"math"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/uavctl/internal/logging"
)

func TestNSF(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "attitude controller suite")
}

var _ = Describe("the activated controller", func() {
	var (
		ctrl *Controller
		t0   time.Time
	)

	BeforeEach(func() {
		ctrl = New(testParams(), logging.Nop())
		Expect(ctrl.Activate(&Command{Thrust: 0.5, TotalMass: 1.0, Mode: ModeEulerAttitude})).To(Succeed())
		t0 = time.Now()
		Expect(ctrl.Update(levelState(t0), Reference{})).NotTo(BeNil())
	})

	It("drives the tilt command toward the position error", func() {
		cmd := ctrl.Update(levelState(t0.Add(10*time.Millisecond)), Reference{Position: Vec3{1, 0, 0}})
		Expect(cmd).NotTo(BeNil())
		Expect(cmd.TiltPitch).To(BeNumerically(">", 0))
		Expect(cmd.TiltRoll).To(BeNumerically("~", 0, 1e-9))
	})

	It("never exceeds the tilt and thrust constraints", func() {
		cmd := ctrl.Update(levelState(t0.Add(10*time.Millisecond)), Reference{Position: Vec3{100, -100, 100}})
		Expect(math.Abs(cmd.TiltPitch)).To(BeNumerically("<=", 3))
		Expect(math.Abs(cmd.TiltRoll)).To(BeNumerically("<=", 3))
		Expect(cmd.Thrust).To(BeNumerically(">=", 0))
		Expect(cmd.Thrust).To(BeNumerically("<=", 1))
	})

	It("stays finite when the vehicle state is corrupt", func() {
		state := levelState(t0.Add(10 * time.Millisecond))
		state.Velocity = Vec3{math.Inf(1), math.NaN(), 0}
		cmd := ctrl.Update(state, Reference{Position: Vec3{1, 1, 1}})
		Expect(cmd).NotTo(BeNil())
		Expect(math.IsNaN(cmd.TiltPitch)).To(BeFalse())
		Expect(math.IsNaN(cmd.TiltRoll)).To(BeFalse())
		Expect(math.IsNaN(cmd.Thrust)).To(BeFalse())
	})

	Describe("gain retuning", func() {
		It("converges the live gains to the desired set", func() {
			desired := testParams().Gains
			desired.KpXY = 4
			ctrl.SetDesiredGains(desired)

			for i := 0; i < 100; i++ {
				ctrl.FilterGains()
			}
			Expect(ctrl.GainSnapshot().KpXY).To(BeNumerically("~", 4, 1e-9))
		})

		It("restores muted lateral gains in a single filter tick", func() {
			ctrl.Update(levelState(t0.Add(10*time.Millisecond)), Reference{DisablePositionGains: true})
			ctrl.FilterGains()
			Expect(ctrl.GainSnapshot().KpXY).To(BeNumerically("<", 1))

			ctrl.Update(levelState(t0.Add(20*time.Millisecond)), Reference{})
			ctrl.FilterGains()
			Expect(ctrl.GainSnapshot().KpXY).To(Equal(2.0))
		})
	})

	Describe("frame switching", func() {
		It("carries the world integral through the transform", func() {
			ctrl.ResetDisturbanceEstimators()
			ctrl.est.worldInt = Vec2{0.1, 0.2}

			ctrl.SwitchFrame("odom", func(from, to string, v Vec2) (Vec2, error) {
				return Vec2{-v[0], -v[1]}, nil
			})

			world, _, _ := ctrl.Disturbances()
			Expect(world).To(Equal(Vec2{-0.1, -0.2}))
		})
	})
})
