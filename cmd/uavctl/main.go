package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"text/tabwriter"

	"github.com/benbjohnson/clock"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/uavctl/internal/config"
	"github.com/san-kum/uavctl/internal/logging"
	"github.com/san-kum/uavctl/internal/nsf"
	"github.com/san-kum/uavctl/internal/pid"
	"github.com/san-kum/uavctl/internal/sim"
	"github.com/san-kum/uavctl/internal/store"
	"github.com/san-kum/uavctl/internal/uav"
	"github.com/san-kum/uavctl/internal/viz"
)

var (
	configFile string
	debug      bool

	dt         float64
	duration   float64
	controller string
	reference  string
	altitude   float64
	integrator string
	jsonOut    string
	csvOut     string
	frameRate  int

	gainFrom  float64
	gainTo    float64
	gainTicks int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uavctl",
		Short: "multirotor attitude controller and closed-loop simulation",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "uavctl.yaml", "controller config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the closed loop and print a summary",
		RunE:  runLoop,
	}
	runCmd.Flags().Float64Var(&dt, "dt", 0.01, "control timestep")
	runCmd.Flags().Float64Var(&duration, "time", 20.0, "duration")
	runCmd.Flags().StringVar(&controller, "controller", "nsf", "controller (nsf|pid)")
	runCmd.Flags().StringVar(&reference, "reference", "step", "reference (hover|step|circle)")
	runCmd.Flags().Float64Var(&altitude, "altitude", 2.0, "reference altitude")
	runCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (rk4|euler)")
	runCmd.Flags().StringVar(&jsonOut, "json", "", "export the run to a JSON file")
	runCmd.Flags().StringVar(&csvOut, "csv", "", "export the run to a CSV file")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch the closed loop in the terminal",
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&dt, "dt", 0.01, "control timestep")
	liveCmd.Flags().StringVar(&reference, "reference", "circle", "reference (hover|step|circle)")
	liveCmd.Flags().Float64Var(&altitude, "altitude", 2.0, "reference altitude")
	liveCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (rk4|euler)")
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	gainsCmd := &cobra.Command{
		Use:   "gains",
		Short: "plot the gain filter convergence for kpxy",
		RunE:  runGains,
	}
	gainsCmd.Flags().Float64Var(&gainFrom, "from", 10.0, "current gain value")
	gainsCmd.Flags().Float64Var(&gainTo, "to", 20.0, "desired gain value")
	gainsCmd.Flags().IntVar(&gainTicks, "ticks", 100, "filter ticks to simulate")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(configFile, starterConfig())
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, gainsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the plant plus the selected
// controller. Config problems are fatal by contract.
func setup() (*config.Config, *uav.Plant, sim.Controller, *nsf.Controller, error) {
	log := logging.New(debug)

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("could not load the configuration: %w", err)
	}

	plant := uav.NewPlant(cfg.UAV.Mass, cfg.UAV.Gravity, cfg.Motor.HoverThrustA, cfg.Motor.HoverThrustB)

	if controller == "pid" {
		ctl := cfg.Controller
		p := pid.NewController(pid.Params{
			KpXY:        ctl.Horizontal.Kp,
			KdXY:        ctl.Horizontal.Kv,
			KiXY:        ctl.Horizontal.Kiw,
			KpZ:         ctl.Vertical.Kp,
			KdZ:         ctl.Vertical.Kv,
			KiZ:         cfg.Controller.MassEstimator.Km,
			HoverThrust: plant.HoverThrust(),
			MaxTilt:     cfg.Params().Gains.MaxTilt,
		}, log)
		return cfg, plant, p, nil, nil
	}

	ctrl := nsf.New(cfg.Params(), log)
	if err := ctrl.Activate(seedCommand(cfg, plant)); err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, plant, ctrl, ctrl, nil
}

// seedCommand fabricates the previous controller's command for
// activation: level attitude at hover thrust, no disturbances.
func seedCommand(cfg *config.Config, plant *uav.Plant) *nsf.Command {
	return &nsf.Command{
		Thrust:    plant.HoverThrust(),
		TotalMass: cfg.UAV.Mass,
		Mode:      nsf.ModeEulerAttitude,
	}
}

func buildLoop(plant *uav.Plant, ctrl sim.Controller, mute *atomic.Bool) *sim.Loop {
	base := sim.NewReference(reference, altitude)
	refFn := func(t float64) nsf.Reference {
		ref := base(t)
		ref.DisablePositionGains = mute.Load()
		return ref
	}
	return sim.New(plant, ctrl, sim.NewIntegrator(integrator), refFn)
}

func runLoop(cmd *cobra.Command, args []string) error {
	var mute atomic.Bool
	cfg, plant, ctrl, nsfCtrl, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if nsfCtrl != nil {
		go nsfCtrl.RunGainFilter(ctx, clock.New())
	}

	loop := buildLoop(plant, ctrl, &mute)
	loop.AddMetric(&sim.TrackingRMS{})
	loop.AddMetric(sim.NewControlEffort())
	loop.AddMetric(sim.NewSaturationTicks(cfg.Controller.ThrustSaturation))

	x0 := make(uav.State, uav.StateDim)
	x0[uav.Z] = altitude

	result, err := loop.Run(ctx, x0, sim.Config{Dt: dt, Duration: duration})
	if err != nil {
		return err
	}

	printSummary(result)

	if jsonOut != "" {
		if err := store.ExportJSON(jsonOut, controller, reference, dt, duration, result); err != nil {
			return err
		}
	}
	if csvOut != "" {
		if err := store.ExportCSV(csvOut, result); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(result *sim.Result) {
	errs := make([]float64, 0, len(result.Steps))
	for _, s := range result.Steps {
		var sq float64
		for i := 0; i < 3; i++ {
			d := s.Ref.Position[i] - s.State[i]
			sq += d * d
		}
		errs = append(errs, math.Sqrt(sq))
	}

	fmt.Println(asciigraph.Plot(downsample(errs, 120),
		asciigraph.Height(12),
		asciigraph.Caption("tracking error [m]")))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "ticks\t%d\n", len(result.Steps))
	for name, value := range result.Metrics {
		fmt.Fprintf(w, "%s\t%.4f\n", name, value)
	}
	w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	var mute atomic.Bool
	_, plant, ctrl, nsfCtrl, err := setup()
	if err != nil {
		return err
	}
	if nsfCtrl == nil {
		return fmt.Errorf("live mode requires the nsf controller")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go nsfCtrl.RunGainFilter(ctx, clock.New())

	loop := buildLoop(plant, ctrl, &mute)
	x0 := make(uav.State, uav.StateDim)
	x0[uav.Z] = altitude
	loop.Reset(x0)

	return viz.Run(loop, nsfCtrl, &mute, dt, frameRate)
}

func runGains(cmd *cobra.Command, args []string) error {
	log := logging.New(debug)

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("could not load the configuration: %w", err)
	}

	params := cfg.Params()
	params.Gains.KpXY = gainFrom
	ctrl := nsf.New(params, log)

	desired := params.Gains
	desired.KpXY = gainTo
	ctrl.SetDesiredGains(desired)

	trace := make([]float64, 0, gainTicks)
	for i := 0; i < gainTicks; i++ {
		ctrl.FilterGains()
		trace = append(trace, ctrl.GainSnapshot().KpXY)
	}

	fmt.Println(asciigraph.Plot(trace,
		asciigraph.Height(12),
		asciigraph.Caption(fmt.Sprintf("kpxy %g -> %g over %d filter ticks", gainFrom, gainTo, gainTicks))))
	return nil
}

func starterConfig() *config.Config {
	cfg := config.Default()
	cfg.Version = config.Version
	cfg.UAV = config.UAVConfig{Mass: 3.5, Gravity: 9.81}
	cfg.Motor = config.MotorConfig{HoverThrustA: 0.091, HoverThrustB: 0.06}
	cfg.Controller = config.ControllerConfig{
		Horizontal: config.HorizontalGains{
			Kp: 1.0, Kv: 0.8, Ka: 0.2,
			Kiw: 0.1, Kib: 0.1,
			KiwLim: 0.2, KibLim: 0.2,
		},
		Vertical:               config.VerticalGains{Kp: 1.5, Kv: 0.5, Ka: 0.2},
		MassEstimator:          config.MassEstimator{Km: 0.5, KmLim: 1.0},
		LateralMuteCoefficient: 0.05,
		MaxTiltAngleDeg:        30,
		ThrustSaturation:       0.9,
		GainFilter:             config.GainFilterConfig{RateHz: 40, PercChange: 0.6, MinChangeRate: 0.1},
	}
	return cfg
}

func downsample(data []float64, maxLen int) []float64 {
	if len(data) <= maxLen {
		return data
	}
	out := make([]float64, maxLen)
	for i := range out {
		out[i] = data[i*len(data)/maxLen]
	}
	return out
}
