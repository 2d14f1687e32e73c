// Package config loads and validates the controller configuration.
//
// Every numeric field is required: defaults are negative sentinels and any
// field still negative after loading is a fatal startup error, as is a
// version mismatch between the binary and the file.
package config

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/uavctl/internal/nsf"
)

// Version must match the version field of the loaded config file.
const Version = "0.3.0"

type Config struct {
	Version    string           `yaml:"version"`
	UAV        UAVConfig        `yaml:"uav"`
	Motor      MotorConfig      `yaml:"motor"`
	Controller ControllerConfig `yaml:"controller"`
}

type UAVConfig struct {
	Mass    float64 `yaml:"mass"`
	Gravity float64 `yaml:"gravity"`
}

// MotorConfig describes the thrust curve hover = sqrt(mass*g)*A + B.
type MotorConfig struct {
	HoverThrustA float64 `yaml:"hover_thrust_a"`
	HoverThrustB float64 `yaml:"hover_thrust_b"`
}

type ControllerConfig struct {
	Horizontal    HorizontalGains `yaml:"horizontal"`
	Vertical      VerticalGains   `yaml:"vertical"`
	MassEstimator MassEstimator   `yaml:"mass_estimator"`

	LateralMuteCoefficient float64 `yaml:"lateral_mute_coefficient"`
	MaxTiltAngleDeg        float64 `yaml:"max_tilt_angle_deg"`
	ThrustSaturation       float64 `yaml:"thrust_saturation"`

	GainFilter GainFilterConfig `yaml:"gain_filter"`
}

type HorizontalGains struct {
	Kp     float64 `yaml:"kp"`
	Kv     float64 `yaml:"kv"`
	Ka     float64 `yaml:"ka"`
	Kiw    float64 `yaml:"kiw"`
	Kib    float64 `yaml:"kib"`
	KiwLim float64 `yaml:"kiw_lim"`
	KibLim float64 `yaml:"kib_lim"`
}

type VerticalGains struct {
	Kp float64 `yaml:"kp"`
	Kv float64 `yaml:"kv"`
	Ka float64 `yaml:"ka"`
}

type MassEstimator struct {
	Km    float64 `yaml:"km"`
	KmLim float64 `yaml:"km_lim"`
}

type GainFilterConfig struct {
	RateHz        float64 `yaml:"rate_hz"`
	PercChange    float64 `yaml:"perc_change_rate"`
	MinChangeRate float64 `yaml:"min_change_rate"`
}

// Default returns a config with every required numeric at the -1
// sentinel. Loading must overwrite all of them.
func Default() *Config {
	return &Config{
		UAV:   UAVConfig{Mass: -1, Gravity: -1},
		Motor: MotorConfig{HoverThrustA: -1, HoverThrustB: -1},
		Controller: ControllerConfig{
			Horizontal:             HorizontalGains{Kp: -1, Kv: -1, Ka: -1, Kiw: -1, Kib: -1, KiwLim: -1, KibLim: -1},
			Vertical:               VerticalGains{Kp: -1, Kv: -1, Ka: -1},
			MassEstimator:          MassEstimator{Km: -1, KmLim: -1},
			LateralMuteCoefficient: -1,
			MaxTiltAngleDeg:        -1,
			ThrustSaturation:       -1,
			GainFilter:             GainFilterConfig{RateHz: -1, PercChange: -1, MinChangeRate: -1},
		},
	}
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the version and that every required field was supplied
// and non-negative. All violations are reported together.
func (c *Config) Validate() error {
	var err error

	if c.Version != Version {
		err = multierr.Append(err, fmt.Errorf("config: version of the binary (%s) does not match the config file (%q)", Version, c.Version))
	}

	required := []struct {
		name  string
		value float64
	}{
		{"uav.mass", c.UAV.Mass},
		{"uav.gravity", c.UAV.Gravity},
		{"motor.hover_thrust_a", c.Motor.HoverThrustA},
		{"motor.hover_thrust_b", c.Motor.HoverThrustB},
		{"controller.horizontal.kp", c.Controller.Horizontal.Kp},
		{"controller.horizontal.kv", c.Controller.Horizontal.Kv},
		{"controller.horizontal.ka", c.Controller.Horizontal.Ka},
		{"controller.horizontal.kiw", c.Controller.Horizontal.Kiw},
		{"controller.horizontal.kib", c.Controller.Horizontal.Kib},
		{"controller.horizontal.kiw_lim", c.Controller.Horizontal.KiwLim},
		{"controller.horizontal.kib_lim", c.Controller.Horizontal.KibLim},
		{"controller.vertical.kp", c.Controller.Vertical.Kp},
		{"controller.vertical.kv", c.Controller.Vertical.Kv},
		{"controller.vertical.ka", c.Controller.Vertical.Ka},
		{"controller.mass_estimator.km", c.Controller.MassEstimator.Km},
		{"controller.mass_estimator.km_lim", c.Controller.MassEstimator.KmLim},
		{"controller.lateral_mute_coefficient", c.Controller.LateralMuteCoefficient},
		{"controller.max_tilt_angle_deg", c.Controller.MaxTiltAngleDeg},
		{"controller.thrust_saturation", c.Controller.ThrustSaturation},
		{"controller.gain_filter.rate_hz", c.Controller.GainFilter.RateHz},
		{"controller.gain_filter.perc_change_rate", c.Controller.GainFilter.PercChange},
		{"controller.gain_filter.min_change_rate", c.Controller.GainFilter.MinChangeRate},
	}
	for _, f := range required {
		if f.value < 0 || math.IsNaN(f.value) {
			err = multierr.Append(err, fmt.Errorf("config: %s is missing or negative", f.name))
		}
	}

	if c.Controller.GainFilter.RateHz == 0 {
		err = multierr.Append(err, fmt.Errorf("config: controller.gain_filter.rate_hz must be positive"))
	}

	return err
}

// Params converts the validated config into controller parameters. The
// tilt limit moves from degrees to radians here.
func (c *Config) Params() nsf.Params {
	ctl := c.Controller
	return nsf.Params{
		UAVMass: c.UAV.Mass,
		Gravity: c.UAV.Gravity,
		MotorA:  c.Motor.HoverThrustA,
		MotorB:  c.Motor.HoverThrustB,
		Gains: nsf.Gains{
			KpXY:             ctl.Horizontal.Kp,
			KvXY:             ctl.Horizontal.Kv,
			KaXY:             ctl.Horizontal.Ka,
			KiwXY:            ctl.Horizontal.Kiw,
			KibXY:            ctl.Horizontal.Kib,
			KiwLim:           ctl.Horizontal.KiwLim,
			KibLim:           ctl.Horizontal.KibLim,
			KpZ:              ctl.Vertical.Kp,
			KvZ:              ctl.Vertical.Kv,
			KaZ:              ctl.Vertical.Ka,
			Km:               ctl.MassEstimator.Km,
			KmLim:            ctl.MassEstimator.KmLim,
			MaxTilt:          ctl.MaxTiltAngleDeg / 180 * math.Pi,
			ThrustSaturation: ctl.ThrustSaturation,
		},
		LateralMuteCoeff:    ctl.LateralMuteCoefficient,
		FilterRateHz:        ctl.GainFilter.RateHz,
		FilterChangeRate:    ctl.GainFilter.PercChange,
		FilterMinChangeRate: ctl.GainFilter.MinChangeRate,
	}
}
