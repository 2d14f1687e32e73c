package config

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Version: Version,
		UAV:     UAVConfig{Mass: 3.5, Gravity: 9.81},
		Motor:   MotorConfig{HoverThrustA: 0.091, HoverThrustB: 0.06},
		Controller: ControllerConfig{
			Horizontal: HorizontalGains{
				Kp: 1.0, Kv: 0.8, Ka: 0.2,
				Kiw: 0.1, Kib: 0.1,
				KiwLim: 0.2, KibLim: 0.2,
			},
			Vertical:               VerticalGains{Kp: 1.5, Kv: 0.5, Ka: 0.2},
			MassEstimator:          MassEstimator{Km: 0.5, KmLim: 1.0},
			LateralMuteCoefficient: 0.05,
			MaxTiltAngleDeg:        30,
			ThrustSaturation:       0.9,
			GainFilter:             GainFilterConfig{RateHz: 40, PercChange: 0.6, MinChangeRate: 0.1},
		},
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uavctl.yaml")

	want := validConfig()
	if err := Save(path, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if *got != *want {
		t.Errorf("loaded config differs:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	cfg := validConfig()
	cfg.UAV.Mass = -1
	cfg.Controller.GainFilter.RateHz = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	msg := err.Error()
	for _, want := range []string{"uav.mass", "gain_filter.rate_hz"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}

func TestValidateVersionMismatch(t *testing.T) {
	cfg := validConfig()
	cfg.Version = "0.0.1"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("version mismatch not reported: %v", err)
	}
}

func TestValidateRejectsNaN(t *testing.T) {
	cfg := validConfig()
	cfg.Controller.Horizontal.Kp = math.NaN()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation to reject NaN")
	}
}

func TestParamsConvertsTiltToRadians(t *testing.T) {
	p := validConfig().Params()

	want := 30.0 / 180 * math.Pi
	if math.Abs(p.Gains.MaxTilt-want) > 1e-12 {
		t.Errorf("max tilt = %f rad, want %f", p.Gains.MaxTilt, want)
	}
	if p.Gains.KpXY != 1.0 || p.Gains.KpZ != 1.5 {
		t.Errorf("gain mapping broken: %+v", p.Gains)
	}
	if p.FilterRateHz != 40 {
		t.Errorf("filter rate = %f, want 40", p.FilterRateHz)
	}
}
