// Package store exports closed-loop runs to JSON and CSV.
package store

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/san-kum/uavctl/internal/sim"
	"github.com/san-kum/uavctl/internal/uav"
)

type ExportData struct {
	Controller string             `json:"controller"`
	Reference  string             `json:"reference"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Steps      int                `json:"steps"`
	Times      []float64          `json:"times"`
	States     [][]float64        `json:"states"`
	Thrust     []float64          `json:"thrust"`
	TiltPitch  []float64          `json:"tilt_pitch"`
	TiltRoll   []float64          `json:"tilt_roll"`
	MassDiff   []float64          `json:"mass_difference"`
	Metrics    map[string]float64 `json:"metrics"`
}

func flatten(controller, reference string, dt, duration float64, res *sim.Result) ExportData {
	data := ExportData{
		Controller: controller,
		Reference:  reference,
		Dt:         dt,
		Duration:   duration,
		Steps:      len(res.Steps),
		Times:      make([]float64, len(res.Steps)),
		States:     make([][]float64, len(res.Steps)),
		Thrust:     make([]float64, len(res.Steps)),
		TiltPitch:  make([]float64, len(res.Steps)),
		TiltRoll:   make([]float64, len(res.Steps)),
		MassDiff:   make([]float64, len(res.Steps)),
		Metrics:    res.Metrics,
	}
	for i, s := range res.Steps {
		data.Times[i] = s.T
		data.States[i] = s.State
		data.Thrust[i] = s.Cmd.Thrust
		data.TiltPitch[i] = s.Cmd.TiltPitch
		data.TiltRoll[i] = s.Cmd.TiltRoll
		data.MassDiff[i] = s.Cmd.MassDifference
	}
	return data
}

// ExportJSON writes the full run to path.
func ExportJSON(path, controller, reference string, dt, duration float64, res *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(flatten(controller, reference, dt, duration, res))
}

// ExportCSV writes one row per tick to path.
func ExportCSV(path string, res *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"t", "x", "y", "z", "vx", "vy", "vz", "roll", "pitch", "yaw", "tilt_pitch", "tilt_roll", "thrust", "mass_difference"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, s := range res.Steps {
		row := make([]string, 0, len(header))
		row = append(row, fmtF(s.T))
		for i := 0; i < uav.StateDim; i++ {
			row = append(row, fmtF(s.State[i]))
		}
		row = append(row, fmtF(s.Cmd.TiltPitch), fmtF(s.Cmd.TiltRoll), fmtF(s.Cmd.Thrust), fmtF(s.Cmd.MassDifference))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
