package store

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/uavctl/internal/nsf"
	"github.com/san-kum/uavctl/internal/sim"
	"github.com/san-kum/uavctl/internal/uav"
)

func testResult() *sim.Result {
	steps := make([]sim.Step, 3)
	for i := range steps {
		state := make(uav.State, uav.StateDim)
		state[uav.X] = float64(i)
		steps[i] = sim.Step{
			T:     float64(i) * 0.01,
			State: state,
			Cmd:   nsf.Command{Thrust: 0.5, TiltPitch: 0.1, MassDifference: 0.02},
		}
	}
	return &sim.Result{
		Steps:   steps,
		Metrics: map[string]float64{"tracking_rms": 0.3},
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")

	if err := ExportJSON(path, "nsf", "step", 0.01, 0.03, testResult()); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.Controller != "nsf" || data.Reference != "step" {
		t.Errorf("run labels lost: %+v", data)
	}
	if data.Steps != 3 || len(data.Times) != 3 || len(data.States) != 3 {
		t.Errorf("step counts wrong: steps=%d times=%d states=%d", data.Steps, len(data.Times), len(data.States))
	}
	if data.States[2][uav.X] != 2 {
		t.Errorf("state trace wrong: %v", data.States[2])
	}
	if data.Metrics["tracking_rms"] != 0.3 {
		t.Errorf("metrics lost: %v", data.Metrics)
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")

	if err := ExportCSV(path, testResult()); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rows) != 4 { // header + 3 ticks
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if rows[0][0] != "t" || rows[0][len(rows[0])-1] != "mass_difference" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[3][1] != "2" {
		t.Errorf("x column of the last tick = %q, want 2", rows[3][1])
	}
}
