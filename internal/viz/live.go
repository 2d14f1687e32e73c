// Package viz renders the closed loop live in the terminal.
package viz

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/uavctl/internal/nsf"
	"github.com/san-kum/uavctl/internal/sim"
	"github.com/san-kum/uavctl/internal/uav"
)

const (
	graphWidth      = 70
	graphHeight     = 10
	historyCapacity = 600
)

type TickMsg time.Time

// Model steps the closed loop at the frame rate and plots tracking error
// and thrust.
type Model struct {
	loop *sim.Loop
	ctrl *nsf.Controller
	mute *atomic.Bool

	dt        float64
	frameRate int
	substeps  int

	paused bool
	failed error

	last       sim.Step
	errHist    []float64
	thrustHist []float64
}

func NewModel(loop *sim.Loop, ctrl *nsf.Controller, mute *atomic.Bool, dt float64, frameRate int) Model {
	substeps := int(1/(dt*float64(frameRate))) + 1
	return Model{
		loop:      loop,
		ctrl:      ctrl,
		mute:      mute,
		dt:        dt,
		frameRate: frameRate,
		substeps:  substeps,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.frameRate), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "m":
			m.mute.Store(!m.mute.Load())
		case "r":
			m.ctrl.ResetDisturbanceEstimators()
		}
		return m, nil

	case TickMsg:
		if m.paused || m.failed != nil {
			return m, m.tick()
		}
		for i := 0; i < m.substeps; i++ {
			step, err := m.loop.Tick(m.dt)
			m.last = step
			if err != nil {
				m.failed = err
				break
			}
		}
		m.errHist = push(m.errHist, trackingError(m.last))
		m.thrustHist = push(m.thrustHist, m.last.Cmd.Thrust)
		return m, m.tick()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("uavctl live"))
	b.WriteString("\n")

	if len(m.errHist) > 1 {
		g := asciigraph.Plot(m.errHist,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("tracking error [m]"))
		b.WriteString(graphStyle.Render(g))
		b.WriteString("\n")
		g = asciigraph.Plot(m.thrustHist,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("thrust [-]"))
		b.WriteString(graphStyle.Render(g))
		b.WriteString("\n")
	}

	b.WriteString(m.stats())
	b.WriteString(helpStyle.Render("space pause · m mute lateral gains · r reset integrals · q quit"))
	return b.String()
}

func (m Model) stats() string {
	s := m.last
	world, body, massDiff := m.ctrl.Disturbances()
	gains := m.ctrl.GainSnapshot()

	rows := []string{
		row("t", fmt.Sprintf("%7.2f s", s.T)),
		row("position", vec3(s.State, uav.X)),
		row("reference", fmt.Sprintf("(%6.2f, %6.2f, %6.2f)", s.Ref.Position[0], s.Ref.Position[1], s.Ref.Position[2])),
		row("error", fmt.Sprintf("%7.3f m", trackingError(s))),
		row("thrust", fmt.Sprintf("%7.3f", s.Cmd.Thrust)),
		row("tilt", fmt.Sprintf("(%6.3f, %6.3f) rad", s.Cmd.TiltPitch, s.Cmd.TiltRoll)),
		row("mass diff", fmt.Sprintf("%7.3f kg", massDiff)),
		row("world int", fmt.Sprintf("(%6.3f, %6.3f) rad", world[0], world[1])),
		row("body int", fmt.Sprintf("(%6.3f, %6.3f) rad", body[0], body[1])),
		row("kpxy", fmt.Sprintf("%7.3f", gains.KpXY)),
	}
	if m.mute.Load() {
		rows = append(rows, alertStyle.Render("lateral gains muted"))
	}
	if m.paused {
		rows = append(rows, alertStyle.Render("paused"))
	}
	if m.failed != nil {
		rows = append(rows, alertStyle.Render(m.failed.Error()))
	}
	return statsStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n"
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func vec3(x uav.State, from int) string {
	if len(x) < from+3 {
		return "(-, -, -)"
	}
	return fmt.Sprintf("(%6.2f, %6.2f, %6.2f)", x[from], x[from+1], x[from+2])
}

func trackingError(s sim.Step) float64 {
	if len(s.State) < 3 {
		return 0
	}
	var sq float64
	for i := 0; i < 3; i++ {
		d := s.Ref.Position[i] - s.State[i]
		sq += d * d
	}
	return math.Sqrt(sq)
}

func push(hist []float64, v float64) []float64 {
	hist = append(hist, v)
	if len(hist) > historyCapacity {
		hist = hist[len(hist)-historyCapacity:]
	}
	return hist
}

// Run starts the live view and blocks until it exits.
func Run(loop *sim.Loop, ctrl *nsf.Controller, mute *atomic.Bool, dt float64, frameRate int) error {
	p := tea.NewProgram(NewModel(loop, ctrl, mute, dt, frameRate))
	_, err := p.Run()
	return err
}
