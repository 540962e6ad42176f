// Package tui renders the session view in a terminal and maps keys to
// controller selections.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/couchcryptid/quake-feed-service/internal/controller"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

const actionTimeout = 2 * time.Second

// Session is the controller surface the terminal UI drives.
type Session interface {
	SelectTimeWindow(ctx context.Context, w domain.TimeWindow) error
	SelectThreshold(ctx context.Context, th domain.MagnitudeThreshold) error
	Refresh(ctx context.Context) error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50E3C2")).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8CA1AE"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1A1A1A")).Background(lipgloss.Color("#F6AE2D")).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))

	markerStyles = map[domain.Color]lipgloss.Style{
		domain.ColorRed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#E5484D")),
		domain.ColorOrange: lipgloss.NewStyle().Foreground(lipgloss.Color("#F76B15")),
		domain.ColorGreen:  lipgloss.NewStyle().Foreground(lipgloss.Color("#30A46C")),
	}
)

// viewMsg delivers a published controller view.
type viewMsg controller.View

// actionErrMsg reports a selection the controller did not accept.
type actionErrMsg struct{ err error }

// Model is the bubbletea model for the earthquake list.
type Model struct {
	session Session
	views   <-chan controller.View

	view    controller.View
	spinner spinner.Model
	err     error
	height  int
}

// New creates a Model that renders views received on views.
func New(session Session, views <-chan controller.View) Model {
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	return Model{session: session, views: views, spinner: spin, height: 24}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForView(m.views), m.spinner.Tick)
}

func waitForView(ch <-chan controller.View) tea.Cmd {
	return func() tea.Msg {
		return viewMsg(<-ch)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.view = controller.View(msg)
		return m, waitForView(m.views)

	case actionErrMsg:
		m.err = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "h":
		return m, m.selectWindow(domain.WindowHour)
	case "d":
		return m, m.selectWindow(domain.WindowDay)
	case "w":
		return m, m.selectWindow(domain.WindowWeek)
	case "m":
		return m, m.selectWindow(domain.WindowMonth)
	case "a":
		return m, m.selectThreshold(domain.ThresholdAll)
	case "4":
		return m, m.selectThreshold(domain.ThresholdM4Up)
	case "r":
		return m, m.act(m.session.Refresh)
	}
	return m, nil
}

func (m Model) selectWindow(w domain.TimeWindow) tea.Cmd {
	return m.act(func(ctx context.Context) error { return m.session.SelectTimeWindow(ctx, w) })
}

func (m Model) selectThreshold(th domain.MagnitudeThreshold) tea.Cmd {
	return m.act(func(ctx context.Context) error { return m.session.SelectThreshold(ctx, th) })
}

func (m Model) act(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return actionErrMsg{err: err}
		}
		return actionErrMsg{}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Earthquake Visualizer"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  past %s · %s", m.view.Filter.TimeWindow, thresholdLabel(m.view.Filter.Threshold))))
	b.WriteString("\n")
	b.WriteString(m.filterBar())
	b.WriteString("\n\n")

	if m.view.WarningVisible {
		b.WriteString(warningStyle.Render("Large dataset: the past month feed has many events and may be slow to load."))
		b.WriteString("\n\n")
	}

	switch {
	case m.view.Loading:
		b.WriteString(m.spinner.View() + " Loading earthquakes…\n")
	case m.view.Error != "":
		b.WriteString(errorStyle.Render(m.view.Error) + "\n")
	default:
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d of %d events shown", m.view.VisibleEvents, m.view.TotalEvents)) + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n")

	rows := m.height - 10
	if rows < 1 {
		rows = 1
	}
	for i, mk := range m.view.Markers {
		if i == rows {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("… %d more", len(m.view.Markers)-rows)) + "\n")
			break
		}
		b.WriteString(markerStyles[mk.Color].Render("●") + " " + mk.PopupText + "\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("h/d/w/m window · a/4 magnitude · r refresh · q quit"))
	return b.String()
}

func (m Model) filterBar() string {
	parts := make([]string, 0, len(domain.TimeWindows)+2)
	for _, w := range domain.TimeWindows {
		label := string(w)
		if w == m.view.Filter.TimeWindow {
			label = activeStyle.Render(label)
		}
		parts = append(parts, label)
	}
	for _, th := range []domain.MagnitudeThreshold{domain.ThresholdAll, domain.ThresholdM4Up} {
		label := thresholdLabel(th)
		if th == m.view.Filter.Threshold {
			label = activeStyle.Render(label)
		}
		parts = append(parts, label)
	}
	return " " + strings.Join(parts, "  ")
}

func thresholdLabel(th domain.MagnitudeThreshold) string {
	if th == domain.ThresholdM4Up {
		return "M4+"
	}
	return "all magnitudes"
}
