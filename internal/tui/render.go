package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pace"
)

// momentumBar renders earned against expected as a bar of width cells.
// Filled cells are earned points; the marker is where pace says you should be.
func momentumBar(m *MomentumView, width int) string {
	if m == nil || m.DailyTarget <= 0 || width <= 0 {
		return ""
	}
	filled := min(width, m.Earned*width/m.DailyTarget)
	marker := min(width-1, m.ExpectedByNow*width/m.DailyTarget)

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == marker && m.ExpectedByNow > 0:
			b.WriteString("│")
		case i < filled:
			b.WriteString("█")
		default:
			b.WriteString("░")
		}
	}
	return paceStyle(m.Status).Render(b.String())
}

func paceStyle(s pace.Status) lipgloss.Style {
	switch s {
	case pace.StatusCrushing:
		return lipgloss.NewStyle().Foreground(cyanColor)
	case pace.StatusOnTrack:
		return lipgloss.NewStyle().Foreground(successColor)
	case pace.StatusBehind:
		return lipgloss.NewStyle().Foreground(warningColor)
	default:
		return lipgloss.NewStyle().Foreground(errorColor)
	}
}

func paceLabel(s pace.Status) string {
	switch s {
	case pace.StatusCrushing:
		return "CRUSHING"
	case pace.StatusOnTrack:
		return "ON TRACK"
	case pace.StatusBehind:
		return "BEHIND"
	case pace.StatusStalled:
		return "STALLED"
	default:
		return strings.ToUpper(string(s))
	}
}

// momentumLine is the one-line header summary.
func momentumLine(m *MomentumView) string {
	if m == nil {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("momentum unavailable")
	}
	return fmt.Sprintf("%s  %d/%d pts  expected %d  %s",
		paceStyle(m.Status).Bold(true).Render(paceLabel(m.Status)),
		m.Earned, m.DailyTarget, m.ExpectedByNow,
		lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf("(%d%%, day %d%% done)", m.Percent, int(m.DayProgress*100))))
}

func formatStatus(status models.Status) string {
	switch status {
	case models.StatusBacklog:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("○ BACKLOG")
	case models.StatusQueued:
		return lipgloss.NewStyle().Foreground(secondaryColor).Render("◐ QUEUED")
	case models.StatusActive:
		return lipgloss.NewStyle().Foreground(primaryColor).Render("◑ ACTIVE")
	case models.StatusDone:
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE")
	default:
		return string(status)
	}
}

func formatStatusPlain(status models.Status) string {
	switch status {
	case models.StatusBacklog:
		return "○"
	case models.StatusQueued:
		return "◐"
	case models.StatusActive:
		return "◑"
	case models.StatusDone:
		return "●"
	default:
		return "?"
	}
}

func tierStyle(t decay.Tier) lipgloss.Style {
	switch t {
	case decay.TierAging:
		return lipgloss.NewStyle().Foreground(warningColor)
	case decay.TierStale:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F97316"))
	case decay.TierCritical:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
}

// taskPoints is the display value of a task, matching how the engine
// credits it.
func taskPoints(t models.Task) int {
	return pace.PointValue(t.PointsFinal, t.PointsAIGuess, t.EffortEstimate)
}

// window returns the [start, end) slice bounds that keep selected visible
// in a list of n rows at most height tall.
func window(n, selected, height int) (int, int) {
	if n <= height || height <= 0 {
		return 0, n
	}
	start := max(0, selected-height/2)
	end := start + height
	if end > n {
		end = n
		start = end - height
	}
	return start, end
}
