package playerbar

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/cassette/internal/playback"
	"github.com/llehouerou/cassette/internal/ui"
	"github.com/llehouerou/cassette/internal/ui/render"
	"github.com/llehouerou/cassette/internal/ui/styles"
)

// Height is the rendered height: top border, content, bottom border.
const Height = 3

const (
	playSymbol    = "▶"
	pauseSymbol   = "⏸"
	loadingSymbol = "…"
	idleSymbol    = "■"
)

// State holds everything needed to render the player bar.
type State struct {
	Phase    playback.Phase
	Title    string
	Index    int // 0-based, -1 when nothing is selected
	Total    int
	Position time.Duration
	Duration time.Duration
}

// NewState builds a State from a controller snapshot and the current progress.
func NewState(s playback.Snapshot, position, duration time.Duration) State {
	st := State{
		Phase:    s.Phase,
		Index:    s.Index,
		Total:    s.Len,
		Position: position,
		Duration: duration,
	}
	if s.Track != nil {
		st.Title = s.Track.Title
	}
	return st
}

// Status returns the status symbol for a phase.
func Status(p playback.Phase) string {
	switch p {
	case playback.PhasePlaying:
		return playSymbol
	case playback.PhaseReady:
		return pauseSymbol
	case playback.PhaseLoading:
		return loadingSymbol
	default:
		return idleSymbol
	}
}

// Render returns the player bar for the given width.
// Format: │ Title   2/5   ▶ ━━━━───────   1:23 / 3:58 │
func Render(s State, width int) string {
	innerWidth := max(width-6, 0) // border + padding
	st := styles.T().S()

	if s.Phase == playback.PhaseEmpty || s.Index < 0 {
		return bar(st.Muted.Render(render.Fit("No tracks", innerWidth)), width)
	}

	title := s.Title
	if title == "" {
		title = "Untitled"
	}
	position := fmt.Sprintf("%d/%d", s.Index+1, s.Total)
	timeStr := render.Duration(s.Position) + " / " + render.Duration(s.Duration)
	if s.Phase == playback.PhaseLoading {
		timeStr = "loading"
	}

	const sep = "   "
	status := Status(s.Phase)
	fixed := lipgloss.Width(position) + lipgloss.Width(status) + 1 + lipgloss.Width(timeStr) + 3*len(sep)
	titleWidth := min(lipgloss.Width(title), max(innerWidth-fixed-ui.MinProgressBarWidth, 8))
	barWidth := max(innerWidth-fixed-titleWidth, ui.MinProgressBarWidth)

	filled, empty := render.Bar(s.Position, s.Duration, barWidth)

	titleStyle := st.Title
	if s.Phase == playback.PhasePlaying {
		titleStyle = st.Playing
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(render.Truncate(title, titleWidth)))
	b.WriteString(sep)
	b.WriteString(st.Muted.Render(position))
	b.WriteString(sep)
	b.WriteString(status + " ")
	b.WriteString(st.BarFill.Render(strings.Repeat("━", filled)))
	b.WriteString(st.BarEmpty.Render(strings.Repeat("─", empty)))
	b.WriteString(sep)
	b.WriteString(st.Muted.Render(timeStr))

	return bar(b.String(), width)
}

func bar(content string, width int) string {
	return styles.PanelStyle(false).
		Padding(0, 2).
		Width(max(width-2, 0)).
		Render(render.Clip(content, max(width-6, 0)))
}
