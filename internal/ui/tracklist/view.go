package tracklist

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/cassette/internal/playback"
	"github.com/llehouerou/cassette/internal/ui"
	"github.com/llehouerou/cassette/internal/ui/render"
	"github.com/llehouerou/cassette/internal/ui/styles"
)

const currentSymbol = "▶"

// View renders the panel. current is the controller's index and phase its
// phase, used to mark the current track.
func (m Model) View(current int, phase playback.Phase) string {
	if m.Width() == 0 || m.Height() == 0 {
		return ""
	}
	innerWidth := max(m.Width()-ui.BorderHeight, 0)
	st := styles.T().S()

	header := fmt.Sprintf("Tracks (%d)", len(m.tracks))
	if current >= 0 && len(m.tracks) > 0 {
		header = fmt.Sprintf("Tracks (%d/%d)", current+1, len(m.tracks))
	}

	lines := make([]string, 0, m.listHeight()+1)
	lines = append(lines, st.Title.Render(render.Fit(header, innerWidth)))
	for i := range m.listHeight() {
		idx := m.offset + i
		if idx >= len(m.tracks) {
			lines = append(lines, render.EmptyLine(innerWidth))
			continue
		}
		lines = append(lines, m.renderLine(idx, current, phase, innerWidth))
	}

	return styles.PanelStyle(m.IsFocused()).
		Width(innerWidth).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderLine(idx, current int, phase playback.Phase, width int) string {
	prefix := "  "
	if idx == current {
		prefix = currentSymbol + " "
		if phase == playback.PhaseLoading {
			prefix = "… "
		}
	}
	number := fmt.Sprintf("%2d. ", idx+1)
	title := render.Fit(m.tracks[idx].Title, max(width-lipgloss.Width(prefix)-len(number), 0))

	return m.lineStyle(idx, current).Render(prefix + number + title)
}

func (m Model) lineStyle(idx, current int) lipgloss.Style {
	st := styles.T().S()
	isCursor := idx == m.cursor && m.IsFocused()
	isCurrent := idx == current

	switch {
	case isCursor && isCurrent:
		return st.Cursor.Inherit(st.Playing)
	case isCursor:
		return st.Cursor
	case isCurrent:
		return st.Playing
	default:
		return st.Base
	}
}
