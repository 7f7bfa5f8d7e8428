package app

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/cassette/internal/ui"
	"github.com/llehouerou/cassette/internal/ui/artwork"
	"github.com/llehouerou/cassette/internal/ui/headerbar"
	"github.com/llehouerou/cassette/internal/ui/playerbar"
	"github.com/llehouerou/cassette/internal/ui/render"
	"github.com/llehouerou/cassette/internal/ui/styles"
)

const statusHeight = 1

// View renders the application UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	info := m.catalog
	info.Tracks = len(m.list.Tracks())

	parts := []string{headerbar.Render(info, m.width)}
	if m.middleHeight() > 0 {
		parts = append(parts, m.renderMiddle())
	}
	parts = append(parts,
		playerbar.Render(playerbar.NewState(m.snap, m.position, m.duration), m.width),
		m.renderStatus(),
		m.help.View(m.helpKeys),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderMiddle() string {
	list := m.list.View(m.snap.Index, m.snap.Phase)
	if !m.showArtwork() {
		return list
	}

	cols, rows := m.artworkCols(), m.artworkRows()
	content := artwork.Placeholder(cols, rows)
	if m.art.view != "" && m.art.key == m.wantArtwork() {
		content = m.art.view
	}
	panel := styles.PanelStyle(false).
		Width(cols).
		Height(m.middleHeight() - ui.BorderHeight).
		Render(content)
	return lipgloss.JoinHorizontal(lipgloss.Top, panel, list)
}

func (m Model) renderStatus() string {
	st := styles.T().S()
	text := render.Fit(m.status.text, m.width)
	switch m.status.kind {
	case statusError:
		return st.Error.Render(text)
	case statusWarning:
		return st.Warning.Render(text)
	default:
		return st.Muted.Render(text)
	}
}

// layout sizes the track list for the current window.
func (m *Model) layout() {
	width := m.width
	if m.showArtwork() {
		width -= m.artworkCols() + ui.BorderHeight
	}
	m.list.SetSize(width, m.middleHeight())
}

func (m Model) middleHeight() int {
	help := lipgloss.Height(m.help.View(m.helpKeys))
	return max(m.height-headerbar.Height-playerbar.Height-statusHeight-help, 0)
}

func (m Model) showArtwork() bool {
	return m.artwork != nil &&
		m.width >= ui.MinArtworkWidth &&
		m.middleHeight() >= 4+ui.BorderHeight
}

func (m Model) artworkCols() int {
	return ui.ArtworkCols
}

func (m Model) artworkRows() int {
	return min(ui.ArtworkRows, m.middleHeight()-ui.BorderHeight)
}
