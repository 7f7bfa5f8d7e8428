// Package tracklist renders the selectable playlist panel.
package tracklist

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cassette/internal/keymap"
	"github.com/llehouerou/cassette/internal/playback"
	"github.com/llehouerou/cassette/internal/ui"
)

// SelectTrackMsg is sent when the user picks the track under the cursor.
type SelectTrackMsg struct {
	Index int
}

// Model represents the track list state.
type Model struct {
	ui.Base
	tracks []playback.Track
	cursor int
	offset int
}

// New creates an empty track list.
func New() Model {
	return Model{}
}

// SetTracks replaces the listed tracks, keeping the cursor in range.
func (m *Model) SetTracks(tracks []playback.Track) {
	m.tracks = tracks
	m.moveTo(m.cursor)
}

// Tracks returns the listed tracks.
func (m Model) Tracks() []playback.Track {
	return m.tracks
}

// Cursor returns the cursor position.
func (m Model) Cursor() int {
	return m.cursor
}

// SetCursor moves the cursor to idx (clamped).
func (m *Model) SetCursor(idx int) {
	m.moveTo(idx)
}

// Update handles list actions. ActionSelect emits SelectTrackMsg.
func (m Model) Update(action keymap.Action) (Model, tea.Cmd) {
	switch action {
	case keymap.ActionMoveDown:
		m.moveTo(m.cursor + 1)
	case keymap.ActionMoveUp:
		m.moveTo(m.cursor - 1)
	case keymap.ActionJumpStart:
		m.moveTo(0)
	case keymap.ActionJumpEnd:
		m.moveTo(len(m.tracks) - 1)
	case keymap.ActionSelect:
		if len(m.tracks) == 0 {
			return m, nil
		}
		idx := m.cursor
		return m, func() tea.Msg { return SelectTrackMsg{Index: idx} }
	}
	return m, nil
}

func (m *Model) listHeight() int {
	return max(m.Height()-ui.BorderHeight-1, 1) // border + header line
}

func (m *Model) moveTo(idx int) {
	if len(m.tracks) == 0 {
		m.cursor, m.offset = 0, 0
		return
	}
	m.cursor = min(max(idx, 0), len(m.tracks)-1)
	m.ensureVisible()
}

// ensureVisible keeps ui.ScrollMargin rows around the cursor when possible.
func (m *Model) ensureVisible() {
	height := m.listHeight()
	margin := min(ui.ScrollMargin, (height-1)/2)

	if m.cursor < m.offset+margin {
		m.offset = m.cursor - margin
	}
	if m.cursor >= m.offset+height-margin {
		m.offset = m.cursor - height + margin + 1
	}
	m.offset = min(max(m.offset, 0), max(len(m.tracks)-height, 0))
}
