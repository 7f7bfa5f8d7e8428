package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cassette/internal/errmsg"
	"github.com/llehouerou/cassette/internal/keymap"
	"github.com/llehouerou/cassette/internal/playback"
	"github.com/llehouerou/cassette/internal/ui/tracklist"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		cmd := m.requestArtwork()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tracklist.SelectTrackMsg:
		idx := msg.Index
		return m, m.control(playback.OpSelect, func(ctx context.Context) error {
			return m.player.SelectTrack(ctx, idx)
		})

	case SnapshotMsg:
		return m.handleSnapshot(playback.Snapshot(msg))

	case ReportMsg:
		m.status = reportStatus(playback.Report(msg), m.list.Tracks())
		return m, m.WatchEvents()

	case ClosedMsg:
		return m, nil

	case TickMsg:
		m.refreshProgress()
		return m, TickCmd()

	case ArtworkMsg:
		if msg.key == m.wantArtwork() {
			m.art = artworkView{key: msg.key, view: msg.view}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.keys.Resolve(msg.String())

	switch action {
	case keymap.ActionQuit:
		return m, tea.Quit
	case keymap.ActionHelp:
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		cmd := m.requestArtwork()
		return m, cmd
	case keymap.ActionPlayPause:
		m.status = status{}
		return m, m.control(playback.OpPlayPause, m.player.PlayPause)
	case keymap.ActionStop:
		m.status = status{}
		return m, m.control(playback.OpStop, m.player.Stop)
	case keymap.ActionNextTrack:
		m.status = status{}
		return m, m.control(playback.OpNext, m.player.Next)
	case keymap.ActionPrevTrack:
		m.status = status{}
		return m, m.control(playback.OpPrevious, m.player.Previous)
	case keymap.ActionSelect:
		m.status = status{}
		fallthrough
	case keymap.ActionMoveUp, keymap.ActionMoveDown, keymap.ActionJumpStart, keymap.ActionJumpEnd:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(action)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleSnapshot(s playback.Snapshot) (tea.Model, tea.Cmd) {
	prevIndex := m.snap.Index
	m.snap = s

	if s.Len != len(m.list.Tracks()) {
		m.list.SetTracks(m.player.Playlist())
	}
	if s.Index >= 0 && s.Index != prevIndex {
		m.list.SetCursor(s.Index)
	}
	m.refreshProgress()

	artCmd := m.requestArtwork()
	return m, tea.Batch(m.WatchEvents(), artCmd)
}

func (m *Model) refreshProgress() {
	if !m.snap.Phase.IsLoaded() {
		m.position, m.duration = 0, 0
		return
	}
	m.position, m.duration = m.player.Progress()
}

// requestArtwork starts rendering the current track's artwork unless it is
// already shown or pending.
func (m *Model) requestArtwork() tea.Cmd {
	key := m.wantArtwork()
	if key == (artworkKey{}) || key == m.art.key || key == m.art.pending {
		return nil
	}
	m.art.pending = key
	return m.loadArtwork(*m.snap.Track, key)
}

func (m Model) wantArtwork() artworkKey {
	if !m.showArtwork() || m.snap.Track == nil {
		return artworkKey{}
	}
	return artworkKey{trackID: m.snap.Track.ID, cols: m.artworkCols(), rows: m.artworkRows()}
}

func reportStatus(r playback.Report, tracks []playback.Track) status {
	if r.Err == nil {
		return status{}
	}
	var title string
	if r.Index >= 0 && r.Index < len(tracks) {
		title = tracks[r.Index].Title
	}

	switch r.Kind {
	case playback.ReportWarning:
		return status{kind: statusWarning, text: r.Err.Error()}
	case playback.ReportLoad:
		return status{kind: statusError, text: errmsg.FormatWith(errmsg.OpTrackLoad, title, r.Err)}
	default:
		return status{kind: statusError, text: errmsg.FormatWith(errmsg.OpPlaybackControl, title, r.Err)}
	}
}
