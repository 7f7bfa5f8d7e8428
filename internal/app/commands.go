package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/cassette/internal/playback"
	"github.com/llehouerou/cassette/internal/ui/artwork"
)

const artworkTimeout = 10 * time.Second

// TickCmd returns a command that sends TickMsg after 1 second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// WatchEvents returns a command that waits for the next controller event.
// It is re-issued after every event it delivers.
func (m Model) WatchEvents() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	sub := m.sub
	return func() tea.Msg {
		select {
		case s := <-sub.Snapshots:
			return SnapshotMsg(s)
		case r := <-sub.Reports:
			return ReportMsg(r)
		case <-sub.Done:
			return ClosedMsg{}
		}
	}
}

// control runs a controller command as a tea.Cmd. Failures arrive as
// reports; the returned error is only logged.
func (m Model) control(op playback.Op, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil && !errors.Is(err, playback.ErrClosed) {
			zlog.Debug().Err(err).Str("op", string(op)).Msg("playback command failed")
		}
		return nil
	}
}

func (m Model) loadArtwork(track playback.Track, key artworkKey) tea.Cmd {
	r := m.artwork
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), artworkTimeout)
		defer cancel()
		view, err := r.Render(ctx, track.Artwork, track.Source, key.cols, key.rows)
		if err != nil && !errors.Is(err, artwork.ErrNoArtwork) {
			zlog.Debug().Err(err).Int64("track", track.ID).Msg("artwork unavailable")
		}
		return ArtworkMsg{key: key, view: view, err: err}
	}
}
