package app

import (
	"time"

	"github.com/llehouerou/cassette/internal/playback"
)

// TickMsg is sent periodically to refresh the progress bar.
type TickMsg time.Time

// SnapshotMsg carries a controller state snapshot.
type SnapshotMsg playback.Snapshot

// ReportMsg carries a controller report.
type ReportMsg playback.Report

// ClosedMsg is sent when the subscription ends.
type ClosedMsg struct{}

// ArtworkMsg carries a rendered artwork block.
type ArtworkMsg struct {
	key  artworkKey
	view string
	err  error
}
