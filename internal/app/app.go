// Package app is the bubbletea front end: a passive subscriber of the
// playback controller that turns key presses into controller commands.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cassette/internal/keymap"
	"github.com/llehouerou/cassette/internal/playback"
	"github.com/llehouerou/cassette/internal/ui/artwork"
	"github.com/llehouerou/cassette/internal/ui/headerbar"
	"github.com/llehouerou/cassette/internal/ui/tracklist"
)

// Player is the part of the playback controller the UI drives.
type Player interface {
	State() playback.Snapshot
	Playlist() []playback.Track
	Progress() (position, duration time.Duration)
	SetPlaylist(ctx context.Context, tracks []playback.Track) error
	SelectTrack(ctx context.Context, index int) error
	PlayPause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

// Options configures New.
type Options struct {
	Player       Player
	Subscription *playback.Subscription
	Tracks       []playback.Track // installed as the playlist by Init
	Catalog      headerbar.Info
	Artwork      *artwork.Renderer // nil disables the artwork panel
	Status       string            // initial status line, e.g. a degraded start
}

// Model is the root application model.
type Model struct {
	player   Player
	sub      *playback.Subscription
	initial  []playback.Track
	artwork  *artwork.Renderer
	keys     *keymap.Resolver
	help     help.Model
	helpKeys helpKeyMap

	list    tracklist.Model
	catalog headerbar.Info

	snap     playback.Snapshot
	position time.Duration
	duration time.Duration

	art    artworkView
	status status

	width  int
	height int
}

type artworkView struct {
	key     artworkKey
	pending artworkKey
	view    string
}

type artworkKey struct {
	trackID    int64
	cols, rows int
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusWarning
	statusError
)

type status struct {
	kind statusKind
	text string
}

// New creates the application model.
func New(opts Options) Model {
	keys := keymap.Default()
	list := tracklist.New()
	list.SetFocused(true)
	list.SetTracks(opts.Tracks)

	m := Model{
		player:   opts.Player,
		sub:      opts.Subscription,
		initial:  opts.Tracks,
		artwork:  opts.Artwork,
		keys:     keys,
		help:     help.New(),
		helpKeys: newHelpKeyMap(keys),
		list:     list,
		catalog:  opts.Catalog,
		snap:     opts.Player.State(),
	}
	if opts.Status != "" {
		m.status = status{kind: statusWarning, text: opts.Status}
	}
	return m
}

// Init installs the playlist and starts the event watch and progress tick.
func (m Model) Init() tea.Cmd {
	tracks := m.initial
	return tea.Batch(
		m.control(playback.OpSetPlaylist, func(ctx context.Context) error {
			return m.player.SetPlaylist(ctx, tracks)
		}),
		m.WatchEvents(),
		TickCmd(),
	)
}
