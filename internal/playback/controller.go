// Package playback owns the playlist cursor and drives a single-unit audio
// engine. Engine calls are made without holding the state lock, so commands
// overlap freely; a generation counter decides which completions still apply.
package playback

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/cassette/internal/engine"
)

// Options configures a Controller.
type Options struct {
	// AutoAdvance moves to the next track (and keeps playing) when the
	// current one ends.
	AutoAdvance bool
}

// Controller is the playback state machine. All methods are safe for
// concurrent use.
type Controller struct {
	engine engine.Engine
	opts   Options

	// transportMu serializes play/pause/stop so two toggles cannot both
	// observe Ready. Never acquired while holding mu.
	transportMu sync.Mutex

	mu         sync.Mutex
	tracks     []Track
	phase      Phase
	index      int
	unit       engine.Unit
	generation uint64
	closed     bool
	subs       []*Subscription
}

// New creates a controller in the Empty phase and registers for the
// engine's end-of-track notifications.
func New(eng engine.Engine, opts Options) *Controller {
	c := &Controller{
		engine: eng,
		opts:   opts,
		phase:  PhaseEmpty,
		index:  -1,
	}
	eng.OnFinished(c.handleFinished)
	return c
}

// State returns the current snapshot.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Playlist returns a copy of the current playlist.
func (c *Controller) Playlist() []Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tracks)
}

// Progress returns the position and length of the held unit.
func (c *Controller) Progress() (time.Duration, time.Duration) {
	c.mu.Lock()
	u := c.unit
	c.mu.Unlock()
	if u == nil {
		return 0, 0
	}
	return c.engine.Progress(u)
}

// Subscribe creates a new event subscription. The returned func
// unsubscribes and closes Done.
func (c *Controller) Subscribe() (*Subscription, func()) {
	sub := newSubscription()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sub.close()
		return sub, func() {}
	}
	c.subs = append(c.subs, sub)
	return sub, func() { c.unsubscribe(sub) }
}

func (c *Controller) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	c.subs = slices.DeleteFunc(c.subs, func(s *Subscription) bool { return s == sub })
	c.mu.Unlock()
	sub.close()
}

// SetPlaylist replaces the playlist.
//
// An empty playlist moves to Empty and releases the held unit. Otherwise the
// selected track is kept when its ID is still present (the index is remapped
// and nothing reloads); when it is gone the index is clamped and reloaded.
// With no previous selection index 0 is loaded. Loading never autoplays.
func (c *Controller) SetPlaylist(ctx context.Context, tracks []Track) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	var prevID int64
	hadSelection := c.index >= 0 && c.index < len(c.tracks)
	if hadSelection {
		prevID = c.tracks[c.index].ID
	}
	c.tracks = slices.Clone(tracks)

	if len(c.tracks) == 0 {
		c.generation++
		prev := c.detachLocked()
		c.index = -1
		c.phase = PhaseEmpty
		c.emitLocked()
		c.mu.Unlock()
		c.release(ctx, prev)
		return nil
	}

	target := 0
	if hadSelection {
		if i := slices.IndexFunc(c.tracks, func(t Track) bool { return t.ID == prevID }); i >= 0 {
			c.index = i
			c.emitLocked()
			c.mu.Unlock()
			return nil
		}
		target = min(c.index, len(c.tracks)-1)
	}

	l := c.beginLoadLocked(target)
	c.mu.Unlock()
	_, err := c.finishLoad(ctx, l, OpSetPlaylist)
	return err
}

// SelectTrack loads the track at index. Selecting the current track while it
// is Ready or Playing does nothing. The engine's *LoadError is returned (and
// reported) when the load fails; a selection superseded by a newer one
// returns nil.
func (c *Controller) SelectTrack(ctx context.Context, index int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if index < 0 || index >= len(c.tracks) {
		c.warnLocked(OpSelect, index, ErrOutOfRange)
		c.mu.Unlock()
		return nil
	}
	if index == c.index && c.phase.IsLoaded() {
		c.mu.Unlock()
		return nil
	}
	l := c.beginLoadLocked(index)
	c.mu.Unlock()

	_, err := c.finishLoad(ctx, l, OpSelect)
	return err
}

// Next selects the following track (wrapping) and starts playing it.
func (c *Controller) Next(ctx context.Context) error {
	return c.step(ctx, 1, OpNext)
}

// Previous selects the preceding track (wrapping) and starts playing it.
func (c *Controller) Previous(ctx context.Context) error {
	return c.step(ctx, -1, OpPrevious)
}

// step always reloads, even when the wrapped index equals the current one.
func (c *Controller) step(ctx context.Context, delta int, op Op) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	n := len(c.tracks)
	if n == 0 {
		c.warnLocked(op, -1, ErrEmpty)
		c.mu.Unlock()
		return nil
	}
	cur := max(c.index, 0)
	l := c.beginLoadLocked(((cur+delta)%n + n) % n)
	c.mu.Unlock()

	ready, err := c.finishLoad(ctx, l, op)
	if err != nil || !ready {
		return err
	}
	return c.ensurePlaying(ctx, l.generation, op)
}

// PlayPause toggles between Ready and Playing. In any other phase the
// command is reported as a warning and dropped.
func (c *Controller) PlayPause(ctx context.Context) error {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.phase.IsLoaded() {
		c.warnLocked(OpPlayPause, c.index, ErrNotReady)
		c.mu.Unlock()
		return nil
	}
	gen, u, playing := c.generation, c.unit, c.phase == PhasePlaying
	c.mu.Unlock()

	call, next := c.engine.Play, PhasePlaying
	if playing {
		call, next = c.engine.Pause, PhaseReady
	}
	return c.transport(gen, next, OpPlayPause, call(ctx, u))
}

// Stop pauses and rewinds the held unit, leaving it loaded.
func (c *Controller) Stop(ctx context.Context) error {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.phase.IsLoaded() {
		c.warnLocked(OpStop, c.index, ErrNotLoaded)
		c.mu.Unlock()
		return nil
	}
	gen, u := c.generation, c.unit
	c.mu.Unlock()

	return c.transport(gen, PhaseReady, OpStop, c.engine.Stop(ctx, u))
}

// Close releases the held unit and closes all subscriptions. Later calls
// return ErrClosed.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	prev := c.detachLocked()
	c.phase = PhaseClosed
	c.emitLocked()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	c.release(ctx, prev)
	return nil
}

// ensurePlaying starts the unit loaded by generation gen unless it is
// already playing or has been superseded.
func (c *Controller) ensurePlaying(ctx context.Context, gen uint64, op Op) error {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	c.mu.Lock()
	if c.generation != gen || c.phase != PhaseReady {
		c.mu.Unlock()
		return nil
	}
	u := c.unit
	c.mu.Unlock()

	return c.transport(gen, PhasePlaying, op, c.engine.Play(ctx, u))
}

// transport applies the result of an engine transport call made for
// generation gen.
func (c *Controller) transport(gen uint64, next Phase, op Op, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen || !c.phase.IsLoaded() {
		// track changed while the call was in flight
		return nil
	}
	if err != nil {
		c.reportLocked(Report{Kind: ReportTransport, Op: op, Index: c.index, Err: err})
		return err
	}
	c.phase = next
	c.emitLocked()
	return nil
}

type pendingLoad struct {
	generation uint64
	index      int
	locator    string
	prev       engine.Unit
}

// beginLoadLocked supersedes any in-flight load and detaches the held unit.
func (c *Controller) beginLoadLocked(index int) pendingLoad {
	c.generation++
	l := pendingLoad{
		generation: c.generation,
		index:      index,
		locator:    c.tracks[index].Source,
		prev:       c.detachLocked(),
	}
	c.index = index
	c.phase = PhaseLoading
	c.emitLocked()
	zlog.Debug().Int("index", index).Uint64("generation", l.generation).
		Str("locator", l.locator).Msg("loading track")
	return l
}

// finishLoad releases the previous unit, runs the load and applies its
// result if l is still current. ready is true when l reached Ready.
func (c *Controller) finishLoad(ctx context.Context, l pendingLoad, op Op) (bool, error) {
	c.release(ctx, l.prev)

	u, err := c.engine.Load(ctx, l.locator)

	c.mu.Lock()
	if c.generation != l.generation {
		c.mu.Unlock()
		zlog.Debug().Int("index", l.index).Uint64("generation", l.generation).Msg("discarding stale load")
		if err == nil {
			c.release(ctx, u)
		}
		return false, nil
	}
	defer c.mu.Unlock()

	if err != nil {
		c.phase = PhaseIdle
		c.reportLocked(Report{Kind: ReportLoad, Op: op, Index: l.index, Err: err})
		c.emitLocked()
		return false, err
	}
	c.unit = u
	c.phase = PhaseReady
	c.emitLocked()
	return true, nil
}

func (c *Controller) handleFinished(u engine.Unit) {
	c.mu.Lock()
	if c.closed || c.unit == nil || c.unit.ID() != u.ID() {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseReady
	c.emitLocked()
	advance := c.opts.AutoAdvance
	c.mu.Unlock()

	if !advance {
		return
	}
	if err := c.step(context.Background(), 1, OpFinished); err != nil {
		zlog.Warn().Err(err).Msg("auto-advance failed")
	}
}

// detachLocked takes the held unit out of the state. The caller owns the
// returned unit and must release it.
func (c *Controller) detachLocked() engine.Unit {
	u := c.unit
	c.unit = nil
	return u
}

// release unloads u, if any. Unload failures are only logged since the
// unit is gone from the state either way.
func (c *Controller) release(ctx context.Context, u engine.Unit) {
	if u == nil {
		return
	}
	if err := c.engine.Unload(context.WithoutCancel(ctx), u); err != nil {
		zlog.Warn().Err(err).Uint64("unit", u.ID()).Msg("unload failed")
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Phase:      c.phase,
		Index:      c.index,
		Loaded:     c.unit != nil,
		Playing:    c.phase == PhasePlaying,
		Generation: c.generation,
		Len:        len(c.tracks),
	}
	if c.index >= 0 && c.index < len(c.tracks) {
		t := c.tracks[c.index]
		s.Track = &t
	}
	return s
}

func (c *Controller) emitLocked() {
	snap := c.snapshotLocked()
	for _, sub := range c.subs {
		sub.sendSnapshot(snap)
	}
}

func (c *Controller) warnLocked(op Op, index int, err error) {
	c.reportLocked(Report{
		Kind:  ReportWarning,
		Op:    op,
		Index: index,
		Err:   &PreconditionWarning{Op: op, Phase: c.phase, Err: err},
	})
}

func (c *Controller) reportLocked(r Report) {
	level := zerolog.WarnLevel
	if r.Kind == ReportWarning {
		level = zerolog.DebugLevel
	}
	zlog.WithLevel(level).Err(r.Err).Str("kind", r.Kind.String()).
		Str("op", string(r.Op)).Int("index", r.Index).Msg("playback report")
	for _, sub := range c.subs {
		sub.sendReport(r)
	}
}
