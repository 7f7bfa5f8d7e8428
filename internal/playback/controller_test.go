package playback

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/cassette/internal/engine"
)

const waitFor = 2 * time.Second

func testTracks(n int) []Track {
	tracks := make([]Track, n)
	for i := range tracks {
		tracks[i] = Track{
			ID:     int64(i + 1),
			Title:  fmt.Sprintf("Track %d", i+1),
			Source: fmt.Sprintf("track-%d", i),
		}
	}
	return tracks
}

// newTestController returns a controller over a mock engine with a
// subscription already attached.
func newTestController(t *testing.T, opts Options) (*Controller, *engine.Mock, *Subscription) {
	t.Helper()
	m := engine.NewMock()
	c := New(m, opts)
	sub, unsubscribe := c.Subscribe()
	t.Cleanup(func() {
		unsubscribe()
		_ = c.Close(context.Background())
	})
	return c, m, sub
}

// readyAt seeds n tracks and waits for index 0 to be Ready.
func readyAt(t *testing.T, n int) (*Controller, *engine.Mock, *Subscription) {
	t.Helper()
	c, m, sub := newTestController(t, Options{})
	require.NoError(t, c.SetPlaylist(context.Background(), testTracks(n)))
	require.Equal(t, PhaseReady, c.State().Phase)
	drain(sub)
	return c, m, sub
}

func drain(sub *Subscription) {
	for {
		select {
		case <-sub.Snapshots:
		case <-sub.Reports:
		default:
			return
		}
	}
}

func nextReport(t *testing.T, sub *Subscription) Report {
	t.Helper()
	select {
	case r := <-sub.Reports:
		return r
	case <-time.After(waitFor):
		t.Fatal("no report received")
		return Report{}
	}
}

func assertNoReport(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case r := <-sub.Reports:
		t.Fatalf("unexpected report: %+v", r)
	default:
	}
}

func waitLoadCalls(t *testing.T, m *engine.Mock, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(m.LoadCalls()) >= n }, waitFor, time.Millisecond)
}

func TestNew_StartsEmpty(t *testing.T) {
	c, m, _ := newTestController(t, Options{})

	s := c.State()
	assert.Equal(t, PhaseEmpty, s.Phase)
	assert.Equal(t, -1, s.Index)
	assert.Nil(t, s.Track)
	assert.False(t, s.Loaded)
	assert.False(t, s.Playing)
	assert.Empty(t, m.LoadCalls())
}

func TestSetPlaylist_LoadsFirstTrackWithoutPlaying(t *testing.T) {
	c, m, sub := newTestController(t, Options{})

	require.NoError(t, c.SetPlaylist(context.Background(), testTracks(3)))

	s := c.State()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, 0, s.Index)
	assert.True(t, s.Loaded)
	assert.False(t, s.Playing)
	assert.Equal(t, 3, s.Len)
	require.NotNil(t, s.Track)
	assert.Equal(t, "Track 1", s.Track.Title)
	assert.Equal(t, []string{"track-0"}, m.LoadCalls())
	assert.Empty(t, m.PlayCalls())

	first := <-sub.Snapshots
	assert.Equal(t, PhaseLoading, first.Phase)
	second := <-sub.Snapshots
	assert.Equal(t, PhaseReady, second.Phase)
	assert.Equal(t, first.Generation, second.Generation)
}

func TestSetPlaylist_KeepsSelectedTrack(t *testing.T) {
	c, m, _ := readyAt(t, 3)
	ctx := context.Background()
	require.NoError(t, c.SelectTrack(ctx, 1))
	require.NoError(t, c.PlayPause(ctx))
	gen := c.State().Generation

	// insert a track before the selected one
	tracks := append([]Track{{ID: 99, Title: "New", Source: "new"}}, testTracks(3)...)
	require.NoError(t, c.SetPlaylist(ctx, tracks))

	s := c.State()
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, int64(2), s.Track.ID)
	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Equal(t, gen, s.Generation)
	assert.Len(t, m.LoadCalls(), 2, "no reload expected")
	assert.Len(t, m.UnloadCalls(), 1)
}

func TestSetPlaylist_ClampsWhenSelectedTrackRemoved(t *testing.T) {
	c, m, _ := readyAt(t, 5)
	ctx := context.Background()
	require.NoError(t, c.SelectTrack(ctx, 4))

	require.NoError(t, c.SetPlaylist(ctx, testTracks(2)))

	s := c.State()
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, []string{"track-0", "track-4", "track-1"}, m.LoadCalls())
	assert.Len(t, m.LiveUnits(), 1)
}

func TestSetPlaylist_EmptyReleasesUnitOnce(t *testing.T) {
	c, m, sub := readyAt(t, 3)
	ctx := context.Background()
	require.NoError(t, c.PlayPause(ctx))
	require.True(t, c.State().Playing)
	gen := c.State().Generation

	require.NoError(t, c.SetPlaylist(ctx, nil))
	require.NoError(t, c.SetPlaylist(ctx, []Track{}))

	s := c.State()
	assert.Equal(t, PhaseEmpty, s.Phase)
	assert.Equal(t, -1, s.Index)
	assert.False(t, s.Loaded)
	assert.False(t, s.Playing)
	assert.Greater(t, s.Generation, gen)
	assert.Equal(t, []uint64{1}, m.UnloadCalls())
	assert.Empty(t, m.LiveUnits())
	assertNoReport(t, sub)
}

func TestSetPlaylist_EmptyDuringLoadDiscardsCompletion(t *testing.T) {
	c, m, _ := newTestController(t, Options{})
	ctx := context.Background()
	release := m.Gate("track-0")

	done := make(chan error, 1)
	go func() { done <- c.SetPlaylist(ctx, testTracks(2)) }()
	waitLoadCalls(t, m, 1)

	require.NoError(t, c.SetPlaylist(ctx, nil))
	release()
	require.NoError(t, <-done)

	assert.Equal(t, PhaseEmpty, c.State().Phase)
	assert.Empty(t, m.LiveUnits(), "stale unit must be released")
	assert.Len(t, m.UnloadCalls(), 1)
}

func TestSelectTrack_OutOfRangeWarns(t *testing.T) {
	c, m, sub := readyAt(t, 3)
	before := c.State()

	for _, idx := range []int{-1, 3, 42} {
		require.NoError(t, c.SelectTrack(context.Background(), idx))
		r := nextReport(t, sub)
		assert.Equal(t, ReportWarning, r.Kind)
		assert.Equal(t, OpSelect, r.Op)
		assert.ErrorIs(t, r.Err, ErrOutOfRange)
	}
	assert.Equal(t, before, c.State())
	assert.Len(t, m.LoadCalls(), 1)
}

func TestSelectTrack_IdempotentWhenReadyOrPlaying(t *testing.T) {
	c, m, _ := readyAt(t, 3)
	ctx := context.Background()

	require.NoError(t, c.SelectTrack(ctx, 0))
	assert.Len(t, m.LoadCalls(), 1)

	require.NoError(t, c.PlayPause(ctx))
	require.NoError(t, c.SelectTrack(ctx, 0))
	assert.Len(t, m.LoadCalls(), 1)
	assert.True(t, c.State().Playing)
}

func TestSelectTrack_ReleasesPreviousUnit(t *testing.T) {
	c, m, _ := readyAt(t, 3)
	ctx := context.Background()

	require.NoError(t, c.SelectTrack(ctx, 2))

	s := c.State()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, []uint64{1}, m.UnloadCalls())
	assert.Equal(t, []uint64{2}, m.LiveUnits())
}

func TestSelectTrack_StaleLoadDoesNotOverride(t *testing.T) {
	c, m, _ := readyAt(t, 3)
	ctx := context.Background()
	release := m.Gate("track-1")

	first := make(chan error, 1)
	go func() { first <- c.SelectTrack(ctx, 1) }()
	waitLoadCalls(t, m, 2)

	require.NoError(t, c.SelectTrack(ctx, 2))
	release()
	require.NoError(t, <-first, "superseded selection returns nil")

	s := c.State()
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, "Track 3", s.Track.Title)
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Len(t, m.LiveUnits(), 1, "stale unit must be released")
}

func TestSelectTrack_OutOfOrderCompletions(t *testing.T) {
	for _, newerFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("newerFirst=%v", newerFirst), func(t *testing.T) {
			c, m, _ := readyAt(t, 3)
			ctx := context.Background()
			release1 := m.Gate("track-1")
			release2 := m.Gate("track-2")

			errs := make(chan error, 2)
			go func() { errs <- c.SelectTrack(ctx, 1) }()
			waitLoadCalls(t, m, 2)
			go func() { errs <- c.SelectTrack(ctx, 2) }()
			waitLoadCalls(t, m, 3)

			if newerFirst {
				release2()
				release1()
			} else {
				release1()
				release2()
			}
			require.NoError(t, <-errs)
			require.NoError(t, <-errs)

			s := c.State()
			assert.Equal(t, 2, s.Index)
			assert.Equal(t, PhaseReady, s.Phase)
			assert.True(t, s.Loaded)
			assert.Len(t, m.LiveUnits(), 1)
		})
	}
}

func TestSelectTrack_LoadFailureRevertsToIdle(t *testing.T) {
	c, m, sub := readyAt(t, 5)
	ctx := context.Background()
	m.SetLoadError("track-2", errors.New("codec exploded"))

	err := c.SelectTrack(ctx, 2)

	var loadErr *engine.LoadError
	require.True(t, errors.As(err, &loadErr), "err = %v", err)
	assert.Equal(t, "track-2", loadErr.Locator)

	s := c.State()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, 2, s.Index)
	assert.False(t, s.Loaded)
	assert.False(t, s.Playing)

	r := nextReport(t, sub)
	assert.Equal(t, ReportLoad, r.Kind)
	assert.Equal(t, 2, r.Index)
	assert.True(t, errors.As(r.Err, &loadErr))

	assert.Equal(t, []uint64{1}, m.UnloadCalls(), "previous unit unloaded exactly once")
	assert.Empty(t, m.LiveUnits())

	// retry by re-selecting
	m.SetLoadError("track-2", nil)
	require.NoError(t, c.SelectTrack(ctx, 2))
	assert.Equal(t, PhaseReady, c.State().Phase)
}

func TestPlayPause_BeforeLoadWarns(t *testing.T) {
	c, m, sub := newTestController(t, Options{})
	ctx := context.Background()
	release := m.Gate("track-0")
	defer release()

	done := make(chan error, 1)
	go func() { done <- c.SetPlaylist(ctx, testTracks(3)) }()
	waitLoadCalls(t, m, 1)
	require.Equal(t, PhaseLoading, c.State().Phase)
	before := c.State()

	require.NoError(t, c.PlayPause(ctx))

	assert.Equal(t, before, c.State())
	r := nextReport(t, sub)
	assert.Equal(t, ReportWarning, r.Kind)
	assert.Equal(t, OpPlayPause, r.Op)
	var w *PreconditionWarning
	require.True(t, errors.As(r.Err, &w))
	assert.Equal(t, PhaseLoading, w.Phase)
	assert.ErrorIs(t, r.Err, ErrNotReady)
	assert.Empty(t, m.PlayCalls())

	release()
	require.NoError(t, <-done)
}

func TestPlayPause_OnEmptyWarns(t *testing.T) {
	c, _, sub := newTestController(t, Options{})

	require.NoError(t, c.PlayPause(context.Background()))

	assert.Equal(t, PhaseEmpty, c.State().Phase)
	assert.Equal(t, ReportWarning, nextReport(t, sub).Kind)
}

func TestPlayPause_Toggles(t *testing.T) {
	c, m, _ := readyAt(t, 2)
	ctx := context.Background()

	require.NoError(t, c.PlayPause(ctx))
	s := c.State()
	assert.Equal(t, PhasePlaying, s.Phase)
	assert.True(t, s.Playing)
	assert.True(t, m.IsPlaying(1))

	require.NoError(t, c.PlayPause(ctx))
	s = c.State()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.False(t, s.Playing)
	assert.True(t, s.Loaded)
	assert.False(t, m.IsPlaying(1))

	assert.Equal(t, []uint64{1}, m.PlayCalls())
	assert.Equal(t, []uint64{1}, m.PauseCalls())
}

func TestPlayPause_TransportErrorLeavesState(t *testing.T) {
	c, m, sub := readyAt(t, 2)
	ctx := context.Background()
	m.SetPlayError(errors.New("device busy"))

	err := c.PlayPause(ctx)

	var te *engine.TransportError
	require.True(t, errors.As(err, &te), "err = %v", err)
	assert.Equal(t, engine.OpPlay, te.Op)
	assert.Equal(t, PhaseReady, c.State().Phase)
	r := nextReport(t, sub)
	assert.Equal(t, ReportTransport, r.Kind)
	assert.Equal(t, OpPlayPause, r.Op)

	m.SetPlayError(nil)
	require.NoError(t, c.PlayPause(ctx))
	m.SetPauseError(errors.New("device busy"))
	require.Error(t, c.PlayPause(ctx))
	assert.Equal(t, PhasePlaying, c.State().Phase)
}

func TestPlayPause_ConcurrentTogglesAlternate(t *testing.T) {
	c, m, _ := readyAt(t, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.PlayPause(ctx))
		}()
	}
	wg.Wait()

	// an even number of toggles ends where it started
	assert.Equal(t, PhaseReady, c.State().Phase)
	assert.Len(t, m.PlayCalls(), 5)
	assert.Len(t, m.PauseCalls(), 5)
}

func TestStop_FromPlayingKeepsUnitLoaded(t *testing.T) {
	c, m, _ := readyAt(t, 2)
	ctx := context.Background()
	require.NoError(t, c.PlayPause(ctx))
	m.SetPosition(c.unitForTest(), 42*time.Second)

	require.NoError(t, c.Stop(ctx))

	s := c.State()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.True(t, s.Loaded)
	assert.False(t, s.Playing)
	assert.Equal(t, []uint64{1}, m.StopCalls())
	assert.Empty(t, m.UnloadCalls())
	pos, _ := c.Progress()
	assert.Zero(t, pos)
}

func TestStop_FromReady(t *testing.T) {
	c, m, _ := readyAt(t, 2)

	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, PhaseReady, c.State().Phase)
	assert.Len(t, m.StopCalls(), 1)
}

func TestStop_NotLoadedWarns(t *testing.T) {
	c, m, sub := newTestController(t, Options{})

	require.NoError(t, c.Stop(context.Background()))

	r := nextReport(t, sub)
	assert.Equal(t, ReportWarning, r.Kind)
	assert.Equal(t, OpStop, r.Op)
	assert.ErrorIs(t, r.Err, ErrNotLoaded)
	assert.Empty(t, m.StopCalls())
}

func TestStop_TransportError(t *testing.T) {
	c, m, sub := readyAt(t, 2)
	ctx := context.Background()
	require.NoError(t, c.PlayPause(ctx))
	m.SetStopError(errors.New("boom"))

	require.Error(t, c.Stop(ctx))

	assert.Equal(t, PhasePlaying, c.State().Phase)
	assert.Equal(t, ReportTransport, nextReport(t, sub).Kind)
}

func TestNext_WrapsAroundAndPlays(t *testing.T) {
	c, m, _ := readyAt(t, 5)
	ctx := context.Background()

	want := []int{1, 2, 3, 4, 0}
	for _, idx := range want {
		require.NoError(t, c.Next(ctx))
		s := c.State()
		assert.Equal(t, idx, s.Index)
		assert.Equal(t, PhasePlaying, s.Phase)
	}
	assert.Len(t, m.LoadCalls(), 6)
	assert.Len(t, m.LiveUnits(), 1)
}

func TestPrevious_WrapsAround(t *testing.T) {
	c, _, _ := readyAt(t, 5)
	ctx := context.Background()

	require.NoError(t, c.Previous(ctx))
	assert.Equal(t, 4, c.State().Index)
	require.NoError(t, c.Previous(ctx))
	assert.Equal(t, 3, c.State().Index)
	assert.True(t, c.State().Playing)
}

func TestNext_SingleTrackReloads(t *testing.T) {
	c, m, _ := readyAt(t, 1)
	ctx := context.Background()

	require.NoError(t, c.Next(ctx))

	s := c.State()
	assert.Equal(t, 0, s.Index)
	assert.True(t, s.Playing)
	assert.Equal(t, []string{"track-0", "track-0"}, m.LoadCalls())
	assert.Equal(t, []uint64{1}, m.UnloadCalls())
	assert.Equal(t, []uint64{2}, m.PlayCalls())
}

func TestNext_EmptyWarns(t *testing.T) {
	c, m, sub := newTestController(t, Options{})

	require.NoError(t, c.Next(context.Background()))
	require.NoError(t, c.Previous(context.Background()))

	for _, op := range []Op{OpNext, OpPrevious} {
		r := nextReport(t, sub)
		assert.Equal(t, op, r.Op)
		assert.ErrorIs(t, r.Err, ErrEmpty)
	}
	assert.Empty(t, m.LoadCalls())
}

func TestNext_SupersededDoesNotPlay(t *testing.T) {
	c, m, _ := readyAt(t, 3)
	ctx := context.Background()
	release := m.Gate("track-1")

	done := make(chan error, 1)
	go func() { done <- c.Next(ctx) }()
	waitLoadCalls(t, m, 2)

	require.NoError(t, c.SelectTrack(ctx, 2))
	release()
	require.NoError(t, <-done)

	s := c.State()
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, PhaseReady, s.Phase, "plain selection must not autoplay")
	assert.Empty(t, m.PlayCalls())
}

func TestNext_LoadFailure(t *testing.T) {
	c, m, sub := readyAt(t, 3)
	m.SetLoadError("track-1", errors.New("404"))

	err := c.Next(context.Background())

	require.Error(t, err)
	s := c.State()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, 1, s.Index)
	assert.Empty(t, m.PlayCalls())
	r := nextReport(t, sub)
	assert.Equal(t, ReportLoad, r.Kind)
	assert.Equal(t, OpNext, r.Op)
}

func TestFinished_StopsWithoutAutoAdvance(t *testing.T) {
	c, m, _ := readyAt(t, 3)
	ctx := context.Background()
	require.NoError(t, c.PlayPause(ctx))

	m.SimulateFinished(c.unitForTest())

	s := c.State()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, 0, s.Index)
	assert.True(t, s.Loaded)
}

func TestFinished_AutoAdvancePlaysNext(t *testing.T) {
	c, m, _ := newTestController(t, Options{AutoAdvance: true})
	ctx := context.Background()
	require.NoError(t, c.SetPlaylist(ctx, testTracks(2)))
	require.NoError(t, c.SelectTrack(ctx, 1))
	require.NoError(t, c.PlayPause(ctx))

	m.SimulateFinished(c.unitForTest())

	s := c.State()
	assert.Equal(t, 0, s.Index, "wraps to the first track")
	assert.Equal(t, PhasePlaying, s.Phase)
}

func TestFinished_IgnoresForeignUnit(t *testing.T) {
	c, m, _ := newTestController(t, Options{AutoAdvance: true})
	ctx := context.Background()
	require.NoError(t, c.SetPlaylist(ctx, testTracks(3)))
	old := c.unitForTest()
	require.NoError(t, c.SelectTrack(ctx, 2))
	require.NoError(t, c.PlayPause(ctx))

	m.SimulateFinished(old)

	s := c.State()
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, PhasePlaying, s.Phase)
}

func TestProgress(t *testing.T) {
	c, m, _ := newTestController(t, Options{})
	pos, dur := c.Progress()
	assert.Zero(t, pos)
	assert.Zero(t, dur)

	require.NoError(t, c.SetPlaylist(context.Background(), testTracks(1)))
	m.SetPosition(c.unitForTest(), 10*time.Second)

	pos, dur = c.Progress()
	assert.Equal(t, 10*time.Second, pos)
	assert.Equal(t, 3*time.Minute, dur)
}

func TestPlaylist_ReturnsCopy(t *testing.T) {
	c, _, _ := readyAt(t, 2)

	pl := c.Playlist()
	pl[0].Title = "mutated"

	assert.Equal(t, "Track 1", c.Playlist()[0].Title)
}

func TestClose_ReleasesAndRejects(t *testing.T) {
	m := engine.NewMock()
	c := New(m, Options{})
	ctx := context.Background()
	sub, _ := c.Subscribe()
	require.NoError(t, c.SetPlaylist(ctx, testTracks(2)))
	require.NoError(t, c.PlayPause(ctx))

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx), "second close is a no-op")

	<-sub.Done
	assert.Equal(t, PhaseClosed, c.State().Phase)
	assert.False(t, c.State().Loaded)
	assert.Equal(t, []uint64{1}, m.UnloadCalls())
	assert.ErrorIs(t, c.SelectTrack(ctx, 1), ErrClosed)
	assert.ErrorIs(t, c.PlayPause(ctx), ErrClosed)
	assert.ErrorIs(t, c.Next(ctx), ErrClosed)
	assert.ErrorIs(t, c.SetPlaylist(ctx, testTracks(1)), ErrClosed)

	late, _ := c.Subscribe()
	<-late.Done
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	c, _, _ := newTestController(t, Options{})
	sub, unsubscribe := c.Subscribe()

	unsubscribe()
	unsubscribe()
	<-sub.Done

	require.NoError(t, c.SetPlaylist(context.Background(), testTracks(1)))
	select {
	case s := <-sub.Snapshots:
		t.Fatalf("unsubscribed listener got %+v", s)
	default:
	}
}

// Random concurrent commands must never produce a snapshot that is playing
// without a loaded unit or with an index out of range, and must never leak
// units.
func TestController_RandomCommandsKeepInvariants(t *testing.T) {
	const n = 4
	m := engine.NewMock()
	c := New(m, Options{AutoAdvance: true})
	sub, unsubscribe := c.Subscribe()
	defer unsubscribe()
	ctx := context.Background()
	require.NoError(t, c.SetPlaylist(ctx, testTracks(n)))

	check := func(s Snapshot) {
		if s.Playing {
			assert.True(t, s.Loaded, "playing without a loaded unit: %+v", s)
		}
		if s.Len > 0 && s.Phase != PhaseClosed {
			assert.True(t, s.Index >= 0 && s.Index < s.Len, "index out of range: %+v", s)
		}
	}

	stop := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		for {
			select {
			case s := <-sub.Snapshots:
				check(s)
			case <-sub.Reports:
			case <-stop:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(w), 7))
			for range 200 {
				switch r.IntN(6) {
				case 0:
					_ = c.Next(ctx)
				case 1:
					_ = c.Previous(ctx)
				case 2:
					_ = c.SelectTrack(ctx, r.IntN(n+1))
				case 3:
					_ = c.PlayPause(ctx)
				case 4:
					_ = c.Stop(ctx)
				case 5:
					if r.IntN(10) == 0 {
						_ = c.SetPlaylist(ctx, testTracks(r.IntN(n+1)))
					}
				}
				check(c.State())
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-watched

	s := c.State()
	check(s)
	if s.Loaded {
		assert.Len(t, m.LiveUnits(), 1)
	} else {
		assert.Empty(t, m.LiveUnits())
	}
	require.NoError(t, c.Close(ctx))
	assert.Empty(t, m.LiveUnits())
}

// unitForTest exposes the held unit to drive the mock engine.
func (c *Controller) unitForTest() engine.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unit
}
