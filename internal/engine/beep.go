package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"
)

const resampleQuality = 4

type unitState int

const (
	unitLoaded unitState = iota
	unitPlaying
	unitPaused
	unitUnloaded
)

type beepUnit struct {
	id       uint64
	locator  string
	source   *Source
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl // non-nil once handed to the speaker
	state    unitState
}

func (u *beepUnit) ID() uint64      { return u.id }
func (u *beepUnit) Locator() string { return u.locator }

// Beep plays units through the gopxl/beep speaker. Only one unit is attached
// to the speaker at a time; playing another unit detaches the previous one.
type Beep struct {
	opener *SourceOpener
	buffer time.Duration

	mu           sync.Mutex
	speakerReady bool
	speakerRate  beep.SampleRate
	attached     *beepUnit
	onFinished   func(Unit)

	nextID atomic.Uint64
}

// NewBeep creates a beep engine. buffer is the speaker buffer length.
func NewBeep(opener *SourceOpener, buffer time.Duration) *Beep {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &Beep{opener: opener, buffer: buffer}
}

// Load opens and decodes locator. It does not touch the speaker.
func (b *Beep) Load(ctx context.Context, locator string) (Unit, error) {
	src, err := b.opener.Open(ctx, locator)
	if err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}
	streamer, format, err := decode(src)
	if err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}
	if err := ctx.Err(); err != nil {
		streamer.Close()
		src.Close()
		return nil, &LoadError{Locator: locator, Err: err}
	}

	u := &beepUnit{
		id:       b.nextID.Add(1),
		locator:  locator,
		source:   src,
		streamer: streamer,
		format:   format,
		state:    unitLoaded,
	}
	zlog.Debug().Uint64("unit", u.id).Str("locator", locator).
		Int("rate", int(format.SampleRate)).Msg("unit loaded")
	return u, nil
}

// Unload releases u. Unloading twice is a no-op.
func (b *Beep) Unload(_ context.Context, u Unit) error {
	bu, ok := u.(*beepUnit)
	if !ok {
		return errors.Newf("foreign unit %T", u)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if bu.state == unitUnloaded {
		return nil
	}
	if b.attached == bu {
		speaker.Clear()
		b.attached = nil
	}
	bu.state = unitUnloaded
	err := bu.streamer.Close()
	// flac and wav decoders do not close their reader
	_ = bu.source.Close()
	zlog.Debug().Uint64("unit", bu.id).Msg("unit unloaded")
	return err
}

// Play starts or resumes u.
func (b *Beep) Play(_ context.Context, u Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bu, err := b.loadedUnit(OpPlay, u)
	if err != nil {
		return err
	}
	if bu.state == unitPlaying && b.attached == bu {
		return nil
	}

	if b.attached != bu {
		if err := b.attachLocked(bu); err != nil {
			return &TransportError{Op: OpPlay, UnitID: bu.id, Err: err}
		}
	}

	speaker.Lock()
	bu.ctrl.Paused = false
	speaker.Unlock()
	bu.state = unitPlaying
	return nil
}

// Pause pauses u. Pausing a unit that never played is a no-op.
func (b *Beep) Pause(_ context.Context, u Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bu, err := b.loadedUnit(OpPause, u)
	if err != nil {
		return err
	}
	if bu.ctrl != nil {
		speaker.Lock()
		bu.ctrl.Paused = true
		speaker.Unlock()
	}
	if bu.state == unitPlaying {
		bu.state = unitPaused
	}
	return nil
}

// Stop pauses u and rewinds it when the stream is seekable.
func (b *Beep) Stop(_ context.Context, u Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bu, err := b.loadedUnit(OpStop, u)
	if err != nil {
		return err
	}

	speaker.Lock()
	if bu.ctrl != nil {
		bu.ctrl.Paused = true
	}
	seekErr := bu.streamer.Seek(0)
	speaker.Unlock()
	if seekErr != nil {
		// network streams cannot rewind; they stay paused in place
		zlog.Debug().Err(seekErr).Uint64("unit", bu.id).Msg("rewind not supported")
	}
	bu.state = unitPaused
	return nil
}

// Progress reports u's position and length.
func (b *Beep) Progress(u Unit) (time.Duration, time.Duration) {
	bu, ok := u.(*beepUnit)
	if !ok {
		return 0, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if bu.state == unitUnloaded {
		return 0, 0
	}

	speaker.Lock()
	pos := bu.format.SampleRate.D(bu.streamer.Position())
	length := bu.format.SampleRate.D(bu.streamer.Len())
	speaker.Unlock()
	return pos, length
}

// OnFinished registers the end-of-stream callback.
func (b *Beep) OnFinished(fn func(Unit)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFinished = fn
}

func (b *Beep) loadedUnit(op Op, u Unit) (*beepUnit, error) {
	bu, ok := u.(*beepUnit)
	if !ok || bu == nil {
		return nil, &TransportError{Op: op, Err: errors.Newf("foreign unit %T", u)}
	}
	if bu.state == unitUnloaded {
		return nil, &TransportError{Op: op, UnitID: bu.id, Err: ErrNotLoaded}
	}
	return bu, nil
}

// attachLocked hands bu to the speaker, replacing whatever was attached.
func (b *Beep) attachLocked(bu *beepUnit) error {
	if !b.speakerReady {
		rate := bu.format.SampleRate
		if err := speaker.Init(rate, rate.N(b.buffer)); err != nil {
			return errors.Wrap(err, "init speaker")
		}
		b.speakerReady = true
		b.speakerRate = rate
	}

	speaker.Clear()
	if prev := b.attached; prev != nil && prev.state == unitPlaying {
		prev.state = unitPaused
	}

	var s beep.Streamer = bu.streamer
	if bu.format.SampleRate != b.speakerRate {
		s = beep.Resample(resampleQuality, bu.format.SampleRate, b.speakerRate, s)
	}
	bu.ctrl = &beep.Ctrl{Streamer: s, Paused: true}
	b.attached = bu

	speaker.Play(beep.Seq(bu.ctrl, beep.Callback(func() {
		// runs under the speaker lock
		go b.finished(bu)
	})))
	return nil
}

func (b *Beep) finished(bu *beepUnit) {
	b.mu.Lock()
	if b.attached != bu || bu.state == unitUnloaded {
		b.mu.Unlock()
		return
	}
	b.attached = nil
	bu.ctrl = nil
	bu.state = unitLoaded
	speaker.Lock()
	_ = bu.streamer.Seek(0)
	speaker.Unlock()
	fn := b.onFinished
	b.mu.Unlock()

	zlog.Debug().Uint64("unit", bu.id).Msg("unit finished")
	if fn != nil {
		fn(bu)
	}
}

// Verify Beep implements Engine at compile time.
var _ Engine = (*Beep)(nil)
