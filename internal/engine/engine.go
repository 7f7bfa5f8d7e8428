// Package engine wraps the audio backend behind a single-unit contract:
// a locator is loaded into an opaque Unit which can then be played, paused,
// stopped and unloaded. The engine knows nothing about playlists.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrNotLoaded         = errors.New("unit not loaded")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrUnsupportedScheme = errors.New("unsupported locator scheme")
)

// Unit is an opaque handle to one loaded, playable track.
type Unit interface {
	ID() uint64
	Locator() string
}

// Engine is the audio engine contract.
//
// Load may be called while another unit is still loaded; releasing the
// previous unit is the caller's job. Unload is safe on an already unloaded
// unit. Play, Pause and Stop fail with *TransportError when the unit is not
// loaded.
type Engine interface {
	Load(ctx context.Context, locator string) (Unit, error)
	Unload(ctx context.Context, u Unit) error
	Play(ctx context.Context, u Unit) error
	Pause(ctx context.Context, u Unit) error
	Stop(ctx context.Context, u Unit) error

	// Progress returns the position and total length of u (zero if unknown).
	Progress(u Unit) (position, duration time.Duration)

	// OnFinished registers fn to be called when a unit plays to its end.
	// fn runs on its own goroutine.
	OnFinished(fn func(Unit))
}

// LoadError reports that a locator could not be prepared for playback.
type LoadError struct {
	Locator string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Locator, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Op names a transport operation.
type Op string

const (
	OpPlay  Op = "play"
	OpPause Op = "pause"
	OpStop  Op = "stop"
)

// TransportError reports that a transport command was rejected.
type TransportError struct {
	Op     Op
	UnitID uint64
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s unit %d: %v", e.Op, e.UnitID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
