package playback

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrClosed     = errors.New("controller closed")
	ErrNotReady   = errors.New("track not loaded yet")
	ErrNotLoaded  = errors.New("nothing loaded")
	ErrEmpty      = errors.New("playlist is empty")
	ErrOutOfRange = errors.New("index out of range")
)

// PreconditionWarning reports a command issued in a state that cannot
// accept it. The command is dropped and the state is left unchanged.
type PreconditionWarning struct {
	Op    Op
	Phase Phase
	Err   error
}

func (w *PreconditionWarning) Error() string {
	return fmt.Sprintf("%s ignored in %s: %v", w.Op, w.Phase, w.Err)
}

func (w *PreconditionWarning) Unwrap() error { return w.Err }
