// internal/playback/state.go
package playback

// Phase is the controller's position in the load/transport state machine.
type Phase int

const (
	PhaseEmpty   Phase = iota // no tracks
	PhaseIdle                 // track selected, nothing loaded
	PhaseLoading              // load in flight
	PhaseReady                // loaded, not playing
	PhasePlaying              // loaded and playing
	PhaseClosed               // controller torn down
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "Empty"
	case PhaseIdle:
		return "Idle"
	case PhaseLoading:
		return "Loading"
	case PhaseReady:
		return "Ready"
	case PhasePlaying:
		return "Playing"
	case PhaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// IsLoaded returns true if a unit is held in this phase.
func (p Phase) IsLoaded() bool {
	return p == PhaseReady || p == PhasePlaying
}

// Snapshot is a copy of the controller state at one point in time.
type Snapshot struct {
	Phase      Phase
	Index      int    // -1 when the playlist is empty
	Track      *Track // nil when the playlist is empty
	Loaded     bool
	Playing    bool
	Generation uint64
	Len        int
}
