package playback

// Op names a controller command.
type Op string

const (
	OpSetPlaylist Op = "set playlist"
	OpSelect      Op = "select"
	OpPlayPause   Op = "play/pause"
	OpStop        Op = "stop"
	OpNext        Op = "next"
	OpPrevious    Op = "previous"
	OpFinished    Op = "finished"
)

// ReportKind classifies a Report.
type ReportKind int

const (
	ReportWarning   ReportKind = iota // *PreconditionWarning
	ReportLoad                        // *engine.LoadError
	ReportTransport                   // *engine.TransportError
)

// String returns the kind name.
func (k ReportKind) String() string {
	switch k {
	case ReportWarning:
		return "warning"
	case ReportLoad:
		return "load"
	case ReportTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Report is emitted when a command fails or is dropped. Reports never
// change state by themselves; a Snapshot follows any transition.
type Report struct {
	Kind  ReportKind
	Op    Op
	Index int // affected index, -1 if none
	Err   error
}
