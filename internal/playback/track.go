package playback

// Track is one playlist entry.
// This is a copy of the data, not a reference to catalog.Track.
type Track struct {
	ID      int64
	Title   string
	Source  string // locator handed to the engine
	Artwork string // empty when absent
}
