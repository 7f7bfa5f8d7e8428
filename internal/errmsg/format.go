// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Catalog operations
	OpCatalogOpen Op = "open catalog"
	OpCatalogLoad Op = "load playlist"
	OpCatalogSeed Op = "seed catalog"
	OpCatalogScan Op = "scan music directory"

	// Playback operations
	OpTrackLoad       Op = "load track"
	OpPlaybackStart   Op = "start playback"
	OpPlaybackControl Op = "control playback"

	// Artwork
	OpArtworkLoad Op = "load artwork"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
