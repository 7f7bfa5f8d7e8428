// Package ui provides shared UI constants and utilities.
package ui

// Layout constants for consistent sizing across UI components.
const (
	// ScrollMargin is the number of rows kept visible above/below the cursor.
	ScrollMargin = 2

	// BorderHeight is the space consumed by a standard panel border.
	BorderHeight = 2

	// ArtworkCols and ArtworkRows size the artwork panel content in cells.
	// Each row shows two image pixels.
	ArtworkCols = 24
	ArtworkRows = 12

	// MinProgressBarWidth is the minimum width for a usable progress bar.
	MinProgressBarWidth = 5

	// MinArtworkWidth is the terminal width below which artwork is hidden.
	MinArtworkWidth = 70
)
