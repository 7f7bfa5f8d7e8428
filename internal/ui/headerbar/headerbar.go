// Package headerbar renders the one-line header above the player.
package headerbar

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/cassette/internal/ui/render"
	"github.com/llehouerou/cassette/internal/ui/styles"
)

// Height is the fixed height of the header bar (single line).
const Height = 1

const appTitle = "cassette"

var now = time.Now

// Info describes the loaded catalog.
type Info struct {
	Catalog  string
	Tracks   int
	SeededAt time.Time // zero when never seeded
}

// Render returns the header for the given width: the title and catalog name
// on the left, track count and seed age on the right.
func Render(info Info, width int) string {
	if width < 20 {
		return ""
	}
	t := styles.T()
	st := t.S()

	left := styles.Gradient(appTitle, t.Primary, t.Secondary)
	if info.Catalog != "" {
		left += st.Muted.Render(" · ") + st.Base.Render(render.Sanitize(info.Catalog))
	}
	right := st.Muted.Render(summary(info))

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return render.Clip(left, width)
	}
	return left + strings.Repeat(" ", gap) + right
}

func summary(info Info) string {
	tracks := humanize.Comma(int64(info.Tracks)) + " tracks"
	if info.Tracks == 1 {
		tracks = "1 track"
	}
	if info.SeededAt.IsZero() {
		return tracks + " · never seeded"
	}
	return fmt.Sprintf("%s · seeded %s", tracks,
		humanize.RelTime(info.SeededAt, now(), "ago", "from now"))
}
