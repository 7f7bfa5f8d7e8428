// Package artwork renders cover images as half-block terminal cells.
package artwork

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // JPEG covers
	_ "image/png"  // PNG covers
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // WebP covers

	"github.com/llehouerou/cassette/internal/ui/styles"
)

const (
	maxImageBytes = 16 << 20
	cacheSize     = 32

	// upper half block: foreground paints the top pixel, background the bottom
	halfBlock = "▀"
)

// ErrNoArtwork is returned when neither an artwork locator nor embedded
// cover art is available.
var ErrNoArtwork = errors.New("no artwork")

// OpenFunc opens a locator for reading.
type OpenFunc func(ctx context.Context, locator string) (io.ReadCloser, error)

// OpenFile opens locators as local paths.
func OpenFile(_ context.Context, locator string) (io.ReadCloser, error) {
	return os.Open(locator)
}

type cacheKey struct {
	artwork, source string
	cols, rows      int
}

// Renderer decodes, resizes and renders cover images. Results are cached
// per locator and size. Safe for concurrent use.
type Renderer struct {
	open OpenFunc

	mu    sync.Mutex
	cache map[cacheKey]string
	order []cacheKey
}

// New creates a renderer. A nil open reads local files.
func New(open OpenFunc) *Renderer {
	if open == nil {
		open = OpenFile
	}
	return &Renderer{open: open, cache: make(map[cacheKey]string)}
}

// Render returns a cols x rows block for the image at artwork. When artwork
// is empty it falls back to the cover embedded in the audio file at source.
func (r *Renderer) Render(ctx context.Context, artwork, source string, cols, rows int) (string, error) {
	if cols <= 0 || rows <= 0 {
		return "", errors.Newf("invalid artwork size %dx%d", cols, rows)
	}
	key := cacheKey{artwork: artwork, source: source, cols: cols, rows: rows}
	if out, ok := r.lookup(key); ok {
		return out, nil
	}

	img, err := r.decode(ctx, artwork, source)
	if err != nil {
		return "", err
	}
	out := renderCells(resize.Resize(uint(cols), uint(rows*2), img, resize.Bilinear), cols, rows) //nolint:gosec // sizes are positive

	r.store(key, out)
	return out, nil
}

func (r *Renderer) decode(ctx context.Context, artwork, source string) (image.Image, error) {
	if artwork != "" {
		rc, err := r.open(ctx, artwork)
		if err != nil {
			return nil, errors.Wrapf(err, "open artwork %q", artwork)
		}
		defer rc.Close()
		img, _, err := image.Decode(io.LimitReader(rc, maxImageBytes))
		if err != nil {
			return nil, errors.Wrapf(err, "decode artwork %q", artwork)
		}
		return img, nil
	}
	if source == "" {
		return nil, ErrNoArtwork
	}
	return r.embedded(ctx, source)
}

// embedded reads the picture tag of a seekable audio source.
func (r *Renderer) embedded(ctx context.Context, source string) (image.Image, error) {
	rc, err := r.open(ctx, source)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", source)
	}
	defer rc.Close()
	rs, ok := rc.(io.ReadSeeker)
	if !ok {
		return nil, ErrNoArtwork
	}
	m, err := tag.ReadFrom(rs)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read tags"), ErrNoArtwork)
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, ErrNoArtwork
	}
	img, _, err := image.Decode(bytes.NewReader(pic.Data))
	if err != nil {
		return nil, errors.Wrap(err, "decode embedded cover")
	}
	return img, nil
}

func (r *Renderer) lookup(key cacheKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.cache[key]
	return out, ok
}

func (r *Renderer) store(key cacheKey, out string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[key]; ok {
		return
	}
	if len(r.order) >= cacheSize {
		delete(r.cache, r.order[0])
		r.order = r.order[1:]
	}
	r.cache[key] = out
	r.order = append(r.order, key)
}

// renderCells draws img, which must be cols x rows*2 pixels, one cell per
// two vertical pixels.
func renderCells(img image.Image, cols, rows int) string {
	b := img.Bounds()
	lines := make([]string, rows)
	var sb strings.Builder
	for y := range rows {
		sb.Reset()
		for x := range cols {
			top := pixel(img, b.Min.X+x, b.Min.Y+2*y)
			bottom := pixel(img, b.Min.X+x, b.Min.Y+2*y+1)
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top.Hex())).
				Background(lipgloss.Color(bottom.Hex())).
				Render(halfBlock))
		}
		lines[y] = sb.String()
	}
	return strings.Join(lines, "\n")
}

func pixel(img image.Image, x, y int) colorful.Color {
	c, ok := colorful.MakeColor(img.At(x, y))
	if !ok {
		// fully transparent
		return colorful.Color{}
	}
	return c.Clamped()
}

// Placeholder returns a cols x rows block shown when no artwork is available.
func Placeholder(cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	st := styles.T().S()
	blank := strings.Repeat(" ", cols)
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = blank
	}
	pad := (cols - 1) / 2
	lines[rows/2] = strings.Repeat(" ", pad) + st.Muted.Render("♪") + strings.Repeat(" ", cols-pad-1)
	return strings.Join(lines, "\n")
}
