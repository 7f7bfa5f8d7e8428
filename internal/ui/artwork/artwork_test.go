package artwork

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255}) //nolint:gosec // test image
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func assertBlock(t *testing.T, out string, cols, rows int) {
	t.Helper()
	lines := strings.Split(out, "\n")
	require.Len(t, lines, rows)
	for i, l := range lines {
		assert.Equal(t, cols, lipgloss.Width(l), "line %d", i)
	}
}

func TestRender_LocalImage(t *testing.T) {
	path := writePNG(t, 64, 64)
	r := New(nil)

	out, err := r.Render(context.Background(), path, "", 8, 4)

	require.NoError(t, err)
	assertBlock(t, out, 8, 4)
	assert.Contains(t, out, halfBlock)
}

func TestRender_Caches(t *testing.T) {
	path := writePNG(t, 16, 16)
	var opens atomic.Int32
	r := New(func(ctx context.Context, locator string) (io.ReadCloser, error) {
		opens.Add(1)
		return OpenFile(ctx, locator)
	})

	first, err := r.Render(context.Background(), path, "", 6, 3)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), path, "", 6, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), opens.Load())

	_, err = r.Render(context.Background(), path, "", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), opens.Load(), "a new size is rendered again")
}

func TestRender_CacheEvictsOldest(t *testing.T) {
	path := writePNG(t, 8, 8)
	r := New(nil)
	for i := range cacheSize + 1 {
		_, err := r.Render(context.Background(), path, "", i+1, 1)
		require.NoError(t, err)
	}

	_, ok := r.lookup(cacheKey{artwork: path, cols: 1, rows: 1})
	assert.False(t, ok)
	_, ok = r.lookup(cacheKey{artwork: path, cols: cacheSize + 1, rows: 1})
	assert.True(t, ok)
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()
	notImage := filepath.Join(dir, "cover.jpg")
	require.NoError(t, os.WriteFile(notImage, []byte("not an image"), 0o600))
	noTags := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(noTags, []byte("plain bytes"), 0o600))

	r := New(nil)
	ctx := context.Background()

	_, err := r.Render(ctx, "", "", 4, 4)
	require.ErrorIs(t, err, ErrNoArtwork)

	_, err = r.Render(ctx, filepath.Join(dir, "missing.png"), "", 4, 4)
	require.Error(t, err)

	_, err = r.Render(ctx, notImage, "", 4, 4)
	require.Error(t, err)

	_, err = r.Render(ctx, "", noTags, 4, 4)
	require.ErrorIs(t, err, ErrNoArtwork)

	_, err = r.Render(ctx, notImage, "", 0, 4)
	require.Error(t, err)
}

func TestRender_NonSeekableSourceHasNoEmbeddedArt(t *testing.T) {
	r := New(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("stream")), nil
	})

	_, err := r.Render(context.Background(), "", "http://example.com/a.mp3", 4, 4)

	require.ErrorIs(t, err, ErrNoArtwork)
}

func TestPlaceholder(t *testing.T) {
	out := Placeholder(10, 5)
	assertBlock(t, out, 10, 5)
	assert.Contains(t, out, "♪")

	assert.Empty(t, Placeholder(0, 5))
}
