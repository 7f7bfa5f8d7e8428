package catalog

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// audioExtensions lists the formats the engine can decode.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
}

// coverNames are checked, in order, next to each audio file.
var coverNames = []string{"cover.jpg", "cover.jpeg", "cover.png", "folder.jpg", "folder.png", "front.jpg"}

// ScanOptions tunes ScanDir.
type ScanOptions struct {
	Workers  int       // parallel tag readers (default: GOMAXPROCS)
	Progress io.Writer // progress bar output; nil disables it
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ScanDir builds seeds from the audio files under dir, sorted by path.
// Unreadable tags fall back to the file name; they never fail the scan.
func ScanDir(ctx context.Context, dir string, opts ScanOptions) ([]Seed, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsAudioFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &StoreError{Op: OpScan, Err: err}
	}
	sort.Strings(files)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	seeds := make([]Seed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seeds[i] = seedFromFile(p)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &StoreError{Op: OpScan, Err: err}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	zlog.Debug().Str("dir", dir).Int("files", len(seeds)).Msg("scan complete")
	return seeds, nil
}

func seedFromFile(p string) Seed {
	s := Seed{
		Title:   TitleFromSource(p),
		Source:  p,
		Artwork: findCover(filepath.Dir(p)),
	}

	f, err := os.Open(p)
	if err != nil {
		zlog.Debug().Err(err).Str("path", p).Msg("open for tags")
		return s
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		zlog.Debug().Err(err).Str("path", p).Msg("read tags")
		return s
	}
	if title := strings.TrimSpace(m.Title()); title != "" {
		s.Title = title
		if artist := strings.TrimSpace(m.Artist()); artist != "" {
			s.Title = artist + " - " + title
		}
	}
	return s
}

func findCover(dir string) string {
	for _, name := range coverNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
