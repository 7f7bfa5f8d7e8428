package catalog

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Seed is one record to create. Title may be empty; it is then derived from
// the source's base name.
type Seed struct {
	Title   string `yaml:"title"`
	Source  string `yaml:"source" validate:"required"`
	Artwork string `yaml:"artwork,omitempty"`
}

// SeedFile is the on-disk YAML layout.
type SeedFile struct {
	Tracks []Seed `yaml:"tracks"`
}

var validate = validator.New()

// NormalizeSeeds validates seeds and fills in missing titles.
func NormalizeSeeds(seeds []Seed) ([]Seed, error) {
	out := make([]Seed, len(seeds))
	for i, s := range seeds {
		s.Title = strings.TrimSpace(s.Title)
		s.Source = strings.TrimSpace(s.Source)
		s.Artwork = strings.TrimSpace(s.Artwork)
		if err := validate.Struct(s); err != nil {
			return nil, errors.Wrapf(err, "seed %d", i)
		}
		if s.Title == "" {
			s.Title = TitleFromSource(s.Source)
		}
		out[i] = s
	}
	return out, nil
}

// TitleFromSource derives a display title from a locator: the base name
// without extension, or the locator itself when there is none.
func TitleFromSource(source string) string {
	base := path.Base(filepath.ToSlash(source))
	if i := strings.IndexAny(base, "?#"); i > 0 {
		base = base[:i]
	}
	title := strings.TrimSuffix(base, path.Ext(base))
	if title == "" || title == "." || title == "/" {
		return source
	}
	return title
}

// LoadSeedFile reads seeds from a YAML file.
func LoadSeedFile(filePath string) ([]Seed, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &StoreError{Op: OpRead, Err: err}
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &StoreError{Op: OpRead, Err: errors.Wrap(err, "parse seed file")}
	}
	seeds, err := NormalizeSeeds(f.Tracks)
	if err != nil {
		return nil, &StoreError{Op: OpRead, Err: err}
	}
	return seeds, nil
}

// WriteSeedFile writes seeds as YAML.
func WriteSeedFile(filePath string, seeds []Seed) error {
	f, err := os.Create(filePath)
	if err != nil {
		return &StoreError{Op: OpWrite, Err: err}
	}
	if err := EncodeSeeds(f, seeds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &StoreError{Op: OpWrite, Err: err}
	}
	return nil
}

// EncodeSeeds writes seeds to w in seed file format.
func EncodeSeeds(w io.Writer, seeds []Seed) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(SeedFile{Tracks: seeds}); err != nil {
		return &StoreError{Op: OpWrite, Err: err}
	}
	if err := enc.Close(); err != nil {
		return &StoreError{Op: OpWrite, Err: err}
	}
	return nil
}

// DefaultSeeds is the demo catalog used when nothing else is configured.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Title:  "Hamlet - Act I",
			Source: "https://ia800204.us.archive.org/11/items/hamlet_0911_librivox/hamlet_act1_shakespeare.mp3",
		},
		{
			Title:  "Hamlet - Act II",
			Source: "https://ia600204.us.archive.org/11/items/hamlet_0911_librivox/hamlet_act2_shakespeare.mp3",
		},
		{
			Title:  "Hamlet - Act III",
			Source: "https://ia600204.us.archive.org/11/items/hamlet_0911_librivox/hamlet_act3_shakespeare.mp3",
		},
		{
			Title:  "Hamlet - Act IV",
			Source: "https://ia800204.us.archive.org/11/items/hamlet_0911_librivox/hamlet_act4_shakespeare.mp3",
		},
		{
			Title:  "Hamlet - Act V",
			Source: "https://ia600204.us.archive.org/11/items/hamlet_0911_librivox/hamlet_act5_shakespeare.mp3",
		},
	}
}
