package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/cassette/internal/catalog"
	"github.com/llehouerou/cassette/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// testEnv returns base flags pointing at a temp config and database.
func testEnv(t *testing.T) (dir string, args []string) {
	t.Helper()
	dir = t.TempDir()
	cfg := writeFile(t, dir, "config.toml", "[log]\noutput = \"discard\"\n")
	return dir, []string{"--config", cfg, "--db", filepath.Join(dir, "catalog.db")}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const seedYAML = `tracks:
  - title: Morning Light
    source: /music/morning.flac
    artwork: /music/cover.jpg
  - source: https://example.com/night-drive.mp3
`

func TestSeedAndList(t *testing.T) {
	dir, base := testEnv(t)
	seed := writeFile(t, dir, "seed.yaml", seedYAML)

	out, err := execute(t, append(base, "seed", seed)...)
	require.NoError(t, err)
	assert.Equal(t, "Seeded 2 tracks\n", out)

	out, err = execute(t, append(base, "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Morning Light")
	assert.Contains(t, out, "night-drive")
	assert.Contains(t, out, "/music/cover.jpg")
}

func TestSeed_InvalidFile(t *testing.T) {
	dir, base := testEnv(t)
	seed := writeFile(t, dir, "seed.yaml", "tracks:\n  - title: no source\n")

	_, err := execute(t, append(base, "seed", seed)...)

	var storeErr *catalog.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, catalog.OpRead, storeErr.Op)
}

func TestList_Empty(t *testing.T) {
	_, base := testEnv(t)
	out, err := execute(t, append(base, "list")...)
	require.NoError(t, err)
	assert.Equal(t, "Catalog is empty\n", out)
}

func TestScan_PrintsSeeds(t *testing.T) {
	dir, base := testEnv(t)
	music := filepath.Join(dir, "music")
	require.NoError(t, os.MkdirAll(music, 0o755))
	writeFile(t, music, "b-side.mp3", "not really audio")
	writeFile(t, music, "notes.txt", "ignored")

	out, err := execute(t, append(base, "scan", music)...)

	require.NoError(t, err)
	assert.Contains(t, out, "title: b-side")
	assert.NotContains(t, out, "notes.txt")
}

func TestScan_ApplyAndOutput(t *testing.T) {
	dir, base := testEnv(t)
	music := filepath.Join(dir, "music")
	require.NoError(t, os.MkdirAll(music, 0o755))
	writeFile(t, music, "one.flac", "x")
	writeFile(t, music, "two.wav", "x")
	seedOut := filepath.Join(dir, "out.yaml")

	out, err := execute(t, append(base, "scan", music, "-o", seedOut, "--apply")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 tracks")
	assert.Contains(t, out, "Seeded 2 tracks")

	seeds, err := catalog.LoadSeedFile(seedOut)
	require.NoError(t, err)
	assert.Len(t, seeds, 2)

	out, err = execute(t, append(base, "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "two")
}

func TestScan_NoAudioFiles(t *testing.T) {
	dir, base := testEnv(t)
	_, err := execute(t, append(base, "scan", dir)...)
	require.Error(t, err)
}

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadTracks_SeedsEmptyCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("demo seeds", func(t *testing.T) {
		tracks, err := loadTracks(ctx, openStore(t), "")
		require.NoError(t, err)
		assert.Len(t, tracks, len(catalog.DefaultSeeds()))
	})

	t.Run("seed file", func(t *testing.T) {
		seed := writeFile(t, t.TempDir(), "seed.yaml", seedYAML)
		tracks, err := loadTracks(ctx, openStore(t), seed)
		require.NoError(t, err)
		require.Len(t, tracks, 2)
		assert.Equal(t, "Morning Light", tracks[0].Title)
	})

	t.Run("existing catalog is not reseeded", func(t *testing.T) {
		s := openStore(t)
		require.NoError(t, s.ResetAndSeed(ctx, []catalog.Seed{{Source: "/a.mp3"}}))
		tracks, err := loadTracks(ctx, s, "")
		require.NoError(t, err)
		require.Len(t, tracks, 1)
		assert.Equal(t, "a", tracks[0].Title)
	})

	t.Run("broken seed file", func(t *testing.T) {
		tracks, err := loadTracks(ctx, openStore(t), filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Failed to seed catalog")
		assert.Empty(t, tracks)
	})
}

func TestLoadSession_DegradesOnCatalogFailure(t *testing.T) {
	blocker := writeFile(t, t.TempDir(), "file", "x")
	cfg := &config.Config{}
	cfg.Catalog.DBPath = filepath.Join(blocker, "catalog.db")

	s := loadSession(context.Background(), cfg)

	assert.Empty(t, s.tracks)
	assert.Contains(t, s.status, "Failed to open catalog")
}

func TestLoadSession_ConvertsTracks(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Catalog.DBPath = filepath.Join(dir, "road-trip.db")
	cfg.Catalog.SeedFile = writeFile(t, dir, "seed.yaml", seedYAML)

	s := loadSession(context.Background(), cfg)

	require.Len(t, s.tracks, 2)
	assert.Empty(t, s.status)
	assert.Equal(t, int64(1), s.tracks[0].ID)
	assert.Equal(t, "/music/cover.jpg", s.tracks[0].Artwork)
	assert.Equal(t, 2, s.info.Tracks)
	assert.False(t, s.info.SeededAt.IsZero())
	assert.Equal(t, "seed", s.info.Catalog)
}

func TestCatalogName(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "library", catalogName(cfg))

	cfg.Catalog.DBPath = "/data/road-trip.db"
	assert.Equal(t, "road-trip", catalogName(cfg))

	cfg.Catalog.SeedFile = "/data/summer.yaml"
	assert.Equal(t, "summer", catalogName(cfg))
}
