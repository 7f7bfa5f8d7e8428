package main

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/cassette/internal/app"
	"github.com/llehouerou/cassette/internal/catalog"
	"github.com/llehouerou/cassette/internal/config"
	"github.com/llehouerou/cassette/internal/engine"
	"github.com/llehouerou/cassette/internal/errmsg"
	"github.com/llehouerou/cassette/internal/logger"
	"github.com/llehouerou/cassette/internal/playback"
	"github.com/llehouerou/cassette/internal/stderr"
	"github.com/llehouerou/cassette/internal/ui/artwork"
	"github.com/llehouerou/cassette/internal/ui/headerbar"
)

const shutdownTimeout = 5 * time.Second

// loadConfig reads the configuration and applies command line overrides.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = strings.ToLower(flags.logLevel)
	}
	if flags.dbPath != "" {
		cfg.Catalog.DBPath = flags.dbPath
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (io.Closer, error) {
	path, err := cfg.LogFile()
	if err != nil {
		return nil, errors.Wrap(err, "resolve log file")
	}
	return logger.Init(logger.Config{Output: cfg.Log.Output, Level: cfg.Log.Level, File: path})
}

func runPlayer(ctx context.Context, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// before the speaker opens the audio device
	if err := stderr.Start(); err != nil {
		zlog.Warn().Err(err).Msg("stderr capture unavailable")
	}
	defer stderr.Stop()

	closer, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	session := loadSession(ctx, cfg)

	opener := engine.NewSourceOpener(engine.SourceOptions{
		HTTPBufferSize: cfg.HTTP.BufferKB * 1024,
		UserAgent:      cfg.HTTP.UserAgent,
		S3: engine.S3Options{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		},
	})
	defer opener.Close()

	eng := engine.NewBeep(opener, time.Duration(cfg.Playback.BufferMs)*time.Millisecond)
	ctrl := playback.New(eng, playback.Options{AutoAdvance: cfg.AutoAdvance()})
	sub, unsubscribe := ctrl.Subscribe()

	model := app.New(app.Options{
		Player:       ctrl,
		Subscription: sub,
		Tracks:       session.tracks,
		Catalog:      session.info,
		Artwork:      artwork.New(openerFunc(opener)),
		Status:       session.status,
	})

	zlog.Info().Int("tracks", len(session.tracks)).Msg("starting player")
	_, runErr := tea.NewProgram(model, tea.WithAltScreen()).Run()

	unsubscribe()
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := ctrl.Close(closeCtx); err != nil {
		zlog.Warn().Err(err).Msg("close playback")
	}
	if runErr != nil {
		return errors.Wrap(runErr, "run player")
	}
	return nil
}

// openerFunc exposes the engine's source opener to the artwork renderer.
// The raw stream is returned so local files stay seekable.
func openerFunc(o *engine.SourceOpener) artwork.OpenFunc {
	return func(ctx context.Context, locator string) (io.ReadCloser, error) {
		src, err := o.Open(ctx, locator)
		if err != nil {
			return nil, err
		}
		return src.ReadCloser, nil
	}
}

type session struct {
	tracks []playback.Track
	info   headerbar.Info
	status string
}

// loadSession reads the catalog, seeding it first when empty. Catalog
// failures degrade to an empty playlist with the error on the status line.
func loadSession(ctx context.Context, cfg *config.Config) session {
	s := session{info: headerbar.Info{Catalog: catalogName(cfg)}}

	dbPath, err := cfg.DBPath()
	if err != nil {
		s.status = errmsg.Format(errmsg.OpCatalogOpen, err)
		zlog.Error().Err(err).Msg("resolve catalog path")
		return s
	}
	store, err := catalog.Open(ctx, dbPath)
	if err != nil {
		s.status = errmsg.FormatWith(errmsg.OpCatalogOpen, dbPath, err)
		zlog.Error().Err(err).Str("path", dbPath).Msg("open catalog")
		return s
	}
	defer store.Close()

	tracks, err := loadTracks(ctx, store, cfg.Catalog.SeedFile)
	if err != nil {
		s.status = err.Error()
		zlog.Error().Err(err).Msg("load catalog")
	}

	s.tracks = make([]playback.Track, len(tracks))
	for i, t := range tracks {
		s.tracks[i] = playback.Track{ID: t.ID, Title: t.Title, Source: t.Source, Artwork: t.Artwork}
	}
	if len(tracks) > 0 {
		s.info.SeededAt = tracks[0].CreatedAt
	}
	s.info.Tracks = len(tracks)
	return s
}

// loadTracks lists the catalog. An empty catalog is first seeded from
// seedFile, or from the built-in demo seeds when seedFile is empty. Seeding
// errors are returned along with whatever the catalog holds.
func loadTracks(ctx context.Context, store *catalog.Store, seedFile string) ([]catalog.Track, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpCatalogLoad, err))
	}

	var seedErr error
	if n == 0 {
		seeds := catalog.DefaultSeeds()
		if seedFile != "" {
			seeds, err = catalog.LoadSeedFile(seedFile)
		}
		if err == nil {
			err = store.ResetAndSeed(ctx, seeds)
		}
		if err != nil {
			seedErr = errors.New(errmsg.FormatWith(errmsg.OpCatalogSeed, seedFile, err))
		}
	}

	tracks, err := store.ListAll(ctx)
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpCatalogLoad, err))
	}
	return tracks, seedErr
}

func catalogName(cfg *config.Config) string {
	if cfg.Catalog.SeedFile != "" {
		return catalog.TitleFromSource(cfg.Catalog.SeedFile)
	}
	if cfg.Catalog.DBPath != "" {
		return strings.TrimSuffix(filepath.Base(cfg.Catalog.DBPath), filepath.Ext(cfg.Catalog.DBPath))
	}
	return "library"
}
