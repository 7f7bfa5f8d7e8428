package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "cassette"

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Playback PlaybackConfig `koanf:"playback"`
	HTTP     HTTPConfig     `koanf:"http"`

	// S3 credentials for s3:// sources (optional, falls back to the AWS default chain)
	S3 S3Config `koanf:"s3"`
}

// LogConfig controls where logs go. The player owns the terminal, so the
// default output is a file under the XDG state directory.
type LogConfig struct {
	Level  string `koanf:"level" default:"info" validate:"oneof=debug info warn error"`
	Output string `koanf:"output" default:"file" validate:"oneof=stdout stderr file discard"`
	File   string `koanf:"file"` // empty means $XDG_STATE_HOME/cassette/cassette.log
}

// CatalogConfig holds the track catalog settings.
type CatalogConfig struct {
	DBPath   string `koanf:"db_path"`   // empty means $XDG_DATA_HOME/cassette/cassette.db
	SeedFile string `koanf:"seed_file"` // YAML seed applied when the catalog is empty
}

// PlaybackConfig holds controller and engine settings.
type PlaybackConfig struct {
	AutoAdvance *bool `koanf:"auto_advance"`                                      // advance when a track ends (default: true)
	BufferMs    int   `koanf:"buffer_ms" default:"100" validate:"gte=10,lte=1000"` // speaker buffer
}

// HTTPConfig holds settings for http(s) sources.
type HTTPConfig struct {
	BufferKB  int    `koanf:"buffer_kb" default:"256" validate:"gte=16,lte=16384"`
	UserAgent string `koanf:"user_agent" default:"cassette/1.0"`
}

// S3Config holds settings for s3:// sources.
type S3Config struct {
	Region    string `koanf:"region" default:"us-east-1"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

// Load reads the configuration. When path is empty the default locations are
// tried in order of priority (last wins); otherwise only path is read and it
// must exist.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(expandPath(path)), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	} else {
		for _, p := range getConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
					return nil, errors.Wrapf(err, "failed to read config %s", p)
				}
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Catalog.DBPath = expandPath(cfg.Catalog.DBPath)
	cfg.Catalog.SeedFile = expandPath(cfg.Catalog.SeedFile)
	cfg.S3.Endpoint = strings.TrimSuffix(cfg.S3.Endpoint, "/")

	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// overrideFromEnv applies CASSETTE_* environment variables on top of file values.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CASSETTE_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CASSETTE_DB_PATH"); v != "" {
		c.Catalog.DBPath = v
	}
	if v := os.Getenv("CASSETTE_S3_REGION"); v != "" {
		c.S3.Region = v
	}
	if v := os.Getenv("CASSETTE_S3_ENDPOINT"); v != "" {
		c.S3.Endpoint = v
	}
	if v := os.Getenv("CASSETTE_S3_ACCESS_KEY"); v != "" {
		c.S3.AccessKey = v
	}
	if v := os.Getenv("CASSETTE_S3_SECRET_KEY"); v != "" {
		c.S3.SecretKey = v
	}
}

// AutoAdvance reports whether playback moves on when a track ends.
func (c *Config) AutoAdvance() bool {
	if c.Playback.AutoAdvance == nil {
		return true
	}
	return *c.Playback.AutoAdvance
}

// HasS3Credentials returns true if static S3 credentials are configured.
func (c *Config) HasS3Credentials() bool {
	return c.S3.AccessKey != "" && c.S3.SecretKey != ""
}

// DBPath returns the catalog database path, creating the XDG data directory
// when the default is used.
func (c *Config) DBPath() (string, error) {
	if c.Catalog.DBPath != "" {
		return c.Catalog.DBPath, nil
	}
	return xdg.DataFile(filepath.Join(appName, appName+".db"))
}

// LogFile returns the log file path, creating the XDG state directory when
// the default is used.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	return xdg.StateFile(filepath.Join(appName, appName+".log"))
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/cassette/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
