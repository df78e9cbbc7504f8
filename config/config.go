package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"taskpad/storage"
)

// AppName is used for the default data directory
const AppName = "taskpad"

type Config struct {
	Dir            string `env:"TASKPAD_DIR"`
	Backend        string `env:"TASKPAD_BACKEND" env-default:"file"`
	DisableMarkers bool   `env:"TASKPAD_DISABLE_MARKERS" env-default:"true"`
	LogLevel       string `env:"TASKPAD_LOG_LEVEL" env-default:"info"`
	WatchAddr      string `env:"TASKPAD_WATCH_ADDR"`
}

type Reader interface {
	Read() (*Config, error)
}

// EnvReader reads Config from the environment after loading EnvFiles.
// Variables already set in the environment win over the files.
type EnvReader struct {
	EnvFiles []string
}

func NewEnvReader(files ...string) EnvReader {
	if len(files) == 0 {
		files = []string{".env"}
	}
	return EnvReader{EnvFiles: files}
}

func (r EnvReader) Read() (*Config, error) {
	for _, f := range r.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Dir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks fields that cleanenv can't
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("data directory is empty")
	}
	if !storage.IsValidBackend(c.Backend) {
		return fmt.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(backendNames(), ", "))
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	// ParseLevel maps "" to NoLevel
	if lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, nil
	}
	return lvl, nil
}

// DefaultDataDir returns $XDG_DATA_HOME/taskpad, falling back to
// ~/.local/share/taskpad
func DefaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

func backendNames() []string {
	names := make([]string, len(storage.ValidBackends))
	for i, b := range storage.ValidBackends {
		names[i] = string(b)
	}
	return names
}
