package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

var configEnv = []string{
	"TASKPAD_DIR",
	"TASKPAD_BACKEND",
	"TASKPAD_DISABLE_MARKERS",
	"TASKPAD_LOG_LEVEL",
	"TASKPAD_WATCH_ADDR",
	"XDG_DATA_HOME",
}

// unsetEnv clears keys for the duration of the test
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestReadDefaults(t *testing.T) {
	unsetEnv(t, configEnv...)
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	cfg, err := NewEnvReader(noEnvFile(t)).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := &Config{
		Dir:            filepath.Join(xdg, AppName),
		Backend:        "file",
		DisableMarkers: true,
		LogLevel:       "info",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFromEnv(t *testing.T) {
	unsetEnv(t, configEnv...)
	dir := t.TempDir()
	t.Setenv("TASKPAD_DIR", dir)
	t.Setenv("TASKPAD_BACKEND", "bolt")
	t.Setenv("TASKPAD_DISABLE_MARKERS", "false")
	t.Setenv("TASKPAD_LOG_LEVEL", "debug")
	t.Setenv("TASKPAD_WATCH_ADDR", "127.0.0.1:7070")

	cfg, err := NewEnvReader(noEnvFile(t)).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := &Config{
		Dir:            dir,
		Backend:        "bolt",
		DisableMarkers: false,
		LogLevel:       "debug",
		WatchAddr:      "127.0.0.1:7070",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	lvl, err := cfg.Level()
	if err != nil || lvl != zerolog.DebugLevel {
		t.Errorf("Level() = %v, %v; want debug", lvl, err)
	}
}

func TestReadEnvFile(t *testing.T) {
	unsetEnv(t, configEnv...)
	t.Setenv("TASKPAD_DIR", t.TempDir())
	// godotenv writes into the process environment
	t.Cleanup(func() { os.Unsetenv("TASKPAD_BACKEND") })

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("TASKPAD_BACKEND=memory\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewEnvReader(envFile).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want memory from .env", cfg.Backend)
	}
}

func TestEnvBeatsEnvFile(t *testing.T) {
	unsetEnv(t, configEnv...)
	t.Setenv("TASKPAD_DIR", t.TempDir())
	t.Setenv("TASKPAD_BACKEND", "bolt")

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("TASKPAD_BACKEND=memory\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewEnvReader(envFile).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Backend != "bolt" {
		t.Errorf("Backend = %q, want bolt from environment", cfg.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Dir: "/tmp/x", Backend: "file", LogLevel: "info"}, false},
		{"empty level", Config{Dir: "/tmp/x", Backend: "memory"}, false},
		{"upper level", Config{Dir: "/tmp/x", Backend: "bolt", LogLevel: "WARN"}, false},
		{"unknown backend", Config{Dir: "/tmp/x", Backend: "redis", LogLevel: "info"}, true},
		{"bad level", Config{Dir: "/tmp/x", Backend: "file", LogLevel: "loud"}, true},
		{"no dir", Config{Backend: "file", LogLevel: "info"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestReadRejectsUnknownBackend(t *testing.T) {
	unsetEnv(t, configEnv...)
	t.Setenv("TASKPAD_DIR", t.TempDir())
	t.Setenv("TASKPAD_BACKEND", "redis")

	if _, err := NewEnvReader(noEnvFile(t)).Read(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestDefaultDataDirHome(t *testing.T) {
	unsetEnv(t, "XDG_DATA_HOME")
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir: %v", err)
	}
	if want := filepath.Join(home, ".local", "share", AppName); dir != want {
		t.Errorf("DefaultDataDir() = %q, want %q", dir, want)
	}
}
