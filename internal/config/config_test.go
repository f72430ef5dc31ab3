package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newTestFlags(t *testing.T, args ...string) *Config {
	t.Helper()
	fs := pflag.NewFlagSet("nookd", pflag.ContinueOnError)
	Flags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	v := New()
	if err := Bind(v, fs); err != nil {
		t.Fatalf("bind: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range flagKeys {
		os.Unsetenv(EnvPrefix + "_" + upper(key))
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_STATE_HOME", "/state")

	cfg := newTestFlags(t, "-g", "new-horizons")

	if cfg.Game != "new-horizons" {
		t.Errorf("Game = %q", cfg.Game)
	}
	if cfg.Rain != "normal" {
		t.Errorf("Rain = %q, want default 'normal'", cfg.Rain)
	}
	if cfg.GameVolume != nil {
		t.Errorf("GameVolume = %v, want unset", *cfg.GameVolume)
	}
	if cfg.RainVolume != nil {
		t.Errorf("RainVolume = %v, want unset", *cfg.RainVolume)
	}
	if cfg.Foreground {
		t.Error("Foreground should default to false")
	}
	if cfg.LockPath != DefaultLockPath {
		t.Errorf("LockPath = %q, want %q", cfg.LockPath, DefaultLockPath)
	}
	if cfg.LockTimeout != 10*time.Second {
		t.Errorf("LockTimeout = %v, want 10s", cfg.LockTimeout)
	}
	if cfg.FetchTimeout != 0 {
		t.Errorf("FetchTimeout = %v, want 0", cfg.FetchTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.LogFile != filepath.Join("/state", "nookd", "nookd.log") {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
	if cfg.MonitorAddr != "" {
		t.Errorf("MonitorAddr = %q, want disabled", cfg.MonitorAddr)
	}
}

func TestLoadFromFlags(t *testing.T) {
	clearEnv(t)

	cfg := newTestFlags(t,
		"-g", "population-growing-cherry",
		"--game-volume", "40",
		"-r", "none",
		"--rain-volume", "0",
		"--no-daemon",
		"--lock-path", "/run/nookd.lock",
		"--lock-timeout", "3s",
		"--log-level", "debug",
		"--monitor-addr", "127.0.0.1:7070",
	)

	if cfg.Game != "population-growing-cherry" {
		t.Errorf("Game = %q", cfg.Game)
	}
	if cfg.GameVolume == nil || *cfg.GameVolume != 40 {
		t.Errorf("GameVolume = %v, want 40", cfg.GameVolume)
	}
	if cfg.RainVolume == nil || *cfg.RainVolume != 0 {
		t.Errorf("RainVolume = %v, want explicit 0", cfg.RainVolume)
	}
	if cfg.Rain != "none" {
		t.Errorf("Rain = %q", cfg.Rain)
	}
	if !cfg.Foreground {
		t.Error("Foreground = false, want true")
	}
	if cfg.LockPath != "/run/nookd.lock" {
		t.Errorf("LockPath = %q", cfg.LockPath)
	}
	if cfg.LockTimeout != 3*time.Second {
		t.Errorf("LockTimeout = %v", cfg.LockTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.MonitorAddr != "127.0.0.1:7070" {
		t.Errorf("MonitorAddr = %q", cfg.MonitorAddr)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOOKD_GAME", "wild-world-snowy")
	t.Setenv("NOOKD_GAME_VOLUME", "75")
	t.Setenv("NOOKD_RAIN", "no-thunder")
	t.Setenv("NOOKD_NO_DAEMON", "true")
	t.Setenv("NOOKD_FETCH_TIMEOUT", "30s")
	t.Setenv("NOOKD_ORIGIN", "http://localhost:9000")

	cfg := newTestFlags(t)

	if cfg.Game != "wild-world-snowy" {
		t.Errorf("Game = %q, want env override", cfg.Game)
	}
	if cfg.GameVolume == nil || *cfg.GameVolume != 75 {
		t.Errorf("GameVolume = %v, want 75", cfg.GameVolume)
	}
	if cfg.Rain != "no-thunder" {
		t.Errorf("Rain = %q, want env override", cfg.Rain)
	}
	if !cfg.Foreground {
		t.Error("Foreground should come from NOOKD_NO_DAEMON")
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if cfg.Origin != "http://localhost:9000" {
		t.Errorf("Origin = %q", cfg.Origin)
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOOKD_GAME", "new-leaf")

	cfg := newTestFlags(t, "--game", "pocket-camp")
	if cfg.Game != "pocket-camp" {
		t.Errorf("Game = %q, flag should win over env", cfg.Game)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nookd.yaml")
	content := "game: new-leaf-rainy\nrain_volume: 20\nlog_level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v := New()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game != "new-leaf-rainy" {
		t.Errorf("Game = %q", cfg.Game)
	}
	if cfg.RainVolume == nil || *cfg.RainVolume != 20 {
		t.Errorf("RainVolume = %v, want 20", cfg.RainVolume)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	vol := func(f float64) *float64 { return &f }
	base := func() Config {
		return Config{Game: "new-leaf", LockPath: DefaultLockPath, LogLevel: "info"}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing game", func(c *Config) { c.Game = "" }, true},
		{"volume too high", func(c *Config) { c.GameVolume = vol(101) }, true},
		{"negative rain volume", func(c *Config) { c.RainVolume = vol(-1) }, true},
		{"volume bounds", func(c *Config) { c.GameVolume, c.RainVolume = vol(0), vol(100) }, false},
		{"empty lock path", func(c *Config) { c.LockPath = "" }, true},
		{"negative timeout", func(c *Config) { c.LockTimeout = -time.Second }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	v := New()
	if err := ReadFile(v, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
	if err := ReadFile(v, ""); err != nil {
		t.Errorf("empty path should be a no-op, got %v", err)
	}
}
