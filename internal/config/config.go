package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. NOOKD_GAME.
const EnvPrefix = "NOOKD"

// DefaultLockPath is where the running daemon records its pid.
const DefaultLockPath = "/tmp/sub.lock"

// Config holds all runtime configuration.
type Config struct {
	// Playback
	Game       string
	GameVolume *float64 // percent, nil = device default
	Rain       string
	RainVolume *float64 // percent, nil = device default

	// Catalog
	Origin       string
	Extension    string
	FetchTimeout time.Duration // 0 = no deadline

	// Lifecycle
	Foreground  bool
	LockPath    string
	LockTimeout time.Duration

	// Output
	Device string

	// Logging
	LogLevel string
	LogFile  string

	// Monitor
	MonitorAddr string // empty disables the monitor server
}

// Flags registers every option on fs. Keys are bound to viper by Bind.
func Flags(fs *pflag.FlagSet) {
	fs.StringP("game", "g", "", "music catalog to play")
	fs.Float64("game-volume", 0, "music volume, 1-100")
	fs.StringP("rain", "r", "normal", "rain ambiance: normal, no-thunder, game or none")
	fs.Float64("rain-volume", 0, "rain volume, 1-100")
	fs.Bool("no-daemon", false, "run in the foreground")

	fs.String("origin", "", "catalog origin URL")
	fs.String("ext", "", "catalog file extension")
	fs.Duration("fetch-timeout", 0, "per-download timeout, 0 for none")

	fs.String("lock-path", DefaultLockPath, "pid lock file")
	fs.Duration("lock-timeout", 10*time.Second, "how long to wait for a previous instance to exit")

	fs.String("device", "", "playback device name")

	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-file", "", "daemon log file")

	fs.String("monitor-addr", "", "listen address for the status and monitor server")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"game":          "game",
	"game-volume":   "game_volume",
	"rain":          "rain",
	"rain-volume":   "rain_volume",
	"no-daemon":     "no_daemon",
	"origin":        "origin",
	"ext":           "ext",
	"fetch-timeout": "fetch_timeout",
	"lock-path":     "lock_path",
	"lock-timeout":  "lock_timeout",
	"device":        "device",
	"log-level":     "log_level",
	"log-file":      "log_file",
	"monitor-addr":  "monitor_addr",
}

// New returns a viper instance reading NOOKD_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rain", "normal")
	v.SetDefault("lock_path", DefaultLockPath)
	v.SetDefault("lock_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
}

// Bind attaches the flags registered by Flags to v.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", flag, err)
		}
	}
	return nil
}

// ReadFile merges an optional config file into v.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load resolves the effective configuration and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Game:         v.GetString("game"),
		Rain:         v.GetString("rain"),
		Origin:       v.GetString("origin"),
		Extension:    v.GetString("ext"),
		FetchTimeout: v.GetDuration("fetch_timeout"),
		Foreground:   v.GetBool("no_daemon"),
		LockPath:     v.GetString("lock_path"),
		LockTimeout:  v.GetDuration("lock_timeout"),
		Device:       v.GetString("device"),
		LogLevel:     v.GetString("log_level"),
		LogFile:      v.GetString("log_file"),
		MonitorAddr:  v.GetString("monitor_addr"),
	}
	cfg.GameVolume = optionalFloat(v, "game_volume")
	cfg.RainVolume = optionalFloat(v, "rain_volume")

	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func optionalFloat(v *viper.Viper, key string) *float64 {
	if !v.IsSet(key) {
		return nil
	}
	f := v.GetFloat64(key)
	return &f
}

// Validate checks values that do not depend on the catalog.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Game == "" {
		errs = append(errs, errors.New("game is required"))
	}
	if err := checkVolume("game volume", cfg.GameVolume); err != nil {
		errs = append(errs, err)
	}
	if err := checkVolume("rain volume", cfg.RainVolume); err != nil {
		errs = append(errs, err)
	}
	if cfg.LockPath == "" {
		errs = append(errs, errors.New("lock path is required"))
	}
	if cfg.LockTimeout < 0 || cfg.FetchTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", cfg.LogLevel))
	}
	return errors.Join(errs...)
}

func checkVolume(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 100 {
		return fmt.Errorf("%s must be between 0 and 100, got %g", name, *v)
	}
	return nil
}

// DefaultLogFile is the daemon log location under the XDG state directory.
func DefaultLogFile() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "nookd.log")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "nookd", "nookd.log")
}
