package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "wisprwave"

// Config holds all application configuration.
type Config struct {
	Model    ModelConfig   `yaml:"model"`
	Hotkey   HotkeyConfig  `yaml:"hotkey"`
	Audio    AudioConfig   `yaml:"audio"`
	Inject   InjectConfig  `yaml:"inject"`
	Stream   StreamConfig  `yaml:"stream"`
	Session  SessionConfig `yaml:"session"`
	History  HistoryConfig `yaml:"history"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

// ModelConfig selects the whisper model.
type ModelConfig struct {
	Path     string `yaml:"path"`
	Language string `yaml:"language"`
	Threads  int    `yaml:"threads"` // 0 uses the library default
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Keys []string `yaml:"keys"`
	Mode string   `yaml:"mode"` // "hold" or "toggle"
}

// AudioConfig holds audio capture settings. SampleRate is the rate requested
// from the device; chunks are resampled to 16 kHz mono.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	ChunkMs    int    `yaml:"chunk_ms"`
}

// InjectConfig holds text injection settings.
type InjectConfig struct {
	Method         string `yaml:"method"` // "paste" or "type"
	Live           bool   `yaml:"live"`
	RestoreDelayMs int    `yaml:"restore_delay_ms"`
	WordDelayMs    int    `yaml:"word_delay_ms"`
}

// StreamConfig tunes streaming (boost) decoding.
type StreamConfig struct {
	Boost          bool          `yaml:"boost"`
	Legacy         bool          `yaml:"legacy"`
	DecodeInterval time.Duration `yaml:"decode_interval"`
	MinUnconfirmed time.Duration `yaml:"min_unconfirmed"`
	Reserve        int           `yaml:"reserve"`
}

// SessionConfig holds dictation session timing.
type SessionConfig struct {
	DisplayInterval time.Duration `yaml:"display_interval"`
	MinDuration     time.Duration `yaml:"min_duration"`
}

// HistoryConfig controls the local dictation log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the directory for models and history.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// DefaultModelsDir returns the directory models are downloaded to.
func DefaultModelsDir() string {
	return filepath.Join(DefaultDataDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:     filepath.Join(DefaultModelsDir(), "ggml-base.en.bin"),
			Language: "en",
		},
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "semicolon"},
			Mode: "hold",
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			Channels:   1,
			ChunkMs:    100,
		},
		Inject: InjectConfig{
			Method:         "paste",
			Live:           true,
			RestoreDelayMs: 200,
			WordDelayMs:    50,
		},
		Stream: StreamConfig{
			Boost:          true,
			DecodeInterval: time.Second,
			MinUnconfirmed: time.Second,
			Reserve:        2,
		},
		Session: SessionConfig{
			DisplayInterval: 1500 * time.Millisecond,
			MinDuration:     300 * time.Millisecond,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(DefaultDataDir(), "history.sqlite"),
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A leading ~ in file paths is expanded to the home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Model.Path = expandTilde(cfg.Model.Path)
	cfg.History.Path = expandTilde(cfg.History.Path)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model.path must not be empty")
	}
	if c.Model.Threads < 0 {
		return fmt.Errorf("model.threads must be >= 0")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}
	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}
	if c.Audio.ChunkMs <= 0 {
		return fmt.Errorf("audio.chunk_ms must be > 0")
	}

	switch c.Inject.Method {
	case "type", "paste":
	default:
		return fmt.Errorf("inject.method must be \"type\" or \"paste\", got %q", c.Inject.Method)
	}
	if c.Inject.RestoreDelayMs < 0 || c.Inject.WordDelayMs < 0 {
		return fmt.Errorf("inject delays must be >= 0")
	}

	if c.Stream.DecodeInterval <= 0 {
		return fmt.Errorf("stream.decode_interval must be > 0")
	}
	if c.Stream.MinUnconfirmed < 0 {
		return fmt.Errorf("stream.min_unconfirmed must be >= 0")
	}
	if c.Stream.Reserve < 0 {
		return fmt.Errorf("stream.reserve must be >= 0")
	}

	if c.Session.DisplayInterval <= 0 {
		return fmt.Errorf("session.display_interval must be > 0")
	}
	if c.Session.MinDuration < 0 {
		return fmt.Errorf("session.min_duration must be >= 0")
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level to slog. Unknown values map to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const header = `# wisprwave configuration
#
# model.path        whisper ggml model (download with: wisprwave -download base.en)
# hotkey.mode       hold: dictate while held; toggle: press to start, press to stop
# inject.live       type partial transcripts while speaking (boost mode only)
# stream.legacy     record first, decode after release (overrides stream.boost)
# metrics.listen    address for the Prometheus /metrics endpoint, empty disables
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there yet. It returns the path written, or "" if a config was
// already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header+"\n"), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
