package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Model.Path == "" {
		t.Error("Model.Path should not be empty")
	}
	if cfg.Model.Language != "en" {
		t.Errorf("Model.Language = %q, want %q", cfg.Model.Language, "en")
	}
	if cfg.Hotkey.Mode != "hold" {
		t.Errorf("Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "hold")
	}
	if len(cfg.Hotkey.Keys) != 3 {
		t.Errorf("Hotkey.Keys length = %d, want 3", len(cfg.Hotkey.Keys))
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("Audio.SampleRate = %d, want 48000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkMs != 100 {
		t.Errorf("Audio.ChunkMs = %d, want 100", cfg.Audio.ChunkMs)
	}
	if cfg.Inject.Method != "paste" || !cfg.Inject.Live {
		t.Errorf("Inject = %+v, want paste with live injection", cfg.Inject)
	}
	if !cfg.Stream.Boost || cfg.Stream.Legacy {
		t.Errorf("Stream = %+v, want boost without legacy", cfg.Stream)
	}
	if cfg.Stream.DecodeInterval != time.Second || cfg.Stream.MinUnconfirmed != time.Second {
		t.Errorf("Stream intervals = %v, %v; want 1s, 1s", cfg.Stream.DecodeInterval, cfg.Stream.MinUnconfirmed)
	}
	if cfg.Stream.Reserve != 2 {
		t.Errorf("Stream.Reserve = %d, want 2", cfg.Stream.Reserve)
	}
	if cfg.Session.DisplayInterval != 1500*time.Millisecond {
		t.Errorf("Session.DisplayInterval = %v, want 1.5s", cfg.Session.DisplayInterval)
	}
	if cfg.Metrics.Listen != "" {
		t.Errorf("Metrics.Listen = %q, want empty", cfg.Metrics.Listen)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
model:
  path: /tmp/test-model.bin
  threads: 4
hotkey:
  keys: ["alt", "d"]
  mode: toggle
audio:
  sample_rate: 44100
  channels: 2
inject:
  method: type
  live: false
stream:
  legacy: true
  decode_interval: 750ms
  reserve: 3
session:
  min_duration: 500ms
metrics:
  listen: 127.0.0.1:9464
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.Path != "/tmp/test-model.bin" || cfg.Model.Threads != 4 {
		t.Errorf("Model = %+v", cfg.Model)
	}
	if cfg.Model.Language != "en" {
		t.Errorf("Model.Language = %q, want default %q", cfg.Model.Language, "en")
	}
	if cfg.Hotkey.Mode != "toggle" {
		t.Errorf("Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "toggle")
	}
	if len(cfg.Hotkey.Keys) != 2 || cfg.Hotkey.Keys[0] != "alt" || cfg.Hotkey.Keys[1] != "d" {
		t.Errorf("Hotkey.Keys = %v, want [alt d]", cfg.Hotkey.Keys)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.Channels != 2 {
		t.Errorf("Audio = %+v", cfg.Audio)
	}
	if cfg.Inject.Method != "type" || cfg.Inject.Live {
		t.Errorf("Inject = %+v", cfg.Inject)
	}
	if cfg.Inject.RestoreDelayMs != 200 {
		t.Errorf("Inject.RestoreDelayMs = %d, want default 200", cfg.Inject.RestoreDelayMs)
	}
	if !cfg.Stream.Legacy || !cfg.Stream.Boost {
		t.Errorf("Stream = %+v, want legacy set and boost left at default", cfg.Stream)
	}
	if cfg.Stream.DecodeInterval != 750*time.Millisecond {
		t.Errorf("Stream.DecodeInterval = %v, want 750ms", cfg.Stream.DecodeInterval)
	}
	if cfg.Stream.Reserve != 3 {
		t.Errorf("Stream.Reserve = %d, want 3", cfg.Stream.Reserve)
	}
	if cfg.Session.MinDuration != 500*time.Millisecond {
		t.Errorf("Session.MinDuration = %v, want 500ms", cfg.Session.MinDuration)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	path := writeConfig(t, `
model:
  path: ~/models/test.bin
history:
  path: ~/dictations.sqlite
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(home, "models/test.bin"); cfg.Model.Path != want {
		t.Errorf("Model.Path = %q, want %q", cfg.Model.Path, want)
	}
	if want := filepath.Join(home, "dictations.sqlite"); cfg.History.Path != want {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, want)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "hotkey: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() should return error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"empty model path", func(c *Config) { c.Model.Path = "" }, true},
		{"negative threads", func(c *Config) { c.Model.Threads = -1 }, true},
		{"invalid hotkey mode", func(c *Config) { c.Hotkey.Mode = "invalid" }, true},
		{"empty hotkey keys", func(c *Config) { c.Hotkey.Keys = nil }, true},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Audio.Channels = 0 }, true},
		{"zero chunk interval", func(c *Config) { c.Audio.ChunkMs = 0 }, true},
		{"invalid inject method", func(c *Config) { c.Inject.Method = "ble" }, true},
		{"type method", func(c *Config) { c.Inject.Method = "type" }, false},
		{"negative word delay", func(c *Config) { c.Inject.WordDelayMs = -5 }, true},
		{"zero decode interval", func(c *Config) { c.Stream.DecodeInterval = 0 }, true},
		{"zero reserve", func(c *Config) { c.Stream.Reserve = 0 }, false},
		{"negative reserve", func(c *Config) { c.Stream.Reserve = -1 }, true},
		{"zero display interval", func(c *Config) { c.Session.DisplayInterval = 0 }, true},
		{"history without path", func(c *Config) { c.History.Path = "" }, true},
		{"disabled history without path", func(c *Config) { c.History = HistoryConfig{} }, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "wisprwave", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# wisprwave") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Hotkey.Mode != "hold" {
		t.Errorf("written config Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "hold")
	}
	if cfg.Stream.DecodeInterval != time.Second {
		t.Errorf("written config Stream.DecodeInterval = %v, want 1s", cfg.Stream.DecodeInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written config does not validate: %v", err)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "wisprwave")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("model:\n  path: /custom/model.bin\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestDefaultModelsDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	want := filepath.Join(tmpHome, ".local", "share", "wisprwave", "models")
	if got := DefaultModelsDir(); got != want {
		t.Errorf("DefaultModelsDir() = %q, want %q", got, want)
	}
	if got := Default().Model.Path; filepath.Dir(got) != want {
		t.Errorf("Default().Model.Path = %q, want it under %q", got, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
