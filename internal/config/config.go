package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Optimize   OptimizeConfig   `yaml:"optimize"`
	Audio      AudioConfig      `yaml:"audio"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Output     OutputConfig     `yaml:"output"`
	UI         UIConfig         `yaml:"ui"`
	LogLevel   string           `yaml:"log_level"`

	// AudioDevice is the device key written by earlier releases.
	// Load migrates it into Audio.Device.
	AudioDevice string `yaml:"audio_device,omitempty"`
}

// TranscribeConfig holds speech-to-text backend settings.
type TranscribeConfig struct {
	Backend            string        `yaml:"backend"` // "gladia" or "openai"
	APIKey             string        `yaml:"api_key,omitempty"`
	Model              string        `yaml:"model,omitempty"`    // openai only
	BaseURL            string        `yaml:"base_url,omitempty"` // override API endpoint
	Language           string        `yaml:"language,omitempty"`
	MaxSegmentDuration time.Duration `yaml:"max_segment_duration"`
	SegmentOverlap     time.Duration `yaml:"segment_overlap"`
	Concurrency        int           `yaml:"concurrency"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollTimeout        time.Duration `yaml:"poll_timeout"` // 0 = wait until cancelled
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	Retry              RetryConfig   `yaml:"retry"`
}

// RetryConfig holds the retry policy for rate-limited or failing requests.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // 1 = no retry
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// OptimizeConfig holds text cleanup settings.
type OptimizeConfig struct {
	Provider      string        `yaml:"provider"` // "openai" or "anthropic"
	APIKey        string        `yaml:"api_key,omitempty"`
	Model         string        `yaml:"model,omitempty"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	Prompt        string        `yaml:"prompt,omitempty"`
	MaxChunkChars int           `yaml:"max_chunk_chars"`
	Timeout       time.Duration `yaml:"timeout"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	Device     string `yaml:"device"` // empty = system default
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	TempDir    string `yaml:"temp_dir,omitempty"`
}

// HotkeyConfig holds global hotkey bindings.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Record  []string `yaml:"record"`
	Pause   []string `yaml:"pause"`
	Cancel  []string `yaml:"cancel"`
}

// OutputConfig holds what happens to finished text.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Inject   string `yaml:"inject"` // "none", "type", or "paste"
	AutoCopy bool   `yaml:"auto_copy"`
}

// UIConfig holds session presentation settings.
type UIConfig struct {
	MinimizeToTray bool `yaml:"minimize_to_tray"`
}

const appName = "stt-notepad"

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the default settings file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "settings.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Transcribe: TranscribeConfig{
			Backend:            "gladia",
			MaxSegmentDuration: time.Hour,
			Concurrency:        1,
			PollInterval:       time.Second,
			PollTimeout:        30 * time.Minute,
			RequestTimeout:     15 * time.Minute,
			Retry: RetryConfig{
				MaxAttempts: 1,
				BaseDelay:   time.Second,
				MaxDelay:    30 * time.Second,
			},
		},
		Optimize: OptimizeConfig{
			Provider:      "openai",
			MaxChunkChars: 6000,
			Timeout:       2 * time.Minute,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Hotkey: HotkeyConfig{
			Enabled: false,
			Record:  []string{"ctrl", "shift", "r"},
			Pause:   []string{"ctrl", "shift", "p"},
			Cancel:  []string{"ctrl", "shift", "x"},
		},
		Output: OutputConfig{
			Dir:    filepath.Join(home, "Documents", appName),
			Inject: "none",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML settings file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.AudioDevice != "" {
		if cfg.Audio.Device == "" {
			cfg.Audio.Device = cfg.AudioDevice
		}
		cfg.AudioDevice = ""
	}

	cfg.Audio.TempDir = expandTilde(cfg.Audio.TempDir)
	cfg.Output.Dir = expandTilde(cfg.Output.Dir)

	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("[config] no settings file, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// Save writes the config to path atomically. The file may hold API keys
// and is created owner-only.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing config file: %w", err)
	}
	return nil
}

const header = "# stt-notepad settings\n# Durations use Go syntax: 90s, 10m, 1h.\n\n"

// WriteDefault writes the default settings to DefaultConfigPath if no file
// exists there. It returns the written path, or "" if a file already existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}
	if err := Default().Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Transcribe.Backend {
	case "gladia", "openai":
	default:
		return fmt.Errorf("transcribe.backend must be \"gladia\" or \"openai\", got %q", c.Transcribe.Backend)
	}

	if c.Transcribe.MaxSegmentDuration < time.Second {
		return fmt.Errorf("transcribe.max_segment_duration must be at least 1s, got %s", c.Transcribe.MaxSegmentDuration)
	}

	if c.Transcribe.SegmentOverlap < 0 || c.Transcribe.SegmentOverlap >= c.Transcribe.MaxSegmentDuration {
		return fmt.Errorf("transcribe.segment_overlap must be >= 0 and shorter than max_segment_duration, got %s", c.Transcribe.SegmentOverlap)
	}

	if c.Transcribe.Concurrency < 1 || c.Transcribe.Concurrency > 8 {
		return fmt.Errorf("transcribe.concurrency must be between 1 and 8, got %d", c.Transcribe.Concurrency)
	}

	if c.Transcribe.PollInterval <= 0 {
		return fmt.Errorf("transcribe.poll_interval must be > 0")
	}

	if c.Transcribe.PollTimeout < 0 {
		return fmt.Errorf("transcribe.poll_timeout must be >= 0, got %s", c.Transcribe.PollTimeout)
	}

	if c.Transcribe.Retry.MaxAttempts < 1 {
		return fmt.Errorf("transcribe.retry.max_attempts must be >= 1, got %d", c.Transcribe.Retry.MaxAttempts)
	}

	if c.Transcribe.Retry.BaseDelay < 0 || c.Transcribe.Retry.MaxDelay < c.Transcribe.Retry.BaseDelay {
		return fmt.Errorf("transcribe.retry delays must satisfy 0 <= base_delay <= max_delay")
	}

	switch c.Optimize.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("optimize.provider must be \"openai\" or \"anthropic\", got %q", c.Optimize.Provider)
	}

	if c.Optimize.MaxChunkChars < 200 {
		return fmt.Errorf("optimize.max_chunk_chars must be >= 200, got %d", c.Optimize.MaxChunkChars)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.Record) == 0 {
			return fmt.Errorf("hotkey.record must not be empty when hotkeys are enabled")
		}
	}

	switch c.Output.Inject {
	case "none", "type", "paste":
	default:
		return fmt.Errorf("output.inject must be \"none\", \"type\" or \"paste\", got %q", c.Output.Inject)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel converts a log level string to slog.Level.
// Unknown values default to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// APIKeyEnv names the environment variable consulted when no API key is
// configured for the transcription backend.
func (t TranscribeConfig) APIKeyEnv() string {
	if t.Backend == "openai" {
		return "OPENAI_API_KEY"
	}
	return "GLADIA_API_KEY"
}

// ResolvedAPIKey returns the configured API key or its environment fallback.
func (t TranscribeConfig) ResolvedAPIKey() string {
	if t.APIKey != "" {
		return t.APIKey
	}
	return os.Getenv(t.APIKeyEnv())
}

// APIKeyEnv names the environment variable consulted when no API key is
// configured for the optimizer.
func (o OptimizeConfig) APIKeyEnv() string {
	if o.Provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// ResolvedAPIKey returns the configured API key or its environment fallback.
func (o OptimizeConfig) ResolvedAPIKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	return os.Getenv(o.APIKeyEnv())
}

// LoadEnv loads API keys from .env in the working directory and from the
// config directory. Variables already set in the environment win.
func LoadEnv() error {
	for _, path := range []string{".env", filepath.Join(DefaultConfigDir(), ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		slog.Debug("[config] loaded environment file", "path", path)
	}
	return nil
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
