package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrUnknownKey is returned for a settings key the Store does not recognise.
var ErrUnknownKey = errors.New("config: unknown settings key")

// Store is a flat key/value view over a settings file. Every Set is
// validated and written back immediately.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  *Config
}

// Open loads the settings file at path, or defaults if it does not exist yet.
func Open(path string) (*Store, error) {
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &Store{path: path, cfg: cfg}, nil
}

// NewStore wraps an already loaded config.
func NewStore(path string, cfg *Config) *Store {
	return &Store{path: path, cfg: cfg}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value of key formatted as it would be written by Set.
func (s *Store) Get(key string) (string, error) {
	k, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return k.get(s.cfg), nil
}

// Set parses value into key, validates the result and persists it. On
// any error the stored settings are unchanged.
func (s *Store) Set(key, value string) error {
	k, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	if err := k.set(next, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := next.Save(s.path); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Save writes the current settings to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Save(s.path)
}

// Config returns a snapshot of the current settings.
func (s *Store) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

// Keys lists every recognised settings key in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSecret reports whether the key holds a credential.
func IsSecret(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

func (c *Config) clone() *Config {
	cp := *c
	cp.Hotkey.Record = slices.Clone(c.Hotkey.Record)
	cp.Hotkey.Pause = slices.Clone(c.Hotkey.Pause)
	cp.Hotkey.Cancel = slices.Clone(c.Hotkey.Cancel)
	return &cp
}

type setting struct {
	get func(*Config) string
	set func(*Config, string) error
}

func stringSetting(field func(*Config) *string) setting {
	return setting{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func pathSetting(field func(*Config) *string) setting {
	return setting{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			*field(c) = expandTilde(v)
			return nil
		},
	}
}

func durationSetting(field func(*Config) *time.Duration) setting {
	return setting{
		get: func(c *Config) string { return field(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*field(c) = d
			return nil
		},
	}
}

func intSetting(field func(*Config) *int) setting {
	return setting{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
	}
}

func uintSetting(field func(*Config) *uint32) setting {
	return setting{
		get: func(c *Config) string { return strconv.FormatUint(uint64(*field(c)), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return err
			}
			*field(c) = uint32(n)
			return nil
		},
	}
}

func boolSetting(field func(*Config) *bool) setting {
	return setting{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*field(c) = b
			return nil
		},
	}
}

func keysSetting(field func(*Config) *[]string) setting {
	return setting{
		get: func(c *Config) string { return strings.Join(*field(c), "+") },
		set: func(c *Config, v string) error {
			var keys []string
			for _, k := range strings.Split(v, "+") {
				if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
					keys = append(keys, k)
				}
			}
			*field(c) = keys
			return nil
		},
	}
}

var settings = map[string]setting{
	"transcribe.backend":              stringSetting(func(c *Config) *string { return &c.Transcribe.Backend }),
	"transcribe.api_key":              stringSetting(func(c *Config) *string { return &c.Transcribe.APIKey }),
	"transcribe.model":                stringSetting(func(c *Config) *string { return &c.Transcribe.Model }),
	"transcribe.base_url":             stringSetting(func(c *Config) *string { return &c.Transcribe.BaseURL }),
	"transcribe.language":             stringSetting(func(c *Config) *string { return &c.Transcribe.Language }),
	"transcribe.max_segment_duration": durationSetting(func(c *Config) *time.Duration { return &c.Transcribe.MaxSegmentDuration }),
	"transcribe.segment_overlap":      durationSetting(func(c *Config) *time.Duration { return &c.Transcribe.SegmentOverlap }),
	"transcribe.concurrency":          intSetting(func(c *Config) *int { return &c.Transcribe.Concurrency }),
	"transcribe.poll_interval":        durationSetting(func(c *Config) *time.Duration { return &c.Transcribe.PollInterval }),
	"transcribe.poll_timeout":         durationSetting(func(c *Config) *time.Duration { return &c.Transcribe.PollTimeout }),
	"transcribe.request_timeout":      durationSetting(func(c *Config) *time.Duration { return &c.Transcribe.RequestTimeout }),
	"transcribe.retry.max_attempts":   intSetting(func(c *Config) *int { return &c.Transcribe.Retry.MaxAttempts }),
	"transcribe.retry.base_delay":     durationSetting(func(c *Config) *time.Duration { return &c.Transcribe.Retry.BaseDelay }),
	"transcribe.retry.max_delay":      durationSetting(func(c *Config) *time.Duration { return &c.Transcribe.Retry.MaxDelay }),
	"optimize.provider":               stringSetting(func(c *Config) *string { return &c.Optimize.Provider }),
	"optimize.api_key":                stringSetting(func(c *Config) *string { return &c.Optimize.APIKey }),
	"optimize.model":                  stringSetting(func(c *Config) *string { return &c.Optimize.Model }),
	"optimize.base_url":               stringSetting(func(c *Config) *string { return &c.Optimize.BaseURL }),
	"optimize.prompt":                 stringSetting(func(c *Config) *string { return &c.Optimize.Prompt }),
	"audio.device":                    stringSetting(func(c *Config) *string { return &c.Audio.Device }),
	"audio.sample_rate":               uintSetting(func(c *Config) *uint32 { return &c.Audio.SampleRate }),
	"audio.channels":                  uintSetting(func(c *Config) *uint32 { return &c.Audio.Channels }),
	"audio.temp_dir":                  pathSetting(func(c *Config) *string { return &c.Audio.TempDir }),
	"hotkey.enabled":                  boolSetting(func(c *Config) *bool { return &c.Hotkey.Enabled }),
	"hotkey.record":                   keysSetting(func(c *Config) *[]string { return &c.Hotkey.Record }),
	"hotkey.pause":                    keysSetting(func(c *Config) *[]string { return &c.Hotkey.Pause }),
	"hotkey.cancel":                   keysSetting(func(c *Config) *[]string { return &c.Hotkey.Cancel }),
	"output.dir":                      pathSetting(func(c *Config) *string { return &c.Output.Dir }),
	"output.inject":                   stringSetting(func(c *Config) *string { return &c.Output.Inject }),
	"output.auto_copy":                boolSetting(func(c *Config) *bool { return &c.Output.AutoCopy }),
	"ui.minimize_to_tray":             boolSetting(func(c *Config) *bool { return &c.UI.MinimizeToTray }),
	"log_level":                       stringSetting(func(c *Config) *string { return &c.LogLevel }),
}
