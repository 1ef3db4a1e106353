package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Asia/Taipei"
	defaultRefreshCron     = "*/5 * * * *"
	defaultCacheTTLSeconds = 60
	defaultTimeoutSeconds  = 15
	defaultMinInterval     = 5
	defaultSourceID        = "schedule"
)

// SourceConfig describes where the schedule export is read from. When File
// is set it takes precedence over URL.
type SourceConfig struct {
	// ID is an internal identifier used as the cache key and in logs.
	ID string `yaml:"id" json:"id"`
	// URL is the published spreadsheet CSV export endpoint.
	URL string `yaml:"url" json:"url"`
	// File is a local CSV path, mainly for development.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	// TimeoutSeconds bounds a single fetch.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// MinIntervalSeconds paces requests to the upstream endpoint.
	MinIntervalSeconds int `yaml:"min_interval_seconds" json:"min_interval_seconds"`
}

// GuardedPhrase matches Phrase only when Unless is absent from the text.
type GuardedPhrase struct {
	Phrase string `yaml:"phrase" json:"phrase"`
	Unless string `yaml:"unless" json:"unless"`
}

// PhraseSet is a keyword list. Native phrases match case-sensitively,
// Latin aliases case-insensitively.
type PhraseSet struct {
	Native  []string        `yaml:"native" json:"native"`
	Latin   []string        `yaml:"latin" json:"latin"`
	Guarded []GuardedPhrase `yaml:"guarded,omitempty" json:"guarded,omitempty"`
}

// Vocabulary holds the content keywords the classifier, annotator and
// projection look for.
type Vocabulary struct {
	MusicianOnly PhraseSet `yaml:"musician_only" json:"musician_only"`
	Small        PhraseSet `yaml:"small" json:"small"`
	Large        PhraseSet `yaml:"large" json:"large"`
	Alert        PhraseSet `yaml:"alert" json:"alert"`

	// Performance marks a row as a performance (case-insensitive).
	Performance string `yaml:"performance" json:"performance"`
	// GuestInstructor in notes triggers GuestMarker on the displayed date.
	GuestInstructor string `yaml:"guest_instructor" json:"guest_instructor"`
	GuestMarker     string `yaml:"guest_marker" json:"guest_marker"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone in which "today" is evaluated.
	Timezone string `yaml:"timezone" json:"timezone"`

	// SeasonStartYear is the calendar year of the season's November and
	// December rows; January to October rows belong to the following year.
	// Zero means "derive from the current date".
	SeasonStartYear int `yaml:"season_start_year" json:"season_start_year"`

	// RefreshCron is a cron-style schedule string used to warm the
	// schedule cache in the background. Empty disables background refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheTTLSeconds is the freshness window for a fetched export.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// RegularRehearsal is an optional RRULE describing the usual rehearsal
	// days, e.g. "FREQ=WEEKLY;BYDAY=SA".
	RegularRehearsal string `yaml:"regular_rehearsal,omitempty" json:"regular_rehearsal,omitempty"`

	LogLevel   string `yaml:"log_level" json:"log_level"`
	LogConsole bool   `yaml:"log_console" json:"log_console"`

	Source     SourceConfig `yaml:"source" json:"source"`
	Vocabulary Vocabulary   `yaml:"vocabulary" json:"vocabulary"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultVocabulary returns the keyword sets used by the choir's sheet.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		MusicianOnly: PhraseSet{
			Native:  []string{"僅樂手"},
			Latin:   []string{"band only"},
			Guarded: []GuardedPhrase{{Phrase: "樂手", Unless: "團員"}},
		},
		Small: PhraseSet{
			Native: []string{"小團", "室內團"},
			Latin:  []string{"chamber"},
		},
		Large: PhraseSet{
			Native: []string{"大團", "全體", "全部人員", "所有曲目"},
			Latin:  []string{"tutti"},
		},
		Alert: PhraseSet{
			Native: []string{"停練", "取消", "重要", "注意"},
			Latin:  []string{"cancel", "important"},
		},
		Performance:     "演出",
		GuestInstructor: "客席",
		GuestMarker:     " ★",
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		RefreshCron:     defaultRefreshCron,
		CacheTTLSeconds: defaultCacheTTLSeconds,
		LogLevel:        "info",
		Source: SourceConfig{
			ID:                 defaultSourceID,
			TimeoutSeconds:     defaultTimeoutSeconds,
			MinIntervalSeconds: defaultMinInterval,
		},
		Vocabulary: DefaultVocabulary(),
		BasicAuth:  nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = defaultCacheTTLSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Source.ID == "" {
		c.Source.ID = defaultSourceID
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Source.MinIntervalSeconds < 0 {
		c.Source.MinIntervalSeconds = 0
	}

	// Vocabulary defaults are applied per set so a config can override
	// only the lists it cares about.
	def := DefaultVocabulary()
	v := &c.Vocabulary
	if v.MusicianOnly.empty() {
		v.MusicianOnly = def.MusicianOnly
	}
	if v.Small.empty() {
		v.Small = def.Small
	}
	if v.Large.empty() {
		v.Large = def.Large
	}
	if v.Alert.empty() {
		v.Alert = def.Alert
	}
	if v.Performance == "" {
		v.Performance = def.Performance
	}
	if v.GuestInstructor == "" {
		v.GuestInstructor = def.GuestInstructor
	}
	if v.GuestMarker == "" {
		v.GuestMarker = def.GuestMarker
	}
}

func (p PhraseSet) empty() bool {
	return len(p.Native) == 0 && len(p.Latin) == 0 && len(p.Guarded) == 0
}

// CacheTTL returns the export freshness window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// FetchTimeout returns the upper bound for a single fetch.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".choircal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
