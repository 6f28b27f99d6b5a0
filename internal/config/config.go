// Package config loads and validates scenarium configuration. Settings come
// from three layers, lowest to highest precedence: built-in defaults, YAML
// config files, and SCENARIUM_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	scerrors "github.com/hanulsoft/scenarium/internal/errors"
)

// Duplicate resolution policies.
const (
	DuplicatePolicyPath      = "path"
	DuplicatePolicyDiscovery = "discovery"
)

// Text index backends.
const (
	TextBackendMemory = "memory"
	TextBackendBleve  = "bleve"
)

// Defaults.
const (
	DefaultOrphanGracePeriod = 72 * time.Hour
	DefaultParseTimeout      = 10 * time.Second
	DefaultWatchDebounce     = 2 * time.Second
	DefaultPollInterval      = 30 * time.Second
)

// Duration wraps time.Duration so config files can use human-readable
// forms like "30s" or "72h". Bare integers are taken as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete scenarium configuration.
type Config struct {
	Version int         `yaml:"version"`
	Scan    ScanConfig  `yaml:"scan"`
	Index   IndexConfig `yaml:"index"`
	Watch   WatchConfig `yaml:"watch"`
	Store   StoreConfig `yaml:"store"`
	Log     LogConfig   `yaml:"log"`
}

// ScanConfig configures package discovery and parsing.
type ScanConfig struct {
	// Roots are the directories walked for scenario packages.
	Roots []string `yaml:"roots"`

	// Exclude lists directory patterns skipped during walks
	// (e.g. "**/trash/**", "backup/**").
	Exclude []string `yaml:"exclude"`

	// FollowSymlinks enables descending into symlinked directories.
	FollowSymlinks bool `yaml:"follow_symlinks"`

	// MaxWorkers bounds concurrent descriptor parsing. Zero means
	// runtime.NumCPU at scan time.
	MaxWorkers int `yaml:"max_workers"`

	// ParseTimeout caps how long a single descriptor parse may take.
	ParseTimeout Duration `yaml:"parse_timeout"`
}

// IndexConfig configures reconciliation behavior.
type IndexConfig struct {
	// OrphanGracePeriod is how long a missing package stays queryable in the
	// orphaned state before it is purged.
	OrphanGracePeriod Duration `yaml:"orphan_grace_period"`

	// DuplicatePolicy selects the canonical copy among packages with the
	// same identity: "path" (lexicographic, deterministic) or "discovery"
	// (first seen in walk order).
	DuplicatePolicy string `yaml:"duplicate_policy"`

	// TextBackend selects the search index: "memory" or "bleve".
	TextBackend string `yaml:"text_backend"`
}

// WatchConfig configures filesystem watching.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`

	// Debounce is how long the watcher waits after the last event before
	// triggering an incremental rescan.
	Debounce Duration `yaml:"debounce"`

	// PollInterval is the fallback poll cadence when native watches are
	// unavailable (network mounts, watch-limit exhaustion).
	PollInterval Duration `yaml:"poll_interval"`
}

// StoreConfig configures the on-disk index location.
type StoreConfig struct {
	// DataDir holds the SQLite database, lock file, and bleve index.
	// Empty means ~/.scenarium.
	DataDir string `yaml:"data_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// New returns a Config populated with defaults. Roots stays empty; a scan
// cannot run until the user configures at least one root.
func New() *Config {
	return &Config{
		Version: 1,
		Scan: ScanConfig{
			ParseTimeout: Duration(DefaultParseTimeout),
		},
		Index: IndexConfig{
			OrphanGracePeriod: Duration(DefaultOrphanGracePeriod),
			DuplicatePolicy:   DuplicatePolicyPath,
			TextBackend:       TextBackendMemory,
		},
		Watch: WatchConfig{
			Debounce:     Duration(DefaultWatchDebounce),
			PollInterval: Duration(DefaultPollInterval),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// UserConfigPath returns the path of the per-user config file, honoring
// XDG_CONFIG_HOME.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scenarium", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "scenarium", "config.yaml")
}

// LocalConfigName is the per-directory config file looked up in dir.
const LocalConfigName = ".scenarium.yaml"

// Load builds the effective configuration for dir: defaults, then the user
// config file, then dir's local config, then environment overrides. Missing
// files are fine; a present but unreadable or malformed file is an error.
func Load(dir string) (*Config, error) {
	cfg := New()

	if userPath := UserConfigPath(); userPath != "" {
		if err := cfg.loadYAML(userPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	local := filepath.Join(dir, LocalConfigName)
	if err := cfg.loadYAML(local); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads exactly one config file over the defaults, then applies
// environment overrides. Used by the --config flag.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := cfg.loadYAML(path); err != nil {
		if os.IsNotExist(err) {
			return nil, scerrors.New(scerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return scerrors.New(scerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("malformed config file: %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies SCENARIUM_* environment variable overrides.
// Env vars win over every file layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCENARIUM_ROOTS"); v != "" {
		c.Scan.Roots = splitList(v)
	}
	if v := os.Getenv("SCENARIUM_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scan.MaxWorkers = n
		}
	}
	if v := os.Getenv("SCENARIUM_PARSE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scan.ParseTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SCENARIUM_ORPHAN_GRACE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Index.OrphanGracePeriod = Duration(d)
		}
	}
	if v := os.Getenv("SCENARIUM_DUPLICATE_POLICY"); v != "" {
		c.Index.DuplicatePolicy = v
	}
	if v := os.Getenv("SCENARIUM_TEXT_BACKEND"); v != "" {
		c.Index.TextBackend = v
	}
	if v := os.Getenv("SCENARIUM_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := os.Getenv("SCENARIUM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, string(os.PathListSeparator))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for coherent values. Roots may be empty
// here; commands that scan enforce non-empty roots themselves so that
// read-only commands (search, status) still work on an existing index.
func (c *Config) Validate() error {
	if err := c.Scan.Validate(); err != nil {
		return scerrors.New(scerrors.ErrCodeConfigInvalid, "invalid scan configuration", err)
	}
	if err := c.Index.Validate(); err != nil {
		return scerrors.New(scerrors.ErrCodeConfigInvalid, "invalid index configuration", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return scerrors.New(scerrors.ErrCodeConfigInvalid, "invalid watch configuration", err)
	}
	return nil
}

// Validate validates scan settings.
func (c *ScanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxWorkers, validation.Min(0), validation.Max(256)),
		validation.Field(&c.ParseTimeout, validation.Required, validation.Min(Duration(100*time.Millisecond))),
	)
}

// Validate validates index settings.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OrphanGracePeriod, validation.Min(Duration(0))),
		validation.Field(&c.DuplicatePolicy, validation.Required,
			validation.In(DuplicatePolicyPath, DuplicatePolicyDiscovery)),
		validation.Field(&c.TextBackend, validation.Required,
			validation.In(TextBackendMemory, TextBackendBleve)),
	)
}

// Validate validates watch settings.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(Duration(0))),
		validation.Field(&c.PollInterval, validation.Min(Duration(time.Second))),
	)
}

// DataDir resolves the effective data directory.
func (c *Config) DataDir() string {
	if c.Store.DataDir != "" {
		return c.Store.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scenarium"
	}
	return filepath.Join(home, ".scenarium")
}

// Save writes the configuration to path in YAML form, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
