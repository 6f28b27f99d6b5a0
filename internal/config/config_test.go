package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolateUserConfig keeps the test from picking up a real user config file.
func isolateUserConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, 1, cfg.Version)
	assert.Empty(t, cfg.Scan.Roots)
	assert.Equal(t, DefaultParseTimeout, cfg.Scan.ParseTimeout.Std())
	assert.Equal(t, DefaultOrphanGracePeriod, cfg.Index.OrphanGracePeriod.Std())
	assert.Equal(t, DuplicatePolicyPath, cfg.Index.DuplicatePolicy)
	assert.Equal(t, TextBackendMemory, cfg.Index.TextBackend)
	assert.Equal(t, "info", cfg.Log.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadLocalConfig(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	content := `
version: 1
scan:
  roots:
    - /scenarios/main
    - /scenarios/extra
  max_workers: 4
  parse_timeout: 5s
index:
  orphan_grace_period: 24h
  duplicate_policy: discovery
  text_backend: bleve
watch:
  enabled: true
  debounce: 500ms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalConfigName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"/scenarios/main", "/scenarios/extra"}, cfg.Scan.Roots)
	assert.Equal(t, 4, cfg.Scan.MaxWorkers)
	assert.Equal(t, 5*time.Second, cfg.Scan.ParseTimeout.Std())
	assert.Equal(t, 24*time.Hour, cfg.Index.OrphanGracePeriod.Std())
	assert.Equal(t, DuplicatePolicyDiscovery, cfg.Index.DuplicatePolicy)
	assert.Equal(t, TextBackendBleve, cfg.Index.TextBackend)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce.Std())
	// Unset fields keep defaults.
	assert.Equal(t, DefaultPollInterval, cfg.Watch.PollInterval.Std())
}

func TestLoadMissingFilesUsesDefaults(t *testing.T) {
	isolateUserConfig(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultParseTimeout, cfg.Scan.ParseTimeout.Std())
}

func TestLoadMalformedYAML(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalConfigName), []byte("scan: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	isolateUserConfig(t)
	t.Setenv("SCENARIUM_ROOTS", "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv("SCENARIUM_MAX_WORKERS", "8")
	t.Setenv("SCENARIUM_PARSE_TIMEOUT", "3s")
	t.Setenv("SCENARIUM_ORPHAN_GRACE_PERIOD", "1h")
	t.Setenv("SCENARIUM_DUPLICATE_POLICY", "discovery")
	t.Setenv("SCENARIUM_TEXT_BACKEND", "bleve")
	t.Setenv("SCENARIUM_DATA_DIR", "/tmp/scenarium-data")
	t.Setenv("SCENARIUM_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"/a", "/b"}, cfg.Scan.Roots)
	assert.Equal(t, 8, cfg.Scan.MaxWorkers)
	assert.Equal(t, 3*time.Second, cfg.Scan.ParseTimeout.Std())
	assert.Equal(t, time.Hour, cfg.Index.OrphanGracePeriod.Std())
	assert.Equal(t, DuplicatePolicyDiscovery, cfg.Index.DuplicatePolicy)
	assert.Equal(t, TextBackendBleve, cfg.Index.TextBackend)
	assert.Equal(t, "/tmp/scenarium-data", cfg.Store.DataDir)
	assert.Equal(t, "/tmp/scenarium-data", cfg.DataDir())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalConfigName),
		[]byte("index:\n  text_backend: bleve\n"), 0o644))
	t.Setenv("SCENARIUM_TEXT_BACKEND", "memory")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, TextBackendMemory, cfg.Index.TextBackend)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Scan.MaxWorkers = -1 }},
		{"tiny parse timeout", func(c *Config) { c.Scan.ParseTimeout = Duration(time.Millisecond) }},
		{"unknown duplicate policy", func(c *Config) { c.Index.DuplicatePolicy = "newest" }},
		{"unknown text backend", func(c *Config) { c.Index.TextBackend = "lucene" }},
		{"negative grace period", func(c *Config) { c.Index.OrphanGracePeriod = Duration(-time.Hour) }},
		{"sub-second poll interval", func(c *Config) { c.Watch.PollInterval = Duration(100 * time.Millisecond) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := New()
	cfg.Scan.Roots = []string{"/scenarios"}
	cfg.Index.OrphanGracePeriod = Duration(36 * time.Hour)

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Scan.Roots, loaded.Scan.Roots)
	assert.Equal(t, 36*time.Hour, loaded.Index.OrphanGracePeriod.Std())
}

func TestDurationUnmarshalForms(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte("90s"), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, yaml.Unmarshal([]byte("1000000000"), &d))
	assert.Equal(t, time.Second, d.Std())

	assert.Error(t, yaml.Unmarshal([]byte("ninety seconds"), &d))
}
