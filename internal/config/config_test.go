package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
season_start_year: 2025
source:
  url: https://example.com/export?format=csv
vocabulary:
  small:
    native: ["小組"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2025, cfg.SeasonStartYear)
	assert.Equal(t, defaultSourceID, cfg.Source.ID)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout())
	assert.Equal(t, []string{"小組"}, cfg.Vocabulary.Small.Native)
	assert.Empty(t, cfg.Vocabulary.Small.Latin)
	assert.Equal(t, DefaultVocabulary().Large, cfg.Vocabulary.Large)
	assert.Equal(t, "演出", cfg.Vocabulary.Performance)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.SeasonStartYear = 2026
	cfg.BasicAuth = &BasicAuthConfig{Username: "choir", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	assert.Equal(t, time.Local, cfg.Location())
}
