package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 0.75, cfg.Matching.SimilarityThreshold, 0.001)
	assert.InDelta(t, 0.75, cfg.Matching.AddressSimilarityThreshold, 0.001)
	assert.Equal(t, 2, cfg.Matching.FuzzyDuplicateWindowHours)
	assert.Equal(t, 24, cfg.Matching.SuspiciousWindowHours)
	assert.InDelta(t, 5.0, cfg.Matching.CostTolerancePct, 0.001)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentPartitions)
	assert.Equal(t, 3, cfg.Batch.MaxRetries)
	assert.Equal(t, 120, cfg.Import.TimeoutSecs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
matching:
  similarity_threshold: 0.8
  suspicious_window_hours: 48
batch:
  max_concurrent_partitions: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.8, cfg.Matching.SimilarityThreshold, 0.001)
	assert.Equal(t, 48, cfg.Matching.SuspiciousWindowHours)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentPartitions)
	// Defaults still apply for unset values
	assert.Equal(t, 2, cfg.Matching.FuzzyDuplicateWindowHours)
	assert.InDelta(t, 5.0, cfg.Matching.CostTolerancePct, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("RECON_STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestMatchingValidate(t *testing.T) {
	valid := MatchingConfig{
		SimilarityThreshold:        0.75,
		AddressSimilarityThreshold: 0.75,
		FuzzyDuplicateWindowHours:  2,
		SuspiciousWindowHours:      24,
		CostTolerancePct:           5.0,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*MatchingConfig)
	}{
		{"threshold above one", func(m *MatchingConfig) { m.SimilarityThreshold = 1.5 }},
		{"threshold negative", func(m *MatchingConfig) { m.SimilarityThreshold = -0.1 }},
		{"address threshold above one", func(m *MatchingConfig) { m.AddressSimilarityThreshold = 2 }},
		{"zero fuzzy window", func(m *MatchingConfig) { m.FuzzyDuplicateWindowHours = 0 }},
		{"negative suspicious window", func(m *MatchingConfig) { m.SuspiciousWindowHours = -1 }},
		{"cost tolerance above 100", func(m *MatchingConfig) { m.CostTolerancePct = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			assert.Error(t, m.Validate())
		})
	}
}

func TestValidateBoundaryValuesAccepted(t *testing.T) {
	m := MatchingConfig{
		SimilarityThreshold:        1.0,
		AddressSimilarityThreshold: 0.0,
		FuzzyDuplicateWindowHours:  1,
		SuspiciousWindowHours:      1,
		CostTolerancePct:           0,
	}
	assert.NoError(t, m.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	assert.Error(t, err)
}
