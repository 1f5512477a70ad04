package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.5, cfg.ThresholdStrong)
	assert.Equal(t, 0.4, cfg.ThresholdModerate)
	assert.Equal(t, 0.3, cfg.ThresholdWeak)
	assert.Equal(t, 0.2, cfg.CourseMatchBoost)
	assert.Equal(t, 0.15, cfg.ModuleMatchBoost)
	assert.Equal(t, 0.15, cfg.AssignmentMatchBoost)
	assert.Equal(t, 0.1, cfg.DateProximityBoostMax)
	assert.Equal(t, 3, cfg.DateProximityDays)
	assert.Equal(t, 1, cfg.NGramMin)
	assert.Equal(t, 3, cfg.NGramMax)
	assert.Equal(t, 2, cfg.MinDocFrequency)
	assert.Equal(t, 5, cfg.MaxPerActivity)
	assert.Contains(t, cfg.ExcludeSubstrings, "Automatic Reply")
	assert.Contains(t, cfg.ExcludeMessageTypes, "bot_message")
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("threshold_strong: 0.7\nmax_per_activity: 3\nfield_weights:\n  subject: 4\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 0.7, cfg.ThresholdStrong)
	assert.Equal(t, 3, cfg.MaxPerActivity)
	assert.Equal(t, 4.0, cfg.FieldWeight("subject", 0))

	// Unset parameters fall back to documented defaults
	assert.Equal(t, 0.4, cfg.ThresholdModerate)
	assert.Equal(t, 3, cfg.DateProximityDays)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNormalize_RepairsInvalidValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NGramMin = 0
	cfg.NGramMax = -1
	cfg.MinDocFrequency = 0
	cfg.MaxPerActivity = 0
	cfg.BatchSize = -5
	cfg.BatchYield = 0
	cfg.normalize()

	assert.Equal(t, 1, cfg.NGramMin)
	assert.Equal(t, 1, cfg.NGramMax)
	assert.Equal(t, 1, cfg.MinDocFrequency)
	assert.Equal(t, 5, cfg.MaxPerActivity)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultBatchYield, cfg.BatchYield)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("COURSETRACE_WORKER_PORT", "40123")
	t.Setenv("COURSETRACE_CORPUS", "/tmp/messages.json")

	cfg := FromEnv()
	assert.Equal(t, 40123, cfg.WorkerPort)
	assert.Equal(t, "/tmp/messages.json", cfg.CorpusPath)
	assert.Equal(t, DefaultBatchYield, cfg.BatchYield)
}

func TestFieldWeight_Fallback(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3.0, cfg.FieldWeight("subject", 1.0))
	assert.Equal(t, 1.0, cfg.FieldWeight("unknown_field", 1.0))
}
