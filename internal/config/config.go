// Package config provides configuration management for coursetrace.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38100

	// DefaultBatchSize is how many activities a background run scores
	// between yields.
	DefaultBatchSize = 10

	// DefaultBatchYield is the pause between background batches, inserted
	// so a foreground caller is never starved.
	DefaultBatchYield = 10 * time.Millisecond
)

// Config holds every tunable of the correlation engine and the worker
// around it. A Config is read once at engine construction and never mutated
// mid-run; re-scoring with different parameters requires a new engine.
type Config struct {
	// Worker settings
	WorkerPort  int    `yaml:"worker_port"`
	CorpusPath  string `yaml:"corpus_path"`
	ArchivePath string `yaml:"archive_path"`
	WatchCorpus bool   `yaml:"watch_corpus"`

	// Confidence tier thresholds
	ThresholdStrong   float64 `yaml:"threshold_strong"`
	ThresholdModerate float64 `yaml:"threshold_moderate"`
	ThresholdWeak     float64 `yaml:"threshold_weak"`

	// Boost magnitudes
	CourseMatchBoost      float64 `yaml:"course_match_boost"`
	ModuleMatchBoost      float64 `yaml:"module_match_boost"`
	AssignmentMatchBoost  float64 `yaml:"assignment_match_boost"`
	DateProximityBoostMax float64 `yaml:"date_proximity_boost_max"`
	DateProximityDays     int     `yaml:"date_proximity_days"`

	// Vector space settings
	NGramMin        int `yaml:"ngram_min"`
	NGramMax        int `yaml:"ngram_max"`
	MinDocFrequency int `yaml:"min_doc_frequency"`

	// FieldWeights controls how often each semantic field is repeated in
	// the weighted text blob. Keys: title, course, subject, content,
	// course_context, sender_name, chat_subject, chat_content, channel_name.
	FieldWeights map[string]float64 `yaml:"field_weights"`

	// Corpus load filtering
	ExcludeMessageTypes []string `yaml:"exclude_message_types"`
	ExcludeSubstrings   []string `yaml:"exclude_substrings"`

	// Output and batching
	MaxPerActivity int           `yaml:"max_per_activity"`
	BatchSize      int           `yaml:"batch_size"`
	BatchYield     time.Duration `yaml:"batch_yield"`
}

// DefaultConfig returns the documented defaults. They mirror the tuning the
// correlation thresholds were validated against.
func DefaultConfig() *Config {
	return &Config{
		WorkerPort:  DefaultWorkerPort,
		ArchivePath: "coursetrace.db",

		ThresholdStrong:   0.5,
		ThresholdModerate: 0.4,
		ThresholdWeak:     0.3,

		CourseMatchBoost:      0.2,
		ModuleMatchBoost:      0.15,
		AssignmentMatchBoost:  0.15,
		DateProximityBoostMax: 0.1,
		DateProximityDays:     3,

		NGramMin:        1,
		NGramMax:        3,
		MinDocFrequency: 2,

		FieldWeights: map[string]float64{
			"title":          2.0,
			"course":         2.0,
			"subject":        3.0,
			"content":        1.0,
			"course_context": 2.0,
			"sender_name":    0.5,
			"chat_subject":   1.0,
			"chat_content":   2.0,
			"channel_name":   1.5,
		},

		ExcludeMessageTypes: []string{"channel_join", "channel_leave", "bot_message"},
		ExcludeSubstrings:   []string{"Automatic Reply", "Out of Office", "Do not reply"},

		MaxPerActivity: 5,
		BatchSize:      DefaultBatchSize,
		BatchYield:     DefaultBatchYield,
	}
}

// Load reads a YAML config file and overlays it on the defaults. Unset
// parameters keep their documented default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied. Used
// when no config file is given.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	cfg.normalize()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COURSETRACE_WORKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.WorkerPort = port
		}
	}
	if v := os.Getenv("COURSETRACE_CORPUS"); v != "" {
		c.CorpusPath = v
	}
	if v := os.Getenv("COURSETRACE_ARCHIVE"); v != "" {
		c.ArchivePath = v
	}
}

// normalize repairs values that would break the vector space or batching.
func (c *Config) normalize() {
	if c.NGramMin < 1 {
		c.NGramMin = 1
	}
	if c.NGramMax < c.NGramMin {
		c.NGramMax = c.NGramMin
	}
	if c.MinDocFrequency < 1 {
		c.MinDocFrequency = 1
	}
	if c.MaxPerActivity <= 0 {
		c.MaxPerActivity = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchYield <= 0 {
		c.BatchYield = DefaultBatchYield
	}
}

// FieldWeight returns the configured repetition weight for a field, or the
// fallback when the field is not configured.
func (c *Config) FieldWeight(field string, fallback float64) float64 {
	if w, ok := c.FieldWeights[field]; ok {
		return w
	}
	return fallback
}
