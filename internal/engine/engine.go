// Package engine orchestrates correlation of activities against a loaded
// message corpus: corpus lifecycle, vector-space lifecycle, per-activity
// scoring with caching, and optional background execution.
package engine

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/coursetrace/coursetrace/internal/config"
	"github.com/coursetrace/coursetrace/internal/corpus"
	"github.com/coursetrace/coursetrace/internal/scoring"
	"github.com/coursetrace/coursetrace/internal/textprep"
	"github.com/coursetrace/coursetrace/internal/vectorspace"
	"github.com/coursetrace/coursetrace/pkg/models"
)

var (
	// ErrRunInProgress is returned when a background run is already active.
	ErrRunInProgress = errors.New("engine: background run already in progress")

	// ErrVectorMathUnavailable is returned when the engine was constructed
	// without vector-math capability.
	ErrVectorMathUnavailable = errors.New("engine: vector math unavailable")
)

// Options tunes engine construction.
type Options struct {
	// Clock is used for year inference on short dates. Defaults to time.Now.
	Clock func() time.Time

	// DisableVectorMath constructs a degraded engine whose correlation
	// lookups all return empty results. The degraded state is observable
	// via Status().
	DisableVectorMath bool
}

// Engine owns one message corpus and the vector space fitted over it.
//
// The engine is single-writer, optionally-multi-reader: one foreground
// caller plus at most one background run. One mutex guards the corpus, the
// vector maps and the result cache; no correlation lookup ever observes a
// vector map mid-rebuild.
type Engine struct {
	cfg     *config.Config
	builder *textprep.Builder
	scorer  *scoring.Scorer
	clock   func() time.Time

	vectorMath bool

	mu           sync.Mutex
	messages     []*models.MessageRecord
	messageByID  map[string]*models.MessageRecord
	messageOrder []string // corpus iteration order, for deterministic ties
	model        *vectorspace.Model

	activityVectors map[string]vectorspace.Vector
	messageVectors  map[string]vectorspace.Vector
	results         map[string][]models.CorrelationResult

	running   bool
	completed bool
	runID     string

	flight singleflight.Group
}

// New creates an engine bound to one configuration. Re-scoring with a
// different configuration requires a new engine instance.
func New(cfg *config.Config, opts Options) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	builder := textprep.NewBuilder(cfg)
	e := &Engine{
		cfg:             cfg,
		builder:         builder,
		scorer:          scoring.NewScorer(cfg, builder, clock),
		clock:           clock,
		vectorMath:      !opts.DisableVectorMath,
		messageByID:     make(map[string]*models.MessageRecord),
		activityVectors: make(map[string]vectorspace.Vector),
		messageVectors:  make(map[string]vectorspace.Vector),
		results:         make(map[string][]models.CorrelationResult),
	}

	if !e.vectorMath {
		log.Warn().Msg("Vector math unavailable - correlation lookups will return empty results")
	}
	return e
}

// LoadFile loads a message corpus from a JSON export. The load is
// all-or-nothing: on failure the previous corpus stays untouched.
func (e *Engine) LoadFile(path string) error {
	messages, err := corpus.LoadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Corpus load failed - keeping previous corpus")
		return err
	}
	e.Load(messages)
	return nil
}

// Load replaces the corpus. Messages matching the configured exclusion
// rules are dropped before scoring. All cached vectors and correlation
// results are cleared; a stale cache is worse than a recompute.
func (e *Engine) Load(messages []models.MessageRecord) {
	kept := make([]*models.MessageRecord, 0, len(messages))
	excluded := 0
	for i := range messages {
		m := &messages[i]
		if e.excluded(m) {
			excluded++
			continue
		}
		kept = append(kept, m)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages = kept
	e.messageByID = make(map[string]*models.MessageRecord, len(kept))
	e.messageOrder = e.messageOrder[:0]
	for _, m := range kept {
		if m.MessageID == "" {
			continue
		}
		if _, dup := e.messageByID[m.MessageID]; !dup {
			e.messageOrder = append(e.messageOrder, m.MessageID)
		}
		e.messageByID[m.MessageID] = m
	}

	e.model = nil
	e.activityVectors = make(map[string]vectorspace.Vector)
	e.messageVectors = make(map[string]vectorspace.Vector)
	e.results = make(map[string][]models.CorrelationResult)
	e.completed = false

	log.Info().
		Int("messages", len(kept)).
		Int("excluded", excluded).
		Msg("Corpus loaded")
}

// excluded applies the configured load-time filtering rules.
func (e *Engine) excluded(m *models.MessageRecord) bool {
	for _, t := range e.cfg.ExcludeMessageTypes {
		if string(m.Type) == t {
			return true
		}
	}
	for _, sub := range e.cfg.ExcludeSubstrings {
		if sub == "" {
			continue
		}
		if strings.Contains(m.Subject, sub) || strings.Contains(m.Content, sub) {
			return true
		}
	}
	return false
}

// MessageByID returns a loaded message, or nil when unknown.
func (e *Engine) MessageByID(id string) *models.MessageRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messageByID[id]
}

// Preprocess builds normalized texts for every activity and every loaded
// message, fits the shared vector-space model on the union, and stores one
// vector per activity id and one per message id. Must run before any
// correlation lookup. Rebuilding the space invalidates all cached results.
func (e *Engine) Preprocess(activities []*models.ActivityRecord) {
	if !e.vectorMath {
		log.Error().Msg("Vector math unavailable - cannot preprocess")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.messages) == 0 {
		log.Warn().Msg("No messages loaded - cannot preprocess")
		return
	}

	activityTexts := make([]string, len(activities))
	for i, a := range activities {
		activityTexts[i] = e.builder.ActivityText(a)
	}
	messageTexts := make([]string, len(e.messages))
	for i, m := range e.messages {
		messageTexts[i] = e.builder.MessageText(m)
	}

	model := vectorspace.NewModel(vectorspace.Options{
		NGramMin:   e.cfg.NGramMin,
		NGramMax:   e.cfg.NGramMax,
		MinDocFreq: e.cfg.MinDocFrequency,
	})
	model.Fit(append(append([]string{}, activityTexts...), messageTexts...))

	activityVectors := make(map[string]vectorspace.Vector, len(activities))
	for i, a := range activities {
		vec, err := model.Transform(activityTexts[i])
		if err != nil {
			log.Warn().Err(err).Str("activity", a.ActivityID()).Msg("Activity transform failed")
			continue
		}
		activityVectors[a.ActivityID()] = vec
	}

	messageVectors := make(map[string]vectorspace.Vector, len(e.messages))
	for i, m := range e.messages {
		vec, err := model.Transform(messageTexts[i])
		if err != nil {
			log.Warn().Err(err).Str("message", m.MessageID).Msg("Message transform failed")
			continue
		}
		messageVectors[m.MessageID] = vec
	}

	// Publish the new space and drop every result computed in the old one.
	e.model = model
	e.activityVectors = activityVectors
	e.messageVectors = messageVectors
	e.results = make(map[string][]models.CorrelationResult)
	e.completed = false

	log.Info().
		Int("activities", len(activities)).
		Int("messages", len(e.messages)).
		Int("vocabulary", model.VocabularySize()).
		Msg("Preprocessing complete")
}

// FindCorrelations returns the ranked correlation list for one activity,
// computing and caching it on first call. For a fixed corpus and config the
// result is deterministic: adjusted similarity descending, corpus order on
// ties, truncated to the per-activity cap.
func (e *Engine) FindCorrelations(activity *models.ActivityRecord) []models.CorrelationResult {
	if !e.vectorMath {
		return nil
	}

	id := activity.ActivityID()

	// Coalesce concurrent lookups for the same activity.
	v, _, _ := e.flight.Do(id, func() (any, error) {
		return e.findLocked(id, activity), nil
	})
	results, _ := v.([]models.CorrelationResult)
	return results
}

func (e *Engine) findLocked(id string, activity *models.ActivityRecord) []models.CorrelationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.results[id]; ok {
		return cached
	}

	activityVec, ok := e.activityVectors[id]
	if !ok {
		log.Warn().Str("activity", id).Msg("Activity vector not found - returning no correlations")
		return []models.CorrelationResult{}
	}

	results := make([]models.CorrelationResult, 0)
	for _, messageID := range e.messageOrder {
		messageVec, ok := e.messageVectors[messageID]
		if !ok {
			continue
		}
		message := e.messageByID[messageID]
		if message == nil {
			continue
		}
		if result, ok := e.scorer.Score(activity, message, activityVec, messageVec); ok {
			results = append(results, result)
		}
	}

	// Stable sort preserves corpus iteration order on score ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AdjustedSimilarity > results[j].AdjustedSimilarity
	})

	if len(results) > e.cfg.MaxPerActivity {
		results = results[:e.cfg.MaxPerActivity]
	}

	e.results[id] = results
	return results
}

// CachedCorrelations returns the cached result list for an activity id
// without computing anything. The second return is false when the activity
// has not been scored since the last corpus load or preprocess.
func (e *Engine) CachedCorrelations(id string) ([]models.CorrelationResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	results, ok := e.results[id]
	return results, ok
}

// ProcessCorrelations preprocesses, then resolves correlations for every
// activity and writes the outcome back onto the activity records. The
// caller owns the (mutated) activity list after this returns.
func (e *Engine) ProcessCorrelations(activities []*models.ActivityRecord) {
	if !e.vectorMath {
		log.Error().Msg("Vector math unavailable - cannot process correlations")
		return
	}

	log.Info().Int("activities", len(activities)).Msg("Processing correlations")
	e.Preprocess(activities)

	for _, activity := range activities {
		correlations := e.FindCorrelations(activity)
		activity.HasMessages = len(correlations) > 0
		activity.Correlations = correlations
	}

	e.mu.Lock()
	e.completed = true
	e.mu.Unlock()

	log.Info().Msg("Correlation processing complete")
}

// Status reports the engine state for non-blocking polling.
func (e *Engine) Status() models.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return models.EngineStatus{
		Running:             e.running,
		ProcessedActivities: len(e.results),
		Completed:           e.completed,
		Degraded:            !e.vectorMath,
		RunID:               e.runID,
		CorpusSize:          len(e.messages),
	}
}
