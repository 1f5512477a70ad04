package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coursetrace/coursetrace/pkg/models"
)

// StartBackgroundRun processes correlations for the given activities on a
// background goroutine, in fixed-size batches with a short yield between
// batches so a foreground caller is never starved.
//
// A second run is refused while one is in progress; the first run is
// neither queued behind nor cancelled. Progress is observable via Status().
func (e *Engine) StartBackgroundRun(activities []*models.ActivityRecord) (string, error) {
	if !e.vectorMath {
		log.Error().Msg("Vector math unavailable - cannot start background run")
		return "", ErrVectorMathUnavailable
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		log.Warn().Str("run_id", e.runID).Msg("Background correlation already in progress")
		return "", ErrRunInProgress
	}
	runID := uuid.NewString()
	e.running = true
	e.runID = runID
	e.mu.Unlock()

	go e.backgroundRun(runID, activities)

	log.Info().
		Str("run_id", runID).
		Int("activities", len(activities)).
		Msg("Started background correlation")
	return runID, nil
}

// backgroundRun is the worker body. Any failure is recovered and logged,
// and the running flag is always cleared so the engine can never report a
// permanently stuck run.
func (e *Engine) backgroundRun(runID string, activities []*models.ActivityRecord) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("run_id", runID).Any("panic", r).Msg("Background correlation failed")
		}
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.Preprocess(activities)

	batchSize := e.cfg.BatchSize
	for i := 0; i < len(activities); i += batchSize {
		end := i + batchSize
		if end > len(activities) {
			end = len(activities)
		}

		for _, activity := range activities[i:end] {
			correlations := e.FindCorrelations(activity)
			activity.HasMessages = len(correlations) > 0
			activity.Correlations = correlations
		}

		// Yield between batches to keep the foreground responsive.
		if end < len(activities) {
			time.Sleep(e.cfg.BatchYield)
		}
	}

	e.mu.Lock()
	e.completed = true
	e.mu.Unlock()

	log.Info().
		Str("run_id", runID).
		Int("activities", len(activities)).
		Dur("elapsed", time.Since(start)).
		Msg("Background correlation completed")
}
