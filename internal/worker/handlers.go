package worker

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coursetrace/coursetrace/internal/archive"
	"github.com/coursetrace/coursetrace/internal/engine"
	"github.com/coursetrace/coursetrace/pkg/models"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// handleHealth returns 200 immediately, even during corpus load, so the UI
// can distinguish "starting" from "down".
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	} else if s.initError() != nil {
		status = "error"
	}
	writeJSON(w, map[string]interface{}{
		"status":  status,
		"version": s.version,
	})
}

// handleVersion returns the worker version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": s.version,
	})
}

// handleStatus reports the engine state for non-blocking polling.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Status())
}

// CorpusLoadRequest is the request body for corpus loading. An empty path
// falls back to the configured corpus path.
type CorpusLoadRequest struct {
	Path string `json:"path"`
}

// handleCorpusLoad replaces the message corpus from a JSON export file.
func (s *Service) handleCorpusLoad(w http.ResponseWriter, r *http.Request) {
	var req CorpusLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	path := req.Path
	if path == "" {
		path = s.config.CorpusPath
	}
	if path == "" {
		http.Error(w, "no corpus path given or configured", http.StatusBadRequest)
		return
	}

	if err := s.engine.LoadFile(path); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, map[string]interface{}{
		"corpus_size": s.engine.Status().CorpusSize,
	})
}

// CorrelateRequest is the request body for both correlation endpoints.
type CorrelateRequest struct {
	Activities []models.ActivityRecord `json:"activities"`
}

// CorrelateResponse carries the mutated activities of a synchronous run.
type CorrelateResponse struct {
	RunID      string                   `json:"run_id"`
	Activities []*models.ActivityRecord `json:"activities"`
}

func decodeActivities(r *http.Request) ([]*models.ActivityRecord, error) {
	var req CorrelateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	activities := make([]*models.ActivityRecord, len(req.Activities))
	for i := range req.Activities {
		activities[i] = &req.Activities[i]
	}
	return activities, nil
}

// handleCorrelate runs correlation synchronously and returns the activities
// with their matches attached. The run is archived when an archive is open.
func (s *Service) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	activities, err := decodeActivities(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.engine.Status().Degraded {
		http.Error(w, engine.ErrVectorMathUnavailable.Error(), http.StatusServiceUnavailable)
		return
	}

	s.engine.ProcessCorrelations(activities)

	runID := uuid.NewString()
	s.archiveRun(runID, activities)
	writeJSON(w, CorrelateResponse{RunID: runID, Activities: activities})
}

// archiveRun persists a completed run. Archive failures are logged and
// swallowed; results were already computed.
func (s *Service) archiveRun(runID string, activities []*models.ActivityRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(runID, activities); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Failed to archive correlation run")
	}
}

// handleCorrelateBackground starts a background correlation run and returns
// its id immediately. A second run is refused with 409 while one is active.
func (s *Service) handleCorrelateBackground(w http.ResponseWriter, r *http.Request) {
	activities, err := decodeActivities(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := s.engine.StartBackgroundRun(activities)
	switch {
	case errors.Is(err, engine.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, engine.ErrVectorMathUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"run_id": runID})
}

// handleCorrelationsFor returns the cached correlation list for one
// activity id. 404 when the activity has not been scored.
func (s *Service) handleCorrelationsFor(w http.ResponseWriter, r *http.Request) {
	// Derived activity ids contain spaces and pipes, so clients escape them.
	activityID := chi.URLParam(r, "activityID")
	if unescaped, err := url.PathUnescape(activityID); err == nil {
		activityID = unescaped
	}

	results, ok := s.engine.CachedCorrelations(activityID)
	if !ok {
		http.Error(w, "activity not scored", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"activity_id":  activityID,
		"correlations": results,
	})
}

// handleRunResults returns the archived rows of one run.
func (s *Service) handleRunResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "results archive not configured", http.StatusNotFound)
		return
	}

	runID := chi.URLParam(r, "runID")
	records, err := s.store.RunResults(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, records)
}

// ExportRequest is the request body for the JSON export endpoint.
type ExportRequest struct {
	Path       string                  `json:"path"`
	Activities []models.ActivityRecord `json:"activities"`
}

// handleExport writes an activities-with-correlations JSON file.
func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "export path required", http.StatusBadRequest)
		return
	}

	activities := make([]*models.ActivityRecord, len(req.Activities))
	for i := range req.Activities {
		activities[i] = &req.Activities[i]
	}
	if err := archive.ExportJSON(req.Path, activities); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"path": req.Path})
}
