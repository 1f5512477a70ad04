package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/coursetrace/coursetrace/internal/config"
	"github.com/coursetrace/coursetrace/internal/vectorspace"
	"github.com/coursetrace/coursetrace/pkg/models"
)

// testClock pins year inference so date proximity is stable.
func testClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testMessages() []models.MessageRecord {
	return []models.MessageRecord{
		{
			MessageID:     "msg-ps3",
			Type:          models.MessageEmail,
			Subject:       "CS101 PS3 reminder",
			Content:       "Problem Set 3 due soon. Module 3 material applies.",
			Sender:        models.Sender{Name: "Course Staff"},
			Timestamp:     "2025-03-09T10:00:00",
			DateFormatted: "Mar 9",
			CourseContext: "CS101",
		},
		{
			MessageID:     "msg-notes",
			Type:          models.MessageEmail,
			Subject:       "CS101 module 3 notes",
			Content:       "Module 3 notes posted for problem set 3",
			Sender:        models.Sender{Name: "Course Staff"},
			Timestamp:     "2025-03-08T09:00:00",
			DateFormatted: "Mar 8",
			CourseContext: "CS101",
		},
		{
			MessageID:     "msg-chat",
			Type:          models.MessageChat,
			Content:       "problem set 3 hints for cs101",
			Timestamp:     "2025-03-09T15:00:00",
			DateFormatted: "Mar 9",
			Recipients:    []models.Recipient{{Name: "cs101-help", Type: "channel"}},
		},
		{
			MessageID:     "msg-picnic",
			Type:          models.MessageEmail,
			Subject:       "Picnic signup",
			Content:       "Bring snacks to the park",
			Timestamp:     "2025-04-09T10:00:00",
			DateFormatted: "Apr 9",
		},
	}
}

func ps3Activity() *models.ActivityRecord {
	return &models.ActivityRecord{
		Title:     "Problem Set 3",
		Course:    "CS101",
		Date:      "Mar 10",
		EventType: models.EventAssignment,
		Status:    "upcoming",
	}
}

type EngineSuite struct {
	suite.Suite
	cfg    *config.Config
	engine *Engine
}

func (s *EngineSuite) SetupTest() {
	s.cfg = config.DefaultConfig()
	s.cfg.MinDocFrequency = 1
	s.engine = New(s.cfg, Options{Clock: testClock})
	s.engine.Load(testMessages())
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

// =============================================================================
// GOOD SCENARIOS - Expected normal operations
// =============================================================================

func (s *EngineSuite) TestFindCorrelations_Deterministic() {
	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})

	first := s.engine.FindCorrelations(activity)
	second := s.engine.FindCorrelations(activity)

	s.Require().NotEmpty(first)
	s.Require().Len(second, len(first))
	for i := range first {
		s.Equal(first[i].MessageID, second[i].MessageID)
		s.Equal(first[i].AdjustedSimilarity, second[i].AdjustedSimilarity)
		s.Equal(first[i].Confidence, second[i].Confidence)
	}
}

func (s *EngineSuite) TestFindCorrelations_RankedAndBoosted() {
	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})

	results := s.engine.FindCorrelations(activity)
	s.Require().NotEmpty(results)

	// Ordered by adjusted similarity descending.
	for i := 1; i < len(results); i++ {
		s.GreaterOrEqual(results[i-1].AdjustedSimilarity, results[i].AdjustedSimilarity)
	}

	// Clamping and boost monotonicity hold for every returned result.
	for _, r := range results {
		s.GreaterOrEqual(r.RawSimilarity, 0.0)
		s.LessOrEqual(r.RawSimilarity, 1.0)
		s.GreaterOrEqual(r.AdjustedSimilarity, 0.0)
		s.LessOrEqual(r.AdjustedSimilarity, 1.0)

		boosted := r.Evidence.CourseMatch || r.Evidence.ModuleMatch ||
			r.Evidence.AssignmentMatch || r.Evidence.DateProximityDays != nil
		if boosted {
			s.GreaterOrEqual(r.AdjustedSimilarity, r.RawSimilarity)
		}

		switch r.Confidence {
		case models.ConfidenceStrong:
			s.GreaterOrEqual(r.AdjustedSimilarity, s.cfg.ThresholdStrong)
		case models.ConfidenceModerate:
			s.GreaterOrEqual(r.AdjustedSimilarity, s.cfg.ThresholdModerate)
			s.Less(r.AdjustedSimilarity, s.cfg.ThresholdStrong)
		case models.ConfidenceWeak:
			s.GreaterOrEqual(r.AdjustedSimilarity, s.cfg.ThresholdWeak)
			s.Less(r.AdjustedSimilarity, s.cfg.ThresholdModerate)
		default:
			s.Failf("unexpected tier", "tier %q", r.Confidence)
		}
	}
}

// The canonical course-match scenario: same course code, one day apart.
func (s *EngineSuite) TestFindCorrelations_CourseMatchScenario() {
	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})

	results := s.engine.FindCorrelations(activity)
	s.Require().NotEmpty(results)

	var reminder *models.CorrelationResult
	for i := range results {
		if results[i].MessageID == "msg-ps3" {
			reminder = &results[i]
		}
	}
	s.Require().NotNil(reminder, "the PS3 reminder email must correlate")

	s.True(reminder.Evidence.CourseMatch)
	s.Require().NotNil(reminder.Evidence.DateProximityDays)
	s.Equal(1, *reminder.Evidence.DateProximityDays)
	s.Greater(reminder.AdjustedSimilarity, reminder.RawSimilarity)
	s.Contains(reminder.Evidence.Summary(), "course match")
}

// An unrelated message with no entity agreement and dates beyond the window
// never shows up in the results.
func (s *EngineSuite) TestFindCorrelations_UnrelatedMessageExcluded() {
	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})

	for _, r := range s.engine.FindCorrelations(activity) {
		s.NotEqual("msg-picnic", r.MessageID)
	}
}

func (s *EngineSuite) TestFindCorrelations_CapRespected() {
	s.cfg.MaxPerActivity = 2
	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})

	results := s.engine.FindCorrelations(activity)
	s.LessOrEqual(len(results), 2)
}

func (s *EngineSuite) TestProcessCorrelations_WritesBack() {
	activity := ps3Activity()
	other := &models.ActivityRecord{Title: "Pottery class", Course: "ART999", Date: "Dec 25"}

	s.engine.ProcessCorrelations([]*models.ActivityRecord{activity, other})

	s.True(activity.HasMessages)
	s.NotEmpty(activity.Correlations)
	s.False(other.HasMessages)
	s.Empty(other.Correlations)

	status := s.engine.Status()
	s.True(status.Completed)
	s.False(status.Running)
}

// =============================================================================
// CACHE BEHAVIOR
// =============================================================================

func (s *EngineSuite) TestFindCorrelations_CacheIdempotence() {
	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})

	first := s.engine.FindCorrelations(activity)
	s.Require().NotEmpty(first)

	// Clobber internal scratch state without reloading the corpus: the
	// cached result must be served unchanged.
	s.engine.mu.Lock()
	s.engine.messageVectors = make(map[string]vectorspace.Vector)
	s.engine.mu.Unlock()

	second := s.engine.FindCorrelations(activity)
	s.Equal(first, second)
}

func (s *EngineSuite) TestLoad_InvalidatesCaches() {
	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})
	s.Require().NotEmpty(s.engine.FindCorrelations(activity))
	s.Equal(1, s.engine.Status().ProcessedActivities)

	s.engine.Load(testMessages())

	status := s.engine.Status()
	s.Zero(status.ProcessedActivities)
	s.False(status.Completed)

	// Without re-preprocessing there is no activity vector: empty, no panic.
	s.Empty(s.engine.FindCorrelations(activity))
}

// =============================================================================
// EXCLUSION FILTERING
// =============================================================================

func (s *EngineSuite) TestLoad_ExcludesSubstringMatches() {
	messages := append(testMessages(), models.MessageRecord{
		MessageID:     "msg-auto",
		Type:          models.MessageEmail,
		Subject:       "Automatic Reply: CS101 PS3 reminder",
		Content:       "I am away from my desk",
		DateFormatted: "Mar 9",
		CourseContext: "CS101",
	})
	s.engine.Load(messages)

	activity := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{activity})

	s.Nil(s.engine.MessageByID("msg-auto"))
	for _, r := range s.engine.FindCorrelations(activity) {
		s.NotEqual("msg-auto", r.MessageID)
	}
}

func (s *EngineSuite) TestLoad_ExcludesMessageTypes() {
	messages := append(testMessages(), models.MessageRecord{
		MessageID: "msg-join",
		Type:      "channel_join",
		Content:   "someone joined cs101-help",
	})
	s.engine.Load(messages)

	s.Nil(s.engine.MessageByID("msg-join"))
	s.Equal(len(testMessages()), s.engine.Status().CorpusSize)
}

// =============================================================================
// BAD SCENARIOS - Error conditions
// =============================================================================

// An activity that was never preprocessed has no vector: empty list, no
// panic, rest of the batch unaffected.
func (s *EngineSuite) TestFindCorrelations_MissingVector() {
	known := ps3Activity()
	s.engine.Preprocess([]*models.ActivityRecord{known})

	unknown := &models.ActivityRecord{Title: "Surprise quiz", Course: "CS101", Date: "Mar 20"}
	s.Empty(s.engine.FindCorrelations(unknown))
	s.NotEmpty(s.engine.FindCorrelations(known))
}

func (s *EngineSuite) TestLoadFile_FailureKeepsPreviousCorpus() {
	before := s.engine.Status().CorpusSize
	s.Require().Positive(before)

	err := s.engine.LoadFile(filepath.Join(s.T().TempDir(), "missing.json"))
	s.Error(err)
	s.Equal(before, s.engine.Status().CorpusSize)
}

func (s *EngineSuite) TestDegradedEngine() {
	degraded := New(s.cfg, Options{Clock: testClock, DisableVectorMath: true})
	degraded.Load(testMessages())

	activity := ps3Activity()
	degraded.Preprocess([]*models.ActivityRecord{activity})
	s.Empty(degraded.FindCorrelations(activity))

	degraded.ProcessCorrelations([]*models.ActivityRecord{activity})
	s.False(activity.HasMessages)

	status := degraded.Status()
	s.True(status.Degraded)

	_, err := degraded.StartBackgroundRun([]*models.ActivityRecord{activity})
	s.ErrorIs(err, ErrVectorMathUnavailable)
}

// =============================================================================
// BACKGROUND MODE
// =============================================================================

func (s *EngineSuite) TestStartBackgroundRun_Completes() {
	s.cfg.BatchSize = 1
	s.cfg.BatchYield = time.Millisecond

	activities := []*models.ActivityRecord{
		ps3Activity(),
		{Title: "Module 3 quiz", Course: "CS101", Date: "Mar 8"},
		{Title: "Pottery class", Course: "ART999", Date: "Dec 25"},
	}

	runID, err := s.engine.StartBackgroundRun(activities)
	s.Require().NoError(err)
	s.NotEmpty(runID)

	s.Require().Eventually(func() bool {
		status := s.engine.Status()
		return status.Completed && !status.Running
	}, 5*time.Second, 10*time.Millisecond)

	s.True(activities[0].HasMessages)
	s.Equal(runID, s.engine.Status().RunID)
}

func (s *EngineSuite) TestStartBackgroundRun_RefusesSecondRun() {
	s.engine.mu.Lock()
	s.engine.running = true
	s.engine.mu.Unlock()

	_, err := s.engine.StartBackgroundRun([]*models.ActivityRecord{ps3Activity()})
	s.ErrorIs(err, ErrRunInProgress)

	s.engine.mu.Lock()
	s.engine.running = false
	s.engine.mu.Unlock()
}

func (s *EngineSuite) TestBackgroundRun_ClearsRunningAfterPanic() {
	// Force a panic inside the worker body; the running flag must clear
	// regardless so the engine never reports a stuck run.
	s.engine.mu.Lock()
	s.engine.running = true
	s.engine.runID = "run-test"
	s.engine.mu.Unlock()
	s.engine.builder = nil // any text build now panics

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.engine.backgroundRun("run-test", []*models.ActivityRecord{ps3Activity()})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("background run did not finish")
	}

	status := s.engine.Status()
	s.False(status.Running)
	s.False(status.Completed)
}
