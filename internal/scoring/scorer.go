// Package scoring analyzes activity/message pairs and grades how plausibly
// they are about the same thing.
//
// The base signal is cosine similarity in the shared vector space. On top of
// it, structured-entity agreement (course, module, assignment) and date
// proximity apply additive boosts; boosts never reduce a score and the sum
// is clamped to 1.0. The adjusted score is then thresholded into a
// confidence tier. Pairs below the weak threshold are discarded outright.
package scoring

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/coursetrace/coursetrace/internal/config"
	"github.com/coursetrace/coursetrace/internal/entity"
	"github.com/coursetrace/coursetrace/internal/textprep"
	"github.com/coursetrace/coursetrace/internal/vectorspace"
	"github.com/coursetrace/coursetrace/pkg/models"
)

// significantTermRegex captures alphanumeric tokens of length >= 3 for the
// shared-terms evidence.
var significantTermRegex = regexp.MustCompile(`\b\w{3,}\b`)

// evidenceStopWords are filler words excluded from shared-terms evidence.
var evidenceStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "this": true,
	"that": true, "with": true, "from": true,
}

// Scorer scores one (activity, message) pair at a time. It is stateless
// apart from its configuration and safe for concurrent use.
type Scorer struct {
	cfg     *config.Config
	builder *textprep.Builder
	now     func() time.Time
}

// NewScorer creates a scorer. The clock is injected so that year inference
// for short dates is deterministic under test.
func NewScorer(cfg *config.Config, builder *textprep.Builder, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{cfg: cfg, builder: builder, now: now}
}

// Score computes the correlation between an activity and a message given
// their precomputed vectors. ok is false when the adjusted similarity falls
// below the weak threshold; no result is materialized for such pairs.
func (s *Scorer) Score(
	activity *models.ActivityRecord,
	message *models.MessageRecord,
	activityVec, messageVec vectorspace.Vector,
) (models.CorrelationResult, bool) {
	raw := vectorspace.Cosine(activityVec, messageVec)

	activityText := s.builder.ActivityText(activity)
	messageText := s.builder.MessageText(message)

	activityEntities := entity.Extract(activityText)
	messageEntities := entity.Extract(messageText)

	evidence := models.CorrelationEvidence{LexicalSimilarity: raw}
	evidence.CourseMatch = s.courseMatch(activity, message, activityEntities, messageEntities)
	evidence.ModuleMatch = intersects(activityEntities.ModuleNumbers, messageEntities.ModuleNumbers)
	evidence.AssignmentMatch = intersects(activityEntities.AssignmentNumbers, messageEntities.AssignmentNumbers)
	evidence.DateProximityDays = s.dateProximity(activity.Date, message.DateFormatted)
	evidence.SharedTerms = sharedSignificantTerms(activityText, messageText)

	adjusted := raw
	if evidence.CourseMatch {
		adjusted += s.cfg.CourseMatchBoost
	}
	if evidence.ModuleMatch {
		adjusted += s.cfg.ModuleMatchBoost
	}
	if evidence.AssignmentMatch {
		adjusted += s.cfg.AssignmentMatchBoost
	}
	adjusted += s.dateProximityBoost(evidence.DateProximityDays)
	if adjusted > 1.0 {
		adjusted = 1.0
	}

	tier, ok := s.tier(adjusted)
	if !ok {
		return models.CorrelationResult{}, false
	}

	return models.CorrelationResult{
		MessageID:          message.MessageID,
		Subject:            message.Subject,
		Snippet:            models.MakeSnippet(message.Content),
		SenderName:         message.Sender.Name,
		Timestamp:          message.Timestamp,
		RawSimilarity:      raw,
		AdjustedSimilarity: adjusted,
		Confidence:         tier,
		Evidence:           evidence,
	}, true
}

// courseMatch is true when any extracted course code matches on both sides,
// or, when no codes were extracted, when the activity's course name contains
// the message's course-context hint as a substring.
func (s *Scorer) courseMatch(
	activity *models.ActivityRecord,
	message *models.MessageRecord,
	activityEntities, messageEntities entity.Entities,
) bool {
	for _, a := range activityEntities.CourseCodes {
		for _, m := range messageEntities.CourseCodes {
			if strings.EqualFold(a, m) {
				return true
			}
		}
	}

	if activity.Course == "" || message.CourseContext == "" {
		return false
	}
	return strings.Contains(strings.ToLower(activity.Course), strings.ToLower(message.CourseContext))
}

// dateProximity returns the absolute day distance between the two date
// fields, or nil when either side fails to parse.
func (s *Scorer) dateProximity(activityDate, messageDate string) *int {
	year := s.now().Year()

	a, okA := entity.StandardizeDate(activityDate, year)
	m, okM := entity.StandardizeDate(messageDate, year)
	if !okA || !okM {
		return nil
	}

	days := int(a.Sub(m).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return &days
}

// dateProximityBoost decays linearly with day distance: full boost at zero
// days, nothing beyond the configured window.
func (s *Scorer) dateProximityBoost(days *int) float64 {
	if days == nil {
		return 0
	}
	maxDays := s.cfg.DateProximityDays
	if maxDays <= 0 || *days > maxDays {
		return 0
	}
	return s.cfg.DateProximityBoostMax * (1 - float64(*days)/float64(maxDays))
}

// tier thresholds the adjusted similarity. ok is false below the weak
// threshold; there is no "none" tier.
func (s *Scorer) tier(adjusted float64) (models.ConfidenceTier, bool) {
	switch {
	case adjusted >= s.cfg.ThresholdStrong:
		return models.ConfidenceStrong, true
	case adjusted >= s.cfg.ThresholdModerate:
		return models.ConfidenceModerate, true
	case adjusted >= s.cfg.ThresholdWeak:
		return models.ConfidenceWeak, true
	default:
		return "", false
	}
}

// sharedSignificantTerms returns the case-folded alphanumeric tokens of
// length >= 3 present in both texts, minus filler words, sorted for
// deterministic evidence output.
func sharedSignificantTerms(a, b string) []string {
	termsA := significantTerms(a)
	if len(termsA) == 0 {
		return nil
	}

	termsB := significantTerms(b)
	var shared []string
	for term := range termsA {
		if termsB[term] {
			shared = append(shared, term)
		}
	}
	sort.Strings(shared)
	return shared
}

func significantTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, t := range significantTermRegex.FindAllString(strings.ToLower(text), -1) {
		if !evidenceStopWords[t] {
			terms[t] = true
		}
	}
	return terms
}

// intersects reports whether the two entity sets share at least one value.
func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}
