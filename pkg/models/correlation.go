package models

import (
	"fmt"
	"strings"
)

// ConfidenceTier grades how plausible a correlation is. Pairs scoring below
// the weak threshold are discarded by the scorer and never materialized.
type ConfidenceTier string

const (
	ConfidenceStrong   ConfidenceTier = "strong"
	ConfidenceModerate ConfidenceTier = "moderate"
	ConfidenceWeak     ConfidenceTier = "weak"
)

// CorrelationEvidence records why a correlation was detected. It exists to
// produce a human-auditable justification and is never the ranking signal
// on its own.
type CorrelationEvidence struct {
	LexicalSimilarity float64  `json:"lexical_similarity"`
	CourseMatch       bool     `json:"course_match"`
	ModuleMatch       bool     `json:"module_match"`
	AssignmentMatch   bool     `json:"assignment_match"`
	DateProximityDays *int     `json:"date_proximity_days,omitempty"`
	SharedTerms       []string `json:"shared_terms,omitempty"`
}

// Summary returns a deterministic human-readable description of whichever
// signals fired. When no structured signal fired it falls back to the raw
// lexical score.
func (e *CorrelationEvidence) Summary() string {
	var parts []string

	if e.CourseMatch {
		parts = append(parts, "course match")
	}
	if e.ModuleMatch {
		parts = append(parts, "module match")
	}
	if e.AssignmentMatch {
		parts = append(parts, "assignment match")
	}
	if e.DateProximityDays != nil {
		parts = append(parts, fmt.Sprintf("date proximity (%d days)", *e.DateProximityDays))
	}
	if len(e.SharedTerms) > 0 {
		termList := strings.Join(firstN(e.SharedTerms, 3), ", ")
		if extra := len(e.SharedTerms) - 3; extra > 0 {
			termList += fmt.Sprintf(" and %d more", extra)
		}
		parts = append(parts, "key terms: "+termList)
	}

	if len(parts) == 0 {
		return fmt.Sprintf("lexical similarity: %.2f", e.LexicalSimilarity)
	}

	return fmt.Sprintf("Evidence: %s (lexical: %.2f)", strings.Join(parts, ", "), e.LexicalSimilarity)
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CorrelationResult links one message to one activity with a graded
// confidence. The message display fields are denormalized so the result is
// self-contained. Results are immutable once created and cached per
// activity id for the lifetime of the loaded corpus.
type CorrelationResult struct {
	MessageID          string              `json:"message_id"`
	Subject            string              `json:"subject"`
	Snippet            string              `json:"snippet"`
	SenderName         string              `json:"sender_name"`
	Timestamp          string              `json:"timestamp"`
	RawSimilarity      float64             `json:"raw_similarity"`
	AdjustedSimilarity float64             `json:"adjusted_similarity"`
	Confidence         ConfidenceTier      `json:"confidence"`
	Evidence           CorrelationEvidence `json:"evidence"`
}

// ToMap flattens the result for serialization and display.
func (r *CorrelationResult) ToMap() map[string]any {
	return map[string]any{
		"message_id":          r.MessageID,
		"subject":             r.Subject,
		"snippet":             r.Snippet,
		"sender_name":         r.SenderName,
		"timestamp":           r.Timestamp,
		"raw_similarity":      r.RawSimilarity,
		"adjusted_similarity": r.AdjustedSimilarity,
		"confidence":          string(r.Confidence),
		"evidence_summary":    r.Evidence.Summary(),
	}
}

// Snippet length for denormalized message content.
const SnippetLength = 100

// MakeSnippet truncates message content for display inside a result.
func MakeSnippet(content string) string {
	runes := []rune(content)
	if len(runes) <= SnippetLength {
		return content
	}
	return string(runes[:SnippetLength]) + "..."
}
