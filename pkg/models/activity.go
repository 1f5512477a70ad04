// Package models contains domain models for coursetrace.
package models

import (
	"fmt"
	"strings"
)

// EventType classifies an activity record.
type EventType string

const (
	EventAssignment EventType = "assignment"
	EventLiveEvent  EventType = "live_event"
)

// ActivityRecord is an educational deadline or event to be matched against
// messages. Records are produced by an external activity loader and are
// treated as immutable by the engine, except for the correlation write-back
// fields set by ProcessCorrelations.
type ActivityRecord struct {
	// ID is an optional explicit identifier. When empty, ActivityID derives
	// a stable one from title, course and date.
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Course      string    `json:"course"`
	Date        string    `json:"date"` // short "Mar 10" style, year implied
	EventType   EventType `json:"event_type"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`

	// Correlation write-back fields. Owned by the caller after
	// ProcessCorrelations returns.
	HasMessages  bool                `json:"has_messages"`
	Correlations []CorrelationResult `json:"correlations,omitempty"`
}

// ActivityID returns a stable identifier for the activity. Logically
// identical activities must map to the same id so repeated correlation
// lookups hit the cache.
func (a *ActivityRecord) ActivityID() string {
	if a.ID != "" {
		return a.ID
	}
	return fmt.Sprintf("%s|%s|%s", a.Title, a.Course, a.Date)
}

// DisplayName returns a short label for logging.
func (a *ActivityRecord) DisplayName() string {
	parts := []string{}
	if a.Title != "" {
		parts = append(parts, a.Title)
	}
	if a.Course != "" {
		parts = append(parts, a.Course)
	}
	if len(parts) == 0 {
		return a.ActivityID()
	}
	return strings.Join(parts, " / ")
}
