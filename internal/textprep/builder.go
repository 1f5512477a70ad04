// Package textprep turns activity and message records into standardized,
// field-weighted text blobs for vectorization.
//
// Field weighting is deliberately simple: each field's text is repeated an
// integer number of times proportional to its configured weight before
// concatenation. Both activities and messages end up as "a weighted bag of
// text", which keeps the vector-space model type-agnostic between the two.
package textprep

import (
	"regexp"
	"strings"

	"github.com/coursetrace/coursetrace/internal/config"
	"github.com/coursetrace/coursetrace/internal/entity"
	"github.com/coursetrace/coursetrace/pkg/models"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)

	// Canonical spacing for entity references, so "module3", "module 3" and
	// "problem set 3" vs "problemset 3" keep their lexical overlap.
	moduleRefRegex     = regexp.MustCompile(`module\s*(\d+)`)
	problemSetRegex    = regexp.MustCompile(`problem\s*set\s*(\d+)`)
	assignmentRefRegex = regexp.MustCompile(`assignment\s*(\d+)`)
)

// Builder prepares records for the shared vector space.
type Builder struct {
	cfg *config.Config
}

// NewBuilder creates a text representation builder bound to one config.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// StandardizeText lowercases, collapses whitespace and canonicalizes module,
// problem-set and assignment references.
func StandardizeText(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)
	text = multiSpaceRegex.ReplaceAllString(text, " ")
	text = moduleRefRegex.ReplaceAllString(text, "module $1")
	text = problemSetRegex.ReplaceAllString(text, "problemset $1")
	text = assignmentRefRegex.ReplaceAllString(text, "assignment $1")

	return strings.TrimSpace(text)
}

// ActivityText builds the weighted text blob for an activity.
func (b *Builder) ActivityText(a *models.ActivityRecord) string {
	title := repeat(a.Title, b.cfg.FieldWeight("title", 2.0))
	course := repeat(a.Course, b.cfg.FieldWeight("course", 2.0))

	text := strings.Join([]string{title, course, a.Description, string(a.EventType), a.Status}, " ")
	return StandardizeText(text)
}

// MessageText builds the weighted text blob for a message. Email and chat
// messages weight different fields: email emphasizes the subject line, chat
// emphasizes content and channel name.
func (b *Builder) MessageText(m *models.MessageRecord) string {
	if m.Type == models.MessageChat {
		return b.chatText(m)
	}
	return b.emailText(m)
}

func (b *Builder) emailText(m *models.MessageRecord) string {
	subject := repeat(m.Subject, b.cfg.FieldWeight("subject", 3.0))
	course := repeat(m.CourseContext, b.cfg.FieldWeight("course_context", 2.0))
	content := repeat(m.Content, b.cfg.FieldWeight("content", 1.0))
	sender := repeat(m.Sender.Name, b.cfg.FieldWeight("sender_name", 0.5))

	text := strings.Join([]string{subject, course, content, sender}, " ")
	return StandardizeText(text)
}

func (b *Builder) chatText(m *models.MessageRecord) string {
	channel := m.Channel()

	// Chat subjects are reconstructed; fall back to the channel name.
	subject := m.Subject
	if subject == "" {
		subject = channel
	}

	weightedSubject := repeat(subject, b.cfg.FieldWeight("chat_subject", 1.0))
	weightedChannel := repeat(channel, b.cfg.FieldWeight("channel_name", 1.5))
	course := repeat(m.CourseContext, b.cfg.FieldWeight("course_context", 2.0))
	content := repeat(m.Content, b.cfg.FieldWeight("chat_content", 2.0))

	text := strings.Join([]string{weightedSubject, weightedChannel, course, content}, " ")
	return StandardizeText(text)
}

// Entities returns the structured-entity view of a prepared text.
func (b *Builder) Entities(text string) entity.Entities {
	return entity.Extract(text)
}

// repeat emits text int(weight) times. Weights below 1 drop the field from
// the blob, matching the integer-repetition weighting contract.
func repeat(text string, weight float64) string {
	n := int(weight)
	if text == "" || n <= 0 {
		return ""
	}
	if n == 1 {
		return text
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = text
	}
	return strings.Join(parts, " ")
}
