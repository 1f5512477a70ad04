package models

// MessageType identifies the source of a message record.
type MessageType string

const (
	MessageEmail MessageType = "email"
	MessageChat  MessageType = "chat"
)

// Sender identifies who sent a message.
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Recipient is a delivery target for a chat message. Channel recipients
// carry the channel name used for text weighting.
type Recipient struct {
	Name string `json:"name"`
	Type string `json:"type"` // "channel", "user", ...
}

// MessageMetadata carries type-specific flags.
type MessageMetadata struct {
	IsRead bool `json:"is_read"`
}

// MessageRecord is an email or chat message normalized to a common schema
// by the external importers. Message ids are unique within one loaded
// corpus; a later load replaces the corpus wholesale.
type MessageRecord struct {
	MessageID     string          `json:"message_id"`
	Subject       string          `json:"subject"`
	Content       string          `json:"content"`
	Sender        Sender          `json:"sender"`
	Timestamp     string          `json:"timestamp"`      // ISO-8601-like
	DateFormatted string          `json:"date_formatted"` // short "Mar 9" style
	CourseContext string          `json:"course_context,omitempty"`
	Type          MessageType     `json:"message_type"`
	Recipients    []Recipient     `json:"recipients,omitempty"`
	Metadata      MessageMetadata `json:"metadata"`
}

// Channel returns the channel name for chat messages, or "" when the
// message has no channel recipient.
func (m *MessageRecord) Channel() string {
	for _, r := range m.Recipients {
		if r.Type == "channel" {
			return r.Name
		}
	}
	return ""
}
