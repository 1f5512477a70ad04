package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursetrace/coursetrace/pkg/models"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeCorpus(t, `[
		{
			"message_id": "msg-1",
			"subject": "CS101 PS3 reminder",
			"content": "Module 3 is due",
			"sender": {"name": "Course Staff", "email": "staff@example.edu"},
			"timestamp": "2025-03-09T10:00:00",
			"date_formatted": "Mar 9",
			"course_context": "CS101",
			"message_type": "email",
			"metadata": {"is_read": false}
		},
		{
			"message_id": "msg-2",
			"content": "ps3 hints in thread",
			"message_type": "chat",
			"recipients": [{"name": "cs101-help", "type": "channel"}]
		}
	]`)

	messages, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "msg-1", messages[0].MessageID)
	assert.Equal(t, "Course Staff", messages[0].Sender.Name)
	assert.Equal(t, models.MessageEmail, messages[0].Type)
	assert.False(t, messages[0].Metadata.IsRead)

	assert.Equal(t, models.MessageChat, messages[1].Type)
	assert.Equal(t, "cs101-help", messages[1].Channel())
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadFile_MalformedJSON(t *testing.T) {
	path := writeCorpus(t, `{"not": "an array"`)
	messages, err := LoadFile(path)
	assert.Error(t, err)
	assert.Nil(t, messages)
}
