// Package corpus loads message corpora produced by the external mailbox and
// chat importers: one JSON array, one record per message, message ids unique
// within the file.
package corpus

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/coursetrace/coursetrace/pkg/models"
)

// LoadFile decodes a message export. The load is all-or-nothing: any read
// or decode failure returns an error and no records.
func LoadFile(path string) ([]models.MessageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	var messages []models.MessageRecord
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	log.Info().Str("path", path).Int("messages", len(messages)).Msg("Corpus file loaded")
	return messages, nil
}
