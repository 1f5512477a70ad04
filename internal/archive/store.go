// Package archive persists completed correlation runs so results can be
// inspected after the fact. The archive is write-behind bookkeeping; the
// scoring path never consults it.
package archive

import (
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coursetrace/coursetrace/pkg/models"
)

// RunRecord is one archived activity outcome within a correlation run.
type RunRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	RunID         string    `gorm:"index:idx_run_records_run;not null"`
	ActivityID    string    `gorm:"index;not null"`
	ActivityTitle string    `gorm:"not null"`
	Course        string    ``
	HasMessages   bool      ``
	ResultCount   int       ``
	Correlations  string    `gorm:"type:text"` // JSON-encoded result list
	CreatedAt     time.Time ``
}

func (RunRecord) TableName() string { return "run_records" }

// Store wraps the SQLite archive database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the archive at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_run_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&RunRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("run_records")
			},
		},
	})
	return m.Migrate()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun archives the write-back outcome of one correlation run, one row
// per activity. The whole run is saved in a single transaction.
func (s *Store) SaveRun(runID string, activities []*models.ActivityRecord) error {
	records := make([]RunRecord, 0, len(activities))
	for _, a := range activities {
		encoded, err := json.Marshal(a.Correlations)
		if err != nil {
			return fmt.Errorf("encode correlations for %q: %w", a.ActivityID(), err)
		}
		records = append(records, RunRecord{
			RunID:         runID,
			ActivityID:    a.ActivityID(),
			ActivityTitle: a.Title,
			Course:        a.Course,
			HasMessages:   a.HasMessages,
			ResultCount:   len(a.Correlations),
			Correlations:  string(encoded),
		})
	}

	if len(records) == 0 {
		return nil
	}
	if err := s.db.Create(&records).Error; err != nil {
		return fmt.Errorf("save run %q: %w", runID, err)
	}

	log.Info().Str("run_id", runID).Int("activities", len(records)).Msg("Correlation run archived")
	return nil
}

// RunResults returns the archived records of one run in insertion order.
func (s *Store) RunResults(runID string) ([]RunRecord, error) {
	var records []RunRecord
	if err := s.db.Where("run_id = ?", runID).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load run %q: %w", runID, err)
	}
	return records, nil
}

// DecodedCorrelations decodes the archived result list of one record.
func (r *RunRecord) DecodedCorrelations() ([]models.CorrelationResult, error) {
	var results []models.CorrelationResult
	if err := json.Unmarshal([]byte(r.Correlations), &results); err != nil {
		return nil, fmt.Errorf("decode archived correlations: %w", err)
	}
	return results, nil
}

// ExportJSON writes activities with their correlation write-back as an
// indented JSON file, for consumption outside the worker.
func ExportJSON(path string, activities []*models.ActivityRecord) error {
	data, err := json.MarshalIndent(activities, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
