// Package history persists one record per import run so incremental runs
// can pick up where the last successful one stopped.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/woowup/vtex-connector/internal/infrastructure/logger"
)

// ErrNoRuns is returned when an entity has no recorded successful run.
var ErrNoRuns = errors.New("history: no recorded runs")

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ImportRun records the outcome of one import run.
type ImportRun struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Entity     string    `gorm:"type:varchar(32);not null;index"`
	Status     string    `gorm:"type:varchar(16);not null;default:'completed'"`
	WindowFrom *time.Time
	WindowTo   *time.Time
	Created    int `gorm:"not null;default:0"`
	Updated    int `gorm:"not null;default:0"`
	Duplicated int `gorm:"not null;default:0"`
	Failed     int `gorm:"not null;default:0"`
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ImportRun) TableName() string {
	return "import_runs"
}

// Store persists import runs in a local sqlite database.
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the run store at path. Use ":memory:" for an
// ephemeral store. A nil log silences query logging.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLogger(log, gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ImportRun{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Record saves a finished run. A zero ID is assigned.
func (s *Store) Record(ctx context.Context, run *ImportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = StatusCompleted
	}
	return s.db.WithContext(ctx).Create(run).Error
}

// LastSuccessful returns the most recent completed run for an entity.
func (s *Store) LastSuccessful(ctx context.Context, entity string) (*ImportRun, error) {
	var run ImportRun
	err := s.db.WithContext(ctx).
		Where("entity = ? AND status = ?", entity, StatusCompleted).
		Order("finished_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Recent lists the latest runs for an entity, most recent first.
func (s *Store) Recent(ctx context.Context, entity string, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []ImportRun
	err := s.db.WithContext(ctx).
		Where("entity = ?", entity).
		Order("finished_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
