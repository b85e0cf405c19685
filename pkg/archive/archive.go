// Package archive persists terminal job snapshots so the document library
// and chat history survive the in-memory registry's retention cap.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/security"
)

// Record is the relational form of a terminal job snapshot.
type Record struct {
	ID             string `gorm:"primaryKey;size:36"`
	Kind           string `gorm:"index;size:20;not null"`
	Status         string `gorm:"index;size:20;not null"`
	Filename       string `gorm:"size:255"`
	MimeType       string `gorm:"size:64"`
	SizeBytes      int64
	Prompt         string `gorm:"type:text"`
	Chunks         int
	ResponseText   string `gorm:"type:text"`
	Progress       float64
	FailureMessage string `gorm:"type:text"`
	Retryable      bool
	SubmittedAt    time.Time
	FinishedAt     time.Time `gorm:"index"`
}

// TableName keeps the table name stable regardless of struct naming.
func (Record) TableName() string { return "job_archive" }

// Store implements the archive using GORM.
type Store struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed archive store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the necessary tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Record{})
}

// Save archives a terminal snapshot. Non-terminal snapshots are rejected.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	if !snap.Terminal() {
		return errors.New("archive: snapshot is not terminal")
	}

	rec := &Record{
		ID:           snap.ID,
		Kind:         string(snap.Kind),
		Status:       string(snap.Status),
		Chunks:       snap.Result.Chunks,
		ResponseText: snap.Result.Text,
		Progress:     snap.Progress,
		SubmittedAt:  snap.CreatedAt,
		FinishedAt:   snap.UpdatedAt,
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if snap.File != nil {
		rec.Filename = snap.File.Filename
		rec.MimeType = snap.File.MimeType
		rec.SizeBytes = snap.File.SizeBytes
	}
	if snap.Prompt != nil {
		rec.Prompt = snap.Prompt.Prompt
	}
	if snap.Failure != nil {
		rec.FailureMessage = security.SanitizeErrorMessage(snap.Failure.Message)
		rec.Retryable = snap.Failure.Retryable
	}

	return s.db.WithContext(ctx).Save(rec).Error
}

// Get retrieves an archived job by id, or core.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns archived jobs, newest finished first. kind filters when
// non-empty; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, kind core.JobKind, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Order("finished_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []Record
	err := q.Find(&recs).Error
	return recs, err
}

// Prune deletes archived jobs finished before the cutoff. Returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := s.db.WithContext(ctx).
		Where("finished_at < ?", cutoff).
		Delete(&Record{})
	return result.RowsAffected, result.Error
}
