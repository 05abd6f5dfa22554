package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/washops/backend/internal/models"
)

// JobEventRepository stores the journal of confirmed job changes.
type JobEventRepository struct {
	db *gorm.DB
}

// NewJobEventRepository constructs a repository using the provided gorm DB.
func NewJobEventRepository(db *gorm.DB) *JobEventRepository {
	return &JobEventRepository{db: db}
}

// Create appends an event.
func (r *JobEventRepository) Create(ctx context.Context, event *models.JobEvent) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(event).Error)
}

// ListByJob returns the events of one job, oldest first.
func (r *JobEventRepository) ListByJob(ctx context.Context, jobID int64, limit int) ([]models.JobEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []models.JobEvent
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at asc").
		Limit(limit).
		Find(&events).Error
	return events, errors.WithStack(err)
}
