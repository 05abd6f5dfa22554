package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/washops/backend/internal/models"
)

// SessionRepository provides persistence access for console sessions.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs a repository using the provided gorm DB.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists the session.
func (r *SessionRepository) Create(ctx context.Context, session *models.ConsoleSession) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(session).Error)
}

// FindByID returns the session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ConsoleSession, error) {
	var session models.ConsoleSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &session, nil
}

// Touch records activity on the session.
func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.ConsoleSession{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
	return errors.WithStack(err)
}

// SetUnreadNotifications stores the unread notification counter.
func (r *SessionRepository) SetUnreadNotifications(ctx context.Context, id uuid.UUID, count int) error {
	res := r.db.WithContext(ctx).Model(&models.ConsoleSession{}).
		Where("id = ?", id).
		Update("unread_notifications", count)
	if res.Error != nil {
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.WithStack(gorm.ErrRecordNotFound)
	}
	return nil
}

// Delete removes the session.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.WithStack(r.db.WithContext(ctx).Delete(&models.ConsoleSession{}, "id = ?", id).Error)
}

// ListIdle returns sessions without activity since before.
func (r *SessionRepository) ListIdle(ctx context.Context, before time.Time) ([]models.ConsoleSession, error) {
	var sessions []models.ConsoleSession
	err := r.db.WithContext(ctx).Where("last_seen_at < ?", before).Order("last_seen_at").Find(&sessions).Error
	return sessions, errors.WithStack(err)
}
