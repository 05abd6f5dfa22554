package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConsoleSession is the persisted application state of one logged-in operator.
type ConsoleSession struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              int64     `gorm:"index" json:"userId"`
	ShopID              int64     `json:"shopId"`
	AccessToken         string    `json:"-"`
	UnreadNotifications int       `json:"unreadNotifications"`
	CreatedAt           time.Time `json:"createdAt"`
	LastSeenAt          time.Time `json:"lastSeenAt"`
}

// BeforeCreate is a GORM hook that populates the primary key.
func (s *ConsoleSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = time.Now().UTC()
	}
	return nil
}
