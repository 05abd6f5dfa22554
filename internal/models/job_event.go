package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobEventKind names a confirmed change recorded in the journal.
type JobEventKind string

const (
	JobEventStatusChanged JobEventKind = "job.status_changed"
	JobEventItemAdded     JobEventKind = "job.item_added"
	JobEventTaskAssigned  JobEventKind = "task.assigned"
	JobEventTaskStarted   JobEventKind = "task.started"
	JobEventTaskCompleted JobEventKind = "task.completed"
)

// JobEvent is a journal row written after the backend confirmed a change.
type JobEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  uuid.UUID      `gorm:"type:uuid;index" json:"sessionId"`
	JobID      int64          `gorm:"index" json:"jobId"`
	TaskID     int64          `json:"taskId,omitempty"`
	Kind       JobEventKind   `gorm:"index" json:"kind"`
	FromStatus string         `json:"fromStatus,omitempty"`
	ToStatus   string         `json:"toStatus,omitempty"`
	Snapshot   datatypes.JSON `json:"snapshot"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// BeforeCreate is a GORM hook that populates the primary key.
func (e *JobEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
