package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job is the persisted unit of asynchronous work. The composite index on
// (kind, state, available_at) backs the dequeue scan; all state
// transitions are guarded updates checked via RowsAffected.
//
// The unique index on (kind, dedup_key) is the authoritative dedup
// guard under concurrent enqueues; terminal transitions clear the key
// so a finished job never blocks new work for the same event.
type Job struct {
	ID             string         `gorm:"type:varchar(36);primaryKey"`
	Kind           string         `gorm:"type:varchar(64);not null;index:idx_jobs_dequeue,priority:1;uniqueIndex:idx_jobs_kind_dedup,priority:1"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	State          string         `gorm:"type:varchar(16);not null;default:'waiting';index:idx_jobs_dequeue,priority:2"`
	Priority       int            `gorm:"not null;default:0"`
	Attempts       int            `gorm:"not null;default:0"`
	MaxAttempts    int            `gorm:"not null;default:3"`
	BackoffBaseMS  int64          `gorm:"not null;default:1000"`
	DedupKey       *string        `gorm:"type:varchar(255);uniqueIndex:idx_jobs_kind_dedup,priority:2"`
	LastError      string         `gorm:"type:text"`
	Result         datatypes.JSON `gorm:"type:jsonb"`
	AvailableAt    time.Time      `gorm:"not null;index:idx_jobs_dequeue,priority:3"`
	LeasedBy       *string        `gorm:"type:varchar(64)"`
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
	CompletedAt    *time.Time
}
