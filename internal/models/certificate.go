package models

import (
	"time"

	"gorm.io/datatypes"
)

// Certificate is issued once per (user, course) enrollment. The unique
// index on that pair is the authoritative idempotency guard; the number
// is unique as well for human-facing lookups.
type Certificate struct {
	ID       string `gorm:"type:varchar(36);primaryKey"`
	UserID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_certificates_user_course,priority:1"`
	CourseID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_certificates_user_course,priority:2"`
	Number   string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status   string `gorm:"type:varchar(16);not null;default:'issued'"`
	IssuedAt time.Time
	// Metadata is a denormalized snapshot taken at issuance time: student,
	// course and mentor names plus the completion date, immune to later
	// profile edits.
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}
