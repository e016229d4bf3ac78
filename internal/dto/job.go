package dto

import (
	"encoding/json"
	"time"
)

// CompletionEventDTO is the inbound trigger: enrollment-progress logic
// posts it when an enrollment reaches 100%.
type CompletionEventDTO struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	UserID       string `json:"user_id" validate:"required"`
	CourseID     string `json:"course_id" validate:"required"`
}

type JobAcceptedDTO struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

// JobStatusDTO is the read-only operational view of a job.
type JobStatusDTO struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	State       string          `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	AvailableAt time.Time       `json:"available_at"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
