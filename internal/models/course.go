package models

import "time"

// User covers both students and mentors; the pipeline only reads names
// and email addresses from it.
type User struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Course struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Title     string `gorm:"type:varchar(255);not null"`
	MentorID  string `gorm:"type:varchar(36);not null"`
	Mentor    *User  `gorm:"foreignKey:MentorID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrollment links a user to a course. CertificateID is set exactly once
// by the issuance workflow.
type Enrollment struct {
	ID            string       `gorm:"type:varchar(36);primaryKey"`
	UserID        string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollments_user_course,priority:1"`
	User          *User        `gorm:"foreignKey:UserID"`
	CourseID      string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollments_user_course,priority:2"`
	Course        *Course      `gorm:"foreignKey:CourseID"`
	Progress      int          `gorm:"not null;default:0"`
	CompletedAt   *time.Time
	CertificateID *string      `gorm:"type:varchar(36)"`
	Certificate   *Certificate `gorm:"foreignKey:CertificateID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
