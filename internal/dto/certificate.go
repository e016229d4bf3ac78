package dto

// IssueCertificatePayload is the certificate job's payload, enqueued when
// an enrollment reaches 100% progress.
type IssueCertificatePayload struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	UserID       string `json:"user_id" validate:"required"`
	CourseID     string `json:"course_id" validate:"required"`
}

// IssueCertificateResult is the certificate job's terminal result.
type IssueCertificateResult struct {
	CertificateID     string `json:"certificate_id"`
	CertificateNumber string `json:"certificate_number"`
}

// CertificateMetadata is the denormalized snapshot stored on the
// certificate at issuance time.
type CertificateMetadata struct {
	StudentName    string `json:"student_name"`
	CourseTitle    string `json:"course_title"`
	MentorName     string `json:"mentor_name"`
	CompletionDate string `json:"completion_date"`
}
