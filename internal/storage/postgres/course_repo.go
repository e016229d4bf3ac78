package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/skillforge/pipeline/internal/certificate"
	"github.com/skillforge/pipeline/internal/models"
	"gorm.io/gorm"
)

// CourseRepository is the data-access collaborator the certificate
// workflow reads enrollments from and writes certificates through.
type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

var _ certificate.CourseStoreInterface = (*CourseRepository)(nil)

// GetEnrollment loads an enrollment with its user, course and mentor.
func (r *CourseRepository) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	var enr models.Enrollment
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Course").
		Preload("Course.Mentor").
		First(&enr, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("enrollment not found: %w", err)
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enr, nil
}

// CreateCertificateAndLink persists the certificate and sets it on the
// enrollment in one transaction. The enrollment update only matches rows
// with a NULL certificate_id, so a concurrent duplicate issue rolls the
// whole unit back instead of leaving an orphan certificate.
func (r *CourseRepository) CreateCertificateAndLink(ctx context.Context, cert *models.Certificate, enrollmentID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cert).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Enrollment{}).
			Where("id = ? AND certificate_id IS NULL", enrollmentID).
			Update("certificate_id", cert.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("enrollment %s already certified", enrollmentID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// GetCertificate retrieves a certificate by its ID.
func (r *CourseRepository) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.WithContext(ctx).First(&cert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("certificate not found: %w", err)
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return &cert, nil
}
