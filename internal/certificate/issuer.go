package certificate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/skillforge/pipeline/common"
	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/dto"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/queue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseStoreInterface is the data access the issuance workflow needs.
type CourseStoreInterface interface {
	GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	// CreateCertificateAndLink persists the certificate and sets it on the
	// enrollment atomically, failing if the enrollment is already linked.
	CreateCertificateAndLink(ctx context.Context, cert *models.Certificate, enrollmentID string) error
	GetCertificate(ctx context.Context, id string) (*models.Certificate, error)
}

// Issuer implements the certificate issuance workflow. The whole handler
// is safe to re-run: a retried job that already produced a certificate
// short-circuits to the existing one instead of issuing twice.
type Issuer struct {
	store CourseStoreInterface
	queue queue.QueueInterface
}

func NewIssuer(store CourseStoreInterface, q queue.QueueInterface) *Issuer {
	return &Issuer{store: store, queue: q}
}

// Handle processes one certificate job. Steps:
//  1. load the enrollment with user, course and mentor
//  2. short-circuit if a certificate is already linked
//  3. generate the certificate number and metadata snapshot
//  4. persist the certificate and link it to the enrollment atomically
//  5. fan out the delivery email and in-app notification as new jobs
func (s *Issuer) Handle(ctx context.Context, payload datatypes.JSON) (any, error) {
	var p dto.IssueCertificatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, common.Permanent(fmt.Errorf("decode certificate payload: %w", err))
	}

	enr, err := s.store.GetEnrollment(ctx, p.EnrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.Permanent(err)
		}
		return nil, err
	}

	if enr.CertificateID != nil {
		cert, err := s.store.GetCertificate(ctx, *enr.CertificateID)
		if err != nil {
			return nil, err
		}
		log.Printf("[certificate] enrollment %s already certified (%s), skipping",
			enr.ID, cert.Number)
		return dto.IssueCertificateResult{
			CertificateID:     cert.ID,
			CertificateNumber: cert.Number,
		}, nil
	}

	now := time.Now().UTC()
	number, err := NewNumber(now)
	if err != nil {
		return nil, err
	}

	meta, err := snapshotMetadata(enr)
	if err != nil {
		return nil, err
	}

	cert := &models.Certificate{
		ID:       uuid.NewString(),
		UserID:   enr.UserID,
		CourseID: enr.CourseID,
		Number:   number,
		Status:   "issued",
		IssuedAt: now,
		Metadata: meta,
	}

	if err := s.store.CreateCertificateAndLink(ctx, cert, enr.ID); err != nil {
		return nil, err
	}

	log.Printf("[certificate] issued %s for enrollment %s", cert.Number, enr.ID)

	if err := s.fanOut(ctx, enr, cert); err != nil {
		// The certificate row exists, so failing here will retry the job
		// and take the short-circuit path. Fan-out dedup keys make the
		// second pass safe.
		return nil, err
	}

	return dto.IssueCertificateResult{
		CertificateID:     cert.ID,
		CertificateNumber: cert.Number,
	}, nil
}

// fanOut enqueues the delivery email and the in-app notification. Both
// carry a dedup key derived from the certificate ID so a crash between
// the two enqueues cannot double-send on replay.
func (s *Issuer) fanOut(ctx context.Context, enr *models.Enrollment, cert *models.Certificate) error {
	email := dto.SendEmailPayload{
		To:      enr.User.Email,
		Subject: fmt.Sprintf("Your certificate for %s", enr.Course.Title),
		Body: fmt.Sprintf("Congratulations %s! You completed %s. Your certificate number is %s.",
			enr.User.Name, enr.Course.Title, cert.Number),
	}
	emailBody, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal certificate email: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, config.KindEmail, emailBody,
		queue.WithDedupKey("cert-email:"+cert.ID)); err != nil {
		return fmt.Errorf("enqueue certificate email: %w", err)
	}

	notifData, err := json.Marshal(map[string]string{
		"certificate_id":     cert.ID,
		"certificate_number": cert.Number,
		"course_id":          enr.CourseID,
	})
	if err != nil {
		return fmt.Errorf("marshal certificate notification data: %w", err)
	}
	notif := dto.CreateNotificationPayload{
		UserID:  enr.UserID,
		Type:    "certificate_issued",
		Title:   "Certificate issued",
		Message: fmt.Sprintf("Your certificate for %s is ready.", enr.Course.Title),
		Data:    notifData,
	}
	notifBody, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal certificate notification: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, config.KindNotification, notifBody,
		queue.WithDedupKey("cert-notification:"+cert.ID)); err != nil {
		return fmt.Errorf("enqueue certificate notification: %w", err)
	}

	return nil
}

func snapshotMetadata(enr *models.Enrollment) (datatypes.JSON, error) {
	meta := dto.CertificateMetadata{
		StudentName: enr.User.Name,
		CourseTitle: enr.Course.Title,
	}
	if enr.Course.Mentor != nil {
		meta.MentorName = enr.Course.Mentor.Name
	}
	if enr.CompletedAt != nil {
		meta.CompletionDate = enr.CompletedAt.UTC().Format("2006-01-02")
	}

	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal certificate metadata: %w", err)
	}
	return datatypes.JSON(b), nil
}
