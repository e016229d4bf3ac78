package mocks

import (
	"context"

	"github.com/skillforge/pipeline/internal/models"
	"github.com/stretchr/testify/mock"
)

type CourseStoreMock struct {
	mock.Mock
}

func (m *CourseStoreMock) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	args := m.Called(ctx, id)

	enr, _ := args.Get(0).(*models.Enrollment)
	return enr, args.Error(1)
}

func (m *CourseStoreMock) CreateCertificateAndLink(ctx context.Context, cert *models.Certificate, enrollmentID string) error {
	args := m.Called(ctx, cert, enrollmentID)
	return args.Error(0)
}

func (m *CourseStoreMock) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	args := m.Called(ctx, id)

	cert, _ := args.Get(0).(*models.Certificate)
	return cert, args.Error(1)
}
