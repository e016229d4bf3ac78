package mocks

import (
	"context"
	"time"

	"github.com/skillforge/pipeline/internal/models"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	args := m.Called(ctx, job)

	out, _ := args.Get(0).(*models.Job)
	return out, args.Error(1)
}

func (m *JobRepoMock) Get(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) AcquireNext(ctx context.Context, kind, workerID string, lease time.Duration) (*models.Job, error) {
	args := m.Called(ctx, kind, workerID, lease)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) RenewLease(ctx context.Context, id, workerID string, lease time.Duration) error {
	args := m.Called(ctx, id, workerID, lease)
	return args.Error(0)
}

func (m *JobRepoMock) MarkCompleted(ctx context.Context, id, workerID string, result datatypes.JSON) error {
	args := m.Called(ctx, id, workerID, result)
	return args.Error(0)
}

func (m *JobRepoMock) RetryLater(ctx context.Context, id, workerID string, availableAt time.Time, lastError string) error {
	args := m.Called(ctx, id, workerID, availableAt, lastError)
	return args.Error(0)
}

func (m *JobRepoMock) MarkDead(ctx context.Context, id, workerID string, lastError string) error {
	args := m.Called(ctx, id, workerID, lastError)
	return args.Error(0)
}

func (m *JobRepoMock) ListExpiredLeases(ctx context.Context, now time.Time) ([]models.Job, error) {
	args := m.Called(ctx, now)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) ListByState(ctx context.Context, kind, state string) ([]models.Job, error) {
	args := m.Called(ctx, kind, state)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) Replay(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
