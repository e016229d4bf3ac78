package mocks

import (
	"context"
	"encoding/json"

	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/dto"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/queue"
	"github.com/stretchr/testify/mock"
)

type QueueMock struct {
	mock.Mock
}

// Enqueue passes opts as a single slice argument so expectations can
// match it with mock.Anything and inspect it via Run.
func (m *QueueMock) Enqueue(ctx context.Context, kind config.JobKind, payload json.RawMessage, opts ...queue.EnqueueOption) (*models.Job, error) {
	args := m.Called(ctx, kind, payload, opts)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *QueueMock) Dequeue(ctx context.Context, kind config.JobKind, workerID string) (*models.Job, error) {
	args := m.Called(ctx, kind, workerID)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *QueueMock) Ack(ctx context.Context, job *models.Job, result any) error {
	args := m.Called(ctx, job, result)
	return args.Error(0)
}

func (m *QueueMock) Fail(ctx context.Context, job *models.Job, cause error) (bool, error) {
	args := m.Called(ctx, job, cause)
	return args.Bool(0), args.Error(1)
}

func (m *QueueMock) RenewLease(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *QueueMock) Status(ctx context.Context, id string) (*dto.JobStatusDTO, error) {
	args := m.Called(ctx, id)

	status, _ := args.Get(0).(*dto.JobStatusDTO)
	return status, args.Error(1)
}

func (m *QueueMock) ListDead(ctx context.Context, kind string) ([]dto.JobStatusDTO, error) {
	args := m.Called(ctx, kind)

	jobs, _ := args.Get(0).([]dto.JobStatusDTO)
	return jobs, args.Error(1)
}

func (m *QueueMock) Replay(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
