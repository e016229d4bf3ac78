package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/dto"
	"github.com/skillforge/pipeline/internal/models"
	"gorm.io/datatypes"
)

// ErrLeaseLost is returned when a lease-guarded transition matched no
// row: the lease expired and the job was reclaimed by the janitor.
var ErrLeaseLost = errors.New("job lease lost")

// JobRepoInterface defines the contract for durable job storage. Every
// state transition is a compare-and-set guarded by the current state (and
// lease holder where relevant) so that concurrent workers cannot apply
// the same transition twice.
type JobRepoInterface interface {
	// Create persists a new job, or returns the surviving job when the
	// dedup key matches an existing non-terminal job of the same kind.
	Create(ctx context.Context, job *models.Job) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	// AcquireNext atomically leases the oldest eligible job of the kind,
	// incrementing its attempt counter. Returns nil when none is eligible.
	AcquireNext(ctx context.Context, kind string, workerID string, lease time.Duration) (*models.Job, error)
	RenewLease(ctx context.Context, id, workerID string, lease time.Duration) error
	MarkCompleted(ctx context.Context, id, workerID string, result datatypes.JSON) error
	RetryLater(ctx context.Context, id, workerID string, availableAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id, workerID string, lastError string) error
	// ListExpiredLeases returns active jobs whose lease expired before now.
	ListExpiredLeases(ctx context.Context, now time.Time) ([]models.Job, error)
	ListByState(ctx context.Context, kind, state string) ([]models.Job, error)
	// Replay resets a dead job to waiting with a fresh attempt budget.
	Replay(ctx context.Context, id string) error
}

// QueueInterface is the surface the API handlers, workers and job
// handlers use to enqueue and settle work.
type QueueInterface interface {
	Enqueue(ctx context.Context, kind config.JobKind, payload json.RawMessage, opts ...EnqueueOption) (*models.Job, error)
	// Dequeue leases the oldest eligible job of the kind for this worker,
	// or returns nil when the queue is empty.
	Dequeue(ctx context.Context, kind config.JobKind, workerID string) (*models.Job, error)
	Ack(ctx context.Context, job *models.Job, result any) error
	// Fail routes a failed attempt through the retry policy. It reports
	// whether the job went dead.
	Fail(ctx context.Context, job *models.Job, cause error) (dead bool, err error)
	RenewLease(ctx context.Context, job *models.Job) error
	Status(ctx context.Context, id string) (*dto.JobStatusDTO, error)
	ListDead(ctx context.Context, kind string) ([]dto.JobStatusDTO, error)
	Replay(ctx context.Context, id string) error
}
