package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/skillforge/pipeline/common"
	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/dto"
	"github.com/skillforge/pipeline/internal/models"
	"gorm.io/datatypes"
)

// Queue is the service layer over the durable job store. One instance is
// built at process bootstrap and passed by reference to whoever needs to
// enqueue or consume; there is no package-level state.
type Queue struct {
	repo  JobRepoInterface
	lease time.Duration
}

func NewQueue(repo JobRepoInterface, lease time.Duration) *Queue {
	return &Queue{repo: repo, lease: lease}
}

var _ QueueInterface = (*Queue)(nil)

// Enqueue validates the payload for the kind, applies per-job options and
// persists the job in waiting state. With a dedup key that matches an
// existing non-terminal job of the same kind, the existing job is
// returned and nothing new is created.
func (q *Queue) Enqueue(ctx context.Context, kind config.JobKind, payload json.RawMessage, opts ...EnqueueOption) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !json.Valid(payload) {
		return nil, common.Errf(http.StatusBadRequest, "payload must be valid JSON")
	}

	if !slices.Contains(config.AllowedKinds, kind) {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid job kind",
			map[string]any{
				"provided": string(kind),
				"allowed":  config.AllowedKinds,
			},
		)
	}

	if err := validateKindPayload(kind, payload); err != nil {
		return nil, err
	}

	o := defaultEnqueueOptions()
	for _, opt := range opts {
		opt(&o)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:            uuid.NewString(),
		Kind:          string(kind),
		Payload:       datatypes.JSON(payload),
		State:         string(config.StateWaiting),
		Priority:      o.priority,
		MaxAttempts:   o.maxAttempts,
		BackoffBaseMS: o.backoffBase.Milliseconds(),
		AvailableAt:   now.Add(o.delay),
	}
	if o.dedupKey != "" {
		key := o.dedupKey
		job.DedupKey = &key
	}

	created, err := q.repo.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	return created, nil
}

// Dequeue leases the oldest eligible job of the kind for workerID.
func (q *Queue) Dequeue(ctx context.Context, kind config.JobKind, workerID string) (*models.Job, error) {
	job, err := q.repo.AcquireNext(ctx, string(kind), workerID, q.lease)
	if err != nil {
		return nil, fmt.Errorf("dequeue %s job: %w", kind, err)
	}
	return job, nil
}

// Ack marks the job completed and stores the handler result.
func (q *Queue) Ack(ctx context.Context, job *models.Job, result any) error {
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
		res = datatypes.JSON(b)
	}

	if err := q.repo.MarkCompleted(ctx, job.ID, leaseHolder(job), res); err != nil {
		return fmt.Errorf("ack job %s: %w", job.ID, err)
	}
	return nil
}

// Fail routes a failed attempt through the retry policy. Permanent errors
// and exhausted budgets go dead immediately; everything else is
// rescheduled with exponential backoff. Reports whether the job went dead.
func (q *Queue) Fail(ctx context.Context, job *models.Job, cause error) (bool, error) {
	msg := cause.Error()

	if common.IsPermanent(cause) || job.Attempts >= job.MaxAttempts {
		if err := q.repo.MarkDead(ctx, job.ID, leaseHolder(job), msg); err != nil {
			return false, fmt.Errorf("bury job %s: %w", job.ID, err)
		}
		return true, nil
	}

	backoff := Backoff{Base: time.Duration(job.BackoffBaseMS) * time.Millisecond, Max: config.MaxBackoffDelay}
	availableAt := time.Now().UTC().Add(backoff.Delay(job.Attempts))

	if err := q.repo.RetryLater(ctx, job.ID, leaseHolder(job), availableAt, msg); err != nil {
		return false, fmt.Errorf("reschedule job %s: %w", job.ID, err)
	}
	return false, nil
}

// RenewLease extends the caller's exclusive lease on the job. Workers
// call this periodically while a long-running handler executes.
func (q *Queue) RenewLease(ctx context.Context, job *models.Job) error {
	return q.repo.RenewLease(ctx, job.ID, leaseHolder(job), q.lease)
}

// Status returns the read-only operational view of a job.
func (q *Queue) Status(ctx context.Context, id string) (*dto.JobStatusDTO, error) {
	job, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return jobStatus(job), nil
}

// ListDead returns jobs that exhausted their retry budget, for operator
// inspection and replay. Kind filters when non-empty.
func (q *Queue) ListDead(ctx context.Context, kind string) ([]dto.JobStatusDTO, error) {
	jobs, err := q.repo.ListByState(ctx, kind, string(config.StateDead))
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}

	out := make([]dto.JobStatusDTO, len(jobs))
	for i := range jobs {
		out[i] = *jobStatus(&jobs[i])
	}
	return out, nil
}

// Replay resets a dead job to waiting with a fresh attempt budget.
func (q *Queue) Replay(ctx context.Context, id string) error {
	return q.repo.Replay(ctx, id)
}

func leaseHolder(job *models.Job) string {
	if job.LeasedBy != nil {
		return *job.LeasedBy
	}
	return ""
}

func jobStatus(job *models.Job) *dto.JobStatusDTO {
	return &dto.JobStatusDTO{
		ID:          job.ID,
		Kind:        job.Kind,
		State:       job.State,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		LastError:   job.LastError,
		Result:      json.RawMessage(job.Result),
		AvailableAt: job.AvailableAt,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
}
