package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/queue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ queue.JobRepoInterface = (*JobRepository)(nil)

var (
	nonTerminalStates = []string{
		string(config.StateWaiting),
		string(config.StateRetrying),
		string(config.StateActive),
	}
	eligibleStates = []string{
		string(config.StateWaiting),
		string(config.StateRetrying),
	}
)

// Create inserts a new job record. When the job carries a dedup key and a
// non-terminal job of the same kind already holds that key, the existing
// record is returned instead and nothing is inserted. The unique index
// on (kind, dedup_key) arbitrates concurrent enqueues; the losing insert
// returns the winner's row.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.DedupKey == nil {
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
		return job, nil
	}

	existing, err := r.findByDedupKey(ctx, job.Kind, *job.DedupKey)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			survivor, ferr := r.findByDedupKey(ctx, job.Kind, *job.DedupKey)
			if ferr == nil && survivor != nil {
				return survivor, nil
			}
		}
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) findByDedupKey(ctx context.Context, kind, key string) (*models.Job, error) {
	var existing models.Job
	err := r.db.WithContext(ctx).
		Where("kind = ? AND dedup_key = ? AND state IN ?", kind, key, nonTerminalStates).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// Get retrieves a single job record by its ID.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// AcquireNext atomically leases the oldest eligible job of the kind.
// Candidates are read in (priority, available_at) order and claimed with a
// compare-and-set on the observed state; losing the race moves on to the
// next candidate. The attempt counter is incremented as part of the claim
// so a lease that later expires still counts as a consumed attempt.
func (r *JobRepository) AcquireNext(ctx context.Context, kind, workerID string, lease time.Duration) (*models.Job, error) {
	const claimRetries = 3

	for range claimRetries {
		now := time.Now().UTC()

		var job models.Job
		err := r.db.WithContext(ctx).
			Where("kind = ? AND state IN ? AND available_at <= ?", kind, eligibleStates, now).
			Order("priority asc, available_at asc").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("acquire next: %w", err)
		}

		expires := now.Add(lease)
		res := r.db.WithContext(ctx).Model(&models.Job{}).
			Where("id = ? AND state = ?", job.ID, job.State).
			Updates(map[string]any{
				"state":            string(config.StateActive),
				"leased_by":        workerID,
				"lease_expires_at": expires,
				"attempts":         gorm.Expr("attempts + ?", 1),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("acquire next: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			job.State = string(config.StateActive)
			job.LeasedBy = &workerID
			job.LeaseExpiresAt = &expires
			job.Attempts++
			return &job, nil
		}
		// Another worker claimed it first; try the next candidate.
	}

	return nil, nil
}

// RenewLease extends the lease of an active job held by workerID.
func (r *JobRepository) RenewLease(ctx context.Context, id, workerID string, lease time.Duration) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND state = ? AND leased_by = ?", id, string(config.StateActive), workerID).
		Update("lease_expires_at", time.Now().UTC().Add(lease))
	if res.Error != nil {
		return fmt.Errorf("renew lease: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return queue.ErrLeaseLost
	}
	return nil
}

// MarkCompleted finishes a job held by workerID and stores its result.
// The dedup key is released so the next event for the same key enqueues
// fresh work.
func (r *JobRepository) MarkCompleted(ctx context.Context, id, workerID string, result datatypes.JSON) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND state = ? AND leased_by = ?", id, string(config.StateActive), workerID).
		Updates(map[string]any{
			"state":            string(config.StateCompleted),
			"result":           result,
			"completed_at":     time.Now().UTC(),
			"dedup_key":        nil,
			"leased_by":        nil,
			"lease_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("mark completed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return queue.ErrLeaseLost
	}
	return nil
}

// RetryLater returns a failed job to the queue for a later attempt.
func (r *JobRepository) RetryLater(ctx context.Context, id, workerID string, availableAt time.Time, lastError string) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND state = ? AND leased_by = ?", id, string(config.StateActive), workerID).
		Updates(map[string]any{
			"state":            string(config.StateRetrying),
			"available_at":     availableAt,
			"last_error":       lastError,
			"leased_by":        nil,
			"lease_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("retry later: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return queue.ErrLeaseLost
	}
	return nil
}

// MarkDead finalizes a job as dead-lettered; it will not be retried
// without operator action.
func (r *JobRepository) MarkDead(ctx context.Context, id, workerID string, lastError string) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND state = ? AND leased_by = ?", id, string(config.StateActive), workerID).
		Updates(map[string]any{
			"state":            string(config.StateDead),
			"last_error":       lastError,
			"dedup_key":        nil,
			"leased_by":        nil,
			"lease_expires_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("mark dead: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return queue.ErrLeaseLost
	}
	return nil
}

// ListExpiredLeases returns active jobs whose lease ran out before now.
func (r *JobRepository) ListExpiredLeases(ctx context.Context, now time.Time) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("state = ? AND lease_expires_at < ?", string(config.StateActive), now).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list expired leases: %w", err)
	}
	return jobs, nil
}

// ListByState retrieves jobs in the given state, optionally filtered by kind.
func (r *JobRepository) ListByState(ctx context.Context, kind, state string) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Where("state = ?", state)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var jobs []models.Job
	if err := q.Order("created_at asc").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Replay resets a dead job to waiting with a fresh attempt budget.
func (r *JobRepository) Replay(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND state = ?", id, string(config.StateDead)).
		Updates(map[string]any{
			"state":        string(config.StateWaiting),
			"attempts":     0,
			"available_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("replay job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("replay job %s: not in dead state", id)
	}
	return nil
}
