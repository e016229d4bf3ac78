package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestJob(kind string) *models.Job {
	return &models.Job{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       datatypes.JSON([]byte(`{"k":"v"}`)),
		State:         string(config.StateWaiting),
		MaxAttempts:   3,
		BackoffBaseMS: 1000,
		AvailableAt:   time.Now().UTC(),
	}
}

func TestJobRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		job     *models.Job
		wantErr bool
		setup   func(db *gorm.DB)
	}{
		{
			name: "success case",
			job:  newTestJob("email"),
		},
		{
			name: "error when db connection is closed",
			job:  newTestJob("email"),
			setup: func(db *gorm.DB) {
				sqlDB, _ := db.DB()
				sqlDB.Close()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := SetupTestDB(t)
			repo := NewJobRepository(db)

			if tt.setup != nil {
				tt.setup(db)
			}

			created, err := repo.Create(context.Background(), tt.job)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "create job")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.job.ID, created.ID)

			var saved models.Job
			require.NoError(t, db.First(&saved, "id = ?", tt.job.ID).Error)
			assert.Equal(t, tt.job.Kind, saved.Kind)
			assert.Equal(t, string(config.StateWaiting), saved.State)
			assert.Equal(t, 0, saved.Attempts)
		})
	}
}

func TestJobRepository_Create_Dedup(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	key := "certificate:enr-1"

	first := newTestJob("certificate")
	first.DedupKey = &key
	created, err := repo.Create(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, created.ID)

	t.Run("same key coalesces while non-terminal", func(t *testing.T) {
		dup := newTestJob("certificate")
		dup.DedupKey = &key

		out, err := repo.Create(ctx, dup)
		require.NoError(t, err)
		assert.Equal(t, first.ID, out.ID, "should return the surviving job")

		var count int64
		db.Model(&models.Job{}).Where("dedup_key = ?", key).Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("different kind does not coalesce", func(t *testing.T) {
		other := newTestJob("email")
		other.DedupKey = &key

		out, err := repo.Create(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, other.ID, out.ID)
	})

	t.Run("storage rejects a second live holder of the key", func(t *testing.T) {
		clone := newTestJob("certificate")
		clone.DedupKey = &key

		// Insert around the coalescing check, as a concurrent enqueue
		// on another connection would.
		err := db.Create(clone).Error
		require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("terminal job frees the key", func(t *testing.T) {
		leased, err := repo.AcquireNext(ctx, "certificate", "w1", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, leased)
		require.Equal(t, first.ID, leased.ID)
		require.NoError(t, repo.MarkCompleted(ctx, first.ID, "w1", nil))

		done, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Nil(t, done.DedupKey, "completion must release the key")

		fresh := newTestJob("certificate")
		fresh.DedupKey = &key

		out, err := repo.Create(ctx, fresh)
		require.NoError(t, err)
		assert.Equal(t, fresh.ID, out.ID, "completed job must not absorb new work")
	})
}

func TestJobRepository_AcquireNext(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil on empty queue", func(t *testing.T) {
		repo := NewJobRepository(SetupTestDB(t))

		job, err := repo.AcquireNext(ctx, "email", "w1", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("claims oldest eligible and increments attempts", func(t *testing.T) {
		db := SetupTestDB(t)
		repo := NewJobRepository(db)

		older := newTestJob("email")
		older.AvailableAt = time.Now().UTC().Add(-2 * time.Minute)
		newer := newTestJob("email")
		newer.AvailableAt = time.Now().UTC().Add(-1 * time.Minute)
		_, err := repo.Create(ctx, older)
		require.NoError(t, err)
		_, err = repo.Create(ctx, newer)
		require.NoError(t, err)

		job, err := repo.AcquireNext(ctx, "email", "w1", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, older.ID, job.ID)
		assert.Equal(t, string(config.StateActive), job.State)
		assert.Equal(t, 1, job.Attempts)
		require.NotNil(t, job.LeasedBy)
		assert.Equal(t, "w1", *job.LeasedBy)
		require.NotNil(t, job.LeaseExpiresAt)
		assert.WithinDuration(t, time.Now().UTC().Add(time.Minute), *job.LeaseExpiresAt, 5*time.Second)
	})

	t.Run("priority beats age", func(t *testing.T) {
		db := SetupTestDB(t)
		repo := NewJobRepository(db)

		old := newTestJob("email")
		old.AvailableAt = time.Now().UTC().Add(-time.Hour)
		urgent := newTestJob("email")
		urgent.Priority = -1
		_, err := repo.Create(ctx, old)
		require.NoError(t, err)
		_, err = repo.Create(ctx, urgent)
		require.NoError(t, err)

		job, err := repo.AcquireNext(ctx, "email", "w1", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, urgent.ID, job.ID)
	})

	t.Run("skips future available_at", func(t *testing.T) {
		repo := NewJobRepository(SetupTestDB(t))

		delayed := newTestJob("email")
		delayed.AvailableAt = time.Now().UTC().Add(time.Hour)
		_, err := repo.Create(ctx, delayed)
		require.NoError(t, err)

		job, err := repo.AcquireNext(ctx, "email", "w1", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("skips active jobs of other workers", func(t *testing.T) {
		repo := NewJobRepository(SetupTestDB(t))

		only := newTestJob("email")
		_, err := repo.Create(ctx, only)
		require.NoError(t, err)

		first, err := repo.AcquireNext(ctx, "email", "w1", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := repo.AcquireNext(ctx, "email", "w2", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, second)
	})

	t.Run("concurrent workers get at most one lease per job", func(t *testing.T) {
		db := SetupTestDB(t)
		repo := NewJobRepository(db)

		_, err := repo.Create(ctx, newTestJob("email"))
		require.NoError(t, err)

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed []string
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				job, err := repo.AcquireNext(ctx, "email", uuid.NewString(), time.Minute)
				if err == nil && job != nil {
					mu.Lock()
					claimed = append(claimed, job.ID)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Len(t, claimed, 1, "exactly one worker should win the job")
	})
}

func TestJobRepository_LeaseGuards(t *testing.T) {
	ctx := context.Background()

	acquire := func(t *testing.T, repo *JobRepository, kind string) *models.Job {
		t.Helper()
		_, err := repo.Create(ctx, newTestJob(kind))
		require.NoError(t, err)
		job, err := repo.AcquireNext(ctx, kind, "w1", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, job)
		return job
	}

	t.Run("renew extends only the holder's lease", func(t *testing.T) {
		repo := NewJobRepository(SetupTestDB(t))
		job := acquire(t, repo, "email")

		require.NoError(t, repo.RenewLease(ctx, job.ID, "w1", 2*time.Minute))

		err := repo.RenewLease(ctx, job.ID, "intruder", 2*time.Minute)
		assert.ErrorIs(t, err, queue.ErrLeaseLost)
	})

	t.Run("complete stores result and clears lease", func(t *testing.T) {
		db := SetupTestDB(t)
		repo := NewJobRepository(db)
		job := acquire(t, repo, "email")

		err := repo.MarkCompleted(ctx, job.ID, "w1", datatypes.JSON([]byte(`{"ok":true}`)))
		require.NoError(t, err)

		var saved models.Job
		require.NoError(t, db.First(&saved, "id = ?", job.ID).Error)
		assert.Equal(t, string(config.StateCompleted), saved.State)
		assert.NotNil(t, saved.CompletedAt)
		assert.Nil(t, saved.LeasedBy)
		assert.Nil(t, saved.LeaseExpiresAt)
		assert.JSONEq(t, `{"ok":true}`, string(saved.Result))
	})

	t.Run("stale worker cannot settle a reclaimed job", func(t *testing.T) {
		db := SetupTestDB(t)
		repo := NewJobRepository(db)
		job := acquire(t, repo, "email")

		// Janitor reclaims: job goes back to retrying, lease cleared.
		require.NoError(t, repo.RetryLater(ctx, job.ID, "w1", time.Now().UTC(), "lease expired"))

		err := repo.MarkCompleted(ctx, job.ID, "w1", nil)
		assert.ErrorIs(t, err, queue.ErrLeaseLost)

		err = repo.MarkDead(ctx, job.ID, "w1", "boom")
		assert.ErrorIs(t, err, queue.ErrLeaseLost)
	})

	t.Run("retry later makes the job eligible again", func(t *testing.T) {
		repo := NewJobRepository(SetupTestDB(t))
		job := acquire(t, repo, "email")

		require.NoError(t, repo.RetryLater(ctx, job.ID, "w1", time.Now().UTC().Add(-time.Second), "flaky"))

		again, err := repo.AcquireNext(ctx, "email", "w2", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, job.ID, again.ID)
		assert.Equal(t, 2, again.Attempts)
		assert.Equal(t, "flaky", again.LastError)
	})

	t.Run("mark dead finalizes the job", func(t *testing.T) {
		db := SetupTestDB(t)
		repo := NewJobRepository(db)
		job := acquire(t, repo, "email")

		require.NoError(t, repo.MarkDead(ctx, job.ID, "w1", "gave up"))

		var saved models.Job
		require.NoError(t, db.First(&saved, "id = ?", job.ID).Error)
		assert.Equal(t, string(config.StateDead), saved.State)
		assert.Equal(t, "gave up", saved.LastError)

		next, err := repo.AcquireNext(ctx, "email", "w2", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, next, "dead jobs must not be dequeued")
	})
}

func TestJobRepository_ListExpiredLeases(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	expired := acquireWithLease(t, repo, ctx, "email", -time.Minute)
	healthy := acquireWithLease(t, repo, ctx, "email", time.Minute)

	jobs, err := repo.ListExpiredLeases(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, expired.ID, jobs[0].ID)
	assert.NotEqual(t, healthy.ID, jobs[0].ID)
}

func acquireWithLease(t *testing.T, repo *JobRepository, ctx context.Context, kind string, lease time.Duration) *models.Job {
	t.Helper()
	_, err := repo.Create(ctx, newTestJob(kind))
	require.NoError(t, err)
	job, err := repo.AcquireNext(ctx, kind, uuid.NewString(), lease)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestJobRepository_Replay(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	job := acquireWithLease(t, repo, ctx, "email", time.Minute)
	require.NoError(t, repo.MarkDead(ctx, job.ID, *job.LeasedBy, "boom"))

	require.NoError(t, repo.Replay(ctx, job.ID))

	var saved models.Job
	require.NoError(t, db.First(&saved, "id = ?", job.ID).Error)
	assert.Equal(t, string(config.StateWaiting), saved.State)
	assert.Equal(t, 0, saved.Attempts)

	t.Run("only dead jobs can be replayed", func(t *testing.T) {
		err := repo.Replay(ctx, job.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in dead state")
	})
}

func TestJobRepository_ListByState(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	emailDead := acquireWithLease(t, repo, ctx, "email", time.Minute)
	require.NoError(t, repo.MarkDead(ctx, emailDead.ID, *emailDead.LeasedBy, "x"))

	certDead := acquireWithLease(t, repo, ctx, "certificate", time.Minute)
	require.NoError(t, repo.MarkDead(ctx, certDead.ID, *certDead.LeasedBy, "y"))

	_, err := repo.Create(ctx, newTestJob("email"))
	require.NoError(t, err)

	all, err := repo.ListByState(ctx, "", string(config.StateDead))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	emails, err := repo.ListByState(ctx, "email", string(config.StateDead))
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, emailDead.ID, emails[0].ID)
}
