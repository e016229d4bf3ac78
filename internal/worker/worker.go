package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/queue"
	"gorm.io/datatypes"
)

// Handler processes one job payload and returns the result to store on
// the job. Returning an error routes the attempt through the retry
// policy; wrap with common.Permanent to bury the job immediately.
type Handler func(ctx context.Context, payload datatypes.JSON) (any, error)

// Registry maps job kinds to their handlers.
type Registry map[config.JobKind]Handler

// Observer receives job lifecycle events. Implementations must be fast;
// they run on the worker goroutine.
type Observer interface {
	JobCompleted(job *models.Job)
	JobFailed(job *models.Job, cause error)
	JobDead(job *models.Job, cause error)
}

// LogObserver logs lifecycle events via the standard logger.
type LogObserver struct{}

func (LogObserver) JobCompleted(job *models.Job) {
	log.Printf("[%s] job %s completed (attempt %d)", job.Kind, job.ID, job.Attempts)
}

func (LogObserver) JobFailed(job *models.Job, cause error) {
	log.Printf("[%s][WARN] job %s attempt %d/%d failed: %v",
		job.Kind, job.ID, job.Attempts, job.MaxAttempts, cause)
}

func (LogObserver) JobDead(job *models.Job, cause error) {
	log.Printf("[%s][ERROR] job %s dead after %d attempts: %v",
		job.Kind, job.ID, job.Attempts, cause)
}

type Worker struct {
	id       string
	kind     config.JobKind
	queue    queue.QueueInterface
	handler  Handler
	observer Observer

	renewEvery time.Duration
	idleMin    time.Duration
	idleMax    time.Duration

	quit chan struct{}
	done chan struct{}
}

// NewWorker builds a worker for one kind. lease is the visibility
// timeout the queue grants on dequeue; the worker renews at a third of
// it so a single missed renewal does not lose the job.
func NewWorker(n int, kind config.JobKind, q queue.QueueInterface, handler Handler,
	lease time.Duration, cfg *config.Pipeline, obs Observer) *Worker {
	if obs == nil {
		obs = LogObserver{}
	}
	return &Worker{
		id:         fmt.Sprintf("%s-%d", kind, n),
		kind:       kind,
		queue:      q,
		handler:    handler,
		observer:   obs,
		renewEvery: lease / 3,
		idleMin:    cfg.IdleDelayMin,
		idleMax:    cfg.IdleDelayMax,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (w *Worker) ID() string { return w.id }

// Start runs the poll loop on its own goroutine. An empty queue backs
// the poll interval off exponentially up to idleMax; finding a job
// resets it.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		delay := w.idleMin

		for {
			job, err := w.queue.Dequeue(ctx, w.kind, w.id)
			if err != nil {
				log.Printf("[%s][WARN] dequeue failed: %v", w.id, err)
			}

			if job != nil {
				w.process(ctx, job)
				delay = w.idleMin
			} else {
				delay = min(delay*2, w.idleMax)
			}

			select {
			case <-time.After(delay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

type handlerResult struct {
	res any
	err error
}

// process runs the handler while keeping the lease alive. If a renewal
// reports the lease lost, the handler context is canceled and the job is
// left for whoever reclaimed it.
//
// Stopping the pool only suppresses new dequeues; it never interrupts a
// job mid-flight. The handler, lease renewals and settlement therefore
// run on a context detached from loop cancellation, and hctx
// cancellation is reserved for the lease-lost path.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	settleCtx := context.WithoutCancel(ctx)
	hctx, cancel := context.WithCancel(settleCtx)
	defer cancel()

	done := make(chan handlerResult, 1)
	go func() {
		res, err := w.handler(hctx, job.Payload)
		done <- handlerResult{res: res, err: err}
	}()

	ticker := time.NewTicker(w.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case r := <-done:
			w.settle(settleCtx, job, r)
			return
		case <-ticker.C:
			if err := w.queue.RenewLease(settleCtx, job); err != nil {
				if errors.Is(err, queue.ErrLeaseLost) {
					log.Printf("[%s][WARN] lost lease on job %s, abandoning", w.id, job.ID)
					return
				}
				log.Printf("[%s][WARN] renew lease on job %s: %v", w.id, job.ID, err)
			}
		}
	}
}

func (w *Worker) settle(ctx context.Context, job *models.Job, r handlerResult) {
	if r.err != nil {
		dead, err := w.queue.Fail(ctx, job, r.err)
		if err != nil {
			if !errors.Is(err, queue.ErrLeaseLost) {
				log.Printf("[%s][ERROR] fail job %s: %v", w.id, job.ID, err)
			}
			return
		}
		if dead {
			w.observer.JobDead(job, r.err)
		} else {
			w.observer.JobFailed(job, r.err)
		}
		return
	}

	if err := w.queue.Ack(ctx, job, r.res); err != nil {
		if !errors.Is(err, queue.ErrLeaseLost) {
			log.Printf("[%s][ERROR] ack job %s: %v", w.id, job.ID, err)
		}
		return
	}
	w.observer.JobCompleted(job)
}

func (w *Worker) Stop() { close(w.quit) }

// Wait blocks until the poll loop has exited. Only meaningful after
// Start.
func (w *Worker) Wait() { <-w.done }
