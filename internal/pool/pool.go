package pool

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/models"
	"github.com/skillforge/pipeline/internal/queue"
	"github.com/skillforge/pipeline/internal/worker"
)

// WorkerPool runs a fixed number of workers per job kind plus a janitor
// that reclaims jobs whose lease expired. The worker count per kind is
// the concurrency cap for that kind.
type WorkerPool struct {
	workers  []*worker.Worker
	queue    queue.QueueInterface
	repo     queue.JobRepoInterface
	interval time.Duration
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewWorkerPool(cfg *config.Pipeline, q queue.QueueInterface, repo queue.JobRepoInterface,
	handlers worker.Registry, obs worker.Observer) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		queue:    q,
		repo:     repo,
		interval: cfg.JanitorInterval,
		ctx:      ctx,
		cancel:   cancel,
	}

	for kind, handler := range handlers {
		for i := 1; i <= cfg.WorkersFor(kind); i++ {
			p.workers = append(p.workers,
				worker.NewWorker(i, kind, q, handler, cfg.LeaseDuration, cfg, obs))
		}
	}
	return p
}

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}
	log.Printf("[pool] started %d workers", len(p.workers))

	p.wg.Add(1)
	go p.janitor()
}

// janitor periodically sweeps active jobs with expired leases and routes
// them through the retry policy. The acquiring worker already consumed
// an attempt, so a job that keeps timing out still goes dead after its
// budget.
func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reclaim()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) reclaim() {
	expired, err := p.repo.ListExpiredLeases(p.ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[janitor][WARN] list expired leases: %v", err)
		return
	}

	for i := range expired {
		job := &expired[i]
		log.Printf("[janitor] reclaiming job %s (lease held by %s)", job.ID, holderOf(job))

		dead, err := p.queue.Fail(p.ctx, job, errors.New("lease expired"))
		if err != nil {
			// The worker settled the job between the sweep and the update.
			if !errors.Is(err, queue.ErrLeaseLost) {
				log.Printf("[janitor][WARN] reclaim job %s: %v", job.ID, err)
			}
			continue
		}
		if dead {
			log.Printf("[janitor] job %s dead after %d attempts", job.ID, job.Attempts)
		}
	}
}

func holderOf(job *models.Job) string {
	if job.LeasedBy != nil {
		return *job.LeasedBy
	}
	return "unknown"
}

// Stop drains the pool: workers stop dequeuing, finish their in-flight
// job and exit, then the shared context is canceled for the janitor.
// The pool context must stay live while workers drain so a handler that
// honors cancellation is not aborted by its own shutdown.
func (p *WorkerPool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
	for _, w := range p.workers {
		w.Wait()
	}
	p.cancel()
	p.wg.Wait()
	log.Println("[pool] stopped")
}
