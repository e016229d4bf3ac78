package queue

import (
	"time"

	"github.com/skillforge/pipeline/internal/config"
)

// enqueueOptions collects per-job settings applied at enqueue time.
type enqueueOptions struct {
	priority    int
	delay       time.Duration
	dedupKey    string
	maxAttempts int
	backoffBase time.Duration
}

func defaultEnqueueOptions() enqueueOptions {
	return enqueueOptions{
		maxAttempts: config.DefaultMaxAttempts,
		backoffBase: config.DefaultBackoffBase,
	}
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

// WithPriority sets the ordering hint within the queue. Lower runs first.
func WithPriority(p int) EnqueueOption {
	return func(o *enqueueOptions) { o.priority = p }
}

// WithDelay defers eligibility: available_at = now + d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.delay = d }
}

// WithDedupKey coalesces duplicate enqueues: if a non-terminal job of the
// same kind carries the same key, Enqueue returns that job instead of
// creating a new one.
func WithDedupKey(key string) EnqueueOption {
	return func(o *enqueueOptions) { o.dedupKey = key }
}

// WithMaxAttempts overrides the default retry budget.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoffBase overrides the base delay of the exponential backoff.
func WithBackoffBase(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.backoffBase = d
		}
	}
}
