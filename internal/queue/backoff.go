package queue

import (
	"math"
	"time"
)

// Backoff computes the delay before retry attempt n using exponential
// growth: Base * 2^(n-1), capped at Max. Attempt 1 is the first retry
// after the initial failure. Stateless, safe for concurrent use.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt-1)))
	if b.Max > 0 && (d > b.Max || d < 0) {
		return b.Max
	}
	return d
}
