package worker

import (
	"sync/atomic"

	"github.com/okian/coffee/pkg/logger"
	"golang.org/x/time/rate"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithLimiter makes the worker wait on limiter before each delivery.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(w *InMemoryWorker) {
		w.limiter = limiter
	}
}

// withShared wires the pool-wide limiter and activity counter.
func withShared(limiter *rate.Limiter, active *atomic.Int64, total int) Option {
	return func(w *InMemoryWorker) {
		w.limiter = limiter
		w.active = active
		w.total = total
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	limit  rate.Limit
	burst  int
	logger logger.Logger
}

// WithRateLimit caps deliveries across all workers to perSecond with
// the given burst. perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) PoolOption {
	return func(c *poolConfig) {
		if perSecond <= 0 {
			c.limit = rate.Inf
			return
		}
		c.limit = rate.Limit(perSecond)
		c.burst = burst
	}
}

// WithPoolLogger sets the logger used by the pool and its workers.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(c *poolConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
