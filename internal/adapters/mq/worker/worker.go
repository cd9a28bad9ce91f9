// Package worker delivers queued notifications.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/coffee/internal/adapters/mq/queue"
	"github.com/okian/coffee/pkg/logger"
	"github.com/okian/coffee/pkg/metrics"
	"golang.org/x/time/rate"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second
)

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
}

// Worker delivers notifications read from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is
	// closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	limiter  *rate.Limiter
	name     string
	active   *atomic.Int64
	total    int

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, notifier Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		notifier: notifier,
		name:     "worker",
		active:   &atomic.Int64{},
		total:    1,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			if err := w.deliver(ctx, item); err != nil {
				w.logger.Error(ctx, "notification delivery failed",
					logger.String("id", item.Notification.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// deliver waits for the rate limiter and hands the notification to the
// notifier. Failed deliveries are not retried.
func (w *InMemoryWorker) deliver(ctx context.Context, item queue.Item) error { //nolint:gocritic // hugeParam: Item is passed by value for channel semantics
	metrics.RecordQueueDequeue()
	metrics.RecordQueueProcessingLatency(float64(time.Since(item.EnqueuedAt).Microseconds()) / 1000)

	active := w.active.Add(1)
	metrics.UpdateWorkerActiveCount(int(active))
	metrics.UpdateWorkerIdleCount(w.total - int(active))
	defer func() {
		active := w.active.Add(-1)
		metrics.UpdateWorkerActiveCount(int(active))
		metrics.UpdateWorkerIdleCount(w.total - int(active))
	}()

	n := item.Notification
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			metrics.RecordNotificationFailed(string(n.Kind))
			metrics.RecordErrorByComponent("worker", "rate_limit")
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	start := time.Now()
	err := w.notifier.Notify(ctx, n)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordNotificationFailed(string(n.Kind))
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "notify_error")
		return fmt.Errorf("notify %s: %w", n.ParticipantID, err)
	}
	metrics.RecordNotificationSent(string(n.Kind))
	return nil
}

// Pool manages multiple workers sharing one rate limiter.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A limit of rate.Inf disables limiting.
func NewPool(workerCount int, q Queue, notifier Notifier, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	cfg := poolConfig{limit: rate.Inf}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get()
	}

	var limiter *rate.Limiter
	if cfg.limit != rate.Inf {
		limiter = rate.NewLimiter(cfg.limit, max(cfg.burst, 1))
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  cfg.logger.Named("worker-pool"),
	}
	active := &atomic.Int64{}
	for i := 0; i < workerCount; i++ {
		name := "worker-" + strconv.Itoa(i)
		pool.workers[i] = NewInMemoryWorker(q, notifier,
			WithName(name),
			WithLogger(cfg.logger.Named(name)),
			withShared(limiter, active, workerCount),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop stops all workers without draining the queue.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			p.Stop()
			return fmt.Errorf("drain workers: %w", shutdownCtx.Err())
		}
	}
	return nil
}
