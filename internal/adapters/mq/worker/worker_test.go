package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/coffee/internal/adapters/mq/queue"
	"github.com/okian/coffee/internal/adapters/mq/worker"
	"github.com/okian/coffee/internal/domain/model"
	"github.com/okian/coffee/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// recorder collects delivered notifications and can fail chosen ones.
type recorder struct {
	mu   sync.Mutex
	got  []string
	fail map[string]error
}

func newRecorder() *recorder {
	return &recorder{fail: make(map[string]error)}
}

func (r *recorder) Notify(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam: matches Notifier
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[n.ID]; ok {
		return err
	}
	r.got = append(r.got, n.ID)
	return nil
}

func (r *recorder) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	copy(out, r.got)
	return out
}

func note(i int) model.Notification {
	id := fmt.Sprintf("p%d", i)
	return model.Notification{
		ID:            model.NotificationID(model.NotifyReminder, "r1", id),
		ParticipantID: id,
		Kind:          model.NotifyReminder,
	}
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a single worker reading from a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		rec := newRecorder()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("w"), worker.WithLogger(logger.Discard()))
		ctx := context.Background()

		convey.Convey("When notifications are queued and the queue is closed", func() {
			for i := 0; i < 3; i++ {
				convey.So(q.Enqueue(ctx, note(i)), convey.ShouldBeTrue)
			}
			_ = q.Close()
			w.Run(ctx)

			convey.Convey("Then every notification is delivered in order", func() {
				convey.So(rec.delivered(), convey.ShouldResemble, []string{note(0).ID, note(1).ID, note(2).ID})
			})
		})

		convey.Convey("When a delivery fails", func() {
			rec.fail[note(1).ID] = errors.New("chat blocked")
			for i := 0; i < 3; i++ {
				q.Enqueue(ctx, note(i))
			}
			_ = q.Close()
			w.Run(ctx)

			convey.Convey("Then it is skipped and the rest are delivered", func() {
				convey.So(rec.delivered(), convey.ShouldResemble, []string{note(0).ID, note(2).ID})
			})
		})

		convey.Convey("When the worker is shut down while idle", func() {
			go w.Run(ctx)
			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			convey.Convey("Then it stops promptly", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		rec := newRecorder()
		pool := worker.NewPool(4, q, rec, worker.WithPoolLogger(logger.Discard()))
		ctx := context.Background()

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When notifications are queued and the pool shuts down", func() {
			pool.Start(ctx)
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(ctx, note(i)), convey.ShouldBeTrue)
			}
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then the queue is drained", func() {
				convey.So(rec.delivered(), convey.ShouldHaveLength, 50)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a rate limited pool", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		rec := newRecorder()
		pool := worker.NewPool(2, q, rec,
			worker.WithPoolLogger(logger.Discard()),
			worker.WithRateLimit(20, 1),
		)
		ctx := context.Background()

		convey.Convey("When five notifications are delivered", func() {
			pool.Start(ctx)
			start := time.Now()
			for i := 0; i < 5; i++ {
				q.Enqueue(ctx, note(i))
			}
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			elapsed := time.Since(start)

			convey.Convey("Then deliveries are spaced by the limiter", func() {
				convey.So(rec.delivered(), convey.ShouldHaveLength, 5)
				convey.So(elapsed, convey.ShouldBeGreaterThanOrEqualTo, 150*time.Millisecond)
			})
		})
	})
}

func TestLogNotifier(t *testing.T) {
	convey.Convey("Given a log notifier", t, func() {
		n := worker.NewLogNotifier(logger.Discard())

		convey.Convey("Then it accepts every notification", func() {
			msg := model.Notification{ID: "x", Kind: model.NotifyNewMeeting, PartnerID: "b", Round: 2, Text: "hi"}
			convey.So(n.Notify(context.Background(), msg), convey.ShouldBeNil)
		})

		convey.Convey("Then NotifierFunc adapts a function", func() {
			called := false
			f := worker.NotifierFunc(func(ctx context.Context, msg model.Notification) error {
				called = true
				return nil
			})
			convey.So(f.Notify(context.Background(), model.Notification{}), convey.ShouldBeNil)
			convey.So(called, convey.ShouldBeTrue)
		})
	})
}
