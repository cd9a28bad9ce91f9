package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	service "github.com/okian/coffee/internal/app"
	"github.com/okian/coffee/internal/adapters/repository"
	"github.com/okian/coffee/internal/adapters/storage"
	"github.com/okian/coffee/internal/domain/model"
	"github.com/okian/coffee/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init(logger.WithWriter(io.Discard))
	if err != nil {
		panic(err)
	}
}

// recorder collects delivered notifications.
type recorder struct {
	mu  sync.Mutex
	got []model.Notification
}

func (r *recorder) Notify(_ context.Context, n model.Notification) error { //nolint:gocritic // hugeParam: Notification is passed by value for channel semantics
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recorder) count(kind model.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msg := range r.got {
		if msg.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) sentTo(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msg := range r.got {
		if msg.ParticipantID == id {
			n++
		}
	}
	return n
}

// flakyStore fails every Save once broken is set.
type flakyStore struct {
	broken atomic.Bool
	saves  atomic.Int32
}

func (f *flakyStore) Load(context.Context) (storage.Snapshot, error) {
	return storage.Snapshot{}, storage.ErrNoSnapshot
}

func (f *flakyStore) Save(context.Context, storage.Snapshot) error {
	f.saves.Add(1)
	if f.broken.Load() {
		return errors.New("disk full")
	}
	return nil
}

func (f *flakyStore) Close() error { return nil }

func startService(rec *recorder, ids ...string) (*service.Service, context.Context) {
	svc := service.New(
		service.WithWorkerCount(2),
		service.WithQueueSize(100),
		service.WithSeed(1),
		service.WithNotifier(rec),
	)
	ctx := context.Background()
	So(svc.Start(ctx), ShouldBeNil)
	for _, id := range ids {
		_, err := svc.Register(ctx, model.Participant{ID: id, Username: "u" + id})
		So(err, ShouldBeNil)
	}
	return svc, ctx
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it reports itself as stopped", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["rounds"], ShouldEqual, 0)
		})

		Convey("And operations that need the pipeline fail", func() {
			_, err := svc.GenerateRound(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.NotifyAll(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("And stopping it is a no-op", func() {
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, _ := startService(&recorder{})

		Convey("Then it is marked as started", func() {
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.GetStats()["queueLength"], ShouldEqual, 0)
		})

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_GenerateRound(t *testing.T) {
	Convey("Given four registered participants and a history dir", t, func() {
		dir := t.TempDir()
		svc := service.New(service.WithHistoryDir(dir), service.WithNotifier(&recorder{}))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		for _, id := range []string{"a", "b", "c", "d"} {
			_, err := svc.Register(ctx, model.Participant{ID: id})
			So(err, ShouldBeNil)
		}

		Convey("When generating the first round", func() {
			report, err := svc.GenerateRound(ctx)

			Convey("Then everyone gets a fresh partner", func() {
				So(err, ShouldBeNil)
				So(report.Round, ShouldEqual, 1)
				So(report.Pairs, ShouldHaveLength, 2)
				So(report.Fresh, ShouldEqual, 2)
				So(report.Repeats, ShouldEqual, 0)
				So(svc.Rounds(), ShouldEqual, 1)
			})

			Convey("And the meetings start as created", func() {
				for _, id := range []string{"a", "b", "c", "d"} {
					list, err := svc.Meetings(ctx, id, false)
					So(err, ShouldBeNil)
					So(list, ShouldHaveLength, 1)
					So(list[0].Status, ShouldEqual, model.StatusCreated)
					So(list[0].Round, ShouldEqual, 1)
				}
			})

			Convey("And the round file is written", func() {
				_, err := os.Stat(filepath.Join(dir, "1.txt"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When every pair has been used up", func() {
			for i := 0; i < 3; i++ {
				report, err := svc.GenerateRound(ctx)
				So(err, ShouldBeNil)
				So(report.Fresh, ShouldEqual, 2)
			}
			report, err := svc.GenerateRound(ctx)

			Convey("Then the fourth round repeats and is counted", func() {
				So(err, ShouldBeNil)
				So(report.Fallback, ShouldEqual, 2)
				So(report.Repeats, ShouldEqual, 2)
				So(report.Deferred, ShouldEqual, 4)
				top := svc.TopRepeats(ctx, 0)
				So(top, ShouldHaveLength, 4)
				for _, r := range top {
					So(r.Count, ShouldEqual, 1)
				}
				So(svc.TopRepeats(ctx, 1), ShouldHaveLength, 1)
				So(svc.Leaderboard(ctx).Rounds, ShouldEqual, 4)
			})
		})
	})
}

func TestService_GenerateRoundSaveFailure(t *testing.T) {
	Convey("Given participants and a store that stops saving", t, func() {
		store := &flakyStore{}
		svc := service.New(service.WithStore(store), service.WithSeed(1), service.WithNotifier(&recorder{}))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		for _, id := range []string{"a", "b", "c", "d"} {
			_, err := svc.Register(ctx, model.Participant{ID: id})
			So(err, ShouldBeNil)
		}
		store.broken.Store(true)
		before := store.saves.Load()

		Convey("When a round is generated", func() {
			report, err := svc.GenerateRound(ctx)

			Convey("Then the round stands and no error is returned", func() {
				So(err, ShouldBeNil)
				So(report.Round, ShouldEqual, 1)
				So(report.Pairs, ShouldHaveLength, 2)
				So(svc.Rounds(), ShouldEqual, 1)
				So(store.saves.Load(), ShouldEqual, before+1)
			})

			Convey("And the next call generates the second round", func() {
				store.broken.Store(false)
				next, err := svc.GenerateRound(ctx)
				So(err, ShouldBeNil)
				So(next.Round, ShouldEqual, 2)
				So(svc.Rounds(), ShouldEqual, 2)
			})
		})
	})
}

func TestService_Notifications(t *testing.T) {
	Convey("Given a generated round", t, func() {
		rec := &recorder{}
		svc, ctx := startService(rec, "a", "b", "c", "d")
		defer svc.Stop()
		_, err := svc.GenerateRound(ctx)
		So(err, ShouldBeNil)

		Convey("When notifying everyone", func() {
			report, err := svc.NotifyAll(ctx)

			Convey("Then both sides of each meeting are told once", func() {
				So(err, ShouldBeNil)
				So(report.Announced, ShouldHaveLength, 2)
				So(report.Queued, ShouldEqual, 4)
				list, _ := svc.Meetings(ctx, "a", false)
				So(list[0].Status, ShouldEqual, model.StatusShowed)
			})

			Convey("And a second pass only sends reminders", func() {
				again, err := svc.NotifyAll(ctx)
				So(err, ShouldBeNil)
				So(again.Announced, ShouldBeEmpty)
				So(again.Queued, ShouldEqual, 4)

				svc.Stop()
				So(rec.count(model.NotifyNewMeeting), ShouldEqual, 4)
				So(rec.count(model.NotifyReminder), ShouldEqual, 4)
			})
		})

		Convey("When one partner unregisters before the announcement", func() {
			list, err := svc.Meetings(ctx, "a", false)
			So(err, ShouldBeNil)
			gone := list[0].Partner
			So(svc.Unregister(ctx, gone), ShouldBeNil)

			report, err := svc.NotifyAll(ctx)

			Convey("Then only the enabled side hears about it", func() {
				So(err, ShouldBeNil)
				So(report.Queued, ShouldEqual, 3)
				So(report.Skipped, ShouldEqual, 1)
				svc.Stop()
				So(rec.sentTo(gone), ShouldEqual, 0)
				So(rec.sentTo("a"), ShouldEqual, 1)
			})
		})

		Convey("When broadcasting", func() {
			report, err := svc.Broadcast(ctx, "see you at the coffee point")
			_, blank := svc.Broadcast(ctx, "  ")

			Convey("Then every enabled participant is queued", func() {
				So(err, ShouldBeNil)
				So(report.Queued, ShouldEqual, 4)
				So(errors.Is(blank, service.ErrEmptyMessage), ShouldBeTrue)
				svc.Stop()
				So(rec.count(model.NotifyBroadcast), ShouldEqual, 4)
			})
		})
	})
}

func TestService_MeetingStatus(t *testing.T) {
	Convey("Given a round between four participants", t, func() {
		svc, ctx := startService(&recorder{}, "a", "b", "c", "d")
		defer svc.Stop()
		_, err := svc.GenerateRound(ctx)
		So(err, ShouldBeNil)
		list, err := svc.Meetings(ctx, "a", false)
		So(err, ShouldBeNil)
		partner := list[0].Partner

		Convey("When marking the meeting as passed by username", func() {
			n, err := svc.UpdateStatus(ctx, "a", "@u"+partner, "pass")

			Convey("Then both views are done and the ranking follows", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				entry, err := svc.Rank(ctx, "a")
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 1)
				So(entry.Completed, ShouldEqual, 1)
				top, err := svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 4)
				So(top[0].Completed, ShouldEqual, 1)
				So(top[1].Rank, ShouldEqual, 1)
				So(top[2].Rank, ShouldEqual, 2)

				stats, err := svc.UserStats(ctx, partner)
				So(err, ShouldBeNil)
				So(stats[model.StatusDone], ShouldEqual, 1)
				So(svc.Leaderboard(ctx).Done, ShouldEqual, 2)
			})
		})

		Convey("When using bad input", func() {
			_, badVerb := svc.UpdateStatus(ctx, "a", partner, "maybe")
			_, unknown := svc.UpdateStatus(ctx, "a", "nobody", "pass")
			_, self := svc.UpdateStatus(ctx, "a", "a", "deny")

			Convey("Then the errors are typed", func() {
				So(errors.Is(badVerb, service.ErrInvalidStatus), ShouldBeTrue)
				So(errors.Is(unknown, service.ErrUnknownParticipant), ShouldBeTrue)
				So(errors.Is(self, service.ErrSelfMeeting), ShouldBeTrue)
			})
		})
	})
}

func TestService_AdminMeetings(t *testing.T) {
	Convey("Given three participants", t, func() {
		svc, ctx := startService(&recorder{}, "a", "b", "c")
		defer svc.Stop()

		Convey("When an admin adds a meeting", func() {
			So(svc.AddMeeting(ctx, "ua", "@ub"), ShouldBeNil)

			Convey("Then both sides see it", func() {
				list, err := svc.Meetings(ctx, "b", false)
				So(err, ShouldBeNil)
				So(list, ShouldResemble, []model.Meeting{{Partner: "a", Status: model.StatusCreated}})
			})

			Convey("And removing a's meetings keeps b's side", func() {
				So(svc.RemoveMeetings(ctx, "a"), ShouldBeNil)
				mine, _ := svc.Meetings(ctx, "a", true)
				theirs, _ := svc.Meetings(ctx, "b", true)
				So(mine, ShouldBeEmpty)
				So(theirs, ShouldHaveLength, 1)
			})

			Convey("And the next round avoids the pair", func() {
				report, err := svc.GenerateRound(ctx)
				So(err, ShouldBeNil)
				So(report.Pairs, ShouldHaveLength, 1)
				So(report.Fresh, ShouldEqual, 1)
				So(report.Pairs[0], ShouldContain, "c")
			})
		})

		Convey("When adding invalid meetings", func() {
			self := svc.AddMeeting(ctx, "a", "a")
			unknown := svc.AddMeeting(ctx, "a", "z")

			Convey("Then they are rejected", func() {
				So(errors.Is(self, service.ErrSelfMeeting), ShouldBeTrue)
				So(errors.Is(unknown, service.ErrUnknownParticipant), ShouldBeTrue)
			})
		})
	})
}

func TestService_RequestMore(t *testing.T) {
	Convey("Given three participants", t, func() {
		rec := &recorder{}
		svc, ctx := startService(rec, "a", "b", "c")
		defer svc.Stop()

		Convey("When two participants ask for an extra meeting", func() {
			_, first, err1 := svc.RequestMore(ctx, "a")
			partner, second, err2 := svc.RequestMore(ctx, "b")

			Convey("Then the second request is matched with the first", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(partner, ShouldEqual, "a")
				list, _ := svc.Meetings(ctx, "a", false)
				So(list, ShouldResemble, []model.Meeting{{Partner: "b", Status: model.StatusShowed}})

				svc.Stop()
				So(rec.count(model.NotifyNewMeeting), ShouldEqual, 2)
			})
		})

		Convey("When an unknown participant asks", func() {
			_, _, err := svc.RequestMore(ctx, "z")

			Convey("Then it fails", func() {
				So(errors.Is(err, service.ErrUnknownParticipant), ShouldBeTrue)
			})
		})
	})
}

func TestService_Unregister(t *testing.T) {
	Convey("Given two participants", t, func() {
		svc, ctx := startService(&recorder{}, "a", "b")
		defer svc.Stop()

		Convey("When one unregisters", func() {
			So(svc.Unregister(ctx, "a"), ShouldBeNil)

			Convey("Then it drops out of meetings and ranking", func() {
				_, err := svc.Meetings(ctx, "a", true)
				So(errors.Is(err, service.ErrUnknownParticipant), ShouldBeTrue)
				_, err = svc.Rank(ctx, "a")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(svc.Leaderboard(ctx).Members, ShouldEqual, 1)
			})

			Convey("And it is not paired any more", func() {
				report, err := svc.GenerateRound(ctx)
				So(err, ShouldBeNil)
				So(report.Pairs, ShouldBeEmpty)
				So(report.Leftover, ShouldResemble, []string{"b"})
			})
		})

		Convey("When unregistering an unknown id", func() {
			err := svc.Unregister(ctx, "nobody")

			Convey("Then it fails", func() {
				So(errors.Is(err, service.ErrUnknownParticipant), ShouldBeTrue)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a started service with a round", t, func() {
		svc, ctx := startService(&recorder{}, "a", "b", "c", "d")
		defer svc.Stop()
		_, err := svc.GenerateRound(ctx)
		So(err, ShouldBeNil)

		Convey("Then the stats reflect it", func() {
			stats := svc.GetStats()
			So(stats["participants"], ShouldEqual, 4)
			So(stats["rankedParticipants"], ShouldEqual, 4)
			So(stats["rounds"], ShouldEqual, 1)
			So(stats["repeats"], ShouldEqual, 0)
		})
	})

	Convey("Given a stopped service", t, func() {
		svc, _ := startService(&recorder{})
		svc.Stop()

		Convey("Then stopping again is safe", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})
}
