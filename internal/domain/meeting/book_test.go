package meeting_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/coffee/internal/domain/meeting"
	"github.com/okian/coffee/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newBook(ids ...string) *meeting.Book {
	b := meeting.NewBook(meeting.WithClock(func() time.Time { return fixedNow }))
	for _, id := range ids {
		_, _ = b.Register(model.Participant{ID: id, Username: "u" + id})
	}
	return b
}

func TestBook_Registration(t *testing.T) {
	Convey("Given an empty book", t, func() {
		b := newBook()

		Convey("When registering a participant", func() {
			p, err := b.Register(model.Participant{ID: "1", Username: "alice"})

			Convey("Then it is enabled with defaults", func() {
				So(err, ShouldBeNil)
				So(p.Enabled, ShouldBeTrue)
				So(p.LangCode, ShouldEqual, model.DefaultLangCode)
				So(p.ChatID, ShouldEqual, "1")
				So(p.RegisteredAt, ShouldEqual, fixedNow)
				So(b.Enabled(), ShouldResemble, []string{"1"})
			})

			Convey("And it resolves by username", func() {
				got, err := b.Resolve("@alice")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, "1")
			})

			Convey("And unregistering disables it but keeps the language", func() {
				_, _ = b.Register(model.Participant{ID: "1", Username: "alice", LangCode: "en"})
				So(b.Unregister("1"), ShouldBeTrue)
				got, ok := b.Participant("1")
				So(ok, ShouldBeTrue)
				So(got.Enabled, ShouldBeFalse)
				So(got.LangCode, ShouldEqual, "en")
				So(b.Enabled(), ShouldBeEmpty)
				_, err := b.Resolve("alice")
				So(errors.Is(err, meeting.ErrUnknownParticipant), ShouldBeTrue)
			})
		})

		Convey("When registering without an id", func() {
			_, err := b.Register(model.Participant{})

			Convey("Then it fails", func() {
				So(errors.Is(err, meeting.ErrEmptyID), ShouldBeTrue)
			})
		})

		Convey("When an id or username cannot be stored in a round file", func() {
			for _, p := range []model.Participant{
				{ID: "alice,smith"},
				{ID: "alice\nsmith"},
				{ID: "alice\r"},
				{ID: " alice"},
				{ID: "1", Username: "al,ice"},
				{ID: "1", Username: "al\nice"},
			} {
				_, err := b.Register(p)
				So(errors.Is(err, meeting.ErrInvalidID), ShouldBeTrue)
			}

			Convey("Then nobody is registered", func() {
				So(b.Enabled(), ShouldBeEmpty)
			})
		})
	})
}

func TestBook_Meetings(t *testing.T) {
	Convey("Given three participants", t, func() {
		b := newBook("a", "b", "c")

		Convey("When adding a meeting", func() {
			So(b.Add("a", "b", model.StatusCreated, 1), ShouldBeNil)

			Convey("Then both sides see it", func() {
				So(b.Meetings("a", model.PendingStatuses()), ShouldResemble,
					[]model.Meeting{{Partner: "b", Status: model.StatusCreated, Round: 1}})
				So(b.Meetings("b", model.PendingStatuses()), ShouldHaveLength, 1)
				So(b.WithPending(), ShouldResemble, []string{"a", "b"})
			})

			Convey("And announcing moves it to showed once", func() {
				So(b.Announce(), ShouldResemble, [][2]string{{"a", "b"}})
				So(b.Announce(), ShouldBeEmpty)
				So(b.Meetings("b", model.PendingStatuses())[0].Status, ShouldEqual, model.StatusShowed)
			})

			Convey("And marking it done updates both views", func() {
				n, err := b.UpdateStatus("a", "b", model.StatusDone)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(b.Completed("a"), ShouldEqual, 1)
				So(b.Completed("b"), ShouldEqual, 1)

				Convey("And resolved meetings are not touched again", func() {
					n, err := b.UpdateStatus("b", "a", model.StatusNope)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 0)
					So(b.Stats("a"), ShouldResemble, map[model.MeetingStatus]int{model.StatusDone: 1})
				})
			})

			Convey("And a disabled participant sees no meetings", func() {
				b.Unregister("a")
				So(b.Meetings("a", model.AllStatuses()), ShouldBeEmpty)
			})

			Convey("And removing drops only that side", func() {
				b.Remove("a")
				So(b.Meetings("a", model.AllStatuses()), ShouldBeEmpty)
				So(b.Meetings("b", model.AllStatuses()), ShouldHaveLength, 1)
			})
		})

		Convey("When adding invalid meetings", func() {
			self := b.Add("a", "a", model.StatusCreated, 0)
			unknown := b.Add("a", "z", model.StatusCreated, 0)

			Convey("Then they are rejected", func() {
				So(errors.Is(self, meeting.ErrSelfMeeting), ShouldBeTrue)
				So(errors.Is(unknown, meeting.ErrUnknownParticipant), ShouldBeTrue)
			})
		})

		Convey("When setting a status that is not settable", func() {
			_, err := b.UpdateStatus("a", "b", model.StatusMore)

			Convey("Then it fails", func() {
				So(errors.Is(err, meeting.ErrStatusNotSettable), ShouldBeTrue)
			})
		})
	})
}

func TestBook_RequestMore(t *testing.T) {
	Convey("Given three participants", t, func() {
		b := newBook("a", "b", "c")

		Convey("When only one participant asks for more", func() {
			partner, matched, err := b.RequestMore("a")

			Convey("Then the request stays open", func() {
				So(err, ShouldBeNil)
				So(matched, ShouldBeFalse)
				So(partner, ShouldBeEmpty)
				So(b.Meetings("a", model.NewStatusSet(model.StatusMore)), ShouldHaveLength, 1)
			})

			Convey("And asking again is a no-op", func() {
				_, matched, err := b.RequestMore("a")
				So(err, ShouldBeNil)
				So(matched, ShouldBeFalse)
				So(b.Meetings("a", model.NewStatusSet(model.StatusMore)), ShouldHaveLength, 1)
			})

			Convey("And a second request matches the first", func() {
				partner, matched, err := b.RequestMore("c")
				So(err, ShouldBeNil)
				So(matched, ShouldBeTrue)
				So(partner, ShouldEqual, "a")
				So(b.Meetings("a", model.PendingStatuses()), ShouldResemble,
					[]model.Meeting{{Partner: "c", Status: model.StatusShowed}})
				So(b.Meetings("c", model.PendingStatuses()), ShouldResemble,
					[]model.Meeting{{Partner: "a", Status: model.StatusShowed}})
			})
		})

		Convey("When two participants with a pending meeting ask for more", func() {
			So(b.Add("a", "b", model.StatusShowed, 1), ShouldBeNil)
			_, _, _ = b.RequestMore("a")
			_, matched, err := b.RequestMore("b")

			Convey("Then they are not matched again", func() {
				So(err, ShouldBeNil)
				So(matched, ShouldBeFalse)
			})
		})

		Convey("When an unknown participant asks", func() {
			_, _, err := b.RequestMore("nobody")

			Convey("Then it fails", func() {
				So(errors.Is(err, meeting.ErrUnknownParticipant), ShouldBeTrue)
			})
		})
	})
}

func TestBook_SummaryAndSnapshot(t *testing.T) {
	Convey("Given a book with resolved and pending meetings", t, func() {
		b := newBook("a", "b", "c", "d")
		So(b.Add("a", "b", model.StatusShowed, 1), ShouldBeNil)
		So(b.Add("c", "d", model.StatusShowed, 1), ShouldBeNil)
		_, _ = b.UpdateStatus("a", "b", model.StatusDone)
		_, _ = b.UpdateStatus("c", "d", model.StatusNope)
		So(b.Add("a", "c", model.StatusCreated, 2), ShouldBeNil)

		Convey("Then the summary counts views and pairs", func() {
			s := b.Summary()
			So(s.Members, ShouldEqual, 4)
			So(s.WithMeetings, ShouldEqual, 4)
			So(s.Meetings, ShouldEqual, 3)
			So(s.Done, ShouldEqual, 2)
			So(s.Denied, ShouldEqual, 2)
			So(s.NotYet, ShouldEqual, 2)
		})

		Convey("Then an export imports into an equal book", func() {
			other := meeting.NewBook()
			other.Import(b.Export())
			So(other.Export(), ShouldResemble, b.Export())
			got, err := other.Resolve("ua")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, "a")
		})
	})
}
