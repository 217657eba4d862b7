package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/domain/notify"
	"github.com/okian/livepitch/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2024, 6, 14, 19, 0, 0, 0, time.UTC)

// fixedRandom always returns the same draw.
type fixedRandom struct {
	f float64
	n int
}

func (r fixedRandom) Float64() float64 { return r.f }
func (r fixedRandom) Intn(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

type recorder struct {
	mu     sync.Mutex
	events []bool
	last   model.Notification
}

func (r *recorder) watch(n model.Notification, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, visible)
	r.last = n
}

func (r *recorder) seen() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func event(id string, created time.Time) *model.MatchEvent {
	return &model.MatchEvent{ID: id, Type: model.EventGoal, Message: "Goal for the home side", CreatedAt: created}
}

func deadlineIn(c *clock.Manual) time.Duration {
	at, ok := c.NextDeadline()
	if !ok {
		return -1
	}
	return at.Sub(c.Now())
}

func TestExternalEntry(t *testing.T) {
	ctx := context.Background()

	Convey("Given an external-mode scheduler", t, func() {
		clk := clock.NewManual(epoch)
		s := notify.New(notify.WithMode(notify.ModeExternal), notify.WithClock(clk))
		defer s.Close()
		So(s.Start(), ShouldBeNil)

		Convey("Then no synthetic timer is armed", func() {
			So(clk.Pending(), ShouldEqual, 0)
			So(s.State(), ShouldEqual, notify.StateIdle)
		})

		Convey("When an event created 5s ago arrives", func() {
			s.OnExternalEvent(ctx, event("e1", epoch.Add(-5*time.Second)))

			Convey("Then it becomes active with a dismissal 5s after arrival", func() {
				n, ok := s.Current()
				So(ok, ShouldBeTrue)
				So(n.Source, ShouldEqual, model.SourceExternal)
				So(n.Category, ShouldEqual, model.CategoryGoal)
				So(n.EventID, ShouldEqual, "e1")
				So(n.ExpiresAt, ShouldEqual, epoch.Add(5*time.Second))
				So(deadlineIn(clk), ShouldEqual, 5*time.Second)
			})

			Convey("And it is dismissed once the window elapses", func() {
				clk.Advance(4999 * time.Millisecond)
				So(s.State(), ShouldEqual, notify.StateActive)
				clk.Advance(time.Millisecond)
				So(s.State(), ShouldEqual, notify.StateIdle)
				So(clk.Pending(), ShouldEqual, 0)
			})

			Convey("And re-delivery of the same event does not re-arm", func() {
				clk.Advance(2 * time.Second)
				s.OnExternalEvent(ctx, event("e1", epoch.Add(-5*time.Second)))

				So(deadlineIn(clk), ShouldEqual, 3*time.Second)
			})

			Convey("And a newer event preempts it", func() {
				clk.Advance(3 * time.Second)
				s.OnExternalEvent(ctx, &model.MatchEvent{ID: "e2", Type: model.EventCard, CreatedAt: clk.Now()})

				n, _ := s.Current()
				So(n.EventID, ShouldEqual, "e2")
				So(n.Category, ShouldEqual, model.CategoryCard)
				So(clk.Pending(), ShouldEqual, 1)
				So(deadlineIn(clk), ShouldEqual, 5*time.Second)

				clk.Advance(2 * time.Second)
				So(s.State(), ShouldEqual, notify.StateActive)
			})

			Convey("And a stale replacement leaves the pending dismissal alone", func() {
				s.OnExternalEvent(ctx, event("old", epoch.Add(-time.Minute)))

				n, _ := s.Current()
				So(n.EventID, ShouldEqual, "e1")
				So(deadlineIn(clk), ShouldEqual, 5*time.Second)
			})
		})

		Convey("When an event created 11s ago arrives", func() {
			s.OnExternalEvent(ctx, event("e1", epoch.Add(-11*time.Second)))

			Convey("Then the scheduler stays idle", func() {
				So(s.State(), ShouldEqual, notify.StateIdle)
				So(clk.Pending(), ShouldEqual, 0)
			})
		})

		Convey("When an event is exactly at the threshold", func() {
			s.OnExternalEvent(ctx, event("e1", epoch.Add(-10*time.Second)))

			So(s.State(), ShouldEqual, notify.StateIdle)
		})

		Convey("When an event is stamped in the future", func() {
			s.OnExternalEvent(ctx, event("e1", epoch.Add(time.Second)))

			So(s.State(), ShouldEqual, notify.StateActive)
		})

		Convey("When a nil event arrives", func() {
			s.OnExternalEvent(ctx, nil)

			So(s.State(), ShouldEqual, notify.StateIdle)
		})
	})
}

func TestSyntheticEntry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a synthetic-mode scheduler with a deterministic random source", t, func() {
		clk := clock.NewManual(epoch)
		s := notify.New(
			notify.WithMode(notify.ModeSynthetic),
			notify.WithClock(clk),
			notify.WithRandom(fixedRandom{f: 0.5, n: 0}),
		)
		defer s.Close()
		rec := &recorder{}
		s.Watch(rec.watch)
		So(s.Start(), ShouldBeNil)

		Convey("Then a delay from the middle of the range is armed", func() {
			So(deadlineIn(clk), ShouldEqual, 30*time.Second)
			So(s.State(), ShouldEqual, notify.StateIdle)
		})

		Convey("When the delay elapses", func() {
			clk.Advance(30 * time.Second)

			Convey("Then a catalog template is shown for exactly 4s", func() {
				n, ok := s.Current()
				So(ok, ShouldBeTrue)
				So(n.Source, ShouldEqual, model.SourceSynthetic)
				So(n.Message, ShouldEqual, notify.DefaultCatalog()[0].Message)
				So(n.Color, ShouldNotBeEmpty)
				So(n.ExpiresAt.Sub(n.ShownAt), ShouldEqual, 4*time.Second)
				So(deadlineIn(clk), ShouldEqual, 4*time.Second)
			})

			Convey("And after dismissal a new delay is armed", func() {
				clk.Advance(4 * time.Second)

				So(s.State(), ShouldEqual, notify.StateIdle)
				So(clk.Pending(), ShouldEqual, 1)
				So(deadlineIn(clk), ShouldEqual, 30*time.Second)
				So(rec.seen(), ShouldResemble, []bool{true, false})
			})
		})

		Convey("When external events arrive", func() {
			s.OnExternalEvent(ctx, event("e1", epoch))

			Convey("Then they are ignored", func() {
				So(s.State(), ShouldEqual, notify.StateIdle)
				So(deadlineIn(clk), ShouldEqual, 30*time.Second)
			})
		})
	})

	Convey("Given random draws across the whole unit interval", t, func() {
		for _, f := range []float64{0, 0.25, 0.999999999} {
			clk := clock.NewManual(epoch)
			s := notify.New(notify.WithClock(clk), notify.WithRandom(fixedRandom{f: f}))
			So(s.Start(), ShouldBeNil)

			d := deadlineIn(clk)
			So(d, ShouldBeGreaterThanOrEqualTo, 15*time.Second)
			So(d, ShouldBeLessThan, 45*time.Second)
			s.Close()
		}
	})

	Convey("Given the default random source over many trials", t, func() {
		for i := 0; i < 200; i++ {
			clk := clock.NewManual(epoch)
			s := notify.New(notify.WithClock(clk))
			So(s.Start(), ShouldBeNil)

			d := deadlineIn(clk)
			So(d, ShouldBeGreaterThanOrEqualTo, 15*time.Second)
			So(d, ShouldBeLessThan, 45*time.Second)

			clk.Advance(d)
			So(deadlineIn(clk), ShouldEqual, 4*time.Second)
			s.Close()
		}
	})
}

func TestHybridPreemption(t *testing.T) {
	ctx := context.Background()

	Convey("Given a hybrid scheduler with a synthetic notification due at 15s", t, func() {
		clk := clock.NewManual(epoch)
		s := notify.New(
			notify.WithMode(notify.ModeHybrid),
			notify.WithClock(clk),
			notify.WithRandom(fixedRandom{f: 0}),
		)
		defer s.Close()
		So(s.Start(), ShouldBeNil)
		So(deadlineIn(clk), ShouldEqual, 15*time.Second)

		Convey("When a fresh external event arrives at 12s", func() {
			clk.Advance(12 * time.Second)
			s.OnExternalEvent(ctx, event("e1", clk.Now()))

			Convey("Then the external notification replaces the synthetic cycle", func() {
				n, _ := s.Current()
				So(n.Source, ShouldEqual, model.SourceExternal)
				So(clk.Pending(), ShouldEqual, 1)
			})

			Convey("And the old synthetic deadline passes without effect", func() {
				clk.Advance(4 * time.Second)
				n, _ := s.Current()
				So(n.Source, ShouldEqual, model.SourceExternal)
			})

			Convey("And the generator re-arms after the external dismissal", func() {
				clk.Advance(5 * time.Second)
				So(s.State(), ShouldEqual, notify.StateIdle)
				So(deadlineIn(clk), ShouldEqual, 15*time.Second)

				clk.Advance(15 * time.Second)
				n, _ := s.Current()
				So(n.Source, ShouldEqual, model.SourceSynthetic)
			})
		})

		Convey("When an external event preempts a visible synthetic one", func() {
			clk.Advance(16 * time.Second)
			So(s.State(), ShouldEqual, notify.StateActive)

			s.OnExternalEvent(ctx, event("e1", clk.Now()))

			n, _ := s.Current()
			So(n.Source, ShouldEqual, model.SourceExternal)
			So(deadlineIn(clk), ShouldEqual, 5*time.Second)
		})
	})
}

func TestWatchOrdering(t *testing.T) {
	ctx := context.Background()

	Convey("Given two watchers on an external-mode scheduler", t, func() {
		clk := clock.NewManual(epoch)
		s := notify.New(notify.WithMode(notify.ModeExternal), notify.WithClock(clk))
		defer s.Close()
		So(s.Start(), ShouldBeNil)

		entered := make(chan struct{})
		release := make(chan struct{})
		var gate sync.Once
		recs := []*recorder{{}, {}}
		for _, rec := range recs {
			rec := rec
			s.Watch(func(n model.Notification, visible bool) {
				if !visible {
					gate.Do(func() {
						close(entered)
						<-release
					})
				}
				rec.watch(n, visible)
			})
		}
		s.OnExternalEvent(ctx, event("e1", clk.Now().Add(-time.Second)))

		Convey("When a fresh event lands while the dismissal is being delivered", func() {
			dismissed := make(chan struct{})
			go func() {
				defer close(dismissed)
				clk.Advance(5 * time.Second)
			}()
			<-entered

			shown := make(chan struct{})
			go func() {
				defer close(shown)
				s.OnExternalEvent(ctx, event("e2", clk.Now().Add(-time.Second)))
			}()
			select {
			case <-shown:
			case <-time.After(50 * time.Millisecond):
			}
			close(release)
			<-dismissed
			<-shown

			Convey("Then every watcher ends on the visible notification", func() {
				cur, ok := s.Current()
				So(ok, ShouldBeTrue)
				So(cur.EventID, ShouldEqual, "e2")
				for _, rec := range recs {
					So(rec.seen(), ShouldResemble, []bool{true, false, true})
					So(rec.last.ID, ShouldEqual, cur.ID)
				}
			})
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a running scheduler", t, func() {
		clk := clock.NewManual(epoch)
		s := notify.New(notify.WithMode(notify.ModeHybrid), notify.WithClock(clk))
		rec := &recorder{}
		s.Watch(rec.watch)
		So(s.Start(), ShouldBeNil)
		So(clk.Pending(), ShouldEqual, 1)

		Convey("When closed twice", func() {
			s.Close()
			s.Close()

			Convey("Then every timer is stopped and nothing fires later", func() {
				So(clk.Pending(), ShouldEqual, 0)
				clk.Advance(time.Hour)
				So(s.State(), ShouldEqual, notify.StateIdle)
				So(rec.seen(), ShouldBeEmpty)
			})

			Convey("And it cannot be restarted or fed", func() {
				So(s.Start(), ShouldEqual, notify.ErrClosed)
				s.OnExternalEvent(context.Background(), event("e1", clk.Now()))
				So(s.State(), ShouldEqual, notify.StateIdle)
			})
		})
	})
}

func TestParseMode(t *testing.T) {
	Convey("Given mode strings", t, func() {
		m, err := notify.ParseMode("Hybrid")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, notify.ModeHybrid)

		m, err = notify.ParseMode("")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, notify.ModeAuto)

		_, err = notify.ParseMode("sometimes")
		So(errors.Is(err, notify.ErrInvalidMode), ShouldBeTrue)
	})

	Convey("Given auto mode", t, func() {
		So(notify.ModeAuto.Resolve(true), ShouldEqual, notify.ModeExternal)
		So(notify.ModeAuto.Resolve(false), ShouldEqual, notify.ModeSynthetic)
		So(notify.ModeHybrid.Resolve(false), ShouldEqual, notify.ModeHybrid)
	})
}
