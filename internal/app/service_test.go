package service_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	service "github.com/okian/livepitch/internal/app"
	"github.com/okian/livepitch/internal/adapters/source/memory"
	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/domain/notify"
	"github.com/okian/livepitch/internal/domain/types"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/internal/feedsim"
	"github.com/okian/livepitch/pkg/clock"
	"github.com/okian/livepitch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func seedMatches(src *memory.Source) {
	src.Put(feed.CollectionMatches, "m1", map[string]any{
		"homeTeam": "Harbor City", "awayTeam": "Kingsport", "status": "live", "minute": 67,
		"score": map[string]any{"home": 2, "away": 1},
		"stats": map[string]any{"possession": map[string]any{"home": 60, "away": 40}},
	})
	src.Put(feed.CollectionMatches, "m2", map[string]any{
		"homeTeam": "Silverlake", "awayTeam": "Marlow Park", "status": "live", "minute": 12,
		"score": map[string]any{"home": 0, "away": 0},
	})
	src.Put(feed.CollectionMatches, "m3", map[string]any{
		"homeTeam": "Valley Rovers", "awayTeam": "Brackenridge", "status": "scheduled",
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service over a memory source", t, func() {
		ctx := context.Background()
		src := memory.New()
		seedMatches(src)
		clk := clock.NewManual(time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC))

		svc := service.New(
			service.WithSource(src),
			service.WithClock(clk),
			service.WithLogger(logger.Nop()),
			service.WithCanvas(120, 80),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then auto mode resolves to external", func() {
			So(svc.Mode(), ShouldEqual, notify.ModeExternal)
		})

		Convey("Then matches and the ticker are populated", func() {
			So(eventually(func() bool { return len(svc.Matches()) == 3 }), ShouldBeTrue)
			So(eventually(func() bool { _, ok := svc.Ticker(); return ok }), ShouldBeTrue)

			v, _ := svc.Ticker()
			So(v.Count, ShouldEqual, 3)
			So(v.Index, ShouldEqual, 0)
			So(v.Label, ShouldEqual, "2 - 1")

			clk.Advance(5 * time.Second)
			v, _ = svc.Ticker()
			So(v.Index, ShouldEqual, 1)
		})

		Convey("When a live match republishes every second", func() {
			So(eventually(func() bool { v, ok := svc.Ticker(); return ok && v.Count == 3 }), ShouldBeTrue)

			Convey("Then the ticker still rotates every five seconds", func() {
				var seq []int
				for i := 1; i <= 30; i++ {
					minute := 67 + i
					src.Put(feed.CollectionMatches, "m1", map[string]any{
						"homeTeam": "Harbor City", "awayTeam": "Kingsport", "status": "live", "minute": minute,
						"score": map[string]any{"home": 2, "away": 1},
					})
					So(eventually(func() bool {
						ms := svc.Matches()
						return len(ms) == 3 && ms[0].Minute == minute
					}), ShouldBeTrue)
					clk.Advance(time.Second)
					if i%5 == 0 {
						v, _ := svc.Ticker()
						seq = append(seq, v.Index)
					}
				}
				So(seq, ShouldResemble, []int{1, 2, 0, 1, 2, 0})
			})
		})

		Convey("Then the first live match becomes the focus", func() {
			So(eventually(func() bool { return svc.Focus() == "m1" }), ShouldBeTrue)
		})

		Convey("When the focus match has no pressure document", func() {
			So(eventually(func() bool { return svc.Pressure().Available }), ShouldBeTrue)

			Convey("Then pressure is estimated from match stats", func() {
				p := svc.Pressure()
				So(p.MatchID, ShouldEqual, "m1")
				So(p.Estimated, ShouldBeTrue)
				So(p.Raw, ShouldAlmostEqual, 20.0, 0.001)
				So(p.Layout.HomeExtent, ShouldAlmostEqual, 20.0, 0.001)
			})
		})

		Convey("When the focus match publishes pressure", func() {
			So(eventually(func() bool { return svc.Focus() == "m1" }), ShouldBeTrue)
			src.Put(feed.CollectionPressure, "m1", map[string]any{"value": -40})

			Convey("Then the explicit value wins", func() {
				So(eventually(func() bool {
					p := svc.Pressure()
					return p.Available && !p.Estimated
				}), ShouldBeTrue)
				p := svc.Pressure()
				So(p.Raw, ShouldEqual, -40.0)
				So(p.Layout.AwayExtent, ShouldBeGreaterThan, 0.0)
				So(p.Layout.HomeExtent, ShouldEqual, 0.0)
			})
		})

		Convey("When telemetry for the focus match arrives", func() {
			So(eventually(func() bool { return svc.Focus() == "m1" }), ShouldBeTrue)
			src.Put(feed.CollectionTelemetry, "m1", map[string]any{
				"ball": map[string]any{"x": 60, "y": 40},
				"players": []any{
					map[string]any{"id": "p1", "side": "home", "x": 20, "y": 20},
					map[string]any{"id": "p2", "side": "away", "x": 100, "y": 60},
				},
			})

			Convey("Then the frame is kept and rendered", func() {
				So(eventually(func() bool { return svc.Telemetry() != nil }), ShouldBeTrue)
				So(len(svc.Telemetry().Players), ShouldEqual, 2)

				var buf bytes.Buffer
				So(svc.RenderPNG(&buf), ShouldBeNil)
				So(bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), ShouldBeTrue)
			})
		})

		Convey("When a fresh event is published", func() {
			src.Put(feed.CollectionEvents, "e1", map[string]any{
				"id": "e1", "type": "goal", "message": "GOAL! Harbor City",
				"createdAt": clk.Now().Add(-2 * time.Second).Format(time.RFC3339),
			})

			Convey("Then it is shown and dismissed after five seconds", func() {
				So(eventually(func() bool { _, ok := svc.Notification(); return ok }), ShouldBeTrue)
				n, _ := svc.Notification()
				So(n.Category, ShouldEqual, model.CategoryGoal)
				So(n.Message, ShouldEqual, "GOAL! Harbor City")

				clk.Advance(5 * time.Second)
				_, ok := svc.Notification()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a stale event is published", func() {
			src.Put(feed.CollectionEvents, "e2", map[string]any{
				"id": "e2", "type": "goal",
				"createdAt": clk.Now().Add(-30 * time.Second).Format(time.RFC3339),
			})

			Convey("Then nothing is shown", func() {
				time.Sleep(50 * time.Millisecond)
				_, ok := svc.Notification()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the focus match leaves the live list", func() {
			So(eventually(func() bool { return svc.Focus() == "m1" }), ShouldBeTrue)
			src.Put(feed.CollectionMatches, "m1", map[string]any{
				"homeTeam": "Harbor City", "awayTeam": "Kingsport", "status": "completed",
			})

			Convey("Then the next live match takes over", func() {
				So(eventually(func() bool { return svc.Focus() == "m2" }), ShouldBeTrue)
				So(svc.Telemetry(), ShouldBeNil)
			})
		})

		Convey("When stats are requested", func() {
			stats := svc.GetStats()

			Convey("Then they describe the running service", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["mode"], ShouldEqual, "external")
				So(stats["externalFeed"], ShouldEqual, true)
				So(stats["slots"], ShouldNotBeEmpty)
			})
		})
	})
}

func TestService_PinnedFocus(t *testing.T) {
	Convey("Given a service pinned to one match", t, func() {
		src := memory.New()
		seedMatches(src)
		svc := service.New(
			service.WithSource(src),
			service.WithFocusMatch("m2"),
			service.WithLogger(logger.Nop()),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then the pinned match stays in focus", func() {
			So(svc.Focus(), ShouldEqual, "m2")
			src.Delete(feed.CollectionMatches, "m2")
			time.Sleep(20 * time.Millisecond)
			So(svc.Focus(), ShouldEqual, "m2")
		})
	})
}

func TestService_Watch(t *testing.T) {
	Convey("Given a watcher on a started service", t, func() {
		src := memory.New()
		svc := service.New(service.WithSource(src), service.WithLogger(logger.Nop()))

		var mu sync.Mutex
		kinds := map[string]int{}
		cancel := svc.Watch(func(u service.Update) {
			mu.Lock()
			defer mu.Unlock()
			kinds[u.Kind]++
		})
		defer cancel()

		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		seedMatches(src)

		Convey("Then match and ticker updates are delivered", func() {
			So(eventually(func() bool {
				mu.Lock()
				defer mu.Unlock()
				return kinds[service.UpdateMatches] > 0 && kinds[service.UpdateTicker] > 0
			}), ShouldBeTrue)
		})
	})
}

func TestService_NotificationUpdates(t *testing.T) {
	Convey("Given a watcher on notification updates", t, func() {
		src := memory.New()
		clk := clock.NewManual(time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC))
		svc := service.New(service.WithSource(src), service.WithClock(clk), service.WithLogger(logger.Nop()))

		var mu sync.Mutex
		var got []any
		cancel := svc.Watch(func(u service.Update) {
			if u.Kind != service.UpdateNotification {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			got = append(got, u.Data)
		})
		defer cancel()

		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		src.Put(feed.CollectionEvents, "e1", map[string]any{
			"id": "e1", "type": "card", "message": "Yellow card",
			"createdAt": clk.Now().Add(-time.Second).Format(time.RFC3339),
		})
		So(eventually(func() bool { _, ok := svc.Notification(); return ok }), ShouldBeTrue)
		shown, _ := svc.Notification()

		Convey("When the notification is dismissed", func() {
			clk.Advance(5 * time.Second)

			Convey("Then the dismissal names the notification it removes", func() {
				So(eventually(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(got) == 2
				}), ShouldBeTrue)
				mu.Lock()
				defer mu.Unlock()
				So(got[0].(types.NotificationView).ID, ShouldEqual, shown.ID)
				So(got[1], ShouldResemble, types.NotificationDismissal{Dismissed: shown.ID})
			})
		})
	})
}

func TestService_DemoMode(t *testing.T) {
	Convey("Given a service without an upstream feed", t, func() {
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithSimulatorOptions(
				feedsim.WithSeed(3),
				feedsim.WithMatches(2),
				feedsim.WithInterval(10*time.Millisecond),
			),
		)
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("Then the built-in simulator feeds it in synthetic mode", func() {
			So(svc.Mode(), ShouldEqual, notify.ModeSynthetic)
			So(eventually(func() bool { return len(svc.Matches()) == 2 }), ShouldBeTrue)
			So(eventually(func() bool { return svc.Telemetry() != nil }), ShouldBeTrue)
		})

		Convey("When stopped twice", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it reports not started", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.RenderPNG(&bytes.Buffer{}), ShouldEqual, service.ErrNotStarted)
			})
		})

		Reset(func() { svc.Stop() })
	})
}
