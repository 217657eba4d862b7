package feedsim_test

import (
	"testing"
	"time"

	"github.com/okian/livepitch/internal/adapters/source/memory"
	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/internal/feedsim"
	. "github.com/smartystreets/goconvey/convey"
)

func snapshot(src *memory.Source, collection string) feed.Snapshot {
	return feed.Snapshot{Documents: src.Documents(collection)}
}

func TestSimulator(t *testing.T) {
	start := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)

	Convey("Given a seeded simulator over a memory source", t, func() {
		src := memory.New()
		sim := feedsim.New(src,
			feedsim.WithMatches(3),
			feedsim.WithSeed(42),
			feedsim.WithPitch(600, 400),
			feedsim.WithPlayers(5),
		)
		sim.Seed(start)

		Convey("Then every match is published and the first one is live", func() {
			matches := feed.DecodeMatches(snapshot(src, feed.CollectionMatches))
			So(len(matches), ShouldEqual, 3)
			So(len(sim.MatchIDs()), ShouldEqual, 3)

			live := 0
			for _, m := range matches {
				So(m.HomeTeam, ShouldNotEqual, m.AwayTeam)
				if m.Status == model.StatusLive {
					live++
				}
			}
			So(live, ShouldEqual, 1)
		})

		Convey("Then the live match has telemetry and pressure", func() {
			first := sim.MatchIDs()[0]

			frame := feed.DecodeTelemetry(feed.Snapshot{Documents: feed.Telemetry("t", first).Apply(src.Documents(feed.CollectionTelemetry))})
			So(frame, ShouldNotBeNil)
			So(len(frame.Players), ShouldEqual, 10)

			_, ok := feed.DecodePressure(feed.Snapshot{Documents: feed.Pressure("p", first).Apply(src.Documents(feed.CollectionPressure))})
			So(ok, ShouldBeTrue)
		})

		Convey("When the simulation runs for a full match", func() {
			now := start
			for i := 0; i < 100; i++ {
				now = now.Add(time.Second)
				sim.Step(now)
			}

			Convey("Then steps are counted", func() {
				So(sim.Steps(), ShouldEqual, 100)
			})

			Convey("Then telemetry stays inside the pitch", func() {
				for _, doc := range src.Documents(feed.CollectionTelemetry) {
					frame := feed.DecodeTelemetry(feed.Snapshot{Documents: []feed.Document{doc}})
					So(frame, ShouldNotBeNil)
					So(frame.Ball.X, ShouldBeBetweenOrEqual, 0.0, 600.0)
					So(frame.Ball.Y, ShouldBeBetweenOrEqual, 0.0, 400.0)
					for _, p := range frame.Players {
						So(p.X, ShouldBeBetweenOrEqual, 0.0, 600.0)
						So(p.Y, ShouldBeBetweenOrEqual, 0.0, 400.0)
					}
				}
			})

			Convey("Then pressure values are in range", func() {
				for _, doc := range src.Documents(feed.CollectionPressure) {
					v, ok := feed.DecodePressure(feed.Snapshot{Documents: []feed.Document{doc}})
					So(ok, ShouldBeTrue)
					So(v, ShouldBeBetweenOrEqual, model.PressureMin, model.PressureMax)
				}
			})

			Convey("Then the newest global event decodes and history is bounded", func() {
				events := src.Documents(feed.CollectionEvents)
				So(len(events), ShouldBeGreaterThan, 0)
				So(len(events), ShouldBeLessThanOrEqualTo, feedsim.DefaultEventHistory)

				latest := feed.DecodeLatestEvent(feed.Snapshot{Documents: feed.LatestEvent("e").Apply(events)})
				So(latest, ShouldNotBeNil)
				So(latest.CreatedAt.After(start), ShouldBeTrue)
			})

			Convey("Then the number of listed matches stays constant", func() {
				So(len(src.Documents(feed.CollectionMatches)), ShouldEqual, 3)
			})
		})
	})

	Convey("Given two simulators with the same seed", t, func() {
		a, b := memory.New(), memory.New()
		simA := feedsim.New(a, feedsim.WithSeed(7), feedsim.WithMatches(1))
		simB := feedsim.New(b, feedsim.WithSeed(7), feedsim.WithMatches(1))
		simA.Seed(start)
		simB.Seed(start)
		for i := 0; i < 30; i++ {
			simA.Step(start.Add(time.Duration(i) * time.Second))
			simB.Step(start.Add(time.Duration(i) * time.Second))
		}

		Convey("Then they produce the same scores", func() {
			ma := feed.DecodeMatches(snapshot(a, feed.CollectionMatches))
			mb := feed.DecodeMatches(snapshot(b, feed.CollectionMatches))
			So(len(ma), ShouldEqual, 1)
			So(len(mb), ShouldEqual, 1)
			So(ma[0].HomeTeam, ShouldEqual, mb[0].HomeTeam)
			So(ma[0].Score, ShouldResemble, mb[0].Score)
			So(ma[0].Stats, ShouldResemble, mb[0].Stats)
		})
	})
}
