package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating a manager with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("pfx"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})

			Convey("And metric names carry namespace, subsystem and prefix", func() {
				manager.tickerRotations.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_pfx_ticker_rotations_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When passing empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "livepitch")
				So(manager.subsystem, ShouldEqual, "core")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording feed metrics", func() {
			before := testutil.ToFloat64(globalManager.snapshotsApplied.WithLabelValues("live_matches"))
			RecordSnapshotApplied("live_matches")
			RecordSnapshotApplied("live_matches")

			Convey("Then the per-slot counter increases", func() {
				after := testutil.ToFloat64(globalManager.snapshotsApplied.WithLabelValues("live_matches"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording notification metrics", func() {
			before := testutil.ToFloat64(globalManager.staleEventsIgnored)
			RecordStaleEventIgnored()
			RecordNotificationShown("external", "goal")
			RecordNotificationDismissed("external")
			RecordDuplicateEvent()
			RecordTimerCancelled()
			RecordSyntheticDelay(20 * time.Second)

			Convey("Then the stale counter increases", func() {
				So(testutil.ToFloat64(globalManager.staleEventsIgnored)-before, ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdatePressure(40, 25)
			UpdateTickerEntries(3)
			UpdateActiveSubscriptions(4)
			UpdateQueueSize(7)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.pressureRaw), ShouldEqual, 40)
				So(testutil.ToFloat64(globalManager.pressureSmoothed), ShouldEqual, 25)
				So(testutil.ToFloat64(globalManager.tickerEntries), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.activeSubscriptions), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordMalformedDocument("live_match")
				RecordSubscriptionError("telemetry")
				RecordUpstreamReconnect()
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("full")
				RecordDispatchLatency(0.3)
				RecordTickerRotation()
				RecordFrameRendered()
				RecordRenderSkipped("no_frame")
				RecordRenderLatency(1.2)
				RecordHTTPRequest("ticker", "GET", "200")
				RecordHTTPRequestDuration("ticker", "GET", "200", 3)
				UpdateStreamClients(2)
				RecordErrorByComponent("feed", "subscription")
				RecordErrorByType("subscription", "medium")
				RecordErrorByEndpoint("ticker", "GET", "client_error")
				RecordErrorLatency("http", "client_error", 2)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("When gathering the registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then livepitch metrics are exposed", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "livepitch_core_"), ShouldBeTrue)
				}
			})
		})
	})
}
