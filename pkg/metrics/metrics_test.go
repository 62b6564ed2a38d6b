package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then the brandmatch namespace is used", func() {
				So(manager, ShouldNotBeNil)
				manager.matchRequests.WithLabelValues("ok").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				So(families[0].GetName(), ShouldStartWith, "brandmatch_engine_")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the custom namespace and labels are applied", func() {
				manager.workerCount.Set(4)
				So(testutil.ToFloat64(manager.workerCount), ShouldEqual, 4)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_worker_count" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "brandmatch")
				So(manager.subsystem, ShouldEqual, "engine")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global recorders", t, func() {
		Convey("When recording match outcomes", func() {
			before := testutil.ToFloat64(globalManager.matchRequests.WithLabelValues("ok"))
			RecordMatchRequest("ok")
			RecordMatchRequest("ok")

			Convey("Then the counter advances", func() {
				So(testutil.ToFloat64(globalManager.matchRequests.WithLabelValues("ok")), ShouldEqual, before+2)
			})
		})

		Convey("When recording attribute failures", func() {
			before := testutil.ToFloat64(globalManager.attributeFailures.WithLabelValues("vision", "embedding"))
			RecordAttributeFailure("vision", "embedding")

			Convey("Then the labelled counter advances", func() {
				So(testutil.ToFloat64(globalManager.attributeFailures.WithLabelValues("vision", "embedding")), ShouldEqual, before+1)
			})
		})

		Convey("When recording dropped matches", func() {
			before := testutil.ToFloat64(globalManager.matchesDropped.WithLabelValues("vision"))
			RecordMatchesDropped("vision", 3)
			RecordMatchesDropped("vision", 0)
			RecordMatchesDropped("vision", -2)

			Convey("Then only positive counts are added", func() {
				So(testutil.ToFloat64(globalManager.matchesDropped.WithLabelValues("vision")), ShouldEqual, before+3)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(12)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(8)
			UpdateBrandsTotal(5)
			UpdateIndexedCandidates("positioning", 42)
			UpdateBreakerState("embedding", 2)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 8)
				So(testutil.ToFloat64(globalManager.brandsTotal), ShouldEqual, 5)
				So(testutil.ToFloat64(globalManager.indexedCandidates.WithLabelValues("positioning")), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.breakerState.WithLabelValues("embedding")), ShouldEqual, 2)
			})
		})

		Convey("When observing latencies", func() {
			So(func() {
				RecordMatchLatency(12.5)
				RecordCandidatesAggregated(7)
				RecordEmbeddingLatency("hashing", 0.2)
				RecordEmbeddingError("cohere")
				RecordIndexQueryLatency("vision", 3)
				RecordIngestJob("indexed")
				RecordIngestLatency(40)
				RecordQueueEnqueueError("full")
				RecordHTTPRequest("/api/v1/match-influencers", "POST", "200")
				RecordHTTPRequestDuration("/api/v1/match-influencers", "POST", "200", 15)
				UpdateSystemMemoryUsage(1024 * 1024)
				UpdateSystemGoroutineCount(20)
			}, ShouldNotPanic)
		})

		Convey("When scraping the custom registry", func() {
			RecordMatchRequest("not_found")
			families, err := GetRegistry().Gather()

			Convey("Then brandmatch families are exposed without Go runtime collectors", func() {
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "go_"), ShouldBeFalse)
				}
			})
		})
	})
}
