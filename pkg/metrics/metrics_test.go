package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// value reads the current value of a single-metric counter or gauge.
func value(c prometheus.Collector) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		return -1
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("calc"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered on that registry", func() {
				So(m, ShouldNotBeNil)
				m.windowsAnalyzed.Add(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_calc_windows_analyzed_total" {
						found = true
						So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 3)
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording engine metrics", func() {
			before := value(globalManager.windowsAnalyzed)
			RecordWindowsAnalyzed(12)
			RecordCalculation("rate_sweep", 3.5)
			RecordCalculationError("goal_rating", "invalid_score_goal")
			RecordSearchIterations(42)
			RecordCalibrationReload("ok")

			Convey("Then counters move", func() {
				So(value(globalManager.windowsAnalyzed)-before, ShouldEqual, 12)
				So(value(globalManager.calculationErrors.WithLabelValues("goal_rating", "invalid_score_goal")), ShouldBeGreaterThanOrEqualTo, 1)
				So(value(globalManager.calibrationReloads.WithLabelValues("ok")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)
			UpdateStoreRecords(9)
			UpdateStoreRecordsPerShard("0", 3)

			Convey("Then they hold the last value", func() {
				So(value(globalManager.queueSize), ShouldEqual, 7)
				So(value(globalManager.queueCapacity), ShouldEqual, 100)
				So(value(globalManager.workerCount), ShouldEqual, 4)
				So(value(globalManager.storeRecords), ShouldEqual, 9)
				So(value(globalManager.storeRecordsPerShard.WithLabelValues("0")), ShouldEqual, 3)
			})
		})

		Convey("When recording the remaining metrics", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordJobSubmitted()
					RecordJobDuplicate()
					RecordJobFinished("done")
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					AddWorkerActive(1)
					AddWorkerActive(-1)
					RecordWorkerProcessingLatency(12)
					RecordWorkerError()
					RecordStoreUpdateLatency(0.2)
					RecordStoreQueryLatency(0.1)
					RecordHTTPRequest("/msd", "POST", "200", 4)
					RecordErrorByComponent("worker", "calculation")
				}, ShouldNotPanic)
			})
		})

		Convey("When reading the registry", func() {
			Convey("Then it is the custom one", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
