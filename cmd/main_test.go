package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/skillcalc/internal/config"
	"github.com/okian/skillcalc/pkg/logger"
	"github.com/okian/skillcalc/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainConfiguration(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("SKILLCALC_ADDR", ":8080")
		_ = os.Setenv("SKILLCALC_QUEUE_SIZE", "1000")
		_ = os.Setenv("SKILLCALC_WORKER_COUNT", "4")
		defer func() {
			_ = os.Unsetenv("SKILLCALC_ADDR")
			_ = os.Unsetenv("SKILLCALC_QUEUE_SIZE")
			_ = os.Unsetenv("SKILLCALC_WORKER_COUNT")
		}()

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)

			convey.Convey("And the service should build from it", func() {
				svc, err := newService(cfg, logger.Nop())
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.GetStats()["workerCount"], convey.ShouldEqual, 4)
				convey.So(svc.GetStats()["queueSize"], convey.ShouldEqual, 1000)
			})
		})
	})

	convey.Convey("Given an empty listen address", t, func() {
		_ = os.Setenv("SKILLCALC_ADDR", "")
		defer func() { _ = os.Unsetenv("SKILLCALC_ADDR") }()

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a missing calibration file", t, func() {
		cfg := config.New(context.Background())
		cfg.CalibrationPath = "/non/existent/tuning.yaml"
		svc, err := newService(cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the service refuses to start", func() {
			convey.So(svc.Start(context.Background()), convey.ShouldNotBeNil)
		})
	})
}

func TestMainMux(t *testing.T) {
	convey.Convey("Given a started service behind the mux", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		cfg := config.New(ctx)
		cfg.WorkerCount = 2
		svc, err := newService(cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		registerRuntimeCollectors(metrics.GetRegistry())
		mux := newMux(ctx, cfg, svc, logger.Nop())

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		convey.Convey("Then the health, version and docs routes answer", func() {
			convey.So(get("/healthz").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/version").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then metrics include the runtime collectors", func() {
			w := get("/metrics")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "go_goroutines")
		})

		convey.Convey("Then a submitted job finishes", func() {
			body := map[string]any{
				"keycount": 4,
				"times":    []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7},
				"masks":    []uint32{1, 2, 4, 8, 1, 2, 4, 8},
			}
			raw, _ := json.Marshal(body)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(raw)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusAccepted)

			var job struct {
				JobID string `json:"job_id"`
			}
			convey.So(json.Unmarshal(w.Body.Bytes(), &job), convey.ShouldBeNil)
			convey.So(job.JobID, convey.ShouldNotBeEmpty)

			var status string
			for status != "done" && status != "failed" && ctx.Err() == nil {
				var got struct {
					Status string `json:"status"`
				}
				_ = json.Unmarshal(get("/jobs/"+job.JobID).Body.Bytes(), &got)
				status = got.Status
				time.Sleep(10 * time.Millisecond)
			}
			convey.So(status, convey.ShouldEqual, "done")
		})
	})
}

func TestRegisterRuntimeCollectors(t *testing.T) {
	convey.Convey("Given a fresh registry", t, func() {
		reg := prometheus.NewRegistry()

		convey.Convey("Then registering twice does not panic", func() {
			convey.So(func() {
				registerRuntimeCollectors(reg)
				registerRuntimeCollectors(reg)
			}, convey.ShouldNotPanic)
			families, err := reg.Gather()
			convey.So(err, convey.ShouldBeNil)
			convey.So(families, convey.ShouldNotBeEmpty)
		})
	})
}
