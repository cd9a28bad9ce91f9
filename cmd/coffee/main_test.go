package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/coffee/internal/adapters/storage"
	app "github.com/okian/coffee/internal/app"
	"github.com/okian/coffee/internal/config"
	"github.com/okian/coffee/internal/domain/types"
	"github.com/okian/coffee/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithWriter(io.Discard))
	os.Exit(m.Run())
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	_ = os.Setenv("COFFEE_ENV_FILE", "does-not-exist.env")
	for k, v := range kv {
		_ = os.Setenv(k, v)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("COFFEE_ENV_FILE")
		for k := range kv {
			_ = os.Unsetenv(k)
		}
	})
}

func TestMainConfiguration(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		setEnv(t, map[string]string{
			"COFFEE_ADDR":         ":8080",
			"COFFEE_QUEUE_SIZE":   "1000",
			"COFFEE_WORKER_COUNT": "4",
		})

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})

	convey.Convey("Given an empty listen address", t, func() {
		setEnv(t, map[string]string{"COFFEE_ADDR": ""})

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a config without a data directory", t, func() {
		cfg := config.New()

		convey.Convey("Then state is kept in memory", func() {
			store, err := openStore(cfg)
			convey.So(err, convey.ShouldBeNil)
			_, ok := store.(*storage.MemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(store.Close(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a config with a data directory", t, func() {
		cfg := config.New()
		cfg.DataDir = t.TempDir()

		convey.Convey("Then BadgerDB is opened there", func() {
			store, err := openStore(cfg)
			convey.So(err, convey.ShouldBeNil)
			_, ok := store.(*storage.BadgerStore)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(store.Close(), convey.ShouldBeNil)
		})
	})
}

func TestHandlerWiring(t *testing.T) {
	convey.Convey("Given a started service behind the HTTP handler", t, func() {
		cfg := config.New()
		cfg.AdminToken = "secret"
		cfg.HistoryDir = t.TempDir()
		cfg.WorkerCount = 2
		cfg.Seed = 3

		svc := newService(cfg, storage.NewMemoryStore())
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()
		srv := httptest.NewServer(newHandler(cfg, svc))
		defer srv.Close()

		do := func(method, path, body, token string) *http.Response {
			req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			if token != "" {
				req.Header.Set("X-Admin-Token", token)
			}
			resp, err := http.DefaultClient.Do(req)
			convey.So(err, convey.ShouldBeNil)
			return resp
		}

		for _, id := range []string{"a", "b", "c", "d"} {
			resp := do(http.MethodPost, "/participants", `{"id":"`+id+`","username":"@`+id+`"}`, "")
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)
		}

		convey.Convey("When a round is generated with the admin token", func() {
			resp := do(http.MethodPost, "/admin/rounds", "", "secret")
			defer func() { _ = resp.Body.Close() }()

			convey.Convey("Then everyone is paired and the round file exists", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)
				var report types.RoundReport
				convey.So(json.NewDecoder(resp.Body).Decode(&report), convey.ShouldBeNil)
				convey.So(report.Round, convey.ShouldEqual, 1)
				convey.So(report.Pairs, convey.ShouldHaveLength, 2)
				_, err := os.Stat(cfg.HistoryDir + "/1.txt")
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the admin token is wrong", func() {
			resp := do(http.MethodPost, "/admin/rounds", "", "nope")
			_ = resp.Body.Close()

			convey.Convey("Then the request is refused", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusUnauthorized)
			})
		})

		convey.Convey("When the API document is fetched", func() {
			resp := do(http.MethodGet, "/openapi.yaml", "", "")
			_ = resp.Body.Close()

			convey.Convey("Then it is served next to the API", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When metrics are scraped", func() {
			resp := do(http.MethodGet, "/healthz", "", "")
			defer func() { _ = resp.Body.Close() }()

			convey.Convey("Then the exposition is served", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				body, err := io.ReadAll(resp.Body)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(body), convey.ShouldContainSubstring, "coffee_")
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metric updaters", t, func() {
		svc := app.New()

		convey.Convey("Then they stop with their context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then single updates do not panic on an idle service", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
