package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/jsonlog/config"
	"github.com/angeloszaimis/jsonlog/internal/metrics"
	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Name: "backup", Environment: "production"},
		Logging: config.LoggingConfig{
			Level:        "info",
			Mode:         config.ModeSync,
			QueueSize:    16,
			Overflow:     config.OverflowDropOldest,
			BlockTimeout: "50ms",
			MaxRetries:   3,
			RetryBackoff: "5ms",
			Fallback:     config.FallbackStderr,
			DrainTimeout: "1s",
			Breaker:      config.BreakerConfig{Threshold: 4, ResetTimeout: "10s"},
		},
	}
}

// brokenResponseWriter fails every body write, as a vanished client does.
type brokenResponseWriter struct {
	*httptest.ResponseRecorder
}

func (w *brokenResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func decodeLines(s string) []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		var rec map[string]any
		ExpectWithOffset(1, json.Unmarshal([]byte(line), &rec)).To(Succeed(), line)
		records = append(records, rec)
	}
	return records
}

var _ = Describe("newLoggerOptions", func() {
	var out, errOut *bytes.Buffer

	BeforeEach(func() {
		out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	})

	It("should carry service, environment and sink settings", func() {
		opts := newLoggerOptions(testConfig(), out, errOut)

		Expect(opts.Service).To(Equal("backup"))
		Expect(opts.Environment).To(Equal("production"))
		Expect(opts.Level).To(Equal("info"))
		Expect(opts.DrainTimeout).To(Equal(time.Second))
		Expect(opts.Sink.Output).To(BeIdenticalTo(out))
		Expect(opts.Sink.Fallback).To(BeIdenticalTo(errOut))
		Expect(opts.Sink.Synchronous).To(BeTrue())
		Expect(opts.Sink.QueueSize).To(Equal(16))
		Expect(opts.Sink.Overflow).To(Equal(logger.DropOldest))
		Expect(opts.Sink.BlockTimeout).To(Equal(50 * time.Millisecond))
		Expect(opts.Sink.MaxRetries).To(Equal(3))
		Expect(opts.Sink.RetryBackoff).To(Equal(5 * time.Millisecond))
		Expect(opts.Sink.BreakerThreshold).To(Equal(4))
		Expect(opts.Sink.BreakerReset).To(Equal(10 * time.Second))
	})

	It("should map the fallback stream", func() {
		cfg := testConfig()

		cfg.Logging.Fallback = config.FallbackStdout
		Expect(newLoggerOptions(cfg, out, errOut).Sink.Fallback).To(BeIdenticalTo(out))

		cfg.Logging.Fallback = config.FallbackNone
		Expect(newLoggerOptions(cfg, out, errOut).Sink.Fallback).To(Equal(io.Discard))
	})

	It("should disable retries and the breaker when set to zero", func() {
		cfg := testConfig()
		cfg.Logging.MaxRetries = 0
		cfg.Logging.Breaker.Threshold = 0

		opts := newLoggerOptions(cfg, out, errOut)
		Expect(opts.Sink.MaxRetries).To(BeNumerically("<", 0))
		Expect(opts.Sink.BreakerThreshold).To(BeNumerically("<", 0))
	})

	It("should select asynchronous mode", func() {
		cfg := testConfig()
		cfg.Logging.Mode = config.ModeAsync
		Expect(newLoggerOptions(cfg, out, errOut).Sink.Synchronous).To(BeFalse())
	})
})

var _ = Describe("parseFields", func() {
	It("should keep numbers and booleans typed", func() {
		fields, err := parseFields([]string{"rows=1200", "ratio=0.5", "ok=true", "job=nightly", "note=a=b"})
		Expect(err).NotTo(HaveOccurred())
		Expect(fields).To(Equal([]any{
			"rows", int64(1200),
			"ratio", 0.5,
			"ok", true,
			"job", "nightly",
			"note", "a=b",
		}))
	})

	It("should accept an empty value", func() {
		fields, err := parseFields([]string{"empty="})
		Expect(err).NotTo(HaveOccurred())
		Expect(fields).To(Equal([]any{"empty", ""}))
	})

	It("should reject arguments without a key", func() {
		_, err := parseFields([]string{"novalue"})
		Expect(err).To(MatchError(ContainSubstring("expected key=value")))

		_, err = parseFields([]string{"=x"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("emit command", func() {
	BeforeEach(func() {
		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())
		DeferCleanup(os.Chdir, wd)

		for _, key := range []string{"LOG_LEVEL", "SERVICE_NAME", "ENVIRONMENT", "APP_ENV", config.EnvFileVar} {
			if prev, ok := os.LookupEnv(key); ok {
				os.Unsetenv(key)
				DeferCleanup(os.Setenv, key, prev)
			}
		}
	})

	run := func(args ...string) (string, error) {
		var out, errOut bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	It("should write the confirmation and the record", func() {
		out, err := run("emit", "--service", "backup", "--mode", "sync",
			"--level", "warning", "-m", "disk nearly full", "used_pct=91", "mount=/data")
		Expect(err).NotTo(HaveOccurred())

		records := decodeLines(out)
		Expect(records).To(HaveLen(2))
		Expect(records[0]["message"]).To(Equal("Structured JSON logger configured for 'backup'."))

		rec := records[1]
		Expect(rec).To(HaveKeyWithValue("level", "WARNING"))
		Expect(rec).To(HaveKeyWithValue("message", "disk nearly full"))
		Expect(rec).To(HaveKeyWithValue("service", "backup"))
		Expect(rec).To(HaveKeyWithValue("environment", "production"))
		Expect(rec).To(HaveKeyWithValue("used_pct", BeNumerically("==", 91)))
		Expect(rec).To(HaveKeyWithValue("mount", "/data"))
	})

	It("should drain an asynchronous sink before returning", func() {
		out, err := run("emit", "--service", "backup", "--mode", "async", "-m", "done")
		Expect(err).NotTo(HaveOccurred())

		records := decodeLines(out)
		Expect(records).To(HaveLen(2))
		Expect(records[0]["message"]).To(Equal("Asynchronous, structured JSON logger configured for 'backup'."))
		Expect(records[1]).To(HaveKeyWithValue("level", "INFO"))
	})

	It("should respect the minimum level", func() {
		out, err := run("emit", "--service", "backup", "--mode", "sync", "--log-level", "error",
			"--level", "info", "-m", "filtered")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("should reject an unknown record level", func() {
		_, err := run("emit", "--level", "loud", "-m", "x")
		Expect(err).To(MatchError(ContainSubstring("unknown record level")))
	})

	It("should require a message", func() {
		_, err := run("emit")
		Expect(err).To(HaveOccurred())
	})

	It("should fail on invalid configuration", func() {
		_, err := run("emit", "--mode", "batch", "-m", "x")
		Expect(err).To(MatchError(ContainSubstring("load config")))
	})
})

var _ = Describe("setupRouter", func() {
	var (
		cfgr   *logger.Configurator
		out    *bytes.Buffer
		router http.Handler
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		cfgr = logger.NewConfigurator()
		cfgr.Configure(logger.Options{
			Service:     "backup",
			Environment: "development",
			Level:       "debug",
			Sink:        logger.SinkOptions{Output: out, Synchronous: true},
		})
		DeferCleanup(cfgr.Shutdown, context.Background())
		router = setupRouter(cfgr, serviceInfo{Service: "backup", Environment: "development"})
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	It("should describe the active logger", func() {
		rec := get("/")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var info serviceInfo
		Expect(json.Unmarshal(rec.Body.Bytes(), &info)).To(Succeed())
		Expect(info).To(Equal(serviceInfo{
			Service:     "backup",
			Environment: "development",
			Level:       "DEBUG",
			Diagnostics: true,
		}))
	})

	It("should serve the sink counters", func() {
		rec := get("/metrics")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

		var snap metrics.Snapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
		Expect(snap.Written).To(BeNumerically(">=", 1))
		Expect(snap.Breaker).To(Equal("CLOSED"))
	})

	It("should answer the liveness probe", func() {
		rec := get("/healthz")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("ok"))
	})

	It("should log a response body that could not be written", func() {
		for _, path := range []string{"/", "/healthz"} {
			w := &brokenResponseWriter{ResponseRecorder: httptest.NewRecorder()}
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			var failed map[string]any
			for _, rec := range decodeLines(out.String()) {
				if rec["message"] == "Failed to write response" && rec["path"] == path {
					failed = rec
				}
			}
			Expect(failed).NotTo(BeNil(), path)
			Expect(failed).To(HaveKeyWithValue("level", "WARNING"))
			Expect(failed).To(HaveKeyWithValue("error", "connection reset"))
			Expect(failed).To(HaveKey("request_id"))
		}
	})

	It("should return 404 for unknown paths", func() {
		Expect(get("/nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should log every request with a request id", func() {
		rec := get("/healthz")
		id := rec.Header().Get("X-Request-ID")
		Expect(id).NotTo(BeEmpty())

		records := decodeLines(out.String())
		last := records[len(records)-1]
		Expect(last).To(HaveKeyWithValue("message", "request completed"))
		Expect(last).To(HaveKeyWithValue("request_id", id))
		Expect(last).To(HaveKeyWithValue("component", "http"))
		Expect(last).To(HaveKeyWithValue("path", "/healthz"))
	})
})
