package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/angeloszaimis/jsonlog/internal/metrics"
)

var _ = Describe("handler delivery across reconfiguration", func() {
	var (
		cfgr          *Configurator
		first, second bytes.Buffer
		stale         *installation
	)

	syncOptions := func(service string, out io.Writer) Options {
		return Options{
			Service: service,
			Level:   "info",
			Sink:    SinkOptions{Output: out, Fallback: io.Discard, Synchronous: true},
		}
	}

	record := func(msg string) slog.Record {
		return slog.NewRecord(time.Now(), LevelInfo, msg, 0)
	}

	BeforeEach(func() {
		first.Reset()
		second.Reset()
		cfgr = NewConfigurator()
		cfgr.Configure(syncOptions("old", &first))
		stale = cfgr.current.Load()
		cfgr.Configure(syncOptions("new", &second))
		DeferCleanup(cfgr.Shutdown, context.Background())
	})

	It("should write a record that found the old sink closed to the new one", func() {
		h := cfgr.root.Handler().(*handler)
		h.deliver(stale, record("in flight"))

		gomega.Expect(first.String()).NotTo(gomega.ContainSubstring("in flight"))

		var line string
		for _, l := range strings.Split(second.String(), "\n") {
			if strings.Contains(l, `"message":"in flight"`) {
				line = l
			}
		}
		gomega.Expect(line).To(gomega.ContainSubstring(`"service":"new"`))
		gomega.Expect(cfgr.Stats().DroppedByReason).NotTo(gomega.HaveKey(metrics.DropClosed))
	})

	It("should count the record as closed when nothing replaced the sink", func() {
		current := cfgr.current.Load()
		gomega.Expect(cfgr.Shutdown(context.Background())).To(gomega.Succeed())

		h := cfgr.root.Handler().(*handler)
		h.deliver(current, record("too late"))

		gomega.Expect(second.String()).NotTo(gomega.ContainSubstring("too late"))
		gomega.Expect(cfgr.Stats().DroppedByReason[metrics.DropClosed]).To(gomega.Equal(int64(1)))
	})
})
