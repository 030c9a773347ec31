// Loadtest drives the logger from many goroutines and reports how the sink
// coped: throughput, per-call latency percentiles and the dropped counters.
//
// Usage:
//
//	go run ./scripts/loadtest -producers 50 -records 2000
//	go run ./scripts/loadtest -producers 50 -records 2000 -overflow drop_oldest -queue 256 -write-delay 50us
//	go run ./scripts/loadtest -mode sync -out summary.json
//
// Records go to a writer that can be slowed down with -write-delay, so queue
// overflow can be provoked without a real slow stream.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/angeloszaimis/jsonlog/internal/metrics"
	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

type slowWriter struct {
	delay time.Duration
	out   io.Writer
}

func (w slowWriter) Write(p []byte) (int, error) {
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	return w.out.Write(p)
}

type summary struct {
	Producers  int              `json:"producers"`
	Records    int              `json:"records_per_producer"`
	Mode       string           `json:"mode"`
	Overflow   string           `json:"overflow"`
	Elapsed    time.Duration    `json:"elapsed"`
	PerSecond  float64          `json:"records_per_second"`
	CallP50    time.Duration    `json:"call_p50"`
	CallP99    time.Duration    `json:"call_p99"`
	CallMax    time.Duration    `json:"call_max"`
	Sink       metrics.Snapshot `json:"sink"`
	FlushError string           `json:"flush_error,omitempty"`
}

func main() {
	var (
		producers  = flag.Int("producers", 20, "Number of concurrent producers")
		records    = flag.Int("records", 1000, "Records per producer")
		mode       = flag.String("mode", "async", "Sink mode: async or sync")
		overflow   = flag.String("overflow", string(logger.DropNewest), "Overflow policy: drop_newest, drop_oldest or block")
		queue      = flag.Int("queue", logger.DefaultQueueSize, "Queue size")
		writeDelay = flag.Duration("write-delay", 0, "Delay added to every write")
		echo       = flag.Bool("echo", false, "Write records to stdout instead of discarding them")
	)
	outJSON := flag.String("out", "", "Write JSON summary to this file (optional)")
	flag.Parse()

	var dest io.Writer = io.Discard
	if *echo {
		dest = os.Stdout
	}

	cfgr := logger.NewConfigurator()
	log := cfgr.Configure(logger.Options{
		Service:     "loadtest",
		Environment: logger.EnvProduction,
		Level:       "info",
		Sink: logger.SinkOptions{
			Output:      slowWriter{delay: *writeDelay, out: dest},
			Synchronous: *mode == "sync",
			QueueSize:   *queue,
			Overflow:    logger.OverflowPolicy(*overflow),
		},
	})

	latencies := make([][]time.Duration, *producers)
	var wg sync.WaitGroup
	start := time.Now()

	for p := 0; p < *producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			plog := log.Bind("producer", p)
			lat := make([]time.Duration, 0, *records)
			for i := 0; i < *records; i++ {
				t := time.Now()
				plog.Info("load test record", "seq", i, "payload", "abcdefghijklmnopqrstuvwxyz")
				lat = append(lat, time.Since(t))
			}
			latencies[p] = lat
		}(p)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	flushErr := cfgr.Flush(ctx)
	elapsed := time.Since(start)

	var all []time.Duration
	for _, lat := range latencies {
		all = append(all, lat...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	sum := summary{
		Producers: *producers,
		Records:   *records,
		Mode:      *mode,
		Overflow:  *overflow,
		Elapsed:   elapsed,
		PerSecond: float64(len(all)) / elapsed.Seconds(),
		CallP50:   percentile(all, 0.50),
		CallP99:   percentile(all, 0.99),
		Sink:      cfgr.Stats(),
	}
	if len(all) > 0 {
		sum.CallMax = all[len(all)-1]
	}
	if flushErr != nil {
		sum.FlushError = flushErr.Error()
	}

	if err := cfgr.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}

	fmt.Fprintln(os.Stderr, "--- Load Test Summary ---")
	fmt.Fprintf(os.Stderr, "Records:       %d x %d\n", sum.Producers, sum.Records)
	fmt.Fprintf(os.Stderr, "Elapsed:       %s (%.0f records/s)\n", sum.Elapsed, sum.PerSecond)
	fmt.Fprintf(os.Stderr, "Call p50/p99:  %s / %s (max %s)\n", sum.CallP50, sum.CallP99, sum.CallMax)
	fmt.Fprintf(os.Stderr, "Written:       %d\n", sum.Sink.Written)
	fmt.Fprintf(os.Stderr, "Dropped:       %d %v\n", sum.Sink.Dropped, sum.Sink.DroppedByReason)

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create summary:", err)
			os.Exit(1)
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			fmt.Fprintln(os.Stderr, "write summary:", err)
			os.Exit(1)
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
