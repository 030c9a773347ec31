package metrics

import (
	"sort"
	"sync"
	"time"
)

// DropReason says why a record never reached the output stream.
type DropReason string

const (
	DropOverflow    DropReason = "overflow"
	DropEvicted     DropReason = "evicted"
	DropTimeout     DropReason = "timeout"
	DropWriteError  DropReason = "write_error"
	DropCircuitOpen DropReason = "circuit_open"
	DropClosed      DropReason = "closed"
	DropPanic       DropReason = "panic"
)

const maxLatencySamples = 1000

type Metrics struct {
	mutex          sync.RWMutex
	enqueued       int64
	written        int64
	retries        int64
	writeErrors    int64
	fallbackWrites int64
	flushes        int64
	dropped        map[DropReason]int64
	writeLatency   []time.Duration
	startTime      time.Time
}

type Snapshot struct {
	Uptime          time.Duration        `json:"uptime"`
	Enqueued        int64                `json:"enqueued"`
	Written         int64                `json:"written"`
	Dropped         int64                `json:"dropped"`
	DroppedByReason map[DropReason]int64 `json:"dropped_by_reason"`
	Retries         int64                `json:"retries"`
	WriteErrors     int64                `json:"write_errors"`
	FallbackWrites  int64                `json:"fallback_writes"`
	Flushes         int64                `json:"flushes"`
	AvgWrite        time.Duration        `json:"avg_write"`
	P50Write        time.Duration        `json:"p50_write"`
	P95Write        time.Duration        `json:"p95_write"`
	P99Write        time.Duration        `json:"p99_write"`

	// Filled in by the sink that owns the queue.
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Breaker       string `json:"breaker,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		dropped:   make(map[DropReason]int64),
		startTime: time.Now(),
	}
}

func (m *Metrics) IncrementEnqueued() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.enqueued++
}

// RecordWrite counts one record written to the output stream and keeps its
// latency, bounded to the most recent samples.
func (m *Metrics) RecordWrite(duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.written++
	m.writeLatency = append(m.writeLatency, duration)

	if len(m.writeLatency) > maxLatencySamples {
		m.writeLatency = m.writeLatency[1:]
	}
}

func (m *Metrics) RecordDrop(reason DropReason) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.dropped[reason]++
}

func (m *Metrics) IncrementRetries() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.retries++
}

func (m *Metrics) IncrementWriteErrors() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.writeErrors++
}

func (m *Metrics) IncrementFallbackWrites() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fallbackWrites++
}

func (m *Metrics) IncrementFlushes() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.flushes++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:          time.Since(m.startTime),
		Enqueued:        m.enqueued,
		Written:         m.written,
		DroppedByReason: make(map[DropReason]int64, len(m.dropped)),
		Retries:         m.retries,
		WriteErrors:     m.writeErrors,
		FallbackWrites:  m.fallbackWrites,
		Flushes:         m.flushes,
	}

	for reason, count := range m.dropped {
		snap.DroppedByReason[reason] = count
		snap.Dropped += count
	}

	if len(m.writeLatency) > 0 {
		sorted := make([]time.Duration, len(m.writeLatency))
		copy(sorted, m.writeLatency)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.AvgWrite = average(sorted)
		snap.P50Write = percentile(sorted, 0.50)
		snap.P95Write = percentile(sorted, 0.95)
		snap.P99Write = percentile(sorted, 0.99)
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
