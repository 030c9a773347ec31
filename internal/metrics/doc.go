// Package metrics tracks what happens to log records after they leave the caller.
//
// A Metrics value is shared by every sink a configurator installs, so the
// counters survive reconfiguration. It records:
//   - Records accepted into the queue and records written to the output stream
//   - Records dropped, split by reason (overflow, evicted, timeout, write_error,
//     circuit_open, closed)
//   - Write retries, write errors and notices sent to the fallback stream
//   - Write latency with percentile calculations (P50, P95, P99)
//
// Example usage:
//
//	m := metrics.NewMetrics()
//	m.RecordWrite(120 * time.Microsecond)
//	m.RecordDrop(metrics.DropOverflow)
//
//	snap := m.Snapshot()
//	http.Handle("/metrics", metrics.Handler(func() metrics.Snapshot { return snap }))
//
// All methods are safe for concurrent use; storage is guarded by sync.RWMutex.
package metrics
