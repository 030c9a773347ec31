package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/angeloszaimis/jsonlog/internal/circuitbreaker"
	"github.com/angeloszaimis/jsonlog/internal/metrics"
)

// OverflowPolicy decides what happens when the queue is full.
type OverflowPolicy string

const (
	// DropNewest discards the record being logged.
	DropNewest OverflowPolicy = "drop_newest"
	// DropOldest evicts the oldest queued record to make room.
	DropOldest OverflowPolicy = "drop_oldest"
	// Block waits up to BlockTimeout for room, then discards the record.
	Block OverflowPolicy = "block"
)

const (
	DefaultQueueSize        = 10000
	DefaultBlockTimeout     = 100 * time.Millisecond
	DefaultMaxRetries       = 2
	DefaultRetryBackoff     = 10 * time.Millisecond
	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 30 * time.Second
)

// SinkOptions describes where and how encoded records are written.
// Zero values select the defaults above, stdout and stderr.
type SinkOptions struct {
	Output   io.Writer
	Fallback io.Writer

	// Synchronous writes on the calling goroutine instead of the worker.
	Synchronous bool

	QueueSize    int
	Overflow     OverflowPolicy
	BlockTimeout time.Duration

	// MaxRetries bounds the extra attempts after a failed write. Negative
	// disables retrying.
	MaxRetries   int
	RetryBackoff time.Duration

	// BreakerThreshold consecutive failed records open the breaker; negative
	// disables it.
	BreakerThreshold int
	BreakerReset     time.Duration

	// Metrics is shared across sinks when set.
	Metrics *metrics.Metrics
}

func (o SinkOptions) withDefaults() SinkOptions {
	if o.Output == nil {
		o.Output = os.Stdout
	}
	if o.Fallback == nil {
		o.Fallback = os.Stderr
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	switch o.Overflow {
	case DropNewest, DropOldest, Block:
	default:
		o.Overflow = DropNewest
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = DefaultBlockTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.BreakerThreshold == 0 {
		o.BreakerThreshold = DefaultBreakerThreshold
	}
	if o.BreakerReset <= 0 {
		o.BreakerReset = DefaultBreakerReset
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewMetrics()
	}
	return o
}

// Sink owns the output stream. In asynchronous mode callers only enqueue;
// a single worker goroutine performs every write in FIFO order.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Sink struct {
	opts    SinkOptions
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics

	queue    chan []byte
	flushReq chan chan struct{}
	done     chan struct{}

	// mu guards closed and keeps sends off a closed queue.
	mu     sync.RWMutex
	closed bool

	// writeMu serializes writes in synchronous mode.
	writeMu sync.Mutex
}

// NewSink creates a sink and, unless synchronous, starts its worker.
func NewSink(opts SinkOptions) *Sink {
	opts = opts.withDefaults()

	s := &Sink{
		opts:     opts,
		breaker:  circuitbreaker.NewCircuitBreaker(opts.BreakerThreshold, opts.BreakerReset),
		metrics:  opts.Metrics,
		flushReq: make(chan chan struct{}),
		done:     make(chan struct{}),
	}

	if opts.Synchronous {
		close(s.done)
		return s
	}

	s.queue = make(chan []byte, opts.QueueSize)
	go s.run()

	return s
}

// Synchronous reports whether records are written on the calling goroutine.
func (s *Sink) Synchronous() bool {
	return s.opts.Synchronous
}

// Enqueue hands one encoded line to the sink. It never returns an error and
// never waits on the output stream; records that cannot be accepted are
// counted as dropped.
func (s *Sink) Enqueue(line []byte) {
	if !s.offer(line) {
		s.metrics.RecordDrop(metrics.DropClosed)
	}
}

// offer is Enqueue without the closed accounting. It reports false only when
// the sink is closed, leaving the caller free to try another sink.
func (s *Sink) offer(line []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	if s.opts.Synchronous {
		s.metrics.IncrementEnqueued()
		s.writeSync(line)
		return true
	}

	select {
	case s.queue <- line:
		s.metrics.IncrementEnqueued()
		return true
	default:
	}

	switch s.opts.Overflow {
	case DropOldest:
		s.evictAndEnqueue(line)
	case Block:
		timer := time.NewTimer(s.opts.BlockTimeout)
		defer timer.Stop()
		select {
		case s.queue <- line:
			s.metrics.IncrementEnqueued()
		case <-timer.C:
			s.metrics.RecordDrop(metrics.DropTimeout)
		}
	default:
		s.metrics.RecordDrop(metrics.DropOverflow)
	}
	return true
}

func (s *Sink) writeSync(line []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.write(line)
}

func (s *Sink) evictAndEnqueue(line []byte) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		select {
		case <-s.queue:
			s.metrics.RecordDrop(metrics.DropEvicted)
		default:
		}

		select {
		case s.queue <- line:
			s.metrics.IncrementEnqueued()
			return
		default:
		}
	}
	s.metrics.RecordDrop(metrics.DropOverflow)
}

func (s *Sink) run() {
	defer close(s.done)

	for {
		select {
		case line, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(line)
		case ack := <-s.flushReq:
			s.drainPending()
			close(ack)
		}
	}
}

// drainPending writes what is queued right now. Records enqueued after the
// flush request may be included; none from before it are left behind.
func (s *Sink) drainPending() {
	pending := len(s.queue)
	for i := 0; i < pending; i++ {
		select {
		case line, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(line)
		default:
			return
		}
	}
}

// Flush blocks until every record enqueued before the call has been written
// or dropped, or ctx is done.
func (s *Sink) Flush(ctx context.Context) error {
	s.metrics.IncrementFlushes()

	if s.opts.Synchronous {
		return nil
	}

	ack := make(chan struct{})
	select {
	case s.flushReq <- ack:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting records, waits for the worker to write everything
// still queued and stops it. Closing twice is a no-op.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		if s.queue != nil {
			close(s.queue)
		}
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain log queue: %w", ctx.Err())
	}
}

// Stats returns the sink's counters together with its queue and breaker state.
func (s *Sink) Stats() metrics.Snapshot {
	snap := s.metrics.Snapshot()
	snap.QueueDepth = len(s.queue)
	snap.QueueCapacity = cap(s.queue)
	snap.Breaker = s.breaker.State().String()
	return snap
}

// write is only ever called by the worker, or under writeMu in synchronous
// mode.
func (s *Sink) write(line []byte) {
	if !s.breaker.Allow() {
		s.metrics.RecordDrop(metrics.DropCircuitOpen)
		return
	}

	start := time.Now()
	remaining := line
	var err error

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.IncrementRetries()
			time.Sleep(s.opts.RetryBackoff)
		}

		var n int
		n, err = s.opts.Output.Write(remaining)
		remaining = remaining[n:]
		if err == nil && len(remaining) == 0 {
			s.breaker.RecordSuccess()
			s.metrics.RecordWrite(time.Since(start))
			return
		}
		if err == nil {
			err = io.ErrShortWrite
		}
	}

	opened := s.breaker.RecordFailure()
	s.metrics.IncrementWriteErrors()
	s.metrics.RecordDrop(metrics.DropWriteError)
	s.reportFallback(err)
	if opened {
		s.reportBreakerOpen()
	}
}

func (s *Sink) reportFallback(err error) {
	s.notify("jsonlog: dropped log record after %d attempts: %v\n", s.opts.MaxRetries+1, err)
}

// reportBreakerOpen marks the start of an outage. Records skipped while the
// breaker stays open are only counted.
func (s *Sink) reportBreakerOpen() {
	s.notify("jsonlog: output stream failing, dropping log records for %s\n", s.opts.BreakerReset)
}

func (s *Sink) notify(format string, args ...any) {
	if s.opts.Fallback == nil || s.opts.Fallback == io.Discard {
		return
	}
	if _, err := fmt.Fprintf(s.opts.Fallback, format, args...); err == nil {
		s.metrics.IncrementFallbackWrites()
	}
}
