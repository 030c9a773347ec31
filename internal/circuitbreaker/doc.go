// Package circuitbreaker stops a log sink from hammering a broken output stream.
//
// The breaker has three states:
//
//   - CLOSED: Normal operation, writes go to the stream
//   - OPEN: The stream failed repeatedly, writes are skipped
//   - HALF-OPEN: One probe write decides whether to close again
//
// Usage:
//
//	cb := circuitbreaker.NewCircuitBreaker(5, 30*time.Second)
//	if cb.Allow() {
//	    if _, err := out.Write(line); err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
//
// A threshold of zero or less disables the breaker: Allow always reports true.
package circuitbreaker
