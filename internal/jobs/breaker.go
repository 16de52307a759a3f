// Package jobs implements the durable job queue and worker (§4.I): three
// asynq task types drive the fund and bank ingest pipelines through the
// batch state machine, and a circuit breaker adapted from the teacher's
// liquidity client guards the aggregate refresh after a write so a flaky
// downstream fails fast.
package jobs

import (
	"fmt"
	"sync/atomic"
	"time"
)

// CircuitState mirrors the teacher's three-state breaker.
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Call when the breaker is tripped.
var ErrCircuitOpen = fmt.Errorf("jobs: circuit breaker is open")

// CircuitBreaker wraps a downstream dependency (in this repository, the
// aggregate refresher) so repeated failures fail fast instead of exhausting a job's
// retry budget one attempt at a time.
type CircuitBreaker struct {
	name              string
	maxFailures       int32
	resetTimeout      time.Duration
	halfOpenSuccess   int32
	state             int32
	failures          int32
	lastFailureTime   int64
	halfOpenSuccesses int32
}

func NewCircuitBreaker(name string, maxFailures int32, resetTimeout time.Duration, halfOpenSuccess int32) *CircuitBreaker {
	return &CircuitBreaker{name: name, maxFailures: maxFailures, resetTimeout: resetTimeout, halfOpenSuccess: halfOpenSuccess}
}

// Call executes fn under breaker protection, returning ErrCircuitOpen
// without invoking fn if the breaker is tripped.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) canExecute() bool {
	switch CircuitState(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		return true
	case StateOpen:
		lastFailure := atomic.LoadInt64(&cb.lastFailureTime)
		if time.Since(time.Unix(0, lastFailure)) > cb.resetTimeout {
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
				atomic.StoreInt32(&cb.halfOpenSuccesses, 0)
			}
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	state := CircuitState(atomic.LoadInt32(&cb.state))
	failures := atomic.AddInt32(&cb.failures, 1)
	atomic.StoreInt64(&cb.lastFailureTime, time.Now().UnixNano())

	switch state {
	case StateClosed:
		if failures >= cb.maxFailures {
			atomic.CompareAndSwapInt32(&cb.state, int32(StateClosed), int32(StateOpen))
		}
	case StateHalfOpen:
		if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateOpen)) {
			atomic.StoreInt32(&cb.failures, 0)
		}
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch CircuitState(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		atomic.StoreInt32(&cb.failures, 0)
	case StateHalfOpen:
		successes := atomic.AddInt32(&cb.halfOpenSuccesses, 1)
		if successes >= cb.halfOpenSuccess {
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateClosed)) {
				atomic.StoreInt32(&cb.failures, 0)
				atomic.StoreInt32(&cb.halfOpenSuccesses, 0)
			}
		}
	}
}

func (cb *CircuitBreaker) State() CircuitState { return CircuitState(atomic.LoadInt32(&cb.state)) }
