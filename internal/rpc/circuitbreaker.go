package rpc

import (
	"sync"
	"time"
)

// circuitState mirrors the classic closed/open/half-open machine; no
// library in the retrieval pack offers one off the shelf, so this is
// hand-rolled and kept deliberately small (justified in DESIGN.md).
type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// circuitBreaker trips after failureThreshold consecutive failures (a
// success resets the count; failures are not aged out over time) and stays
// open for openDuration before allowing one half-open probe (spec §5).
type circuitBreaker struct {
	mu               sync.Mutex
	state            circuitState
	failures         int
	failureThreshold int
	openDuration     time.Duration
	openedAt         time.Time
}

func newCircuitBreaker(failureThreshold int, openDuration time.Duration) *circuitBreaker {
	return &circuitBreaker{
		state:            stateClosed,
		failureThreshold: failureThreshold,
		openDuration:     openDuration,
	}
}

// allow reports whether a call may proceed, transitioning open->half-open
// once openDuration has elapsed.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) >= b.openDuration {
			b.state = stateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.trip()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.trip()
	}
}

func (b *circuitBreaker) trip() {
	b.state = stateOpen
	b.openedAt = time.Now()
	b.failures = 0
}
