package circuit

import (
	"sync"
	"time"

	"explorer/internal/logger"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker stops calling a backend after threshold consecutive failures
// and lets a single trial call through once cooldown has elapsed.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	threshold   int
	cooldown    time.Duration
	lastFailure time.Time
	name        string
	now         func() time.Time
}

func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) > cb.cooldown {
			cb.transition(StateHalfOpen)
			return true
		}
		return false
	default:
		// half-open: the trial call is already in flight
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.threshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// Release hands back a half-open trial call that ended without a verdict on the
// backend. The breaker reopens without counting a failure, so the next Allow
// after cooldown admits a fresh trial call.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	logger.Warnf("circuit %s: %s -> %s (failures=%d/%d, cooldown=%s)",
		cb.name, from, to, cb.failures, cb.threshold, cb.cooldown)
}

// Set hands out one breaker per backend id, created lazily.
type Set struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	breakers  map[string]*CircuitBreaker
}

// NewSet returns a Set; threshold <= 0 disables breaking entirely.
func NewSet(threshold int, cooldown time.Duration) *Set {
	return &Set{threshold: threshold, cooldown: cooldown, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for id, or nil when the set is disabled.
func (s *Set) Get(id string) *CircuitBreaker {
	if s == nil || s.threshold <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[id]
	if !ok {
		cb = NewCircuitBreaker(id, s.threshold, s.cooldown)
		s.breakers[id] = cb
	}
	return cb
}

// States reports the current state of every breaker created so far.
func (s *Set) States() map[string]State {
	out := make(map[string]State)
	if s == nil {
		return out
	}
	s.mu.Lock()
	list := make([]*CircuitBreaker, 0, len(s.breakers))
	for _, cb := range s.breakers {
		list = append(list, cb)
	}
	s.mu.Unlock()
	for _, cb := range list {
		out[cb.Name()] = cb.State()
	}
	return out
}
