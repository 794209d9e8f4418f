package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("kimi", 2, time.Minute)
	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("kimi", 1, time.Second)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one trial while half-open")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("kimi", 1, time.Second)
	cb.now = func() time.Time { return now }
	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerReleaseReadmitsAfterCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("kimi", 1, time.Second)
	cb.now = func() time.Time { return now }
	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	require.True(t, cb.Allow())

	cb.Release()
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.Allow(), "cooldown already elapsed, next trial admitted")
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())

	cb.Release()
	assert.Equal(t, StateClosed, cb.State())
}

func TestSet(t *testing.T) {
	s := NewSet(3, time.Second)
	a := s.Get("a")
	require.NotNil(t, a)
	assert.Same(t, a, s.Get("a"))
	assert.NotSame(t, a, s.Get("b"))
	assert.Len(t, s.States(), 2)

	assert.Nil(t, NewSet(0, time.Second).Get("a"))
	var nilSet *Set
	assert.Nil(t, nilSet.Get("a"))
	assert.Empty(t, nilSet.States())
}
