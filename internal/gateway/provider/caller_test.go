package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"explorer/internal/pkg/circuit"
	"explorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ChatResponse), args.Error(1)
}

var kimi = types.ModelDescriptor{ID: "moonshotai/kimi-k2:free", DisplayName: "Kimi K2", MaxTokens: 4000}

// steppingClock advances by step on every read so elapsed time is deterministic.
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Unix(0, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func TestCallerSuccess(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.MatchedBy(func(req ChatRequest) bool {
		return req.Model == kimi.ID && req.MaxTokens == 2000 && req.User == "What is entropy?" && req.Temperature == 0.7
	})).Return(ChatResponse{Content: "Entropy measures disorder.", TotalTokens: 5}, nil)

	c := NewCaller(m, CallerOptions{Temperature: 0.7})
	c.now = steppingClock(10 * time.Millisecond)
	out := c.Call(context.Background(), kimi, "What is entropy?", nil)

	assert.False(t, out.Failed)
	assert.Equal(t, "Entropy measures disorder.", out.Text)
	assert.Equal(t, 5, out.TokenCount)
	assert.Equal(t, "Kimi K2", out.DisplayName)
	assert.Equal(t, int64(10), out.LatencyMs)
	m.AssertExpectations(t)
}

func TestCallerMaxTokensCap(t *testing.T) {
	c := NewCaller(new(MockCompleter), CallerOptions{MaxTokensCeiling: 3000})
	assert.Equal(t, 3000, c.MaxTokens(kimi))
	assert.Equal(t, 100, c.MaxTokens(types.ModelDescriptor{MaxTokens: 100}))
	assert.Equal(t, 2000, NewCaller(nil, CallerOptions{}).MaxTokens(kimi))
}

func TestCallerWrapsContext(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.MatchedBy(func(req ChatRequest) bool {
		return req.User == "Context: page body\n\nInspiration: prompt"
	})).Return(ChatResponse{Content: "ok"}, nil)
	c := NewCaller(m, CallerOptions{})
	out := c.Call(context.Background(), kimi, "prompt", &types.ExtractedContext{BodyExcerpt: "page body"})
	assert.False(t, out.Failed)
	m.AssertExpectations(t)
}

func TestCallerFailureKeepsElapsed(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.Anything).Return(ChatResponse{}, context.DeadlineExceeded)
	c := NewCaller(m, CallerOptions{})
	c.now = steppingClock(25 * time.Millisecond)

	out := c.Call(context.Background(), kimi, "p", nil)
	assert.True(t, out.Failed)
	assert.Zero(t, out.TokenCount)
	assert.Equal(t, "Error: Unable to process with Kimi K2", out.Text)
	assert.Positive(t, out.LatencyMs)
	assert.Contains(t, out.Error, "deadline")
}

func TestCallerRecoversPanic(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })
	c := NewCaller(m, CallerOptions{})
	var out types.ModelOutcome
	require.NotPanics(t, func() { out = c.Call(context.Background(), kimi, "p", nil) })
	assert.True(t, out.Failed)
	assert.Contains(t, out.Error, "boom")
}

func TestCallerCircuitBreaker(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.Anything).Return(ChatResponse{}, errors.New("down")).Once()
	c := NewCaller(m, CallerOptions{Breakers: circuit.NewSet(1, time.Hour)})

	first := c.Call(context.Background(), kimi, "p", nil)
	assert.True(t, first.Failed)
	second := c.Call(context.Background(), kimi, "p", nil)
	assert.True(t, second.Failed)
	assert.Equal(t, ErrCircuitOpen.Error(), second.Error)
	m.AssertNumberOfCalls(t, "Complete", 1)
}

func TestCallerMissingCredentialDoesNotTripBreaker(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.Anything).Return(ChatResponse{}, ErrMissingCredential)
	set := circuit.NewSet(1, time.Hour)
	c := NewCaller(m, CallerOptions{Breakers: set})
	c.Call(context.Background(), kimi, "p", nil)
	assert.Equal(t, circuit.StateClosed, set.Get(kimi.ID).State())
}

func TestCallerAbortedHalfOpenTrialRecovers(t *testing.T) {
	cases := []struct {
		name  string
		abort func(c *Caller, m *MockCompleter) types.ModelOutcome
	}{
		{
			name: "rate limit wait cancelled",
			abort: func(c *Caller, _ *MockCompleter) types.ModelOutcome {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return c.Call(ctx, kimi, "p", nil)
			},
		},
		{
			name: "missing credential",
			abort: func(c *Caller, m *MockCompleter) types.ModelOutcome {
				m.On("Complete", mock.Anything, mock.Anything).Return(ChatResponse{}, ErrMissingCredential).Once()
				return c.Call(context.Background(), kimi, "p", nil)
			},
		},
		{
			name: "panic",
			abort: func(c *Caller, m *MockCompleter) types.ModelOutcome {
				m.On("Complete", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") }).Once()
				return c.Call(context.Background(), kimi, "p", nil)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := new(MockCompleter)
			set := circuit.NewSet(1, time.Millisecond)
			c := NewCaller(m, CallerOptions{Breakers: set, RatePerSecond: 1000, Burst: 1})

			m.On("Complete", mock.Anything, mock.Anything).Return(ChatResponse{}, errors.New("down")).Once()
			require.True(t, c.Call(context.Background(), kimi, "p", nil).Failed)
			require.Equal(t, circuit.StateOpen, set.Get(kimi.ID).State())
			time.Sleep(5 * time.Millisecond)

			aborted := tc.abort(c, m)
			assert.True(t, aborted.Failed)
			assert.NotEqual(t, ErrCircuitOpen.Error(), aborted.Error)
			assert.NotEqual(t, circuit.StateHalfOpen, set.Get(kimi.ID).State())

			time.Sleep(5 * time.Millisecond)
			m.On("Complete", mock.Anything, mock.Anything).Return(ChatResponse{Content: "ok"}, nil)
			for i := 0; i < 3; i++ {
				out := c.Call(context.Background(), kimi, "p", nil)
				assert.False(t, out.Failed, "call %d: %s", i, out.Error)
			}
			assert.Equal(t, circuit.StateClosed, set.Get(kimi.ID).State())
		})
	}
}

func TestCallerRateLimitCancelled(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.Anything).Return(ChatResponse{Content: "ok"}, nil)
	c := NewCaller(m, CallerOptions{RatePerSecond: 0.001, Burst: 1})

	ok := c.Call(context.Background(), kimi, "p", nil)
	require.False(t, ok.Failed)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	limited := c.Call(ctx, kimi, "p", nil)
	assert.True(t, limited.Failed)
	assert.Contains(t, limited.Error, "rate limit")
	m.AssertNumberOfCalls(t, "Complete", 1)
}

func TestCallerLimitersArePerModel(t *testing.T) {
	c := NewCaller(nil, CallerOptions{RatePerSecond: 1})
	assert.Same(t, c.limiter("a"), c.limiter("a"))
	assert.NotSame(t, c.limiter("a"), c.limiter("b"))
	assert.Nil(t, NewCaller(nil, CallerOptions{}).limiter("a"))
}
