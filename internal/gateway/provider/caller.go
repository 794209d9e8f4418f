package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"explorer/internal/logger"
	"explorer/internal/pkg/circuit"
	"explorer/internal/prompt"
	"explorer/internal/types"

	"golang.org/x/time/rate"
)

// DefaultMaxTokensCeiling caps max_tokens for every model regardless of its own limit.
const DefaultMaxTokensCeiling = 2000

var ErrCircuitOpen = errors.New("circuit open")

// CallerOptions tunes a Caller. Zero values pick the documented defaults.
type CallerOptions struct {
	MaxTokensCeiling int
	Temperature      float64
	// RatePerSecond <= 0 disables per-model rate limiting.
	RatePerSecond float64
	Burst         int
	Breakers      *circuit.Set
}

// Caller invokes one backend for one prompt and always returns an outcome.
// Every failure becomes a failed outcome; nothing is returned as an error.
type Caller struct {
	client   Completer
	ceiling  int
	temp     float64
	rps      float64
	burst    int
	breakers *circuit.Set

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	now func() time.Time
}

func NewCaller(client Completer, opts CallerOptions) *Caller {
	ceiling := opts.MaxTokensCeiling
	if ceiling <= 0 {
		ceiling = DefaultMaxTokensCeiling
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Caller{
		client:   client,
		ceiling:  ceiling,
		temp:     opts.Temperature,
		rps:      opts.RatePerSecond,
		burst:    burst,
		breakers: opts.Breakers,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// MaxTokens returns the token budget actually requested for model.
func (c *Caller) MaxTokens(model types.ModelDescriptor) int {
	return min(model.MaxTokens, c.ceiling)
}

// Call runs one completion. LatencyMs is measured up to success or failure.
func (c *Caller) Call(ctx context.Context, model types.ModelDescriptor, normalized string, extracted *types.ExtractedContext) (out types.ModelOutcome) {
	start := c.now()
	breaker := c.breakers.Get(model.ID)
	granted, settled := false, false
	defer func() {
		if r := recover(); r != nil {
			out = c.failed(model, start, fmt.Errorf("panic: %v", r))
		}
		if granted && !settled {
			breaker.Release()
		}
	}()

	if breaker != nil {
		if !breaker.Allow() {
			return c.failed(model, start, ErrCircuitOpen)
		}
		granted = true
	}
	if lim := c.limiter(model.ID); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return c.failed(model, start, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	req := ChatRequest{
		Model:       model.ID,
		System:      prompt.SystemPrompt,
		User:        prompt.UserContent(normalized, extracted),
		MaxTokens:   c.MaxTokens(model),
		Temperature: c.temp,
	}
	logger.LogLLMRequest(model.ID, "explore", req.System, req.User, "")
	resp, err := c.client.Complete(ctx, req)
	elapsed := c.now().Sub(start)
	logger.LogLLMResponse(model.ID, "explore", resp.Raw, elapsed, err)
	if err != nil {
		// a missing key says nothing about the backend's health
		if granted && !errors.Is(err, ErrMissingCredential) {
			breaker.RecordFailure()
			settled = true
		}
		return c.failed(model, start, err)
	}
	if granted {
		breaker.RecordSuccess()
		settled = true
	}
	return types.ModelOutcome{
		DisplayName: model.DisplayName,
		ID:          model.ID,
		Text:        resp.Content,
		TokenCount:  resp.TotalTokens,
		LatencyMs:   elapsed.Milliseconds(),
	}
}

func (c *Caller) failed(model types.ModelDescriptor, start time.Time, err error) types.ModelOutcome {
	elapsed := c.now().Sub(start)
	logger.Warnf("model %s call failed elapsed=%s err=%v", model.DisplayName, elapsed.Truncate(time.Millisecond), err)
	return FailedOutcome(model, fmt.Sprintf("Error: Unable to process with %s", model.DisplayName), elapsed, err)
}

// FailedOutcome builds the placeholder outcome for a model that produced nothing.
func FailedOutcome(model types.ModelDescriptor, text string, elapsed time.Duration, err error) types.ModelOutcome {
	if elapsed < 0 {
		elapsed = 0
	}
	o := types.ModelOutcome{
		DisplayName: model.DisplayName,
		ID:          model.ID,
		Text:        text,
		LatencyMs:   elapsed.Milliseconds(),
		Failed:      true,
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

func (c *Caller) limiter(id string) *rate.Limiter {
	if c.rps <= 0 {
		return nil
	}
	c.limMu.Lock()
	defer c.limMu.Unlock()
	lim, ok := c.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.rps), c.burst)
		c.limiters[id] = lim
	}
	return lim
}
