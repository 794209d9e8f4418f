// Package dispatch fans one normalized prompt out to every catalog model and
// waits for all of them to settle.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"explorer/internal/gateway/provider"
	"explorer/internal/logger"
	"explorer/internal/models"
	"explorer/internal/types"

	"golang.org/x/sync/errgroup"
)

// Caller performs one model call. Implementations report failure inside the
// outcome rather than returning an error.
type Caller interface {
	Call(ctx context.Context, model types.ModelDescriptor, normalized string, extracted *types.ExtractedContext) types.ModelOutcome
}

// Observer is told about each outcome as soon as it settles, in completion order.
type Observer interface {
	OutcomeSettled(index int, outcome types.ModelOutcome)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(index int, outcome types.ModelOutcome)

func (f ObserverFunc) OutcomeSettled(index int, outcome types.ModelOutcome) { f(index, outcome) }

const panicText = "Failed to generate response"

// Dispatcher runs model calls concurrently with an optional per-call timeout.
type Dispatcher struct {
	Caller         Caller
	TimeoutSeconds int
}

func NewDispatcher(caller Caller) *Dispatcher {
	return &Dispatcher{Caller: caller, TimeoutSeconds: 60}
}

func (d *Dispatcher) SetTimeout(seconds int) {
	d.TimeoutSeconds = seconds
}

// Run returns exactly one outcome per catalog model, in catalog order.
func (d *Dispatcher) Run(ctx context.Context, normalized string, extracted *types.ExtractedContext, catalog models.Lister) []types.ModelOutcome {
	return d.RunObserved(ctx, normalized, extracted, catalog, nil)
}

// RunObserved is Run with a progress observer. The observer may be called from
// several goroutines at once.
func (d *Dispatcher) RunObserved(ctx context.Context, normalized string, extracted *types.ExtractedContext, catalog models.Lister, obs Observer) []types.ModelOutcome {
	if catalog == nil {
		return nil
	}
	list := catalog.ListAll()
	if len(list) == 0 {
		return nil
	}

	results := make([]types.ModelOutcome, len(list))
	eg, egCtx := errgroup.WithContext(ctx)
	start := time.Now()
	for i, model := range list {
		i, model := i, model
		eg.Go(func() error {
			out := d.invokeSafe(egCtx, model, func(c context.Context) types.ModelOutcome {
				return d.callModel(c, model, normalized, extracted)
			})
			results[i] = out
			if obs != nil {
				obs.OutcomeSettled(i, out)
			}
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, o := range results {
		if o.Failed {
			failed++
		}
	}
	logger.Infof("dispatch settled models=%d failed=%d elapsed=%s", len(results), failed, time.Since(start).Truncate(time.Millisecond))
	return results
}

func (d *Dispatcher) callModel(parent context.Context, model types.ModelDescriptor, normalized string, extracted *types.ExtractedContext) types.ModelOutcome {
	cctx := parent
	var cancel context.CancelFunc
	if timeout := d.TimeoutSeconds; timeout > 0 {
		cctx, cancel = context.WithTimeout(parent, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	logger.Debugf("calling model: %s", model.ID)
	return d.Caller.Call(cctx, model, normalized, extracted)
}

func (d *Dispatcher) invokeSafe(ctx context.Context, model types.ModelDescriptor, call func(context.Context) types.ModelOutcome) (out types.ModelOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("model %s call panic: %v", model.ID, r)
			out = provider.FailedOutcome(model, panicText, time.Since(start), fmt.Errorf("panic: %v", r))
		}
	}()
	return call(ctx)
}
