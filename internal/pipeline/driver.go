// Package pipeline sequences normalization, fan-out and aggregation for one
// submission and assembles the result record.
package pipeline

import (
	"context"
	"strings"
	"time"

	"explorer/internal/aggregate"
	"explorer/internal/dispatch"
	"explorer/internal/logger"
	"explorer/internal/models"
	"explorer/internal/prompt"
	"explorer/internal/types"

	"github.com/google/uuid"
)

// Extractor reads page context for link submissions. It never fails; a
// broken page yields a record with Failed set.
type Extractor interface {
	Extract(ctx context.Context, url string) types.ExtractedContext
}

// Driver runs one submission end to end.
type Driver struct {
	Catalog    models.Lister
	Dispatcher *dispatch.Dispatcher
	Normalizer prompt.Normalizer
	Credential func() string
	Extractor  Extractor

	now   func() time.Time
	newID func() string
}

type Option func(*Driver)

func WithCredential(fn func() string) Option {
	return func(d *Driver) { d.Credential = fn }
}

func WithExtractor(x Extractor) Option {
	return func(d *Driver) { d.Extractor = x }
}

func WithExcerptLimit(n int) Option {
	return func(d *Driver) { d.Normalizer.ExcerptLimit = n }
}

func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDriver(catalog models.Lister, dispatcher *dispatch.Dispatcher, opts ...Option) *Driver {
	d := &Driver{
		Catalog:    catalog,
		Dispatcher: dispatcher,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// WithCatalog returns a copy of d that fans out over catalog instead.
func (d *Driver) WithCatalog(catalog models.Lister) *Driver {
	cp := *d
	cp.Catalog = catalog
	return &cp
}

// Process runs the submission and returns the assembled result.
func (d *Driver) Process(ctx context.Context, input types.InputRecord, extracted *types.ExtractedContext) (types.AggregateResult, error) {
	return d.ProcessObserved(ctx, input, extracted, nil)
}

// ProcessObserved is Process with per-slot progress reporting.
func (d *Driver) ProcessObserved(ctx context.Context, input types.InputRecord, extracted *types.ExtractedContext, obs dispatch.Observer) (types.AggregateResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	input, err := Validate(input)
	if err != nil {
		return types.AggregateResult{}, err
	}
	if d.Credential != nil && strings.TrimSpace(d.Credential()) == "" {
		return types.AggregateResult{}, &Error{Kind: ErrMissingCredential}
	}
	start := d.now()
	if input.Kind == types.KindLink && extracted == nil && d.Extractor != nil {
		info := d.Extractor.Extract(ctx, strings.TrimSpace(input.Content))
		extracted = &info
	}
	if input.SubmittedAt.IsZero() {
		input.SubmittedAt = start
	}
	normalized := d.Normalizer.Normalize(input, extracted)
	outcomes := d.Dispatcher.RunObserved(ctx, normalized, extracted, d.Catalog, obs)
	combined := aggregate.Aggregate(outcomes)
	end := d.now()

	res := types.AggregateResult{
		ID:             d.newID(),
		InputEcho:      input,
		Context:        extracted,
		Outcomes:       outcomes,
		CombinedText:   combined,
		TotalLatencyMs: end.Sub(start).Milliseconds(),
		ProducedAt:     end,
	}
	logger.Infof("run %s kind=%s models=%d contributors=%d elapsed=%dms", res.ID, input.Kind, len(outcomes), res.Contributors(), res.TotalLatencyMs)
	return res, nil
}

// Validate checks and canonicalizes a submission.
func Validate(input types.InputRecord) (types.InputRecord, error) {
	kind, err := types.ParseInputKind(string(input.Kind))
	if err != nil {
		return input, &Error{Kind: ErrInvalidInput, Err: err}
	}
	input.Kind = kind
	input.Tags = types.NormalizeTags(input.Tags)
	blank := strings.TrimSpace(input.Content) == ""
	switch kind {
	case types.KindText, types.KindLink:
		if blank {
			return input, invalid("content is required")
		}
	case types.KindImage:
		if blank && !input.HasImage {
			return input, invalid("image submission needs content or an image")
		}
	}
	return input, nil
}
