// Package prompt flattens a submission into the text every backend receives.
package prompt

import (
	"strings"

	textutil "explorer/internal/pkg/text"
	"explorer/internal/types"
)

const (
	// DefaultExcerptLimit caps how much page body goes into a link prompt.
	DefaultExcerptLimit = 1000

	ImagePlaceholder = "[Image uploaded - OCR processing would be implemented here]"
	DegradedTitle    = "Scraping failed"
)

// Normalizer turns an InputRecord plus optional page context into one prompt.
type Normalizer struct {
	ExcerptLimit int
}

// Normalize uses the default excerpt limit.
func Normalize(input types.InputRecord, extracted *types.ExtractedContext) string {
	return Normalizer{}.Normalize(input, extracted)
}

func (n Normalizer) Normalize(input types.InputRecord, extracted *types.ExtractedContext) string {
	limit := n.ExcerptLimit
	if limit <= 0 {
		limit = DefaultExcerptLimit
	}
	var b strings.Builder
	b.WriteString(input.Content)
	if input.Kind == types.KindLink && extracted != nil {
		b.WriteString("\n\nExtracted Information:\nTitle: ")
		b.WriteString(extracted.Title)
		b.WriteString("\nDescription: ")
		b.WriteString(extracted.Description)
		b.WriteString("\n\nContent Preview: ")
		b.WriteString(textutil.Clip(extracted.BodyExcerpt, limit))
	}
	if input.Kind == types.KindImage {
		b.WriteString("\n\n")
		b.WriteString(ImagePlaceholder)
	}
	if tags := types.NormalizeTags(input.Tags); len(tags) > 0 {
		b.WriteString("\n\nRelevant categories: ")
		b.WriteString(strings.Join(tags, ", "))
	}
	return b.String()
}

// Degraded is the stand-in context used when page extraction produced nothing.
func Degraded(url string) *types.ExtractedContext {
	return &types.ExtractedContext{
		Title:     DegradedTitle,
		SourceURL: strings.TrimSpace(url),
		Failed:    true,
	}
}
