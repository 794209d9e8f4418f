// Package aggregate folds per-model outcomes into one markdown document.
// Aggregate is pure: the same outcomes always produce the same text.
package aggregate

import (
	"fmt"
	"strings"

	"explorer/internal/types"
)

const (
	NothingToAggregate = "No responses to aggregate."
	NoValidResponses   = "Unable to generate valid responses."

	separator = "\n\n---\n\n"
)

// Aggregate returns a lone successful outcome verbatim. Otherwise it keeps the
// non-failed, non-blank texts in catalog order and wraps them with a heading
// and an attribution line.
func Aggregate(outcomes []types.ModelOutcome) string {
	if len(outcomes) == 0 {
		return NothingToAggregate
	}
	if len(outcomes) == 1 && !outcomes[0].Failed {
		return outcomes[0].Text
	}

	valid := make([]types.ModelOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Failed || strings.TrimSpace(o.Text) == "" {
			continue
		}
		valid = append(valid, o)
	}
	if len(valid) == 0 {
		return NoValidResponses
	}

	texts := make([]string, len(valid))
	names := make([]string, len(valid))
	for i, o := range valid {
		texts[i] = o.Text
		names[i] = o.DisplayName
	}

	var b strings.Builder
	b.WriteString("# Comprehensive Exploration\n\n")
	fmt.Fprintf(&b, "Based on analysis from %d %s, here are the key insights:\n\n", len(valid), modelNoun(len(valid)))
	b.WriteString(strings.Join(texts, separator))
	b.WriteString(separator)
	fmt.Fprintf(&b, "*This response combines insights from multiple AI models: %s*", strings.Join(names, ", "))
	return b.String()
}

func modelNoun(n int) string {
	if n == 1 {
		return "AI model"
	}
	return "AI models"
}
