package prompt

import (
	"strings"
	"testing"

	"explorer/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	in := types.InputRecord{Kind: types.KindText, Content: "What is entropy?"}
	assert.Equal(t, "What is entropy?", Normalize(in, nil))
}

func TestNormalizeTags(t *testing.T) {
	in := types.InputRecord{Kind: types.KindText, Content: "idea", Tags: []string{"physics", " art ", "physics", ""}}
	assert.Equal(t, "idea\n\nRelevant categories: physics, art", Normalize(in, nil))
}

func TestNormalizeLinkWithContext(t *testing.T) {
	in := types.InputRecord{Kind: types.KindLink, Content: "https://x.test"}
	ctx := &types.ExtractedContext{
		Title:       "Page",
		Description: "About things",
		BodyExcerpt: strings.Repeat("a", 1500),
		SourceURL:   "https://x.test",
	}
	got := Normalize(in, ctx)
	want := "https://x.test\n\nExtracted Information:\nTitle: Page\nDescription: About things\n\nContent Preview: " + strings.Repeat("a", 1000)
	assert.Equal(t, want, got)
}

func TestNormalizeExcerptLimit(t *testing.T) {
	in := types.InputRecord{Kind: types.KindLink, Content: "u"}
	got := Normalizer{ExcerptLimit: 3}.Normalize(in, &types.ExtractedContext{BodyExcerpt: "abcdef"})
	assert.True(t, strings.HasSuffix(got, "Content Preview: abc"))
}

func TestNormalizeLinkWithoutContext(t *testing.T) {
	in := types.InputRecord{Kind: types.KindLink, Content: "https://x.test", Tags: []string{"web"}}
	assert.NotPanics(t, func() {
		assert.Equal(t, "https://x.test\n\nRelevant categories: web", Normalize(in, nil))
	})
}

func TestNormalizeLinkDegraded(t *testing.T) {
	in := types.InputRecord{Kind: types.KindLink, Content: "https://x.test"}
	got := Normalize(in, Degraded("https://x.test"))
	assert.Contains(t, got, "https://x.test")
	assert.Contains(t, got, "Title: Scraping failed")
}

func TestNormalizeImage(t *testing.T) {
	in := types.InputRecord{Kind: types.KindImage, Content: "sunset", HasImage: true, Tags: []string{"photo"}}
	assert.Equal(t, "sunset\n\n"+ImagePlaceholder+"\n\nRelevant categories: photo", Normalize(in, nil))
}

func TestNormalizeContextIgnoredForText(t *testing.T) {
	in := types.InputRecord{Kind: types.KindText, Content: "plain"}
	assert.Equal(t, "plain", Normalize(in, &types.ExtractedContext{Title: "T"}))
}

func TestUserContent(t *testing.T) {
	assert.Equal(t, "p", UserContent("p", nil))
	assert.Equal(t, "p", UserContent("p", &types.ExtractedContext{Title: "T"}))
	assert.Equal(t, "Context: body\n\nInspiration: p", UserContent("p", &types.ExtractedContext{BodyExcerpt: " body "}))
}
