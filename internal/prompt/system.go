package prompt

import (
	"strings"

	"explorer/internal/types"
)

// SystemPrompt is sent as the first message of every backend conversation.
const SystemPrompt = "You are an intelligent assistant that helps explore and expand on inspirations, ideas, and concepts. " +
	"Provide thoughtful, comprehensive responses that offer new perspectives and actionable insights. " +
	"Format your response in markdown."

// UserContent builds the user message. Page body, when there is one, is sent
// ahead of the normalized prompt.
func UserContent(normalized string, extracted *types.ExtractedContext) string {
	body := ""
	if extracted != nil {
		body = strings.TrimSpace(extracted.BodyExcerpt)
	}
	if body == "" {
		return normalized
	}
	return "Context: " + body + "\n\nInspiration: " + normalized
}
