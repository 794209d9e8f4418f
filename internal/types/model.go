package types

import "time"

// ModelDescriptor 描述目录中的一个后端模型。
type ModelDescriptor struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"name" yaml:"name"`
	MaxTokens   int    `json:"maxTokens" yaml:"max_tokens"`
}

// ModelOutcome 是单个模型在一次请求中的结果槽位。
type ModelOutcome struct {
	DisplayName string `json:"modelName"`
	ID          string `json:"modelId"`
	Text        string `json:"response"`
	TokenCount  int    `json:"tokens"`
	LatencyMs   int64  `json:"processingTime"`
	Failed      bool   `json:"failed"`
	Error       string `json:"error,omitempty"`
}

// AggregateResult 是一次完整流水线的输出。
type AggregateResult struct {
	ID             string            `json:"id"`
	InputEcho      InputRecord       `json:"originalInput"`
	Context        *ExtractedContext `json:"extractedInfo,omitempty"`
	Outcomes       []ModelOutcome    `json:"individualResponses"`
	CombinedText   string            `json:"aggregatedResponse"`
	TotalLatencyMs int64             `json:"processingTime"`
	ProducedAt     time.Time         `json:"timestamp"`
}

// Contributors returns how many outcomes carry usable text.
func (r AggregateResult) Contributors() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Failed {
			n++
		}
	}
	return n
}
