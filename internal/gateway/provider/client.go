package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"explorer/internal/logger"

	"github.com/tidwall/gjson"
)

var (
	ErrMalformedResponse = errors.New("malformed completion response")
	ErrEmptyCompletion   = errors.New("empty completion")
	ErrMissingCredential = errors.New("backend credential not configured")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.Code, e.Message)
}

// ChatRequest is one two-message conversation for one model.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Content     string
	TotalTokens int
	Raw         string
}

// Completer sends a chat request and returns the completion.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ChatClient talks to an OpenAI-compatible /chat/completions endpoint
// (OpenRouter by default). It is safe for concurrent use.
type ChatClient struct {
	BaseURL    string
	Credential func() string
	Headers    map[string]string
	// MaxRetries bounds retries on 429/5xx; 0 means no retry.
	MaxRetries int
	RetryBase  time.Duration
	HTTP       *http.Client
}

// NewChatClient builds a client sharing one pooled http.Client across all models.
func NewChatClient(baseURL string, credential func() string, headers map[string]string, maxRetries int) *ChatClient {
	return &ChatClient{
		BaseURL:    baseURL,
		Credential: credential,
		Headers:    headers,
		MaxRetries: maxRetries,
		RetryBase:  800 * time.Millisecond,
		HTTP: &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		}},
	}
}

func (c *ChatClient) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = "https://openrouter.ai/api/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *ChatClient) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	key := ""
	if c.Credential != nil {
		key = c.Credential()
	}
	if key == "" {
		return ChatResponse{}, ErrMissingCredential
	}
	body, err := json.Marshal(map[string]any{
		"model": req.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	})
	if err != nil {
		return ChatResponse{}, err
	}
	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	url := c.endpoint()
	logger.Debugf("[backend] POST %s model=%s max_tokens=%d", url, req.Model, req.MaxTokens)

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return ChatResponse{}, err
		}
		hreq.Header.Set("Content-Type", "application/json")
		hreq.Header.Set("Authorization", "Bearer "+key)
		for k, v := range c.Headers {
			if strings.TrimSpace(v) != "" {
				hreq.Header.Set(k, v)
			}
		}
		resp, err := httpc.Do(hreq)
		if err != nil {
			return ChatResponse{}, err
		}
		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return ChatResponse{}, readErr
		}
		if resp.StatusCode/100 == 2 {
			return parseCompletion(raw)
		}
		lastErr = &StatusError{Code: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
		if !retryable(resp.StatusCode) || attempt == c.MaxRetries {
			break
		}
		wait := c.backoff(attempt, resp.Header.Get("Retry-After"))
		logger.Debugf("[backend] model=%s %v, retrying in %s", req.Model, lastErr, wait)
		select {
		case <-ctx.Done():
			return ChatResponse{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return ChatResponse{}, lastErr
}

func (c *ChatClient) backoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	base := c.RetryBase
	if base <= 0 {
		base = 800 * time.Millisecond
	}
	wait := base << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}

func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func errorMessage(raw []byte, fallback string) string {
	if gjson.ValidBytes(raw) {
		if msg := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String()); msg != "" {
			return msg
		}
	}
	return fallback
}

func parseCompletion(raw []byte) (ChatResponse, error) {
	if !gjson.ValidBytes(raw) {
		return ChatResponse{}, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String {
		if msg := gjson.GetBytes(raw, "error.message"); msg.Exists() {
			return ChatResponse{}, fmt.Errorf("%w: %s", ErrMalformedResponse, msg.String())
		}
		return ChatResponse{}, fmt.Errorf("%w: missing choices[0].message.content", ErrMalformedResponse)
	}
	text := content.String()
	if strings.TrimSpace(text) == "" {
		return ChatResponse{}, ErrEmptyCompletion
	}
	tokens := int(gjson.GetBytes(raw, "usage.total_tokens").Int())
	if tokens < 0 {
		tokens = 0
	}
	return ChatResponse{Content: text, TotalTokens: tokens, Raw: string(raw)}, nil
}
