package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/conductr/internal/shared"
)

const (
	defaultLLMURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel   = "openai/gpt-4o-mini"
	defaultLLMTimeout = 30 * time.Second
)

// ErrNoJSONObject is returned when a model reply contains no balanced JSON object.
var ErrNoJSONObject = errors.New("no JSON object in model response")

// LLMClient wraps an OpenRouter-compatible chat completion API.
type LLMClient struct {
	cfg        shared.LLMConfig
	httpClient *http.Client
	retry      RetryPolicy
}

// LLMOption customizes an [LLMClient].
type LLMOption func(*LLMClient)

// WithLLMHTTPClient overrides the default HTTP client.
func WithLLMHTTPClient(client *http.Client) LLMOption {
	return func(c *LLMClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLLMRetryPolicy overrides the retry policy for completion requests.
func WithLLMRetryPolicy(p RetryPolicy) LLMOption {
	return func(c *LLMClient) { c.retry = p }
}

// NewLLMClient constructs a client from cfg, defaulting the endpoint, model and timeout.
func NewLLMClient(cfg shared.LLMConfig, opts ...LLMOption) *LLMClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultLLMURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultLLMModel
	}

	timeout := defaultLLMTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c := &LLMClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      NewRetryPolicy(0, 0, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("llm complete: empty content (finish_reason=%q, refusal=%q)", e.FinishReason, e.Refusal)
}

// Transient marks empty replies as retryable; providers return them under load.
func (e *emptyContentError) Transient() bool { return true }

// Complete sends one system and one user message and returns the model's freeform reply.
// Transient failures are retried; the reply itself is never parsed here.
func (c *LLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", fmt.Errorf("%w: llm complete: system and user prompts required", shared.ErrInvalidInput)
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: llm api key", shared.ErrMissingCredentials)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}

	var content string
	err := c.retry.Do(ctx, "llm complete", func(ctx context.Context) error {
		out, err := c.sendOnce(ctx, payload)
		if err != nil {
			return err
		}
		content = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *LLMClient) sendOnce(ctx context.Context, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "conductr")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{
			Service:    "llm",
			StatusCode: resp.StatusCode,
			Body:       summarizeSnippet(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}

	var empty emptyContentError
	for _, choice := range completion.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
		if text := strings.TrimSpace(choice.Text); text != "" {
			return text, nil
		}
		empty.FinishReason = choice.FinishReason
		empty.Refusal = choice.Message.Refusal
	}
	return "", &empty
}

// ExtractJSONObject returns the first balanced {...} object in text.
// Braces inside JSON strings are ignored.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchBrace(text[start:]); ok {
			return text[start : start+end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing s[0].
func matchBrace(s string) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// DecodeJSONObject extracts the first JSON object from a model reply and unmarshals it into v.
func DecodeJSONObject(text string, v any) error {
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

func summarizeSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
