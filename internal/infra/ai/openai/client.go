package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/csvask/internal/domain/ai"
	"github.com/bryanwahyu/csvask/internal/domain/relay"
	"github.com/bryanwahyu/csvask/internal/infra/ai/prompt"
)

const (
	maxTokens = 2048

	DefaultModel       = "gpt-4o-mini"
	DefaultMaxCSVBytes = 256 << 10
)

// Client is a relay.Analyzer backed by the OpenAI chat completion API.
type Client struct {
	*openai.Client
	Model string
	// MaxCSVBytes caps how much of the file is sent; the rest is dropped
	// and the prompt says so.
	MaxCSVBytes int64
}

// NewClient builds a Client. An empty baseURL keeps the public API endpoint.
func NewClient(apiKey, model, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

// Analyze sends the question and the (possibly truncated) CSV text to the model.
func (c *Client) Analyze(ctx context.Context, doc relay.Document, question string) (string, error) {
	limit := c.MaxCSVBytes
	if limit <= 0 {
		limit = DefaultMaxCSVBytes
	}
	raw, err := io.ReadAll(io.LimitReader(doc.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", doc.File.Name, err)
	}
	truncated := int64(len(raw)) > limit
	if truncated {
		raw = cutAtLine(raw[:limit])
	}

	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(doc.File.Name, question, string(raw), truncated)},
		},
	}
	// reasoning models (o1/o3/o4/gpt-5*) reject MaxTokens
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// cutAtLine drops a trailing partial row so the model never sees half a record.
func cutAtLine(b []byte) []byte {
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[:i+1]
	}
	return b
}
