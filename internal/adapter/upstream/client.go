// Package upstream provides the client for the upstream LLM provider.
package upstream

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

	"github.com/cityling/cityling-server/internal/domain"
)

const (
	textCompletionsPath   = "/v1/chat/completions"
	visionCompletionsPath = "/v2/chat/completions"
)

// ErrInvalidResponse is returned when the upstream replied 2xx but the body
// did not contain an assistant message.
var ErrInvalidResponse = errors.New("invalid upstream response")

// Client performs chat calls against the upstream provider. The timeout
// budget is applied per call from the routing decision, never from the
// http.Client, so concurrent requests on different flows never interfere.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new upstream client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

// ChatMessage is one message in the upstream conversation payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider-independent request shape.
type ChatRequest struct {
	ContentType domain.ContentType
	Messages    []ChatMessage
	Temperature *float64
	MaxTokens   *int
}

// Usage reports token usage when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is a successful upstream call.
type ChatResult struct {
	Content string
	Latency time.Duration
	Usage   *Usage
}

type chatCompletionBody struct {
	GPTType     int           `json:"gpt_type,omitempty"`
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

// Chat sends one chat completion call under the decision's timeout budget.
// The deadline is hard: when it expires the underlying request is cancelled
// and the outcome is domain.ErrUpstreamTimeout. A caller cancellation is
// reported as domain.ErrCancelled instead, since the budget was not the
// cause. Transport and protocol failures become *domain.UpstreamError.
// The client never retries; retry policy belongs to the caller.
func (c *Client) Chat(ctx context.Context, req *ChatRequest, decision domain.Decision) (*ChatResult, error) {
	callerCtx := ctx
	if decision.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, decision.Timeout)
		defer cancel()
	}

	body := chatCompletionBody{
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	// Companion deployments address the model by name; generic calls use
	// the integer model-type code.
	if decision.Model != "" {
		body.Model = decision.Model
	} else {
		body.GPTType = decision.GPTType
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := textCompletionsPath
	if req.ContentType == domain.ContentTypeVision {
		path = visionCompletionsPath
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(decision.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if decision.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+decision.APIKey)
	}
	httpReq.Header.Set("x-app-id", decision.Tenant.AppID)
	httpReq.Header.Set("x-platform-id", decision.Tenant.PlatformID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(callerCtx, ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransportError(callerCtx, ctx, err)
	}
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(respBody))
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			detail = errResp.Error.Message
		}
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Detail: detail}
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Detail: fmt.Sprintf("malformed response: %v", err)}
	}
	content, err := extractAssistantContent(result)
	if err != nil {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Detail: err.Error()}
	}

	return &ChatResult{
		Content: content,
		Latency: latency,
		Usage:   result.Usage,
	}, nil
}

// classifyTransportError separates the caller abandoning the request from
// the budget expiring from genuine transport failure.
func (c *Client) classifyTransportError(callerCtx, callCtx context.Context, err error) error {
	if errors.Is(callerCtx.Err(), context.Canceled) {
		return domain.ErrCancelled
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return domain.ErrUpstreamTimeout
	}
	return &domain.UpstreamError{Detail: err.Error()}
}

// extractAssistantContent pulls the assistant text out of the first choice.
// Some providers return the content as a string, others as a list of typed
// parts; both are accepted.
func extractAssistantContent(resp chatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrInvalidResponse
	}
	switch v := resp.Choices[0].Message.Content.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", ErrInvalidResponse
		}
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	default:
		return "", ErrInvalidResponse
	}
}
