package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cityling/cityling-server/internal/domain"
)

// MockClient is a mock implementation of ChatClient for local development
// and testing.
type MockClient struct{}

// NewMockClient creates a new mock upstream client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements ChatClient interface.
var _ ChatClient = (*MockClient)(nil)

// Chat returns a canned response echoing the last user message. Context
// errors are reported with the same typed errors as the real client.
func (m *MockClient) Chat(ctx context.Context, req *ChatRequest, decision domain.Decision) (*ChatResult, error) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrUpstreamTimeout
		}
		return nil, domain.ErrCancelled
	default:
	}

	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	content := "[MOCK] This is a mock response from the upstream client."
	if lastUserMessage != "" {
		content = fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
	}

	return &ChatResult{
		Content: content,
		Latency: time.Millisecond,
		Usage: &Usage{
			PromptTokens:     len(lastUserMessage) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(lastUserMessage) + len(content)) / 4,
		},
	}, nil
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
