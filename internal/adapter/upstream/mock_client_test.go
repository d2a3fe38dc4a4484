package upstream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cityling/cityling-server/internal/domain"
)

func TestMockClientChat(t *testing.T) {
	client := NewMockClient()

	result, err := client.Chat(context.Background(), &ChatRequest{
		ContentType: domain.ContentTypeText,
		Messages:    []ChatMessage{{Role: "user", Content: "hello"}},
	}, domain.Decision{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.HasPrefix(result.Content, "[MOCK]") {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Fatalf("expected echo of the user message, got %q", result.Content)
	}
}

func TestMockClientChatCancelled(t *testing.T) {
	client := NewMockClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, &ChatRequest{
		ContentType: domain.ContentTypeText,
		Messages:    []ChatMessage{{Role: "user", Content: "hello"}},
	}, domain.Decision{})
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestMockClientChatDeadlineExceeded(t *testing.T) {
	client := NewMockClient()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := client.Chat(ctx, &ChatRequest{
		ContentType: domain.ContentTypeText,
		Messages:    []ChatMessage{{Role: "user", Content: "hello"}},
	}, domain.Decision{})
	if !errors.Is(err, domain.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
}
