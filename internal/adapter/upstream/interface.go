package upstream

import (
	"context"

	"github.com/cityling/cityling-server/internal/domain"
)

// ChatClient defines the interface for upstream chat calls.
type ChatClient interface {
	// Chat sends one chat completion call bounded by the decision's
	// timeout budget.
	Chat(ctx context.Context, req *ChatRequest, decision domain.Decision) (*ChatResult, error)
}

// Ensure Client implements ChatClient interface.
var _ ChatClient = (*Client)(nil)
