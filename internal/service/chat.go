package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/cityling/cityling-server/internal/adapter/upstream"
	"github.com/cityling/cityling-server/internal/domain"
	"github.com/cityling/cityling-server/internal/policy"
)

// companionHistoryLimit is the number of prior successful turns replayed to
// the upstream on the companion flow.
const companionHistoryLimit = 8

// Chat runs one chat turn through the gateway. The request is admitted by
// policy, bound to a session, routed, sent upstream, and recorded. Failures
// that happen after routing are recorded as turns before they surface, so
// the stored history never silently loses an attempt. Failures before
// routing (policy block, tenant conflict, unsupported content type) record
// nothing.
func (s *Service) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	decision, reason, err := s.policy.Evaluate(ctx, policy.Input{
		Flow:        string(req.Flow),
		ContentType: string(req.ContentType),
		AppID:       s.tenant.AppID,
		PlatformID:  s.tenant.PlatformID,
		SessionID:   req.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("admission check failed: %w", err)
	}
	if decision == policy.DecisionBlock {
		if reason != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrPolicyBlocked, reason)
		}
		return nil, domain.ErrPolicyBlocked
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session, err := s.store.GetOrCreateSession(ctx, sessionID, s.tenant)
	if err != nil {
		return nil, err
	}

	route, err := s.router.Route(req.Flow, req.ContentType)
	if err != nil {
		return nil, err
	}

	messages, err := s.buildMessages(ctx, session.SessionID, req)
	if err != nil {
		return nil, err
	}

	turn := &domain.Turn{
		TurnID:      uuid.NewString(),
		SessionID:   session.SessionID,
		ContentType: req.ContentType,
		Flow:        req.Flow,
		Request:     req.Message,
		GPTType:     route.GPTType,
		Model:       route.Model,
	}

	result, err := s.upstream.Chat(ctx, &upstream.ChatRequest{
		ContentType: req.ContentType,
		Messages:    messages,
	}, route)
	if err != nil {
		turn.Outcome, turn.ErrorDetail = classifyFailure(err)
		s.recordFailedTurn(ctx, session.SessionID, turn)
		return nil, err
	}

	turn.Outcome = domain.TurnOutcomeSuccess
	turn.Response = result.Content
	turn.LatencyMs = result.Latency.Milliseconds()
	appended, err := s.store.AppendTurn(ctx, session.SessionID, turn)
	if err != nil {
		return nil, err
	}

	return &domain.ChatResponse{
		SessionID: session.SessionID,
		TurnID:    appended.TurnID,
		Seq:       appended.Seq,
		Reply:     appended.Response,
		Model:     appended.Model,
		GPTType:   appended.GPTType,
		LatencyMs: appended.LatencyMs,
	}, nil
}

// buildMessages assembles the upstream conversation. The companion flow
// replays a window of prior successful turns; the generic flow sends only
// the current message.
func (s *Service) buildMessages(ctx context.Context, sessionID string, req *domain.ChatRequest) ([]upstream.ChatMessage, error) {
	var messages []upstream.ChatMessage
	if req.Flow == domain.FlowCompanion {
		turns, err := s.store.ListTurns(ctx, sessionID, 0)
		if err != nil {
			return nil, err
		}
		history := make([]domain.Turn, 0, companionHistoryLimit)
		for i := len(turns) - 1; i >= 0 && len(history) < companionHistoryLimit; i-- {
			if turns[i].Outcome == domain.TurnOutcomeSuccess {
				history = append(history, turns[i])
			}
		}
		for i := len(history) - 1; i >= 0; i-- {
			messages = append(messages,
				upstream.ChatMessage{Role: "user", Content: history[i].Request},
				upstream.ChatMessage{Role: "assistant", Content: history[i].Response},
			)
		}
	}
	return append(messages, upstream.ChatMessage{Role: "user", Content: req.Message}), nil
}

// recordFailedTurn persists a failed attempt. The write runs detached from
// the request context: a cancelled or expired request must still leave its
// turn behind.
func (s *Service) recordFailedTurn(ctx context.Context, sessionID string, turn *domain.Turn) {
	if _, err := s.store.AppendTurn(context.WithoutCancel(ctx), sessionID, turn); err != nil {
		log.Printf("ERROR: failed to record %s turn for session %s: %v", turn.Outcome, sessionID, err)
	}
}

func classifyFailure(err error) (domain.TurnOutcome, string) {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return domain.TurnOutcomeTimeout, err.Error()
	case errors.Is(err, domain.ErrCancelled):
		return domain.TurnOutcomeCancelled, err.Error()
	default:
		return domain.TurnOutcomeUpstreamError, err.Error()
	}
}
