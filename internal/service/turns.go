package service

import (
	"context"

	"github.com/cityling/cityling-server/internal/domain"
)

// SessionTurns returns the recorded turns of a session in seq order. With a
// positive limit, only the most recent turns are returned. Returns
// domain.ErrNotFound for an unknown session.
func (s *Service) SessionTurns(ctx context.Context, sessionID string, limit int) (*domain.TurnsResponse, error) {
	session, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turns := session.Turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	if turns == nil {
		turns = []domain.Turn{}
	}

	return &domain.TurnsResponse{
		SessionID: session.SessionID,
		Turns:     turns,
	}, nil
}
