package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cityling/cityling-server/internal/domain"
)

type fileState struct {
	Sessions map[string]*domain.Session `json:"sessions"`
	Turns    map[string][]domain.Turn   `json:"turns"`
}

// JSONStore implements Store on a single JSON file. It exists for small
// deployments and local development; the whole state is rewritten on every
// mutation, so appends are serialized across all sessions.
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	state    fileState
}

// NewJSONStore creates a JSON-file store, loading existing state if present.
func NewJSONStore(filePath string) (*JSONStore, error) {
	s := &JSONStore{
		filePath: filePath,
		state: fileState{
			Sessions: make(map[string]*domain.Session),
			Turns:    make(map[string][]domain.Turn),
		},
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return s, nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetOrCreateSession(_ context.Context, sessionID string, tenant domain.TenantScope) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.state.Sessions[sessionID]; ok {
		if existing.Tenant != tenant {
			return nil, domain.ErrConflict
		}
		cloned := *existing
		return &cloned, nil
	}

	now := time.Now().UTC()
	session := &domain.Session{
		SessionID:    sessionID,
		Tenant:       tenant,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	s.state.Sessions[sessionID] = session
	if err := s.persistLocked(); err != nil {
		delete(s.state.Sessions, sessionID)
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	cloned := *session
	return &cloned, nil
}

func (s *JSONStore) LoadSession(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.state.Sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cloned := *session
	cloned.Turns = append([]domain.Turn(nil), s.state.Turns[sessionID]...)
	return &cloned, nil
}

func (s *JSONStore) AppendTurn(_ context.Context, sessionID string, turn *domain.Turn) (*domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.state.Sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	existing := s.state.Turns[sessionID]
	turn.SessionID = sessionID
	turn.Seq = int64(len(existing)) + 1
	now := time.Now().UTC()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}

	s.state.Turns[sessionID] = append(existing, *turn)
	prevActive := session.LastActiveAt
	session.LastActiveAt = now
	if err := s.persistLocked(); err != nil {
		s.state.Turns[sessionID] = existing
		session.LastActiveAt = prevActive
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return turn, nil
}

func (s *JSONStore) ListTurns(_ context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.state.Turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.Turn(nil), turns...), nil
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]*domain.Session)
	}
	if state.Turns == nil {
		state.Turns = make(map[string][]domain.Turn)
	}
	s.state = state
	return nil
}

// persistLocked rewrites the state file atomically via rename.
func (s *JSONStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.filePath)
}
