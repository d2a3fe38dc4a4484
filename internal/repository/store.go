// Package store defines the session storage interface and implementations.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/cityling/cityling-server/internal/domain"
)

const (
	EngineSQLite = "sqlite"
	EngineJSON   = "json"
)

// Store defines the interface for session persistence. Implementations own
// all durable state: no other component writes to storage directly.
type Store interface {
	// GetOrCreateSession loads the session or creates it under the given
	// tenant scope. Returns domain.ErrConflict when the id exists under a
	// different tenant.
	GetOrCreateSession(ctx context.Context, sessionID string, tenant domain.TenantScope) (*domain.Session, error)

	// LoadSession returns the session with its turns in seq order, or
	// domain.ErrNotFound.
	LoadSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// AppendTurn atomically assigns the next seq for the session and
	// commits the turn. Appends to the same session are serialized;
	// different sessions never block one another.
	AppendTurn(ctx context.Context, sessionID string, turn *domain.Turn) (*domain.Turn, error)

	// ListTurns returns the turns of a session in seq order. A positive
	// limit keeps the most recent turns.
	ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)

	// Lifecycle
	Close() error
}

// NewByEngine constructs a store for the configured engine.
func NewByEngine(engine, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineSQLite:
		return NewSQLiteStore(path)
	case EngineJSON:
		return NewJSONStore(path)
	default:
		return nil, fmt.Errorf("unsupported store engine: %s", engine)
	}
}
