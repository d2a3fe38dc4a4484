package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/cityling/cityling-server/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// Per-session append locks. A single global lock would serialize
	// unrelated sessions; a lock keyed by session id keeps appends for the
	// same session totally ordered while independent sessions proceed.
	appendLocks sync.Map // session id -> *sync.Mutex
}

// NewSQLiteStore creates a new SQLite store at the given path or DSN.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" && !strings.Contains(dsn, "mode=memory") && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL,
			platform_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_active_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			content_type TEXT NOT NULL,
			flow TEXT NOT NULL,
			request TEXT NOT NULL,
			gpt_type INTEGER NOT NULL,
			model TEXT,
			outcome TEXT NOT NULL,
			response TEXT,
			error_detail TEXT,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) appendLock(sessionID string) *sync.Mutex {
	v, _ := s.appendLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// GetOrCreateSession gets an existing session or creates a new one under the
// given tenant scope.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, sessionID string, tenant domain.TenantScope) (*domain.Session, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		if session.Tenant != tenant {
			return nil, domain.ErrConflict
		}
		return session, nil
	}

	now := time.Now().UTC()
	session = &domain.Session{
		SessionID:    sessionID,
		Tenant:       tenant,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, app_id, platform_id, created_at, last_active_at) VALUES (?, ?, ?, ?, ?)`,
		session.SessionID, tenant.AppID, tenant.PlatformID, session.CreatedAt, session.LastActiveAt)
	if err != nil {
		// Two first-time creates can race load-then-insert; the loser hits
		// the primary key. Re-read to decide between reuse and conflict.
		if isConstraintErr(err) {
			existing, loadErr := s.getSession(ctx, sessionID)
			if loadErr != nil {
				return nil, loadErr
			}
			if existing == nil || existing.Tenant != tenant {
				return nil, domain.ErrConflict
			}
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return session, nil
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// getSession retrieves a session without its turns; nil when absent.
func (s *SQLiteStore) getSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, app_id, platform_id, created_at, last_active_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.Tenant.AppID, &session.Tenant.PlatformID, &session.CreatedAt, &session.LastActiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &session, nil
}

// LoadSession returns the session with its turns in seq order.
func (s *SQLiteStore) LoadSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	turns, err := s.ListTurns(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	session.Turns = turns
	return session, nil
}

// AppendTurn atomically assigns the next seq and commits the turn. The turn
// is visible to LoadSession only after the transaction commits.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID string, turn *domain.Turn) (*domain.Turn, error) {
	mu := s.appendLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`,
		sessionID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	turn.SessionID = sessionID
	turn.Seq = seq
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (turn_id, session_id, seq, content_type, flow, request, gpt_type, model, outcome, response, error_detail, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.TurnID, turn.SessionID, turn.Seq, turn.ContentType, turn.Flow, turn.Request, turn.GPTType,
		nullString(turn.Model), turn.Outcome, nullString(turn.Response), nullString(turn.ErrorDetail),
		turn.LatencyMs, turn.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE session_id = ?`,
		now, sessionID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return turn, nil
}

// ListTurns returns the turns of a session in seq order. A positive limit
// keeps the most recent turns.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	query := `SELECT turn_id, session_id, seq, content_type, flow, request, gpt_type, model, outcome, response, error_detail, latency_ms, created_at
		FROM turns WHERE session_id = ? ORDER BY seq ASC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query = fmt.Sprintf(`SELECT turn_id, session_id, seq, content_type, flow, request, gpt_type, model, outcome, response, error_detail, latency_ms, created_at
		FROM (SELECT * FROM turns WHERE session_id = ? ORDER BY seq DESC LIMIT %d) ORDER BY seq ASC`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var model, response, errorDetail sql.NullString
		if err := rows.Scan(&t.TurnID, &t.SessionID, &t.Seq, &t.ContentType, &t.Flow, &t.Request, &t.GPTType,
			&model, &t.Outcome, &response, &errorDetail, &t.LatencyMs, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		if model.Valid {
			t.Model = model.String
		}
		if response.Valid {
			t.Response = response.String
		}
		if errorDetail.Valid {
			t.ErrorDetail = errorDetail.String
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return turns, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
