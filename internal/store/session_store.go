package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/switchboard/internal/domain"
)

// timeLayout is the stored timestamp format. Nanosecond precision keeps
// session ordering stable even for rapid open/close cycles in tests.
const timeLayout = time.RFC3339Nano

// SQLiteSessionStore implements session.Store backed by SQLite. The
// one-open-session-per-agent invariant is enforced by a partial unique
// index, so TryOpen never has a read-then-write window.
type SQLiteSessionStore struct {
	db *DB
}

// NewSQLiteSessionStore creates a session store using the given database.
func NewSQLiteSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

// TryOpen atomically claims a new open session for the agent. If the agent
// already has an open session, it returns *domain.AlreadyActiveError
// carrying the session that holds the claim.
func (s *SQLiteSessionStore) TryOpen(ctx context.Context, agentID string) (domain.Session, error) {
	// Two attempts: if the claim collides but the winning session closes
	// before we can fetch it, the claim is retried once.
	for attempt := 0; attempt < 2; attempt++ {
		sess := domain.Session{
			ID:       uuid.New().String(),
			AgentID:  agentID,
			OpenedAt: time.Now().UTC(),
		}

		_, err := s.db.sql.ExecContext(ctx,
			`INSERT INTO sessions (id, agent_id, opened_at) VALUES (?, ?, ?)`,
			sess.ID, sess.AgentID, sess.OpenedAt.Format(timeLayout),
		)
		if err == nil {
			return sess, nil
		}
		if !isUniqueViolation(err) {
			return domain.Session{}, fmt.Errorf("claiming session: %w", err)
		}

		existing, ferr := s.ActiveSession(ctx, agentID)
		if ferr != nil {
			return domain.Session{}, ferr
		}
		if existing != nil {
			return domain.Session{}, &domain.AlreadyActiveError{Existing: *existing}
		}
	}
	return domain.Session{}, errors.New("session claim kept colliding with closing sessions")
}

// Close marks the agent's open session closed. Returns
// domain.ErrNoActiveSession when the agent has no open session, so
// double-logout is observable by callers.
func (s *SQLiteSessionStore) Close(ctx context.Context, agentID string) (domain.Session, error) {
	open, err := s.ActiveSession(ctx, agentID)
	if err != nil {
		return domain.Session{}, err
	}
	if open == nil {
		return domain.Session{}, domain.ErrNoActiveSession
	}

	closedAt := time.Now().UTC()
	// The closed_at IS NULL guard makes the close race-safe: a concurrent
	// close of the same session leaves exactly one winner.
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE sessions SET closed_at = ? WHERE id = ? AND closed_at IS NULL`,
		closedAt.Format(timeLayout), open.ID,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("closing session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Session{}, err
	}
	if n == 0 {
		return domain.Session{}, domain.ErrNoActiveSession
	}

	open.ClosedAt = &closedAt
	return *open, nil
}

// ActiveSession returns the agent's open session, or nil if none exists.
func (s *SQLiteSessionStore) ActiveSession(ctx context.Context, agentID string) (*domain.Session, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, agent_id, opened_at, closed_at FROM sessions
		 WHERE agent_id = ? AND closed_at IS NULL`, agentID)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading active session: %w", err)
	}
	return &sess, nil
}

// History returns all sessions for the agent, oldest first.
func (s *SQLiteSessionStore) History(ctx context.Context, agentID string) ([]domain.Session, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, agent_id, opened_at, closed_at FROM sessions
		 WHERE agent_id = ? ORDER BY opened_at`, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading session history: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// OpenAgentIDs returns the IDs of all agents with an open session,
// sorted ascending.
func (s *SQLiteSessionStore) OpenAgentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT agent_id FROM sessions WHERE closed_at IS NULL ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("listing open sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (domain.Session, error) {
	var sess domain.Session
	var openedAt string
	var closedAt sql.NullString

	if err := sc.Scan(&sess.ID, &sess.AgentID, &openedAt, &closedAt); err != nil {
		return domain.Session{}, err
	}

	t, err := time.Parse(timeLayout, openedAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("parsing opened_at: %w", err)
	}
	sess.OpenedAt = t

	if closedAt.Valid {
		t, err := time.Parse(timeLayout, closedAt.String)
		if err != nil {
			return domain.Session{}, fmt.Errorf("parsing closed_at: %w", err)
		}
		sess.ClosedAt = &t
	}
	return sess, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure (the open-session claim losing to a concurrent claim).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
