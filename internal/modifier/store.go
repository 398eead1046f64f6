package modifier

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a modifier ID does not exist in a session.
var ErrNotFound = errors.New("modifier not found")

// ErrInvalid is wrapped by every error caused by a bad [Params].
var ErrInvalid = errors.New("invalid modifier")

// ErrMalformed marks stored modifier data that could not be decoded.
var ErrMalformed = errors.New("malformed modifier record")

// Store persists the ordered modifier collection of each session.
type Store interface {
	// List returns the session's modifiers in insertion order.
	List(ctx context.Context, sessionID string) ([]*Modifier, error)
	// Save replaces the session's whole collection.
	Save(ctx context.Context, sessionID string, mods []*Modifier) error
	// Active returns the first active modifier, or nil.
	Active(ctx context.Context, sessionID string) (*Modifier, error)
	// Clear removes every modifier of the session.
	Clear(ctx context.Context, sessionID string) error
}

// SQLiteStore is a [Store] backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the modifiers table if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS modifiers (
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (session_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_modifiers_session ON modifiers(session_id, position);
	`)
	return err
}

// List returns the session's modifiers in insertion order.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]*Modifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, content, state, created_at, metadata
		FROM modifiers WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query modifiers: %w", err)
	}
	defer rows.Close()

	var mods []*Modifier
	for rows.Next() {
		var (
			m         Modifier
			kind      string
			state     string
			createdAt string
			meta      string
		)
		if err := rows.Scan(&m.ID, &kind, &m.Name, &m.Content, &state, &createdAt, &meta); err != nil {
			return nil, fmt.Errorf("scan modifier: %w", err)
		}
		m.Kind = Kind(kind)
		m.State = State(state)
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("%w: %s created_at: %v", ErrMalformed, m.ID, err)
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("%w: %s metadata: %v", ErrMalformed, m.ID, err)
			}
		}
		mods = append(mods, &m)
	}
	return mods, rows.Err()
}

// Save replaces the session's whole collection in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, mods []*Modifier) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM modifiers WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear modifiers: %w", err)
	}

	for i, m := range mods {
		meta := []byte("{}")
		if len(m.Metadata) > 0 {
			if meta, err = json.Marshal(m.Metadata); err != nil {
				return fmt.Errorf("encode metadata for %s: %w", m.ID, err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO modifiers (session_id, position, id, kind, name, content, state, created_at, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sessionID, i, m.ID, string(m.Kind), m.Name, m.Content, string(m.State),
			m.CreatedAt.UTC().Format(time.RFC3339Nano), string(meta))
		if err != nil {
			return fmt.Errorf("insert modifier %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// Active returns the first active modifier of the session, or nil.
func (s *SQLiteStore) Active(ctx context.Context, sessionID string) (*Modifier, error) {
	mods, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return firstActive(mods), nil
}

// CountActiveSessions returns how many sessions have an active modifier.
func (s *SQLiteStore) CountActiveSessions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id) FROM modifiers WHERE state = ?`, string(StateActive)).Scan(&n)
	return n, err
}

// Clear removes every modifier of the session.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM modifiers WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear modifiers: %w", err)
	}
	return nil
}

func firstActive(mods []*Modifier) *Modifier {
	for _, m := range mods {
		if m.Active() {
			return m
		}
	}
	return nil
}
