// Package facts provides the cross-session memory: short facts about the
// user that are injected into every conversation.
package facts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when deleting a fact that does not exist.
var ErrNotFound = errors.New("memory fact not found")

// DefaultCategory is used when a fact is stored without one.
const DefaultCategory = "general"

// MemoryFact is one remembered statement. Facts are append-only; the
// only mutation is deletion.
type MemoryFact struct {
	ID             string    `json:"id"`
	Fact           string    `json:"fact"`
	Category       string    `json:"category"`
	SourceSession  string    `json:"source_session,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	RelevanceCount int       `json:"relevance_count"`
}

// Store manages fact persistence.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewStore creates a fact store on an existing database connection.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_facts (
			id TEXT PRIMARY KEY,
			fact TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'general',
			source_session TEXT,
			created_at TEXT NOT NULL,
			relevance_count INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

// newID returns "mem-" plus a ULID, so lexical order is creation order.
func (s *Store) newID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "mem-" + ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

// Append records a new fact.
func (s *Store) Append(ctx context.Context, fact, category, sourceSession string) (*MemoryFact, error) {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return nil, fmt.Errorf("fact is required")
	}
	if category == "" {
		category = DefaultCategory
	}

	now := time.Now().UTC()
	f := &MemoryFact{
		ID:            s.newID(now),
		Fact:          fact,
		Category:      category,
		SourceSession: sourceSession,
		CreatedAt:     now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_facts (id, fact, category, source_session, created_at, relevance_count)
		VALUES (?, ?, ?, ?, ?, 0)
	`, f.ID, f.Fact, f.Category, nullString(sourceSession), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return f, nil
}

// Recent returns up to limit facts, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*MemoryFact, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fact, category, source_session, created_at, relevance_count
		FROM memory_facts ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []*MemoryFact
	for rows.Next() {
		var (
			f       MemoryFact
			source  sql.NullString
			created string
		)
		if err := rows.Scan(&f.ID, &f.Fact, &f.Category, &source, &created, &f.RelevanceCount); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		f.SourceSession = source.String
		if f.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("fact %s: bad created_at: %w", f.ID, err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the total number of stored facts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_facts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Delete removes a fact by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_facts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
