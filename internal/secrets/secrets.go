// Package secrets stores per-session credentials (API keys, passwords,
// tokens) sealed with NaCl secretbox. Listing never returns plaintext.
package secrets

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrNotFound is returned for an unknown secret.
var ErrNotFound = errors.New("secret not found")

const nonceSize = 24

// Secret is one stored credential. Value is masked unless revealed.
type Secret struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"type"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Store seals secrets into the shared database.
type Store struct {
	db  *sql.DB
	key [KeySize]byte
}

// NewStore creates a secret store sealing values with key.
func NewStore(db *sql.DB, key [KeySize]byte) (*Store, error) {
	s := &Store{db: db, key: key}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS secrets (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			sealed BLOB NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_secrets_session ON secrets(session_id);
	`)
	return err
}

func (s *Store) seal(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key), nil
}

func (s *Store) open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("cannot unseal secret: wrong key or corrupt data")
	}
	return string(plain), nil
}

// Add seals and stores a secret, returning it masked.
func (s *Store) Add(ctx context.Context, sessionID, name, kind, value string) (*Secret, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if value == "" {
		return nil, fmt.Errorf("value is required")
	}
	if kind == "" {
		kind = "generic"
	}

	sealed, err := s.seal(value)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO secrets (id, session_id, name, kind, sealed, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), sessionID, name, kind, sealed, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert secret: %w", err)
	}

	return &Secret{ID: id.String(), Name: name, Kind: kind, Value: Mask(value), CreatedAt: now}, nil
}

// List returns a session's secrets in creation order with masked values.
func (s *Store) List(ctx context.Context, sessionID string) ([]*Secret, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, sealed, created_at FROM secrets WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query secrets: %w", err)
	}
	defer rows.Close()

	out := []*Secret{}
	for rows.Next() {
		sec, sealed, err := scanSecret(rows)
		if err != nil {
			return nil, err
		}
		if plain, err := s.open(sealed); err == nil {
			sec.Value = Mask(plain)
		} else {
			sec.Value = Mask("")
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// Reveal returns a secret with its plaintext value.
func (s *Store) Reveal(ctx context.Context, sessionID, id string) (*Secret, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, sealed, created_at FROM secrets WHERE session_id = ? AND id = ?`,
		sessionID, id,
	)
	sec, sealed, err := scanSecret(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sec.Value, err = s.open(sealed); err != nil {
		return nil, err
	}
	return sec, nil
}

// Delete removes a secret.
func (s *Store) Delete(ctx context.Context, sessionID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecret(row rowScanner) (*Secret, []byte, error) {
	var (
		sec     Secret
		sealed  []byte
		created string
	)
	if err := row.Scan(&sec.ID, &sec.Name, &sec.Kind, &sealed, &created); err != nil {
		return nil, nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, nil, fmt.Errorf("parse created_at for %s: %w", sec.ID, err)
	}
	sec.CreatedAt = t
	return &sec, sealed, nil
}

// Mask hides all but the last four characters of long values.
func Mask(value string) string {
	r := []rune(value)
	if len(r) <= 8 {
		return "********"
	}
	return "********" + string(r[len(r)-4:])
}
