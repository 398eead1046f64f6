// Package linkbio keeps a small "link in bio" page per session: a list
// of links, a profile header and a QR code pointing at the page.
package linkbio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/nugget/localagent/internal/opstate"
)

const profileNamespace = "linkbio_profile"

// QR code size bounds in pixels.
const (
	DefaultQRSize = 256
	MaxQRSize     = 1024
)

// ErrInvalidURL rejects links that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid link url")

// Link is one entry on the page.
type Link struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the page header.
type Profile struct {
	Name   string `json:"name"`
	Bio    string `json:"bio"`
	Avatar string `json:"avatar,omitempty"`
}

// DefaultProfile is returned for sessions that never set one.
func DefaultProfile() Profile {
	return Profile{Name: "Model Profile", Bio: "Links and resources"}
}

// Store persists links in their own table and profiles in opstate.
type Store struct {
	db    *sql.DB
	state *opstate.Store
}

// NewStore creates a link store.
func NewStore(db *sql.DB, state *opstate.Store) (*Store, error) {
	s := &Store{db: db, state: state}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS links (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_links_session ON links(session_id);
	`)
	return err
}

// Links returns a session's links in the order they were added.
func (s *Store) Links(ctx context.Context, sessionID string) ([]*Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, url, created_at FROM links WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	out := []*Link{}
	for rows.Next() {
		var l Link
		var created string
		if err := rows.Scan(&l.ID, &l.Title, &l.URL, &created); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		if l.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", l.ID, err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// AddLink appends a link. rawURL must be absolute http(s).
func (s *Store) AddLink(ctx context.Context, sessionID, title, rawURL string) (*Link, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = u.Host
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	l := &Link{ID: id.String(), Title: title, URL: u.String(), CreatedAt: time.Now().UTC()}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO links (id, session_id, title, url, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, sessionID, l.Title, l.URL, l.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert link: %w", err)
	}
	return l, nil
}

// Profile returns the session's profile or [DefaultProfile].
func (s *Store) Profile(ctx context.Context, sessionID string) (Profile, error) {
	var p Profile
	err := s.state.GetJSON(ctx, profileNamespace, sessionID, &p)
	if errors.Is(err, opstate.ErrNotFound) {
		return DefaultProfile(), nil
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SetProfile replaces the session's profile. Blank fields keep their
// defaults.
func (s *Store) SetProfile(ctx context.Context, sessionID string, p Profile) (Profile, error) {
	def := DefaultProfile()
	if strings.TrimSpace(p.Name) == "" {
		p.Name = def.Name
	}
	if strings.TrimSpace(p.Bio) == "" {
		p.Bio = def.Bio
	}
	if err := s.state.SetJSON(ctx, profileNamespace, sessionID, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// QRCode renders content as a PNG QR code of size×size pixels.
func QRCode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is required")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > MaxQRSize {
		size = MaxQRSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}
