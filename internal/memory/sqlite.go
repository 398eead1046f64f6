package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore persists sessions, turns and folders.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the schema if needed and makes sure the default
// folder exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		folder_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at TEXT NOT NULL,
		last_modified TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_folder ON sessions(folder_id);

	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		model TEXT,
		tool_name TEXT,
		tool_call_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	_, err := s.db.Exec(`INSERT OR IGNORE INTO folders (id, name, created_at) VALUES (?, ?, ?)`,
		DefaultFolderID, "Default", formatTime(time.Now()))
	return err
}

// CreateSession registers a new session in folderID (the default folder
// when empty). An empty title becomes [DefaultTitle].
func (s *SQLiteStore) CreateSession(ctx context.Context, id, folderID, title string) (*Session, error) {
	if folderID == "" {
		folderID = DefaultFolderID
	}
	if _, err := s.GetFolder(ctx, folderID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(id)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, folder_id, title, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?)
	`, id, folderID, title, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &Session{ID: id, FolderID: folderID, Title: title, CreatedAt: now, LastModified: now}, nil
}

// EnsureSession returns the session, creating it in the default folder
// when it does not exist yet. created reports which happened.
func (s *SQLiteStore) EnsureSession(ctx context.Context, id string) (sess *Session, created bool, err error) {
	sess, err = s.GetSession(ctx, id)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, false, err
	}
	sess, err = s.CreateSession(ctx, id, DefaultFolderID, "")
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// GetSession returns one session, archived or not.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, folder_id, title, created_at, last_modified, archived
		FROM sessions WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// ListSessions returns unarchived sessions, most recently modified first.
// An empty folderID lists every folder.
func (s *SQLiteStore) ListSessions(ctx context.Context, folderID string) ([]*Session, error) {
	query := `SELECT id, folder_id, title, created_at, last_modified, archived
		FROM sessions WHERE archived = 0`
	var args []any
	if folderID != "" {
		query += ` AND folder_id = ?`
		args = append(args, folderID)
	}
	query += ` ORDER BY last_modified DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// RenameSession changes a session title.
func (s *SQLiteStore) RenameSession(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET title = ?, last_modified = ? WHERE id = ?`,
		title, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return requireRow(res, ErrSessionNotFound)
}

// ArchiveSession hides a session from listings. Its transcript is kept.
func (s *SQLiteStore) ArchiveSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET archived = 1, last_modified = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return requireRow(res, ErrSessionNotFound)
}

// CountSessions returns the number of unarchived sessions.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE archived = 0`).Scan(&n)
	return n, err
}

// AppendTurn writes a turn and bumps the session's last_modified.
// Missing IDs and timestamps are filled in.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID string, t Turn) (Turn, error) {
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, role, text, timestamp, model, tool_name, tool_call_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, sessionID, t.Role, t.Text, formatTime(t.Timestamp),
		nullString(t.Model), nullString(t.ToolName), nullString(t.ToolCallID))
	if err != nil {
		return t, fmt.Errorf("insert turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET last_modified = ? WHERE id = ?`,
		formatTime(t.Timestamp), sessionID); err != nil {
		return t, fmt.Errorf("touch session: %w", err)
	}

	return t, tx.Commit()
}

// LoadTurns returns the session's turns in order. A positive limit keeps
// only the most recent limit turns.
func (s *SQLiteStore) LoadTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	query := `SELECT id, role, text, timestamp, model, tool_name, tool_call_id
		FROM turns WHERE session_id = ? ORDER BY seq DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t                         Turn
			ts                        string
			model, toolName, toolCall sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Role, &t.Text, &ts, &model, &toolName, &toolCall); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("turn %s: bad timestamp: %w", t.ID, err)
		}
		t.Model = model.String
		t.ToolName = toolName.String
		t.ToolCallID = toolCall.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// CountTurns returns how many turns a session has.
func (s *SQLiteStore) CountTurns(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// CountAllTurns returns the number of turns across unarchived sessions.
func (s *SQLiteStore) CountAllTurns(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM turns t JOIN sessions s ON s.id = t.session_id WHERE s.archived = 0
	`).Scan(&n)
	return n, err
}

// CreateFolder adds a folder with a generated "folder-xxxxxxxx" ID.
func (s *SQLiteStore) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}
	id := "folder-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx, `INSERT INTO folders (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, formatTime(now)); err != nil {
		return nil, fmt.Errorf("insert folder: %w", err)
	}
	return &Folder{ID: id, Name: name, Sessions: []string{}, CreatedAt: now}, nil
}

// GetFolder returns one folder with its session IDs.
func (s *SQLiteStore) GetFolder(ctx context.Context, id string) (*Folder, error) {
	var (
		f       Folder
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM folders WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query folder: %w", err)
	}
	f.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)

	if f.Sessions, err = s.folderSessions(ctx, id); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFolders returns every folder, the default folder first.
func (s *SQLiteStore) ListFolders(ctx context.Context) ([]*Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM folders
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END, created_at
	`, DefaultFolderID)
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}

	var folders []*Folder
	for rows.Next() {
		var (
			f       Folder
			created string
		)
		if err := rows.Scan(&f.ID, &f.Name, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		folders = append(folders, &f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, f := range folders {
		if f.Sessions, err = s.folderSessions(ctx, f.ID); err != nil {
			return nil, err
		}
	}
	return folders, nil
}

func (s *SQLiteStore) folderSessions(ctx context.Context, folderID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE folder_id = ? AND archived = 0 ORDER BY created_at`, folderID)
	if err != nil {
		return nil, fmt.Errorf("query folder sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess              Session
		created, modified string
		archived          int
	)
	if err := row.Scan(&sess.ID, &sess.FolderID, &sess.Title, &created, &modified, &archived); err != nil {
		return nil, err
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	sess.LastModified, _ = time.Parse(time.RFC3339Nano, modified)
	sess.Archived = archived != 0
	return &sess, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
