package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nugget/localagent/internal/database"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	return s
}

func makeTurns(n int) []Turn {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	turns := make([]Turn, n)
	for i := range turns {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		turns[i] = Turn{ID: fmt.Sprintf("t%02d", i), Role: role, Text: fmt.Sprintf("turn %d", i), Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}
	return turns
}

func TestCompressor_Identity(t *testing.T) {
	c := DefaultCompressor()
	for _, n := range []int{0, 1, 29, 30} {
		turns := makeTurns(n)
		got := c.Bound(turns)
		if len(got) != n {
			t.Errorf("Bound(%d turns) returned %d", n, len(got))
		}
		for i := range got {
			if got[i].ID != turns[i].ID {
				t.Errorf("Bound(%d turns)[%d] = %s, want %s", n, i, got[i].ID, turns[i].ID)
			}
		}
	}
}

func TestCompressor_Compresses(t *testing.T) {
	turns := makeTurns(45)
	got := DefaultCompressor().Bound(turns)

	if len(got) != 27 {
		t.Fatalf("len(Bound(45)) = %d, want 27", len(got))
	}
	if got[0].ID != "t00" || got[1].ID != "t01" {
		t.Errorf("head = %s %s, want t00 t01", got[0].ID, got[1].ID)
	}
	notice := got[2]
	if notice.Role != RoleSystem {
		t.Errorf("notice role = %q, want system", notice.Role)
	}
	if !strings.Contains(notice.Text, "19") {
		t.Errorf("notice %q does not mention 19 dropped turns", notice.Text)
	}
	if got[3].ID != "t21" || got[26].ID != "t44" {
		t.Errorf("tail = %s .. %s, want t21 .. t44", got[3].ID, got[26].ID)
	}
	if len(turns) != 45 || turns[2].ID != "t02" {
		t.Error("Bound modified its input")
	}
}

func TestSessionDefaults(t *testing.T) {
	id := NewSessionID(time.UnixMilli(1700000000123))
	if id != "local-1700000000123" {
		t.Errorf("NewSessionID = %q", id)
	}
	if got := DefaultTitle(id); got != "Session 00000123" {
		t.Errorf("DefaultTitle = %q", got)
	}
	if got := DefaultTitle("abc"); got != "Session abc" {
		t.Errorf("DefaultTitle(short) = %q", got)
	}
}

func TestSQLiteStore_Sessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "local-1", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.FolderID != DefaultFolderID || sess.Title != "Session local-1" {
		t.Errorf("CreateSession = %+v", sess)
	}

	if _, err := s.CreateSession(ctx, "local-2", "nope", ""); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("CreateSession in missing folder error = %v, want ErrFolderNotFound", err)
	}

	if err := s.RenameSession(ctx, "local-1", "Planning"); err != nil {
		t.Fatalf("RenameSession: %v", err)
	}
	got, err := s.GetSession(ctx, "local-1")
	if err != nil || got.Title != "Planning" {
		t.Errorf("GetSession = %+v, %v", got, err)
	}
	if err := s.RenameSession(ctx, "missing", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("RenameSession(missing) error = %v", err)
	}

	_, created, err := s.EnsureSession(ctx, "local-1")
	if err != nil || created {
		t.Errorf("EnsureSession(existing) created=%v err=%v", created, err)
	}
	_, created, err = s.EnsureSession(ctx, "cli")
	if err != nil || !created {
		t.Errorf("EnsureSession(new) created=%v err=%v", created, err)
	}

	list, _ := s.ListSessions(ctx, "")
	if len(list) != 2 {
		t.Errorf("ListSessions = %d, want 2", len(list))
	}

	if err := s.ArchiveSession(ctx, "local-1"); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}
	list, _ = s.ListSessions(ctx, DefaultFolderID)
	if len(list) != 1 || list[0].ID != "cli" {
		t.Errorf("ListSessions after archive = %+v", list)
	}
	n, _ := s.CountSessions(ctx)
	if n != 1 {
		t.Errorf("CountSessions = %d, want 1", n)
	}
}

func TestSQLiteStore_Turns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateSession(ctx, "s1", "", "")

	for _, turn := range makeTurns(5) {
		turn.ID = ""
		if _, err := s.AppendTurn(ctx, "s1", turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	s.AppendTurn(ctx, "s2", Turn{Role: RoleUser, Text: "elsewhere"})

	all, err := s.LoadTurns(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("LoadTurns: %v", err)
	}
	if len(all) != 5 || all[0].Text != "turn 0" || all[4].Text != "turn 4" {
		t.Fatalf("LoadTurns(all) = %+v", all)
	}
	if all[0].ID == "" {
		t.Error("AppendTurn did not assign an ID")
	}

	last, _ := s.LoadTurns(ctx, "s1", 2)
	if len(last) != 2 || last[0].Text != "turn 3" || last[1].Text != "turn 4" {
		t.Errorf("LoadTurns(2) = %+v", last)
	}

	n, _ := s.CountTurns(ctx, "s1")
	if n != 5 {
		t.Errorf("CountTurns = %d, want 5", n)
	}
}

func TestSQLiteStore_Folders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	folders, err := s.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 1 || folders[0].ID != DefaultFolderID || folders[0].Name != "Default" {
		t.Fatalf("ListFolders on fresh store = %+v", folders)
	}
	if folders[0].Sessions == nil {
		t.Error("default folder Sessions should be an empty slice, not nil")
	}

	work, err := s.CreateFolder(ctx, "Work")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if !strings.HasPrefix(work.ID, "folder-") || len(work.ID) != len("folder-")+8 {
		t.Errorf("folder ID = %q", work.ID)
	}
	if _, err := s.CreateFolder(ctx, " "); err == nil {
		t.Error("CreateFolder with blank name should fail")
	}

	s.CreateSession(ctx, "w1", work.ID, "Draft")
	got, err := s.GetFolder(ctx, work.ID)
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	if len(got.Sessions) != 1 || got.Sessions[0] != "w1" {
		t.Errorf("folder sessions = %q", got.Sessions)
	}
}

type countingStore struct {
	*SQLiteStore
	loads int
	limit int
}

func (c *countingStore) LoadTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	c.loads++
	c.limit = limit
	return c.SQLiteStore.LoadTurns(ctx, sessionID, limit)
}

func TestCache_HydratesOnceWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, turn := range makeTurns(50) {
		turn.ID = ""
		s.AppendTurn(ctx, "s1", turn)
	}

	store := &countingStore{SQLiteStore: s}
	cache := NewCache(store, 40)

	hist, err := cache.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 40 || hist[0].Text != "turn 10" {
		t.Fatalf("hydrated %d turns starting %q, want 40 starting turn 10", len(hist), hist[0].Text)
	}

	if err := cache.Append(ctx, "s1", Turn{Role: RoleUser, Text: "new"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	hist, _ = cache.History(ctx, "s1")
	if len(hist) != 41 || hist[40].Text != "new" {
		t.Errorf("after Append len=%d last=%q", len(hist), hist[len(hist)-1].Text)
	}
	if store.loads != 1 || store.limit != 40 {
		t.Errorf("loads=%d limit=%d, want 1 load with limit 40", store.loads, store.limit)
	}

	n, _ := s.CountTurns(ctx, "s1")
	if n != 51 {
		t.Errorf("persisted turns = %d, want 51", n)
	}

	cache.Forget("s1")
	if cache.Len() != 0 {
		t.Errorf("Len after Forget = %d", cache.Len())
	}
}
