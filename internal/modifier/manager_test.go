package modifier

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nugget/localagent/internal/database"
)

type recordedEvent struct {
	session string
	kind    string
	data    map[string]any
}

type recordingActivity struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingActivity) Log(sessionID, eventType string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{session: sessionID, kind: eventType, data: data})
}

func (r *recordingActivity) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

type staticResolver struct {
	text string
	err  error
	got  string
}

func (s *staticResolver) Resolve(_ context.Context, source string) (string, error) {
	s.got = source
	return s.text, s.err
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "modifiers.db"))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	return store
}

func newTestManager(t *testing.T) (*Manager, *SQLiteStore, *recordingActivity) {
	t.Helper()
	store := newTestStore(t)
	activity := &recordingActivity{}
	mgr := NewManager(store, activity, nil, nil)
	mgr.now = func() time.Time { return time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC) }
	return mgr, store, activity
}

func countActive(mods []*Modifier) int {
	n := 0
	for _, m := range mods {
		if m.Active() {
			n++
		}
	}
	return n
}

func TestSQLiteStore_SaveReplacesCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := []*Modifier{
		{ID: "a", Kind: KindTask, Content: "one", State: StateInactive, CreatedAt: now},
		{ID: "b", Kind: KindForbiddenWords, State: StateActive, CreatedAt: now,
			Metadata: map[string]any{MetaWords: []string{"secret"}}},
	}
	if err := store.Save(ctx, "s1", first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("List() = %+v, want [a b] in order", got)
	}
	if words := got[1].Words(); len(words) != 1 || words[0] != "secret" {
		t.Errorf("round-tripped words = %q", words)
	}

	active, err := store.Active(ctx, "s1")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active == nil || active.ID != "b" {
		t.Errorf("Active() = %+v, want b", active)
	}

	if err := store.Save(ctx, "s1", first[:1]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ = store.List(ctx, "s1")
	if len(got) != 1 {
		t.Errorf("after replace len = %d, want 1", len(got))
	}

	other, _ := store.List(ctx, "s2")
	if len(other) != 0 {
		t.Errorf("other session has %d modifiers, want 0", len(other))
	}
}

func TestSQLiteStore_MalformedMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(`
		INSERT INTO modifiers (session_id, position, id, kind, state, created_at, metadata)
		VALUES ('s1', 0, 'x', 'task', 'active', ?, '{not json')
	`, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := store.List(ctx, "s1"); !errors.Is(err, ErrMalformed) {
		t.Errorf("List() error = %v, want ErrMalformed", err)
	}
}

func TestManager_SingleActive(t *testing.T) {
	mgr, store, activity := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.Create(ctx, "s1", Params{Kind: KindTask, Name: "Focus", Content: "fix the bug"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := mgr.Create(ctx, "s1", Params{Kind: KindDebate, Name: "Debate"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mods, _ := store.List(ctx, "s1")
	if len(mods) != 2 {
		t.Fatalf("len(mods) = %d, want 2", len(mods))
	}
	if countActive(mods) != 1 {
		t.Errorf("active count = %d, want 1", countActive(mods))
	}

	active, _ := mgr.Active(ctx, "s1")
	if active == nil || active.ID != second.ID {
		t.Errorf("Active() = %+v, want %s", active, second.ID)
	}

	if _, err := mgr.Deactivate(ctx, "s1", second.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	active, _ = mgr.Active(ctx, "s1")
	if active != nil {
		t.Errorf("Active() after deactivate = %+v, want nil", active)
	}

	want := []string{"prompt_activated", "prompt_deactivated", "prompt_activated", "prompt_deactivated"}
	got := activity.types()
	if len(got) != len(want) {
		t.Fatalf("activity = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("activity[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if activity.events[1].data["prompt_id"] != first.ID {
		t.Errorf("deactivation notice names %v, want %s", activity.events[1].data["prompt_id"], first.ID)
	}
}

func TestManager_ConcurrentCreatesKeepOneActive(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Create(ctx, "s1", Params{Kind: KindLearn, Name: "Learn"}); err != nil {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()

	mods, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mods) != 8 {
		t.Errorf("len(mods) = %d, want 8", len(mods))
	}
	if countActive(mods) != 1 {
		t.Errorf("active count = %d, want 1", countActive(mods))
	}
}

func TestManager_CreateRejectsUnknownKind(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, err := mgr.Create(context.Background(), "s1", Params{Kind: "sarcasm"})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Create with unknown kind = %v, want ErrInvalid", err)
	}
}

func TestManager_CreateAcceptsAnyKindCase(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	m, err := mgr.Create(context.Background(), "s1", Params{Kind: " Task ", Content: "ship the release"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Kind != KindTask {
		t.Errorf("Kind = %q, want %q", m.Kind, KindTask)
	}
}

func TestManager_Normalize(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	words, err := mgr.Create(ctx, "s1", Params{Kind: KindForbiddenWords, Name: "Words", Content: "secret, plan"})
	if err != nil {
		t.Fatalf("Create forbidden_words: %v", err)
	}
	if got := words.Words(); len(got) != 2 || got[0] != "secret" || got[1] != "plan" {
		t.Errorf("Words() = %q", got)
	}

	if _, err := mgr.Create(ctx, "s1", Params{Kind: KindForbiddenWords, Content: " , "}); err == nil {
		t.Error("forbidden_words with no words should fail")
	}

	target, err := mgr.Create(ctx, "s1", Params{Kind: KindTimeTarget, Name: "Clock", Content: "1 hour"})
	if err != nil {
		t.Fatalf("Create time_target: %v", err)
	}
	if target.TimeRemaining() != "1 hour" {
		t.Errorf("TimeRemaining() = %q", target.TimeRemaining())
	}
	if target.Deadline() != "3:00PM" {
		t.Errorf("Deadline() = %q, want %q", target.Deadline(), "3:00PM")
	}

	read, err := mgr.Create(ctx, "s1", Params{Kind: KindRead, Name: "Notes", Content: "inline notes"})
	if err != nil {
		t.Fatalf("Create read: %v", err)
	}
	if read.SharedContent() != "inline notes" {
		t.Errorf("SharedContent() = %q", read.SharedContent())
	}
}

func TestManager_ReadResolvesSource(t *testing.T) {
	store := newTestStore(t)
	resolver := &staticResolver{text: "fetched page"}
	mgr := NewManager(store, nil, resolver, nil)
	ctx := context.Background()

	m, err := mgr.Create(ctx, "s1", Params{
		Kind:     KindRead,
		Name:     "Article",
		Metadata: map[string]any{MetaSource: "https://example.com/a"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resolver.got != "https://example.com/a" {
		t.Errorf("resolver saw %q", resolver.got)
	}
	if m.SharedContent() != "fetched page" {
		t.Errorf("SharedContent() = %q", m.SharedContent())
	}

	resolver.err = errors.New("boom")
	if _, err := mgr.Create(ctx, "s1", Params{Kind: KindRead, Metadata: map[string]any{MetaSource: "x"}}); err == nil {
		t.Error("Create should fail when the source cannot be resolved")
	}
}

func TestManager_RemoveAndClear(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	a, _ := mgr.Create(ctx, "s1", Params{Kind: KindTask, Content: "a"})
	b, _ := mgr.Create(ctx, "s1", Params{Kind: KindTask, Content: "b"})

	if err := mgr.Remove(ctx, "s1", a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := mgr.Remove(ctx, "s1", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove error = %v, want ErrNotFound", err)
	}
	if _, err := mgr.Deactivate(ctx, "s1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deactivate(missing) error = %v, want ErrNotFound", err)
	}

	mods, _ := store.List(ctx, "s1")
	if len(mods) != 1 || mods[0].ID != b.ID {
		t.Fatalf("after Remove = %+v, want only %s", mods, b.ID)
	}

	if err := mgr.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	mods, _ = store.List(ctx, "s1")
	if len(mods) != 0 {
		t.Errorf("after Clear len = %d, want 0", len(mods))
	}
}
