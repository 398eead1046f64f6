package activity

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nugget/localagent/internal/database"
	"github.com/nugget/localagent/internal/events"
)

type memorySink struct {
	mu  sync.Mutex
	got []events.Event
}

func (m *memorySink) Send(e events.Event) {
	m.mu.Lock()
	m.got = append(m.got, e)
	m.mu.Unlock()
}

func newTestLogger(t *testing.T, bus *events.Bus, sinks ...Sink) *Logger {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l, err := NewLogger(db, bus, nil, sinks...)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestIsImportant(t *testing.T) {
	for _, typ := range []string{SessionCreated, PromptActivated, OffTopicRequest, ModelError, ToolCalled} {
		if !IsImportant(typ) {
			t.Errorf("IsImportant(%q) = false", typ)
		}
	}
	for _, typ := range []string{"", "message_sent", "heartbeat"} {
		if IsImportant(typ) {
			t.Errorf("IsImportant(%q) = true", typ)
		}
	}
}

func TestLogger_FiltersAndPersists(t *testing.T) {
	sink := &memorySink{}
	l := newTestLogger(t, nil, sink)
	ctx := context.Background()

	l.Log("s1", PromptActivated, map[string]any{"prompt_id": "p1"})
	l.Log("s1", "message_sent", map[string]any{"len": 3})
	l.Log("s1", OffTopicRequest, nil)
	l.Log("s2", ModelError, map[string]any{"status": 502})

	got, err := l.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(s1) = %d events, want 2", len(got))
	}
	if got[0].Type != PromptActivated || got[1].Type != OffTopicRequest {
		t.Errorf("order = %s, %s", got[0].Type, got[1].Type)
	}
	if got[0].Data["prompt_id"] != "p1" {
		t.Errorf("data = %v", got[0].Data)
	}
	if got[1].Data == nil {
		t.Error("nil data should be stored as an empty object")
	}

	if len(sink.got) != 3 {
		t.Errorf("sink received %d events, want 3", len(sink.got))
	}
}

func TestLogger_RecentLimit(t *testing.T) {
	l := newTestLogger(t, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.Log("s1", ToolCalled, map[string]any{"i": i})
	}

	got, err := l.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// JSON numbers decode as float64.
	if got[0].Data["i"] != float64(3) || got[1].Data["i"] != float64(4) {
		t.Errorf("Recent(2) = %v, %v", got[0].Data, got[1].Data)
	}
}

func TestLogger_PublishesToBus(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe("s1", 4)
	defer sub.Close()

	l := newTestLogger(t, bus)
	l.Log("s1", RoleSwitched, map[string]any{"role": "doctor"})

	select {
	case e := <-sub.C:
		if e.Type != RoleSwitched || e.SessionID != "s1" {
			t.Errorf("bus event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event on bus")
	}
}

func TestLogger_CountSince(t *testing.T) {
	l := newTestLogger(t, nil)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	l.Log("s1", OffTopicRequest, nil)
	l.Log("s2", OffTopicRequest, nil)
	l.Log("s2", ToolCalled, nil)

	n, err := l.CountSince(ctx, OffTopicRequest, start)
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if n != 2 {
		t.Errorf("CountSince = %d, want 2", n)
	}
	n, _ = l.CountSince(ctx, OffTopicRequest, time.Now().Add(time.Hour))
	if n != 0 {
		t.Errorf("CountSince(future) = %d, want 0", n)
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.Log("s1", SessionCreated, nil)
}

func TestLogger_LogDoesNotWaitForWrites(t *testing.T) {
	l := newTestLogger(t, nil)
	ctx := context.Background()

	// Hold the database so inserts cannot proceed.
	conn, err := l.db.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		t.Fatalf("lock database: %v", err)
	}

	logged := make(chan struct{})
	go func() {
		l.Log("s1", ToolCalled, map[string]any{"tool": "a"})
		l.Log("s1", ToolCalled, map[string]any{"tool": "b"})
		close(logged)
	}()
	select {
	case <-logged:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a locked database")
	}

	if _, err := conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	got, err := l.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Data["tool"] != "a" || got[1].Data["tool"] != "b" {
		t.Errorf("Recent = %+v, want a then b", got)
	}
}

func TestLogger_Close(t *testing.T) {
	l := newTestLogger(t, nil)
	ctx := context.Background()

	l.Log("s1", SessionCreated, nil)
	l.Close()
	l.Close()
	l.Log("s1", SessionArchived, nil)

	got, err := l.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[1].Type != SessionArchived {
		t.Errorf("Recent = %+v", got)
	}
}
