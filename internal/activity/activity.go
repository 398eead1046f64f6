// Package activity records the notable events of each session: prompt
// modifier changes, off-topic requests, model errors and tool calls.
// Routine traffic is filtered out so the log stays readable.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nugget/localagent/internal/events"
)

// Event types worth recording.
const (
	SessionCreated    = "session_created"
	SessionArchived   = "session_archived"
	PromptActivated   = "prompt_activated"
	PromptDeactivated = "prompt_deactivated"
	OffTopicRequest   = "off_topic_request"
	PromptViolation   = "prompt_violation"
	TimeWarning       = "time_warning"
	RecordingCreated  = "recording_created"
	ModelError        = "model_error"
	RoleSwitched      = "role_switched"
	ToolCalled        = "tool_called"
)

var important = map[string]bool{
	SessionCreated:    true,
	SessionArchived:   true,
	PromptActivated:   true,
	PromptDeactivated: true,
	OffTopicRequest:   true,
	PromptViolation:   true,
	TimeWarning:       true,
	RecordingCreated:  true,
	ModelError:        true,
	RoleSwitched:      true,
	ToolCalled:        true,
}

// timeLayout is fixed-width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// IsImportant reports whether eventType is recorded. Everything else is
// silently ignored by [Logger.Log].
func IsImportant(eventType string) bool {
	return important[eventType]
}

// Sink receives every recorded event. Send must not block.
type Sink interface {
	Send(e events.Event)
}

// queueSize bounds the events waiting to be written.
const queueSize = 256

// Logger persists important events and fans them out to the bus and
// any extra sinks. A failure anywhere is logged and swallowed.
//
// Writes happen on a background goroutine in arrival order. [Logger.Log]
// blocks only while queueSize events are already waiting. Reads flush
// the queue first, so an event is visible to [Logger.Recent] as soon as
// Log returns.
type Logger struct {
	db     *sql.DB
	bus    *events.Bus
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool
	queue  chan write
	done   chan struct{}
}

// write is one queued insert, or a flush marker when flushed is set.
type write struct {
	event   events.Event
	flushed chan struct{}
}

// NewLogger creates the activity table if needed and starts the
// writer. bus may be nil. Call Close to drain pending writes.
func NewLogger(db *sql.DB, bus *events.Bus, logger *slog.Logger, sinks ...Sink) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{
		db:     db,
		bus:    bus,
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
		queue:  make(chan write, queueSize),
		done:   make(chan struct{}),
	}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	go l.writeLoop()
	return l, nil
}

func (l *Logger) writeLoop() {
	defer close(l.done)
	for w := range l.queue {
		if w.flushed != nil {
			close(w.flushed)
			continue
		}
		l.store(w.event)
	}
}

func (l *Logger) store(e events.Event) {
	if err := l.persist(e); err != nil {
		l.logger.Warn("activity event not persisted",
			"session", e.SessionID, "type", e.Type, "error", err)
	}
}

// flush waits until every event queued before the call is written.
func (l *Logger) flush(ctx context.Context) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil
	}
	marker := make(chan struct{})
	select {
	case l.queue <- write{flushed: marker}:
		l.mu.RUnlock()
	case <-ctx.Done():
		l.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes the pending events and stops the writer. Events logged
// afterwards are written synchronously.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Logger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS activity (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			timestamp TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_activity_session ON activity(session_id, seq);
	`)
	return err
}

// AddSink attaches another sink. Call before the logger is shared.
func (l *Logger) AddSink(s Sink) {
	l.sinks = append(l.sinks, s)
}

// Log records an event if its type is important. It never returns an
// error and never panics on nil data.
func (l *Logger) Log(sessionID, eventType string, data map[string]any) {
	if l == nil || !IsImportant(eventType) {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	e := events.Event{
		Timestamp: l.now().UTC(),
		SessionID: sessionID,
		Type:      eventType,
		Data:      data,
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		l.store(e)
	} else {
		l.queue <- write{event: e}
		l.mu.RUnlock()
	}

	l.bus.Publish(e)
	for _, s := range l.sinks {
		s.Send(e)
	}

	l.logger.Debug("activity", "session", sessionID, "type", eventType)
}

func (l *Logger) persist(e events.Event) error {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO activity (session_id, type, data, timestamp) VALUES (?, ?, ?, ?)
	`, e.SessionID, e.Type, string(payload), e.Timestamp.Format(timeLayout))
	return err
}

// Recent returns the session's last limit events, oldest first. Rows
// with undecodable data are returned with empty data.
func (l *Logger) Recent(ctx context.Context, sessionID string, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	if err := l.flush(ctx); err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, type, data, timestamp FROM activity
		WHERE session_id = ? ORDER BY seq DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		var (
			e       events.Event
			payload string
			ts      string
		)
		if err := rows.Scan(&e.SessionID, &e.Type, &payload, &ts); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if err := json.Unmarshal([]byte(payload), &e.Data); err != nil {
			l.logger.Warn("malformed activity data", "session", sessionID, "error", err)
			e.Data = map[string]any{}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountSince returns how many events of eventType were recorded across
// all sessions since t.
func (l *Logger) CountSince(ctx context.Context, eventType string, t time.Time) (int, error) {
	if err := l.flush(ctx); err != nil {
		return 0, err
	}
	var n int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM activity WHERE type = ? AND timestamp >= ?
	`, eventType, t.UTC().Format(timeLayout)).Scan(&n)
	return n, err
}
