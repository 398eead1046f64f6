package events

import (
	"sync"
	"testing"
	"time"
)

func TestNilBus(t *testing.T) {
	var b *Bus
	b.Publish(Event{Type: "session_created"})
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() on nil bus = %d, want 0", got)
	}
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e := <-sub.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublish_SessionFilter(t *testing.T) {
	b := New()
	all := b.Subscribe("", 8)
	defer all.Close()
	only := b.Subscribe("s1", 8)
	defer only.Close()

	b.Publish(Event{SessionID: "s2", Type: "prompt_activated"})
	b.Publish(Event{SessionID: "s1", Type: "off_topic_request", Data: map[string]any{"message": "hi"}})

	if got := receive(t, all); got.SessionID != "s2" {
		t.Errorf("all-sessions subscriber first event = %+v", got)
	}
	if got := receive(t, all); got.SessionID != "s1" {
		t.Errorf("all-sessions subscriber second event = %+v", got)
	}

	got := receive(t, only)
	if got.SessionID != "s1" || got.Type != "off_topic_request" {
		t.Errorf("filtered subscriber got %+v", got)
	}
	if msg, _ := got.Data["message"].(string); msg != "hi" {
		t.Errorf("data message = %v", got.Data["message"])
	}

	select {
	case e := <-only.C:
		t.Errorf("filtered subscriber got unexpected %+v", e)
	default:
	}
}

func TestPublish_DropsWhenFull(t *testing.T) {
	b := New()
	sub := b.Subscribe("", 1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Type: "tool_called"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if sub.Dropped() != 9 {
		t.Errorf("Dropped() = %d, want 9", sub.Dropped())
	}
}

func TestSubscription_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe("", 4)
	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", b.SubscriberCount())
	}

	sub.Close()
	sub.Close()

	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after Close = %d, want 0", b.SubscriberCount())
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed")
	}
	b.Publish(Event{Type: "session_created"})
}

func TestPublish_Concurrent(t *testing.T) {
	b := New()
	sub := b.Subscribe("", 1000)
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(Event{SessionID: "s1", Type: "tool_called"})
			}
		}()
	}
	wg.Wait()

	if got := len(sub.C); got != 500 {
		t.Errorf("buffered events = %d, want 500", got)
	}
}
