package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestIdentityLock(t *testing.T) {
	id := IdentityLock()
	if !strings.HasPrefix(id, "IDENTITY: You are LocalAgent.") {
		t.Errorf("identity block should open with the identity statement, got %q", id[:40])
	}
	if !strings.Contains(id, "I am LocalAgent, your private local AI system.") {
		t.Error("identity block should carry the scripted self-description")
	}
}

func TestTimeLine_Format(t *testing.T) {
	now := time.Date(2025, time.March, 4, 9, 30, 0, 0, time.Local)
	got := TimeLine(now)
	want := "[CONTEXT] Current time: Tuesday, March 04, 2025 at 09:30 AM"
	if got != want {
		t.Errorf("TimeLine() = %q, want %q", got, want)
	}
}

func TestMemoryBlock(t *testing.T) {
	if got := MemoryBlock(nil); got != "" {
		t.Errorf("MemoryBlock(nil) = %q, want empty", got)
	}
	if got := MemoryBlock([]string{"  ", ""}); got != "" {
		t.Errorf("MemoryBlock(blank) = %q, want empty", got)
	}

	got := MemoryBlock([]string{"likes tea", "lives in Dubai"})
	if !strings.Contains(got, "\n- likes tea\n- lives in Dubai") {
		t.Errorf("MemoryBlock() = %q, want bulleted facts in order", got)
	}
}

func TestScheduleUrgency_UsesClock(t *testing.T) {
	now := time.Date(2025, time.March, 4, 14, 5, 0, 0, time.Local)
	got := ScheduleUrgency("dentist", now)
	if !strings.Contains(got, "Task scheduled: dentist.") {
		t.Errorf("missing task: %q", got)
	}
	if !strings.Contains(got, "Current time: Tuesday 02:05 PM.") {
		t.Errorf("missing clock: %q", got)
	}
}

func TestInterviewMode_FormatHint(t *testing.T) {
	if !strings.Contains(InterviewMode(), "Q: [question]\nA: [response]") {
		t.Error("interview injection should carry the Q/A format hint")
	}
}

func TestCompressionNotice(t *testing.T) {
	if !strings.Contains(CompressionNotice(19), "19") {
		t.Error("compression notice should state the count")
	}
}
