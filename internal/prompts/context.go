package prompts

import (
	"fmt"
	"strings"
	"time"
)

// TimeLineFormat is the layout of the current-time line appended to
// every system message, e.g. "Tuesday, March 04, 2025 at 09:30 AM".
const TimeLineFormat = "Monday, January 02, 2006 at 03:04 PM"

// MemoryBlock renders remembered facts as a bulleted list. It returns an
// empty string when there is nothing to remember so callers can omit
// the block entirely.
func MemoryBlock(facts []string) string {
	var sb strings.Builder
	for _, f := range facts {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		sb.WriteString("\n- ")
		sb.WriteString(f)
	}
	if sb.Len() == 0 {
		return ""
	}
	return "[MEMORY] Things you remember about the user across sessions:" + sb.String()
}

// TimeLine renders the current-time context line.
func TimeLine(now time.Time) string {
	return "[CONTEXT] Current time: " + now.Format(TimeLineFormat)
}

// CompressionNotice stands in for turns dropped from the middle of a
// long conversation.
func CompressionNotice(summarized int) string {
	return fmt.Sprintf("[Conversation compressed: %d earlier messages were summarized to save context.]", summarized)
}
