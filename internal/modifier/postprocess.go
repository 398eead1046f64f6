package modifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RedactionToken replaces forbidden words in replies.
const RedactionToken = "[redacted]"

var stopWords = map[string]bool{
	"is": true, "a": true, "the": true, "to": true, "of": true, "and": true,
	"or": true, "in": true, "at": true, "on": true, "for": true,
}

// Redact replaces every whole-word, case-insensitive occurrence of the
// modifier's forbidden words in reply. Other kinds pass reply through.
// Word boundaries are Unicode-aware, so "café" and "سر" redact while
// "secret" inside "secreté" does not.
func Redact(reply string, m *Modifier) string {
	if !m.Active() || m.Kind != KindForbiddenWords {
		return reply
	}
	for _, w := range m.Words() {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(w))
		if err != nil {
			continue
		}
		reply = redactWord(reply, re)
	}
	return reply
}

// redactWord replaces the matches of re that are not adjacent to a word
// character on either side.
func redactWord(s string, re *regexp.Regexp) string {
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(s, -1) {
		start, end := loc[0], loc[1]
		if start == end {
			continue
		}
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); start > 0 && isWordRune(r) {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(s[end:]); end < len(s) && isWordRune(r) {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(RedactionToken)
		last = end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Keywords returns the significant words of a task description: stop
// words and anything shorter than three characters are dropped.
func Keywords(text string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if stopWords[w] || utf8.RuneCountInString(w) <= 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}

// IsOffTopic reports whether message ignores the focus of an active
// task modifier. A keyword counts as present when it appears anywhere
// in the lowercased message, so "payments" matches "payment".
func IsOffTopic(message string, m *Modifier) bool {
	if !m.Active() || m.Kind != KindTask {
		return false
	}
	keywords := Keywords(m.Content)
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}
