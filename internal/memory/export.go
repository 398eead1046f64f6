package memory

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
)

// ExportMarkdown renders a session transcript as a markdown document.
func ExportMarkdown(sess *Session, turns []Turn) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", sess.Title)
	fmt.Fprintf(&sb, "**Session:** %s\n", sess.ID)
	fmt.Fprintf(&sb, "**Started:** %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "**Messages:** %d\n", len(turns))
	sb.WriteString("\n---\n\n")

	for _, t := range turns {
		ts := t.Timestamp.Format("15:04:05")
		switch t.Role {
		case RoleUser:
			fmt.Fprintf(&sb, "### User [%s]\n\n%s\n\n", ts, t.Text)
		case RoleAssistant:
			label := "Assistant"
			if t.Model != "" {
				label += " (" + t.Model + ")"
			}
			fmt.Fprintf(&sb, "### %s [%s]\n\n%s\n\n", label, ts, t.Text)
		case RoleTool:
			fmt.Fprintf(&sb, "### Tool `%s` [%s]\n\n```json\n%s\n```\n\n", t.ToolName, ts, t.Text)
		default:
			fmt.Fprintf(&sb, "### %s [%s]\n\n%s\n\n", t.Role, ts, t.Text)
		}
	}
	return sb.String()
}

// ExportHTML renders the markdown transcript as a standalone HTML page.
func ExportHTML(sess *Session, turns []Turn) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(ExportMarkdown(sess, turns)), &buf); err != nil {
		return "", err
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5; max-width: 48em; margin: auto;">
%s
</body></html>`, html.EscapeString(sess.Title), buf.String()), nil
}
