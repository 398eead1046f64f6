package fetch

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// hidden elements never contribute shared text.
var hidden = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Form:     true,
}

// blocks are separated from their neighbours by a blank line.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
	atom.Tr: true, atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Figure: true,
	atom.Figcaption: true, atom.Details: true, atom.Summary: true, atom.Hr: true,
}

// readableText reduces an HTML document to the text a read modifier
// shares with the model: the page title, a blank line, then the visible
// body text. Words are joined by single spaces, list items and <br> end
// a line, and blocks are separated by a blank line. At most maxChars
// runes are produced (no cap when maxChars <= 0); the walk stops as soon
// as the cap is reached.
func readableText(r io.Reader, maxChars int) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	w := &textWriter{max: maxChars}
	w.text(nodeText(findTitle(doc)))
	w.brk(breakParagraph)
	w.walk(doc)
	return w.b.String(), nil
}

type breakKind int

const (
	breakNone breakKind = iota
	breakSpace
	breakLine
	breakParagraph
)

type textWriter struct {
	b       strings.Builder
	n       int // runes written
	max     int
	pending breakKind
	done    bool
}

func (w *textWriter) brk(k breakKind) {
	if k > w.pending {
		w.pending = k
	}
}

func (w *textWriter) separator() string {
	if w.b.Len() == 0 {
		return ""
	}
	switch w.pending {
	case breakParagraph:
		return "\n\n"
	case breakLine:
		return "\n"
	default:
		return " "
	}
}

func (w *textWriter) text(s string) {
	for _, word := range strings.Fields(s) {
		if w.done {
			return
		}
		w.word(word)
	}
}

func (w *textWriter) word(word string) {
	sep := w.separator()
	if w.max > 0 {
		room := w.max - w.n - utf8.RuneCountInString(sep)
		if room <= 0 {
			w.done = true
			return
		}
		if utf8.RuneCountInString(word) > room {
			word = truncateRunes(word, room)
			w.done = true
		}
	}
	w.b.WriteString(sep)
	w.b.WriteString(word)
	w.n += utf8.RuneCountInString(sep) + utf8.RuneCountInString(word)
	w.pending = breakSpace
}

func (w *textWriter) walk(n *html.Node) {
	if w.done {
		return
	}
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		if hidden[n.DataAtom] {
			return
		}
		if blocks[n.DataAtom] {
			w.brk(breakParagraph)
		}
	}

	for c := n.FirstChild; c != nil && !w.done; c = c.NextSibling {
		w.walk(c)
	}

	if n.Type == html.ElementNode {
		switch {
		case blocks[n.DataAtom]:
			w.brk(breakParagraph)
		case n.DataAtom == atom.Br, n.DataAtom == atom.Li:
			w.brk(breakLine)
		}
	}
}

func findTitle(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != nil {
			return t
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
		b.WriteString(" ")
	}
	return b.String()
}
