// Package fetch turns the source of a "read" modifier into plain text:
// web pages are downloaded and reduced to their readable content, and
// anything else is read from the local filesystem.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nugget/localagent/internal/httpkit"
)

// DefaultMaxBytes caps the bytes read from a page or file (5 MB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// DefaultMaxChars caps the extracted text handed to the model.
const DefaultMaxChars = 50000

// Resolver fetches read-source material.
type Resolver struct {
	client   *http.Client
	maxBytes int64
	maxChars int
	baseDir  string
	logger   *slog.Logger
}

// NewResolver creates a resolver. Relative file paths are resolved
// against baseDir.
func NewResolver(baseDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithLogger(logger),
		),
		maxBytes: DefaultMaxBytes,
		maxChars: DefaultMaxChars,
		baseDir:  baseDir,
		logger:   logger,
	}
}

// Resolve returns the readable text behind source.
func (r *Resolver) Resolve(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("source is required")
	}

	var text string
	var err error
	if isURL(source) {
		text, err = r.fetchURL(ctx, source)
	} else {
		text, err = r.readFile(source)
	}
	if err != nil {
		return "", err
	}

	if utf8.RuneCountInString(text) > r.maxChars {
		text = truncateRunes(text, r.maxChars)
	}
	r.logger.Debug("read source resolved", "source", source, "chars", len(text))
	return text, nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (r *Resolver) fetchURL(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpkit.DrainAndClose(resp.Body, 4096)
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return readableText(bytes.NewReader(body), r.maxChars)
	case utf8.Valid(body):
		return string(body), nil
	default:
		return "", fmt.Errorf("fetch %s: binary content (%s) cannot be shared", rawURL, ct)
	}
}

func (r *Resolver) readFile(path string) (string, error) {
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, r.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("source %s is not text", filepath.Base(path))
	}
	if strings.EqualFold(filepath.Ext(path), ".html") || strings.EqualFold(filepath.Ext(path), ".htm") {
		return readableText(bytes.NewReader(data), r.maxChars)
	}
	return string(data), nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
