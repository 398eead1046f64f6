// Package contacts provides a read-only address book loaded from a vCard
// file. The model uses it to turn a name into a phone number before
// placing a call.
package contacts

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-vcard"
)

// Contact is a person or organization from the address book.
type Contact struct {
	Name         string   `json:"name"`
	Organization string   `json:"organization,omitempty"`
	Phones       []string `json:"phones,omitempty"`
	Emails       []string `json:"emails,omitempty"`
}

// Directory is an in-memory address book.
type Directory struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	contacts []Contact
}

// NewDirectory creates a directory backed by the vCard file at path and
// loads it. An empty path yields an empty directory.
func NewDirectory(path string, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{path: path, logger: logger}
	if path == "" {
		return d, nil
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Enabled reports whether an address book is configured.
func (d *Directory) Enabled() bool {
	return d != nil && d.path != ""
}

// Reload re-reads the vCard file.
func (d *Directory) Reload() error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open address book: %w", err)
	}
	defer f.Close()

	contacts, err := Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", d.path, err)
	}

	d.mu.Lock()
	d.contacts = contacts
	d.mu.Unlock()

	d.logger.Info("address book loaded", "path", d.path, "contacts", len(contacts))
	return nil
}

// Parse decodes every card in r. Cards without a usable name are skipped.
func Parse(r io.Reader) ([]Contact, error) {
	dec := vcard.NewDecoder(r)
	var out []Contact
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		c := fromCard(card)
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func fromCard(card vcard.Card) Contact {
	name := strings.TrimSpace(card.PreferredValue(vcard.FieldFormattedName))
	if name == "" {
		if n := card.Name(); n != nil {
			name = strings.TrimSpace(strings.Join(nonEmpty(n.GivenName, n.FamilyName), " "))
		}
	}
	org := strings.TrimSpace(strings.ReplaceAll(card.PreferredValue(vcard.FieldOrganization), ";", " "))
	if name == "" {
		name = org
	}
	return Contact{
		Name:         name,
		Organization: org,
		Phones:       nonEmpty(card.Values(vcard.FieldTelephone)...),
		Emails:       nonEmpty(card.Values(vcard.FieldEmail)...),
	}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Lookup returns contacts whose name or organization contains query,
// case-insensitively. An exact name match is returned alone.
func (d *Directory) Lookup(query string) []Contact {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []Contact
	for _, c := range d.contacts {
		name := strings.ToLower(c.Name)
		if name == q {
			return []Contact{c}
		}
		if strings.Contains(name, q) || strings.Contains(strings.ToLower(c.Organization), q) {
			matches = append(matches, c)
		}
	}
	return matches
}

// Len returns the number of loaded contacts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.contacts)
}
