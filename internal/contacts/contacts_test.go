package contacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleVCF = `BEGIN:VCARD
VERSION:3.0
FN:Alice Smith
N:Smith;Alice;;;
TEL;TYPE=CELL:+15551230001
EMAIL:alice@example.com
END:VCARD
BEGIN:VCARD
VERSION:3.0
N:Jones;Bob;;;
TEL:+15551230002
TEL:+15551230003
ORG:Acme Plumbing
END:VCARD
BEGIN:VCARD
VERSION:3.0
FN:Alicia Keys
TEL:+15551230004
END:VCARD
BEGIN:VCARD
VERSION:3.0
NOTE:no name at all
END:VCARD
`

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader(sampleVCF))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	// Sorted by name.
	if got[0].Name != "Alice Smith" || got[1].Name != "Alicia Keys" || got[2].Name != "Bob Jones" {
		t.Errorf("names = %q, %q, %q", got[0].Name, got[1].Name, got[2].Name)
	}
	if len(got[2].Phones) != 2 || got[2].Organization != "Acme Plumbing" {
		t.Errorf("bob = %+v", got[2])
	}
	if len(got[0].Emails) != 1 || got[0].Emails[0] != "alice@example.com" {
		t.Errorf("alice emails = %v", got[0].Emails)
	}
}

func TestLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	if err := os.WriteFile(path, []byte(sampleVCF), 0600); err != nil {
		t.Fatal(err)
	}
	d, err := NewDirectory(path, nil)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if !d.Enabled() || d.Len() != 3 {
		t.Fatalf("Enabled=%v Len=%d", d.Enabled(), d.Len())
	}

	tests := []struct {
		query string
		want  []string
	}{
		{query: "alic", want: []string{"Alice Smith", "Alicia Keys"}},
		{query: "ALICE SMITH", want: []string{"Alice Smith"}},
		{query: "acme", want: []string{"Bob Jones"}},
		{query: "nobody", want: nil},
		{query: "  ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := d.Lookup(tt.query)
			var names []string
			for _, c := range got {
				names = append(names, c.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Lookup(%q) = %v, want %v", tt.query, names, tt.want)
			}
		})
	}
}

func TestNewDirectory_Empty(t *testing.T) {
	d, err := NewDirectory("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Enabled() || d.Len() != 0 {
		t.Errorf("empty directory: Enabled=%v Len=%d", d.Enabled(), d.Len())
	}
}

func TestNewDirectory_Missing(t *testing.T) {
	if _, err := NewDirectory(filepath.Join(t.TempDir(), "nope.vcf"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
