package threatdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/safelens/safelens/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func loadTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()

	csvPath := writeFile(t, dir, "feed.csv", "id,url,label\n1,http://evil.example.com/login,bad\n2,phish.example.org,bad\n")
	listPath := writeFile(t, dir, "feed.txt", "# comment\nscam.example.net\nwww.fraud.example.io\n")

	db, err := Load(model.ThreatDBConfig{
		CSVPaths:  []string{csvPath},
		ListPaths: []string{listPath},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return db
}

func TestLoadCounts(t *testing.T) {
	db := loadTestDB(t)
	if db.Len() != 4 {
		t.Errorf("Len() = %d, want 4", db.Len())
	}
}

func TestCheckDomainMatch(t *testing.T) {
	db := loadTestDB(t)

	m, ok := db.Check([]string{"https://phish.example.org/path?q=1"})
	if !ok {
		t.Fatal("expected a match on phish.example.org")
	}
	if m.Entry != "phish.example.org" {
		t.Errorf("Entry = %q", m.Entry)
	}
}

func TestCheckFullURLMatch(t *testing.T) {
	db := loadTestDB(t)

	if _, ok := db.Check([]string{"https://evil.example.com/login"}); !ok {
		t.Error("expected full-URL match independent of scheme")
	}
}

func TestCheckStripWWW(t *testing.T) {
	db := loadTestDB(t)

	// The list entry was written with a www. prefix; lookups without it
	// must still match.
	if _, ok := db.Check([]string{"http://fraud.example.io"}); !ok {
		t.Error("expected www-stripped match")
	}
	if _, ok := db.Check([]string{"http://www.scam.example.net"}); !ok {
		t.Error("expected match with www. on the lookup side")
	}
}

func TestCheckFirstMatchWins(t *testing.T) {
	db := loadTestDB(t)

	m, ok := db.Check([]string{
		"https://clean.example.com",
		"https://scam.example.net",
		"https://phish.example.org",
	})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.URL != "https://scam.example.net" {
		t.Errorf("first match should win, got %q", m.URL)
	}
}

func TestCheckNoMatch(t *testing.T) {
	db := loadTestDB(t)

	if _, ok := db.Check([]string{"https://example.com", "https://example.org"}); ok {
		t.Error("unexpected match on clean chain")
	}
}

func TestLoadMissingFilesSkipped(t *testing.T) {
	db, err := Load(model.ThreatDBConfig{
		CSVPaths:  []string{"/nonexistent/a.csv"},
		ListPaths: []string{"/nonexistent/b.txt"},
	})
	if err != nil {
		t.Fatalf("Load with missing files: %v", err)
	}
	if db.Len() != 0 {
		t.Errorf("Len() = %d, want 0", db.Len())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantFull string
	}{
		{"HTTPS://WWW.Example.COM/Path", "example.com", "example.com/path"},
		{"example.com", "example.com", "example.com"},
		{"http://a.b.c/d?e=f", "a.b.c", "a.b.c/d?e=f"},
	}

	for _, tt := range tests {
		host, full := Normalize(tt.in)
		if host != tt.wantHost || full != tt.wantFull {
			t.Errorf("Normalize(%q) = (%q, %q), want (%q, %q)", tt.in, host, full, tt.wantHost, tt.wantFull)
		}
	}
}
