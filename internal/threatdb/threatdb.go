// Package threatdb holds the static deny-list of known phishing domains and
// URLs. The list is loaded once at startup and is read-only afterwards, so it
// is safe for concurrent lookups without locking.
package threatdb

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/safelens/safelens/internal/model"
)

// DB is an exact-match set of normalized deny-list entries.
type DB struct {
	entries map[string]struct{}
}

// Match is the outcome of checking a redirect chain against the deny-list.
type Match struct {
	Entry string // the deny-list entry that matched
	URL   string // the chain URL it matched on
}

// Load reads every configured source into one set. Sources that do not exist
// are skipped: an operator may ship only one of the lists.
func Load(cfg model.ThreatDBConfig) (*DB, error) {
	db := &DB{entries: make(map[string]struct{})}

	for _, path := range cfg.CSVPaths {
		if err := db.loadCSV(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	for _, path := range cfg.ListPaths {
		if err := db.loadList(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	return db, nil
}

// Len returns the number of loaded entries.
func (db *DB) Len() int { return len(db.entries) }

// Check tests every URL in the chain, in order, against the deny-list.
// The first match wins; the caller treats it as an authoritative verdict.
func (db *DB) Check(chain []string) (Match, bool) {
	for _, raw := range chain {
		host, full := Normalize(raw)
		if host != "" {
			if _, ok := db.entries[host]; ok {
				return Match{Entry: host, URL: raw}, true
			}
		}
		if _, ok := db.entries[full]; ok {
			return Match{Entry: full, URL: raw}, true
		}
	}
	return Match{}, false
}

// Normalize lowercases a URL and strips the scheme and a leading "www.",
// returning both the bare host and the full normalized URL.
func Normalize(raw string) (host, full string) {
	lower := strings.ToLower(strings.TrimSpace(raw))

	full = lower
	if i := strings.Index(full, "://"); i >= 0 {
		full = full[i+3:]
	}
	full = strings.TrimPrefix(full, "www.")

	if u, err := url.Parse(lower); err == nil && u.Host != "" {
		host = strings.TrimPrefix(u.Host, "www.")
	} else if i := strings.IndexAny(full, "/?#"); i >= 0 {
		host = full[:i]
	} else {
		host = full
	}

	return host, full
}

// loadCSV reads a CSV deny-list with a "url" column.
func (db *DB) loadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}

	urlCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "url") {
			urlCol = i
			break
		}
	}
	if urlCol < 0 {
		return fmt.Errorf("no url column in %s", path)
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows are skipped, not fatal: real-world feeds
			// contain the occasional broken line.
			continue
		}
		if urlCol >= len(record) {
			continue
		}
		db.add(record[urlCol])
	}

	return nil
}

// loadList reads a newline-delimited deny-list, ignoring comments.
func (db *DB) loadList(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		db.add(line)
	}

	return nil
}

func (db *DB) add(raw string) {
	_, full := Normalize(raw)
	if full == "" {
		return
	}
	db.entries[full] = struct{}{}
}
