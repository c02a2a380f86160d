package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/safelens/safelens/internal/model"
)

// DiskStore keeps one append-only JSON-lines file per fingerprint. The
// newest entry is the last line, so a lookup scans forward and keeps the
// final parseable record.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a disk-backed store rooted at dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Insert appends the entry to its fingerprint's file.
func (s *DiskStore) Insert(ctx context.Context, entry model.CacheEntry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	f, err := os.OpenFile(s.path(entry.Fingerprint), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// FindLatest returns the last entry recorded under the fingerprint.
func (s *DiskStore) FindLatest(ctx context.Context, fingerprint string) (*model.CacheEntry, bool, error) {
	f, err := os.Open(s.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var latest *model.CacheEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry model.CacheEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A torn final line from a crashed writer is skipped, not fatal.
			continue
		}
		latest = &entry
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("scan store file: %w", err)
	}
	if latest == nil {
		return nil, false, nil
	}
	return latest, true, nil
}

func (s *DiskStore) path(fingerprint string) string {
	return filepath.Join(s.dir, storageKey(fingerprint)+".jsonl")
}
