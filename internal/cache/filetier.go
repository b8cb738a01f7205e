// Package cache is the three-tier resolve cache sitting in front of
// every lookup/profile/relationship call C5 would otherwise have to
// make on the wire: an in-process LRU (L1), a file tier per cache kind
// (L2, the source of truth across runs), and an optional redis mirror
// for the lookup tier shared across cooperating processes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/corvidlabs/blockctl/internal/domain"
)

// fileTier is one on-disk cache kind: one file per entry, a
// {value, captured_at, identifier} envelope, TTL-checked on read with
// lazy unlink-on-miss.
type fileTier struct {
	dir    string
	ttl    time.Duration
	name   string
	logger *slog.Logger
}

func newFileTier(baseDir, name string, ttl time.Duration, logger *slog.Logger) (*fileTier, error) {
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &fileTier{dir: dir, ttl: ttl, name: name, logger: logger}, nil
}

func (t *fileTier) path(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return filepath.Join(t.dir, hex.EncodeToString(sum[:])+".json")
}

// get reads and unmarshals the entry for identifier into dest. found is
// false on a miss or a stale entry (which is unlinked as a side effect).
func (t *fileTier) get(identifier string, dest any) (found bool, err error) {
	path := t.path(identifier)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	var entry domain.CacheEntry
	entry.Value = dest
	if err := json.Unmarshal(raw, &entry); err != nil {
		_ = os.Remove(path)
		return false, nil
	}

	if t.ttl > 0 && time.Since(entry.CapturedAt) > t.ttl {
		_ = os.Remove(path)
		return false, nil
	}
	return true, nil
}

// set writes identifier's entry, replacing any existing file atomically
// via a temp-file rename.
func (t *fileTier) set(identifier string, value any) error {
	entry := domain.CacheEntry{
		Identifier: identifier,
		Value:      value,
		CapturedAt: time.Now(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	path := t.path(identifier)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// delete removes identifier's entry, if present. A missing file is not
// an error.
func (t *fileTier) delete(identifier string) error {
	if err := os.Remove(t.path(identifier)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// evictOldestAbove deletes the oldest-by-mtime entries until the tier
// holds at most ceiling files. ceiling <= 0 disables the ceiling.
func (t *fileTier) evictOldestAbove(ceiling int) error {
	if ceiling <= 0 {
		return nil
	}
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return err
	}
	if len(entries) <= ceiling {
		return nil
	}

	type fileInfo struct {
		path  string
		mtime time.Time
	}
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: filepath.Join(t.dir, e.Name()), mtime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })

	excess := len(files) - ceiling
	for i := 0; i < excess; i++ {
		if err := os.Remove(files[i].path); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("cache eviction failed to remove file", "tier", t.name, "path", files[i].path, "error", err)
		}
	}
	return nil
}
