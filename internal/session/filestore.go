package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FilePerms restricts the session file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the session file's directory.
const DirPerms = 0o700

// FileKV persists entries as a single JSON object on disk. Writes go through
// write-temp-then-rename so a crash mid-write cannot leave a torn session
// file; the whole-file replace also gives Replace its atomicity.
type FileKV struct {
	path string

	// mu serializes writers within this process. Cross-process locking is
	// not attempted; last write wins, matching the session lifecycle.
	mu sync.Mutex
}

// NewFileKV returns a KV backed by the JSON file at path. The file need not
// exist yet; it is created on first Replace.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Snapshot implements KV. A missing file reads as empty.
func (f *FileKV) Snapshot() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.path, err)
	}

	if entries == nil {
		entries = map[string]string{}
	}

	return entries, nil
}

// Replace implements KV. An empty map removes the file entirely so a
// cleared session leaves no credential bytes on disk.
func (f *FileKV) Replace(entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(entries) == 0 {
		err := os.Remove(f.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", f.path, err)
		}

		return nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file: %w", err)
	}

	// Flush before rename so a power loss cannot leave an empty file at
	// the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing session file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("renaming session file: %w", err)
	}

	success = true

	return nil
}
