package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
)

// FileStore persists session state as a single JSON object on disk. Writes
// go through a temp file and rename so a crash mid-write never leaves a
// truncated session file.
type FileStore struct {
	path string

	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// OpenFileStore loads (or initializes) the session file at path.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Fresh terminal, empty session.
	case err != nil:
		return nil, errors.Wrap(err, "read session file")
	default:
		if err := json.Unmarshal(raw, &fs.values); err != nil {
			return nil, errors.Wrap(err, "parse session file")
		}
	}

	return fs, nil
}

// Get returns the raw value stored under key.
func (f *FileStore) Get(key string) ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key and flushes the file.
func (f *FileStore) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = json.RawMessage(value)
	return f.flushLocked()
}

// Delete removes key and flushes the file.
func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.values, key)
	return f.flushLocked()
}

func (f *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "create temp session file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write session")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close session file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace session file")
	}
	return nil
}
