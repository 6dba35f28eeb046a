package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore reads and writes whole JSON documents. Writes go through a temp
// file and a rename, and all access to one path is serialized.
type FileStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileStore() *FileStore {
	return &FileStore{locks: make(map[string]*sync.Mutex)}
}

func (fs *FileStore) lock(path string) *sync.Mutex {
	path = filepath.Clean(path)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l, ok := fs.locks[path]
	if !ok {
		l = &sync.Mutex{}
		fs.locks[path] = l
	}
	return l
}

// Read decodes path into v. A missing or empty file leaves v untouched and
// reports found=false.
func (fs *FileStore) Read(path string, v any) (found bool, err error) {
	l := fs.lock(path)
	l.Lock()
	defer l.Unlock()
	return readJSON(path, v)
}

// Update runs fn on the decoded document and writes the result back while
// holding the path lock. fn returning false skips the write.
func (fs *FileStore) Update(path string, v any, fn func() (bool, error)) error {
	l := fs.lock(path)
	l.Lock()
	defer l.Unlock()

	if _, err := readJSON(path, v); err != nil {
		return err
	}
	changed, err := fn()
	if err != nil || !changed {
		return err
	}
	return writeJSON(path, v)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
