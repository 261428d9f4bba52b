package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// FileStore is a MemoryStore persisted to a single JSON file after every
// mutation. Suitable for small standalone graphs.
type FileStore struct {
	*MemoryStore
	path string
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	fs := &FileStore{
		MemoryStore: NewMemoryStore(),
		path:        filepath.Join(dataDir, "graph.json"),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	fs.MemoryStore.onChange = fs.saveLocked
	return fs, nil
}

func (fs *FileStore) load() error {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var st memState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	fs.importState(st)
	return nil
}

// saveLocked runs as the memory store's onChange hook, with its lock held.
func (fs *FileStore) saveLocked() error {
	b, err := json.MarshalIndent(fs.exportLocked(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fs.path, b, 0o644)
}
