package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	DefaultFileName = ".dualswap-prefs.json"
)

// FileBackend keeps preference entries in a single JSON file
type FileBackend struct {
	filePath string
	mu       sync.RWMutex
	entries  map[string]string
}

// fileLayout represents the JSON structure on disk
type fileLayout struct {
	Entries map[string]string `json:"entries"`
}

// NewFileBackend opens (or lazily creates) the preferences file.
// A corrupt file is treated as empty so the session can still start.
func NewFileBackend(filePath string) (*FileBackend, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	backend := &FileBackend{
		filePath: filePath,
		entries:  make(map[string]string),
	}

	if err := backend.load(); err != nil && !os.IsNotExist(err) {
		return backend, fmt.Errorf("failed to load preferences: %w", err)
	}

	return backend, nil
}

// load reads entries from the preferences file
func (b *FileBackend) load() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.filePath)
	if err != nil {
		return err
	}

	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return fmt.Errorf("failed to unmarshal preferences: %w", err)
	}

	if layout.Entries != nil {
		b.entries = layout.Entries
	}
	return nil
}

// flushLocked writes all entries to disk. Caller must hold the write lock.
func (b *FileBackend) flushLocked() error {
	data, err := json.MarshalIndent(fileLayout{Entries: b.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	dir := filepath.Dir(b.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := b.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}

	if err := os.Rename(tempFile, b.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Get returns a stored entry
func (b *FileBackend) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.entries[key]
	return value, ok, nil
}

// Set stores an entry and flushes the file
func (b *FileBackend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = value
	return b.flushLocked()
}

// Delete removes an entry and flushes the file
func (b *FileBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[key]; !ok {
		return nil
	}
	delete(b.entries, key)
	return b.flushLocked()
}

// Path returns the preferences file path
func (b *FileBackend) Path() string {
	return b.filePath
}
