package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type entriesFile struct {
	Entries []*models.ConfigEntry `yaml:"entries"`
}

// FileStore keeps config entries in a single YAML file written with 0600
// permissions
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates a YAML-backed store at path
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Save inserts or replaces an entry
func (s *FileStore) Save(_ context.Context, entry *models.ConfigEntry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[entry.EntryID] = entry

	if err := s.write(entries); err != nil {
		return err
	}

	s.logger.Debug("Config entry saved",
		zap.String("entry_id", entry.EntryID),
		zap.Int("frames", len(entry.Data.FrameData)))
	return nil
}

// Get returns the entry with the given id
func (s *FileStore) Get(_ context.Context, entryID string) (*models.ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	entry, ok := entries[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// List returns all entries ordered by creation time
func (s *FileStore) List(_ context.Context) ([]*models.ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedEntries(entries), nil
}

// Delete removes an entry
func (s *FileStore) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[entryID]; !ok {
		return ErrEntryNotFound
	}
	delete(entries, entryID)

	return s.write(entries)
}

func (s *FileStore) load() (map[string]*models.ConfigEntry, error) {
	entries := make(map[string]*models.ConfigEntry)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var file entriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	for _, entry := range file.Entries {
		if entry == nil || entry.EntryID == "" {
			continue
		}
		entries[entry.EntryID] = entry
	}
	return entries, nil
}

// write replaces the store file atomically via a temp file and rename
func (s *FileStore) write(entries map[string]*models.ConfigEntry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := yaml.Marshal(entriesFile{Entries: sortedEntries(entries)})
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".skylight-entries-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, s.path)
}

func sortedEntries(entries map[string]*models.ConfigEntry) []*models.ConfigEntry {
	out := make([]*models.ConfigEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out
}
