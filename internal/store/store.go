// Package store owns the on-disk record list and API credential. Both
// are small JSON documents written atomically (temp file + rename) so a
// concurrent reader never observes a partial write.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const recordsFile = "records.json"

// Store holds the record list in memory for the life of the process
// and flushes it to disk after every mutation. A disk failure at open
// or save time is logged and the store keeps operating in memory, so
// callers stay usable through transient filesystem trouble.
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	records []Record
}

// Open loads (or initializes) the record list in dir.
func Open(dir string) *Store {
	s := &Store{dir: dir, logger: slog.Default()}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.logger.Warn("could not create data directory, operating in memory only", "dir", dir, "error", err)
		return s
	}

	data, err := os.ReadFile(s.recordsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read records file, operating in memory only", "path", s.recordsPath(), "error", err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		s.logger.Warn("could not parse records file, operating in memory only", "path", s.recordsPath(), "error", err)
		s.records = nil
	}
	return s
}

func (s *Store) recordsPath() string {
	return filepath.Join(s.dir, recordsFile)
}

// List returns a copy of all records in insertion (creation) order.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given local id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// GetByRemoteJobID returns the record bound to a remote job id.
func (s *Store) GetByRemoteJobID(remoteID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.RemoteJobID == remoteID {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Append adds a new record and persists the list.
func (s *Store) Append(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	s.save()
}

// Update applies mutate to the record with the given id and persists
// the list. The mutated copy is returned.
func (s *Store) Update(id string, mutate func(*Record)) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			mutate(&s.records[i])
			s.save()
			return s.records[i], nil
		}
	}
	return Record{}, ErrNotFound
}

// UpdateEach applies mutate to every record under one lock and
// persists the list once.
func (s *Store) UpdateEach(mutate func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		mutate(&s.records[i])
	}
	s.save()
}

// Delete removes the record with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.save()
			return nil
		}
	}
	return ErrNotFound
}

// save is called with s.mu held. Persistence failures are logged, not
// fatal: the in-memory list stays authoritative for this process.
func (s *Store) save() {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		s.logger.Warn("could not serialize records", "error", err)
		return
	}
	if s.records == nil {
		data = []byte("[]")
	}
	if err := writeFileAtomic(s.recordsPath(), data, 0o644); err != nil {
		s.logger.Warn("could not write records file, keeping changes in memory", "path", s.recordsPath(), "error", err)
	}
}

// writeFileAtomic writes data to a temp file in the target's directory
// and renames it over path, so readers see either the old or the new
// full document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
