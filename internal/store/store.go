package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DefaultMaxRecords bounds each history file; the oldest records go first.
const DefaultMaxRecords = 500

const (
	buildsFile     = "builds.json"
	flashesFile    = "flashes.json"
	serialLogsFile = "serial_logs.json"
)

// Store persists build and flash history and serial log sessions as JSON
// arrays under its root directory.
type Store struct {
	root string
	mu   sync.Mutex

	// MaxRecords caps each history file; 0 keeps everything.
	MaxRecords int
}

// New creates a Store rooted at the given directory, typically the state dir.
func New(root string) *Store {
	return &Store{root: root, MaxRecords: DefaultMaxRecords}
}

func (s *Store) file(name string) string {
	return filepath.Join(s.root, "history", name)
}

func (s *Store) AddBuild(r BuildRecord) error { return s.append(buildsFile, r) }
func (s *Store) AddFlash(r FlashRecord) error { return s.append(flashesFile, r) }
func (s *Store) AddSerialLog(r SerialLog) error { return s.append(serialLogsFile, r) }

// AddRun records a finished run in the build or flash history.
func (s *Store) AddRun(r Run) error {
	if r.Upload {
		return s.AddFlash(FlashRecord{BuildRecord: r.buildRecord(), Port: r.Port, Erase: r.Erase})
	}
	return s.AddBuild(r.buildRecord())
}

// Builds returns every stored build, oldest first.
func (s *Store) Builds() ([]BuildRecord, error) { return readAll[BuildRecord](s, buildsFile) }

// Flashes returns every stored flash, oldest first.
func (s *Store) Flashes() ([]FlashRecord, error) { return readAll[FlashRecord](s, flashesFile) }

// SerialLogs returns every recorded monitor session.
func (s *Store) SerialLogs() ([]SerialLog, error) { return readAll[SerialLog](s, serialLogsFile) }

// RecentBuilds returns up to n build records, newest first. n <= 0 means all.
func (s *Store) RecentBuilds(n int) ([]BuildRecord, error) {
	records, err := s.Builds()
	if err != nil {
		return nil, err
	}
	return newestFirst(records, n), nil
}

// RecentFlashes returns up to n flash records, newest first. n <= 0 means all.
func (s *Store) RecentFlashes(n int) ([]FlashRecord, error) {
	records, err := s.Flashes()
	if err != nil {
		return nil, err
	}
	return newestFirst(records, n), nil
}

func newestFirst[T any](records []T, n int) []T {
	if n <= 0 || n > len(records) {
		n = len(records)
	}
	out := make([]T, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out
}

// LogsDir returns the directory monitor captures are written to, creating
// it on first use.
func (s *Store) LogsDir() (string, error) {
	dir := filepath.Join(s.root, "logs")
	return dir, os.MkdirAll(dir, 0o755)
}

func readAll[T any](s *Store, name string) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []T
	data, err := os.ReadFile(s.file(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return records, nil
}

// append adds record to the named file, trimming to MaxRecords. The file is
// replaced through a rename so a crash never leaves half a document.
func (s *Store) append(name string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.file(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var existing []json.RawMessage
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("%s is corrupt: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	existing = append(existing, raw)
	if s.MaxRecords > 0 && len(existing) > s.MaxRecords {
		existing = existing[len(existing)-s.MaxRecords:]
	}

	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
