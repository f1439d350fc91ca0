package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scribe/internal/logging"
)

// storeDocument is the on-disk shape of the task store: a single object
// wrapping the insertion-ordered record list.
type storeDocument struct {
	Tasks []Record `json:"tasks"`
}

// Store persists task records in one JSON document. The file is read once,
// lazily; afterwards the in-memory collection is authoritative and every
// mutation rewrites the whole file synchronously before returning. A single
// daemon process owns the file, so cross-process coordination is out of
// scope; in-process callers are serialized by the store mutex.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	loaded  bool
	records []Record
	index   map[string]int
}

// NewStore creates a store backed by the JSON document at path. The file is
// created on the first mutation.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "taskstore"),
		index:  make(map[string]int),
	}
}

// Insert appends a new record to the collection and rewrites the document.
func (s *Store) Insert(rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("task id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	if _, exists := s.index[rec.ID]; exists {
		return fmt.Errorf("task %q already exists", rec.ID)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	s.records = append(s.records, rec.Clone())
	s.index[rec.ID] = len(s.records) - 1

	if err := s.saveLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		delete(s.index, rec.ID)
		return fmt.Errorf("persist task store: %w", err)
	}
	return nil
}

// Update merges patch into the record with the given id, stamps the
// last-updated timestamp (even for an empty patch), rewrites the document,
// and returns a copy of the updated record. An unknown id yields (nil, nil)
// with no side effects.
func (s *Store) Update(id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	pos, exists := s.index[id]
	if !exists {
		return nil, nil
	}

	previous := s.records[pos].Clone()
	rec := &s.records[pos]
	patch.apply(rec)
	rec.UpdatedAt = time.Now().UTC()

	if err := s.saveLocked(); err != nil {
		s.records[pos] = previous
		return nil, fmt.Errorf("persist task store: %w", err)
	}

	cp := rec.Clone()
	return &cp, nil
}

// FindByID returns a copy of the record with the given id, or nil when the
// id is unknown.
func (s *Store) FindByID(id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	pos, exists := s.index[id]
	if !exists {
		return nil, nil
	}
	cp := s.records[pos].Clone()
	return &cp, nil
}

// ListAll returns a copy of every record in insertion order.
func (s *Store) ListAll() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// ListActive returns copies of the records that have not reached a terminal
// status, in insertion order.
func (s *Store) ListActive() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range s.records {
		if !rec.IsTerminal() {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// ensureLoadedLocked reads the document on first use. A missing or malformed
// file is not fatal: the store logs the condition and starts empty, healing
// the file on the next mutation.
func (s *Store) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		logging.WarnWithContext(s.logger, "task store unreadable; starting empty", "taskstore_load_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "existing task history is not visible"),
		)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.WarnWithContext(s.logger, "task store corrupt; starting empty", "taskstore_parse_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file is rewritten on the next task mutation"),
			logging.String(logging.FieldImpact, "existing task history is discarded"),
		)
		return nil
	}

	s.records = make([]Record, 0, len(doc.Tasks))
	s.index = make(map[string]int, len(doc.Tasks))
	for _, rec := range doc.Tasks {
		if strings.TrimSpace(rec.ID) == "" {
			continue
		}
		if _, dup := s.index[rec.ID]; dup {
			continue
		}
		s.records = append(s.records, rec)
		s.index[rec.ID] = len(s.records) - 1
	}

	s.logger.Debug("loaded task store",
		logging.Int("task_count", len(s.records)),
		logging.String("path", s.path))
	return nil
}

// saveLocked writes the whole document atomically via a temp file.
func (s *Store) saveLocked() error {
	doc := storeDocument{Tasks: s.records}
	if doc.Tasks == nil {
		doc.Tasks = []Record{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
