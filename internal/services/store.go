package services

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eda-dashboard/internal/models"
)

const snapshotVersion = "v1"

// Entry is one held dataset with its precomputed default report.
type Entry struct {
	ID         string
	Name       string
	UploadedAt time.Time
	Dataset    *models.Dataset
	Report     *models.Report
}

// Summary is the listing projection of an entry.
type Summary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Rows       int             `json:"rows"`
	UploadedAt time.Time       `json:"uploaded_at"`
	Manifest   models.Manifest `json:"manifest"`
}

// Store keeps ingested datasets in memory, bounded by capacity: when full,
// the oldest upload is evicted. Each entry carries a report precomputed
// with the server's default options; non-default requests recompute.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	order    []string
	capacity int

	cacheDir string
	defaults models.Options

	ingestor *Ingestor
	engine   *Engine
	logger   *slog.Logger
}

func NewStore(ingestor *Ingestor, engine *Engine, defaults models.Options, capacity int, cacheDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		entries:  make(map[string]*Entry),
		capacity: capacity,
		cacheDir: cacheDir,
		defaults: defaults.Normalize(),
		ingestor: ingestor,
		engine:   engine,
		logger:   logger,
	}
}

// Add registers an ingested dataset and precomputes its default report.
func (s *Store) Add(ds *models.Dataset) *Entry {
	entry := &Entry{
		ID:         uuid.NewString(),
		Name:       ds.Name,
		UploadedAt: time.Now().UTC(),
		Dataset:    ds,
		Report:     s.engine.Report(ds, s.defaults),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	for len(s.order) > s.capacity {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, evicted)
		s.logger.Info("dataset evicted", "id", evicted)
	}

	return entry
}

// Get resolves an entry by id; the literal id "latest" resolves to the most
// recent upload.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == "latest" {
		if len(s.order) == 0 {
			return nil, false
		}
		id = s.order[len(s.order)-1]
	}
	entry, ok := s.entries[id]
	return entry, ok
}

// ReportFor returns the precomputed report when opts match the defaults,
// otherwise recomputes with the caller's options.
func (s *Store) ReportFor(entry *Entry, opts models.Options) *models.Report {
	opts = opts.Normalize()
	if opts == s.defaults {
		return entry.Report
	}
	return s.engine.Report(entry.Dataset, opts)
}

func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.entries[s.order[i]]
		out = append(out, Summary{
			ID:         e.ID,
			Name:       e.Name,
			Rows:       len(e.Dataset.Rows),
			UploadedAt: e.UploadedAt,
			Manifest:   e.Dataset.Manifest,
		})
	}
	return out
}

func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := 0
	for _, e := range s.entries {
		rows += len(e.Dataset.Rows)
	}
	return map[string]any{
		"datasets": len(s.entries),
		"capacity": s.capacity,
		"rows":     rows,
	}
}

// IngestAndAdd runs ingestion on an uploaded stream and registers the result.
func (s *Store) IngestAndAdd(ctx context.Context, r io.Reader, name string) (*Entry, error) {
	ds, err := s.ingestor.Ingest(ctx, r, name)
	if err != nil {
		return nil, err
	}
	return s.Add(ds), nil
}

// snapshot is the on-disk cache of a boot-time ingested file.
type snapshot struct {
	Dataset *models.Dataset
	SavedAt time.Time
}

// LoadFile ingests a file from disk, reusing the gob snapshot when it is
// newer than the file.
func (s *Store) LoadFile(ctx context.Context, path string) (*Entry, error) {
	if snap, err := s.loadSnapshot(path); err == nil {
		if info, err := os.Stat(path); err == nil && info.ModTime().Before(snap.SavedAt) {
			s.logger.Info("dataset loaded from snapshot", "path", path, "rows", len(snap.Dataset.Rows))
			return s.Add(snap.Dataset), nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := s.ingestor.Ingest(ctx, f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}

	if err := s.saveSnapshot(path, ds); err != nil {
		s.logger.Warn("failed to save snapshot", "path", path, "error", err)
	}

	return s.Add(ds), nil
}

func (s *Store) snapshotPath(path string) string {
	name := strings.ReplaceAll(path, string(os.PathSeparator), "_")
	return filepath.Join(s.cacheDir, fmt.Sprintf("%s_%s.gob", name, snapshotVersion))
}

func (s *Store) saveSnapshot(path string, ds *models.Dataset) error {
	if s.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.snapshotPath(path))
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(snapshot{Dataset: ds, SavedAt: time.Now()})
}

func (s *Store) loadSnapshot(path string) (*snapshot, error) {
	if s.cacheDir == "" {
		return nil, os.ErrNotExist
	}
	f, err := os.Open(s.snapshotPath(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
