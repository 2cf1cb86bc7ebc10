package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/rank"
)

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)

// fileState is the on-disk document.
type fileState struct {
	Items   []rank.TrackedItem `json:"items"`
	Records []rank.Record      `json:"records"`
}

// FileStore keeps items and history in memory and persists them to a JSON
// file after every write. An empty path keeps everything in memory only.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	items    map[string]rank.TrackedItem
	records  map[string][]rank.Record // item ID -> records in append order
	now      func() time.Time
	logger   logging.Logger
}

// NewFileStore creates or loads a store backed by path.
func NewFileStore(path string, logger logging.Logger) (*FileStore, error) {
	s := &FileStore{
		filePath: path,
		items:    make(map[string]rank.TrackedItem),
		records:  make(map[string][]rank.Record),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("file_store"),
	}
	if path == "" {
		s.logger.Debug("FileStore running in memory only.")
		return s, nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load store from %s: %w", path, err)
	}
	s.logger.Info("FileStore initialized.", "path", path, "items", len(s.items))
	return s, nil
}

// NewMemoryStore returns a FileStore that never touches disk.
func NewMemoryStore(logger logging.Logger) *FileStore {
	s, _ := NewFileStore("", logger)
	return s
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal store file %s: %w", s.filePath, err)
	}
	for _, item := range state.Items {
		s.items[item.ID] = item
	}
	for _, rec := range state.Records {
		if _, ok := s.items[rec.TrackedItemID]; !ok {
			s.logger.Warn("Dropping orphaned record", "record_id", rec.ID, "item_id", rec.TrackedItemID)
			continue
		}
		s.records[rec.TrackedItemID] = append(s.records[rec.TrackedItemID], rec)
	}
	for id := range s.records {
		sortRecords(s.records[id])
	}
	return nil
}

// save writes the full state to disk. Callers must hold the write lock.
func (s *FileStore) save() error {
	if s.filePath == "" {
		return nil
	}

	state := fileState{Items: s.sortedItems(), Records: []rank.Record{}}
	for _, item := range state.Items {
		state.Records = append(state.Records, s.records[item.ID]...)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	// Write atomically via temp file rename
	tempFilePath := s.filePath + ".tmp"
	if err := os.WriteFile(tempFilePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp store file %s: %w", tempFilePath, err)
	}
	if err := os.Rename(tempFilePath, s.filePath); err != nil {
		_ = os.Remove(tempFilePath)
		return fmt.Errorf("failed to rename temp store file to %s: %w", s.filePath, err)
	}
	return nil
}

func (s *FileStore) sortedItems() []rank.TrackedItem {
	items := make([]rank.TrackedItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

// sortRecords orders records oldest first.
func sortRecords(recs []rank.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CheckedAt.Before(recs[j].CheckedAt)
	})
}

// CreateItem registers a new tracked item.
func (s *FileStore) CreateItem(_ context.Context, domain, keyword string, freq rank.Frequency) (rank.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := rank.TrackedItem{
		ID:        uuid.NewString(),
		Domain:    domain,
		Keyword:   keyword,
		Frequency: rank.ParseFrequency(string(freq)),
		CreatedAt: s.now(),
	}
	s.items[item.ID] = item
	if err := s.save(); err != nil {
		delete(s.items, item.ID)
		return rank.TrackedItem{}, err
	}
	return item, nil
}

// GetItem returns a tracked item by ID.
func (s *FileStore) GetItem(_ context.Context, id string) (rank.TrackedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return rank.TrackedItem{}, ErrNotFound
	}
	return item, nil
}

// ListItems returns every tracked item, oldest first.
func (s *FileStore) ListItems(_ context.Context) ([]rank.TrackedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedItems(), nil
}

// UpdateItem changes an item's domain, keyword and frequency.
func (s *FileStore) UpdateItem(_ context.Context, id, domain, keyword string, freq rank.Frequency) (rank.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.items[id]
	if !ok {
		return rank.TrackedItem{}, ErrNotFound
	}
	item := prev
	item.Domain = domain
	item.Keyword = keyword
	item.Frequency = rank.ParseFrequency(string(freq))
	s.items[id] = item
	if err := s.save(); err != nil {
		s.items[id] = prev
		return rank.TrackedItem{}, err
	}
	return item, nil
}

// DeleteItem removes an item and its history.
func (s *FileStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	recs := s.records[id]
	delete(s.items, id)
	delete(s.records, id)
	if err := s.save(); err != nil {
		s.items[id] = item
		s.records[id] = recs
		return err
	}
	return nil
}

// AppendRecord stores a record for an existing item.
func (s *FileStore) AppendRecord(_ context.Context, itemID string, position *int, snapshot rank.Snapshot, checkedAt time.Time) (rank.Record, error) {
	if !snapshot.Valid() {
		return rank.Record{}, errors.New("refusing to append record with empty snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[itemID]; !ok {
		return rank.Record{}, ErrNotFound
	}
	rec := rank.Record{
		ID:            uuid.NewString(),
		TrackedItemID: itemID,
		Position:      copyPosition(position),
		Snapshot:      snapshot,
		CheckedAt:     checkedAt.UTC(),
	}
	prev := s.records[itemID]
	recs := append(append([]rank.Record(nil), prev...), rec)
	sortRecords(recs)
	s.records[itemID] = recs
	if err := s.save(); err != nil {
		s.records[itemID] = prev
		return rank.Record{}, err
	}
	return rec, nil
}

// MostRecent returns the newest record for an item.
func (s *FileStore) MostRecent(_ context.Context, itemID string) (rank.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[itemID]
	if len(recs) == 0 {
		return rank.Record{}, false, nil
	}
	return recs[len(recs)-1], true, nil
}

// ListRecords returns up to limit records for an item, newest first.
func (s *FileStore) ListRecords(_ context.Context, itemID string, limit int) ([]rank.Record, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[itemID]
	out := make([]rank.Record, 0, min(limit, len(recs)))
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}

// DeleteOlderThan removes every record checked before cutoff.
func (s *FileStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	prev := make(map[string][]rank.Record, len(s.records))
	for id, recs := range s.records {
		kept := recs[:0:0]
		for _, rec := range recs {
			if rec.CheckedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) != len(recs) {
			prev[id] = recs
			s.records[id] = kept
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := s.save(); err != nil {
		for id, recs := range prev {
			s.records[id] = recs
		}
		return 0, err
	}
	return deleted, nil
}

// Ping always succeeds; the file is only touched on writes.
func (s *FileStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op for the file store; every write is already on disk.
func (s *FileStore) Close() error {
	return nil
}

func copyPosition(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
