// ABOUTME: In-memory Repository, the reference entry store.
// ABOUTME: Guards the day index with a mutex so check-then-insert in Create is atomic.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/harperreed/biomarkers/internal/models"
)

// MemoryStore keeps entries in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]*models.Entry
	byDay   map[models.CalendarDay]int64
	nextID  int64
}

// Compile-time check that MemoryStore implements Repository.
var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store whose first id is 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]*models.Entry),
		byDay:   make(map[models.CalendarDay]int64),
		nextID:  1,
	}
}

// List returns all entries ascending by day.
func (s *MemoryStore) List(ctx context.Context) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	models.SortEntries(out)
	return out, nil
}

// Get returns the entry with id, or nil.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id].Clone(), nil
}

// FindByDate returns the entry for day, or nil.
func (s *MemoryStore) FindByDate(ctx context.Context, day models.CalendarDay) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDay[day]
	if !ok {
		return nil, nil
	}
	return s.entries[id].Clone(), nil
}

// Create stores a new entry, failing with ErrDuplicateDate if day is taken.
func (s *MemoryStore) Create(ctx context.Context, day models.CalendarDay, m models.Measurements) (*models.Entry, error) {
	if err := validateNew(day, m); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byDay[day]; ok {
		return nil, fmt.Errorf("create entry for %s: %w", day, ErrDuplicateDate)
	}

	e := models.NewEntry(day, m)
	e.ID = s.nextID
	s.nextID++

	s.entries[e.ID] = e
	s.byDay[day] = e.ID
	return e.Clone(), nil
}

// Delete removes the entry with id if present.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		delete(s.byDay, e.Date)
		delete(s.entries, id)
	}
	return nil
}

// Import stores entries with their ids. Nothing is written if any entry
// conflicts.
func (s *MemoryStore) Import(ctx context.Context, entries []*models.Entry) error {
	if err := validateImport(entries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if _, ok := s.entries[e.ID]; ok {
			return fmt.Errorf("import entry %d: %w", e.ID, ErrDuplicateID)
		}
		if _, ok := s.byDay[e.Date]; ok {
			return fmt.Errorf("import entry for %s: %w", e.Date, ErrDuplicateDate)
		}
	}

	for _, e := range entries {
		s.entries[e.ID] = e.Clone()
		s.byDay[e.Date] = e.ID
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	return nil
}

// NextID returns the id the next Create assigns.
func (s *MemoryStore) NextID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID, nil
}

// AdvanceNextID raises the id counter to next.
func (s *MemoryStore) AdvanceNextID(ctx context.Context, next int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next > s.nextID {
		s.nextID = next
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
