// ABOUTME: Badger key-value Repository for embedded persistent storage.
// ABOUTME: Keeps a day index and id counter inside serializable transactions.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/biomarkers/internal/models"
)

const (
	badgerEntryPrefix = "entry:"
	badgerDayPrefix   = "day:"
	badgerNextIDKey   = "meta:next_id"

	// badgerMaxRetries bounds retries of transactions that lost a conflict.
	badgerMaxRetries = 10
)

// BadgerStore stores entries in a Badger database.
//
// Keys:
//
//	entry:<20-digit id>  JSON entry
//	day:<YYYY-MM-DD>     decimal id
//	meta:next_id         decimal next id
type BadgerStore struct {
	db *badger.DB
}

// Compile-time check that BadgerStore implements Repository.
var _ Repository = (*BadgerStore)(nil)

// OpenBadger opens or creates a Badger database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return openBadger(opts)
}

// OpenBadgerInMemory opens a Badger database that lives only in memory.
func OpenBadgerInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerEntryKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", badgerEntryPrefix, id))
}

func badgerDayKey(day models.CalendarDay) []byte {
	return []byte(badgerDayPrefix + day.String())
}

// List walks the day index, which Badger keeps in key order, so entries
// come back chronologically.
func (s *BadgerStore) List(ctx context.Context) ([]*models.Entry, error) {
	entries := make([]*models.Entry, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerDayPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := readID(it.Item())
			if err != nil {
				return err
			}
			e, err := getEntry(txn, id)
			if err != nil {
				return err
			}
			if e != nil {
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	models.SortEntries(entries)
	return entries, nil
}

// Get returns the entry with id, or nil.
func (s *BadgerStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	var e *models.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = getEntry(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

// FindByDate returns the entry for day, or nil.
func (s *BadgerStore) FindByDate(ctx context.Context, day models.CalendarDay) (*models.Entry, error) {
	var e *models.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = findByDay(txn, day)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find entry for %s: %w", day, err)
	}
	return e, nil
}

// Create stores a new entry. Concurrent creates touching the same day or
// the id counter conflict, and the loser is retried against fresh state.
func (s *BadgerStore) Create(ctx context.Context, day models.CalendarDay, m models.Measurements) (*models.Entry, error) {
	if err := validateNew(day, m); err != nil {
		return nil, err
	}

	var entry *models.Entry
	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerDayKey(day)); err == nil {
			return ErrDuplicateDate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id, err := nextID(txn)
		if err != nil {
			return err
		}

		e := models.NewEntry(day, m)
		e.ID = id
		if err := putEntry(txn, e); err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerNextIDKey), []byte(strconv.FormatInt(id+1, 10))); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, err)
	}
	return entry, nil
}

// Delete removes the entry with id and its day index key.
func (s *BadgerStore) Delete(ctx context.Context, id int64) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		e, err := getEntry(txn, id)
		if err != nil || e == nil {
			return err
		}
		if err := txn.Delete(badgerDayKey(e.Date)); err != nil {
			return err
		}
		return txn.Delete(badgerEntryKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

// Import writes all entries in a single transaction.
func (s *BadgerStore) Import(ctx context.Context, entries []*models.Entry) error {
	if err := validateImport(entries); err != nil {
		return err
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		next, err := nextID(txn)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := txn.Get(badgerEntryKey(e.ID)); err == nil {
				return fmt.Errorf("import entry %d: %w", e.ID, ErrDuplicateID)
			}
			if _, err := txn.Get(badgerDayKey(e.Date)); err == nil {
				return fmt.Errorf("import entry for %s: %w", e.Date, ErrDuplicateDate)
			}
			if err := putEntry(txn, e); err != nil {
				return err
			}
			if e.ID >= next {
				next = e.ID + 1
			}
		}
		return txn.Set([]byte(badgerNextIDKey), []byte(strconv.FormatInt(next, 10)))
	})
}

// NextID returns the stored id counter.
func (s *BadgerStore) NextID(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		next, err = nextID(txn)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read next id: %w", err)
	}
	return next, nil
}

// AdvanceNextID raises the stored id counter to next.
func (s *BadgerStore) AdvanceNextID(ctx context.Context, next int64) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		cur, err := nextID(txn)
		if err != nil || next <= cur {
			return err
		}
		return txn.Set([]byte(badgerNextIDKey), []byte(strconv.FormatInt(next, 10)))
	})
	if err != nil {
		return fmt.Errorf("advance next id: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < badgerMaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func nextID(txn *badger.Txn) (int64, error) {
	item, err := txn.Get([]byte(badgerNextIDKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return readID(item)
}

func readID(item *badger.Item) (int64, error) {
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id under %s: %w", item.Key(), err)
	}
	return id, nil
}

func getEntry(txn *badger.Txn, id int64) (*models.Entry, error) {
	item, err := txn.Get(badgerEntryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e models.Entry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	if err != nil {
		return nil, fmt.Errorf("decode entry %d: %w", id, err)
	}
	return &e, nil
}

func findByDay(txn *badger.Txn, day models.CalendarDay) (*models.Entry, error) {
	item, err := txn.Get(badgerDayKey(day))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := readID(item)
	if err != nil {
		return nil, err
	}
	return getEntry(txn, id)
}

func putEntry(txn *badger.Txn, e *models.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %d: %w", e.ID, err)
	}
	if err := txn.Set(badgerEntryKey(e.ID), data); err != nil {
		return err
	}
	return txn.Set(badgerDayKey(e.Date), []byte(strconv.FormatInt(e.ID, 10)))
}
