// ABOUTME: Repository interface for biomarker entry storage.
// ABOUTME: Defines the create/read/delete contract and storage errors shared by every backend.
package storage

import (
	"context"
	"errors"

	"github.com/harperreed/biomarkers/internal/models"
)

var (
	// ErrDuplicateDate is returned by Create and Import when an entry
	// already exists for the calendar day.
	ErrDuplicateDate = errors.New("an entry already exists for this date")

	// ErrDuplicateID is returned by Import when an entry id is taken.
	ErrDuplicateID = errors.New("an entry with this id already exists")

	// ErrNotFound is reported by callers that require an entry to exist.
	// Repository lookups return (nil, nil) for absent entries instead.
	ErrNotFound = errors.New("entry not found")
)

// Repository defines the storage interface for biomarker entries.
// At most one entry exists per calendar day; every implementation enforces
// this atomically inside Create.
type Repository interface {
	// List returns all entries ascending by day, ties broken by id.
	List(ctx context.Context) ([]*models.Entry, error)

	// Get returns the entry with id, or nil if there is none.
	Get(ctx context.Context, id int64) (*models.Entry, error)

	// FindByDate returns the entry stored for day, or nil if there is none.
	FindByDate(ctx context.Context, day models.CalendarDay) (*models.Entry, error)

	// Create stores a new entry under the next unused id.
	Create(ctx context.Context, day models.CalendarDay, m models.Measurements) (*models.Entry, error)

	// Delete removes the entry with id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id int64) error

	// Import stores entries keeping their ids. Later Create calls never
	// reuse an imported id.
	Import(ctx context.Context, entries []*models.Entry) error

	// NextID returns the lowest id the next Create may assign. Ids freed by
	// deletes stay below it.
	NextID(ctx context.Context) (int64, error)

	// AdvanceNextID raises the id counter so later creates assign ids of at
	// least next. It never lowers the counter.
	AdvanceNextID(ctx context.Context, next int64) error

	// Close releases backend resources.
	Close() error
}

// validateNew checks the parts of a new entry every backend relies on.
func validateNew(day models.CalendarDay, m models.Measurements) error {
	if day.IsZero() {
		verr := &models.ValidationError{}
		verr.Add("date", "%s", models.ErrEmptyDate.Error())
		return verr
	}
	return m.Validate()
}

// validateImport checks a batch before any of it is written, rejecting
// invalid entries and duplicates within the batch itself.
func validateImport(entries []*models.Entry) error {
	ids := make(map[int64]bool, len(entries))
	days := make(map[models.CalendarDay]bool, len(entries))
	for _, e := range entries {
		if e.ID <= 0 {
			verr := &models.ValidationError{}
			verr.Add("id", "id must be positive, got %d", e.ID)
			return verr
		}
		if err := validateNew(e.Date, e.Measurements); err != nil {
			return err
		}
		if ids[e.ID] {
			return ErrDuplicateID
		}
		if days[e.Date] {
			return ErrDuplicateDate
		}
		ids[e.ID] = true
		days[e.Date] = true
	}
	return nil
}
