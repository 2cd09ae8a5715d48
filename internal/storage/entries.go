// ABOUTME: Entry CRUD operations for SQLite storage.
// ABOUTME: Implements Repository methods with a transaction around the day check and insert.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/biomarkers/internal/models"
)

func sqliteMark(int) string { return "?" }

// List retrieves all entries ascending by day.
func (d *DB) List(ctx context.Context) ([]*models.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY date ASC, id ASC`, selectList("date"), entriesTable)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get retrieves an entry by id.
func (d *DB) Get(ctx context.Context, id int64) (*models.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, selectList("date"), entriesTable)
	return d.queryOne(ctx, d.db, query, id)
}

// FindByDate retrieves the entry stored for day.
func (d *DB) FindByDate(ctx context.Context, day models.CalendarDay) (*models.Entry, error) {
	return d.findByDate(ctx, d.db, day)
}

// Create stores a new entry. The day lookup and insert share a transaction
// and the UNIQUE constraint on date backs them up.
func (d *DB) Create(ctx context.Context, day models.CalendarDay, m models.Measurements) (*models.Entry, error) {
	if err := validateNew(day, m); err != nil {
		return nil, err
	}

	var entry *models.Entry
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := d.findByDate(ctx, tx, day)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateDate
		}

		query := fmt.Sprintf(`INSERT INTO %s (date, %s) VALUES (?, %s)`,
			entriesTable,
			strings.Join(biomarkerColumns(), ", "),
			placeholders(len(models.AllBiomarkers), sqliteMark))
		args := append([]any{day.String()}, scoreArgs(m)...)

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return mapSQLiteError(err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}

		entry = models.NewEntry(day, m)
		entry.ID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, err)
	}
	return entry, nil
}

// Delete removes an entry by id. Missing ids are ignored.
func (d *DB) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, entriesTable)
	if _, err := d.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Import inserts entries with explicit ids in one transaction.
func (d *DB) Import(ctx context.Context, entries []*models.Entry) error {
	if err := validateImport(entries); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, date, %s) VALUES (?, ?, %s)`,
		entriesTable,
		strings.Join(biomarkerColumns(), ", "),
		placeholders(len(models.AllBiomarkers), sqliteMark))

	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			args := append([]any{e.ID, e.Date.String()}, scoreArgs(e.Measurements)...)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("import entry %d: %w", e.ID, mapSQLiteError(err))
			}
		}
		return nil
	})
}

// NextID reads the AUTOINCREMENT high-water mark, which survives deletes.
func (d *DB) NextID(ctx context.Context) (int64, error) {
	var seq int64
	err := d.db.QueryRowContext(ctx, `SELECT seq FROM sqlite_sequence WHERE name = ?`, entriesTable).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read id sequence: %w", err)
	}
	return seq + 1, nil
}

// AdvanceNextID raises the AUTOINCREMENT high-water mark to next-1.
func (d *DB) AdvanceNextID(ctx context.Context, next int64) error {
	if next <= 1 {
		return nil
	}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sqlite_sequence SET seq = MAX(seq, ?) WHERE name = ?`, next-1, entriesTable)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n > 0 {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)`, entriesTable, next-1)
		return err
	})
	if err != nil {
		return fmt.Errorf("advance id sequence: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) findByDate(ctx context.Context, q querier, day models.CalendarDay) (*models.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE date = ?`, selectList("date"), entriesTable)
	return d.queryOne(ctx, q, query, day.String())
}

// queryOne runs a single-row query, returning nil when no row matches.
func (d *DB) queryOne(ctx context.Context, q querier, query string, args ...any) (*models.Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return e, nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// mapSQLiteError translates unique constraint failures into storage errors.
func mapSQLiteError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: "+entriesTable+".date"):
		return ErrDuplicateDate
	case strings.Contains(msg, "UNIQUE constraint failed: "+entriesTable+".id"),
		strings.Contains(msg, "PRIMARY KEY"):
		return ErrDuplicateID
	default:
		return err
	}
}
