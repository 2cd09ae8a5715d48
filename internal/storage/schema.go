// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: One row per entry with a unique plain-date column and bounded score columns.
package storage

import "fmt"

// initSchema creates or updates the database schema.
// AUTOINCREMENT keeps ids from being reused after deletes.
func (d *DB) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE CHECK (date GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]'),
%[2]s		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`, entriesTable, scoreColumnsDDL())

	_, err := d.db.Exec(schema)
	return err
}
