// ABOUTME: Data migration between biomarker storage backends.
// ABOUTME: Copies every entry, ids included, from source to destination.

package storage

import (
	"context"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Entries int
}

// MigrateData copies all entries from src to dst, keeping their ids so
// references such as CLI history stay valid. The destination should be
// empty; any id or day clash aborts the migration before writing. The
// source id counter is carried over so ids deleted in src stay retired.
func MigrateData(ctx context.Context, src, dst Repository) (*MigrateSummary, error) {
	entries, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source entries: %w", err)
	}
	next, err := src.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source id counter: %w", err)
	}

	if err := dst.Import(ctx, entries); err != nil {
		return nil, fmt.Errorf("import into destination: %w", err)
	}
	if err := dst.AdvanceNextID(ctx, next); err != nil {
		return nil, fmt.Errorf("advance destination id counter: %w", err)
	}

	return &MigrateSummary{Entries: len(entries)}, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
