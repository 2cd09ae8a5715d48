// ABOUTME: PostgreSQL Repository backed by a pgx connection pool.
// ABOUTME: Relies on the UNIQUE(date) constraint and ON CONFLICT for atomic creates.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/biomarkers/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// pgDateExpr renders the DATE column as YYYY-MM-DD text so rows scan the
// same way they do in SQLite.
const pgDateExpr = "to_char(date, 'YYYY-MM-DD')"

// PostgresStore stores entries in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that PostgresStore implements Repository.
var _ Repository = (*PostgresStore)(nil)

// OpenPostgres connects to dsn, verifies the connection and creates the
// schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		date DATE NOT NULL,
%s		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT %s_date_key UNIQUE (date)
	)`, entriesTable, scoreColumnsDDL(), entriesTable)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("initialize postgres schema: %w", err)
	}
	return nil
}

func pgMark(i int) string { return fmt.Sprintf("$%d", i) }

// List retrieves all entries ascending by day.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY date ASC, id ASC`, selectList(pgDateExpr), entriesTable)

	rows, err := s.pool.Query(ctx, query)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Get retrieves an entry by id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectList(pgDateExpr), entriesTable)
	return s.queryOne(ctx, query, id)
}

// FindByDate retrieves the entry stored for day.
func (s *PostgresStore) FindByDate(ctx context.Context, day models.CalendarDay) (*models.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE date = $1::date`, selectList(pgDateExpr), entriesTable)
	return s.queryOne(ctx, query, day.String())
}

// Create inserts the entry in one statement. A conflicting day inserts
// nothing and returns no row.
func (s *PostgresStore) Create(ctx context.Context, day models.CalendarDay, m models.Measurements) (*models.Entry, error) {
	if err := validateNew(day, m); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (date, %s) VALUES ($1::date, %s)
		ON CONFLICT (date) DO NOTHING
		RETURNING id`,
		entriesTable,
		strings.Join(biomarkerColumns(), ", "),
		placeholders(len(models.AllBiomarkers), func(i int) string { return pgMark(i + 1) }))
	args := append([]any{day.String()}, scoreArgs(m)...)

	var id int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("create entry for %s: %w", day, ErrDuplicateDate)
	}
	if err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, mapPostgresError(err))
	}

	e := models.NewEntry(day, m)
	e.ID = id
	return e, nil
}

// Delete removes an entry by id. Missing ids are ignored.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, entriesTable)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Import inserts entries with explicit ids and raises the id sequence past
// the highest id in the table.
func (s *PostgresStore) Import(ctx context.Context, entries []*models.Entry) error {
	if err := validateImport(entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, date, %s) VALUES ($1, $2::date, %s)`,
		entriesTable,
		strings.Join(biomarkerColumns(), ", "),
		placeholders(len(models.AllBiomarkers), func(i int) string { return pgMark(i + 2) }))

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			args := append([]any{e.ID, e.Date.String()}, scoreArgs(e.Measurements)...)
			if _, err := tx.Exec(ctx, insert, args...); err != nil {
				return fmt.Errorf("import entry %d: %w", e.ID, mapPostgresError(err))
			}
		}
		return raiseSequence(ctx, tx, 0)
	})
}

// NextID returns one past the larger of the sequence position and the
// highest stored id.
func (s *PostgresStore) NextID(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT GREATEST(
		(SELECT COALESCE(MAX(id), 0) FROM %[1]s),
		COALESCE(pg_sequence_last_value(pg_get_serial_sequence('%[1]s', 'id')::regclass), 0)) + 1`,
		entriesTable)

	var next int64
	if err := s.pool.QueryRow(ctx, query).Scan(&next); err != nil {
		return 0, fmt.Errorf("read id sequence: %w", err)
	}
	return next, nil
}

// AdvanceNextID raises the id sequence so nextval returns at least next.
func (s *PostgresStore) AdvanceNextID(ctx context.Context, next int64) error {
	return raiseSequence(ctx, s.pool, next-1)
}

// pgExecer is satisfied by *pgxpool.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// raiseSequence sets the id sequence to the largest of floor, the highest
// stored id and its current position, so it only ever moves forward. An
// unused sequence on an empty table is left to hand out 1.
func raiseSequence(ctx context.Context, q pgExecer, floor int64) error {
	query := fmt.Sprintf(`SELECT setval(seq, GREATEST(v, 1), v > 0)
		FROM (SELECT pg_get_serial_sequence('%[1]s', 'id')::regclass AS seq) s,
		LATERAL (SELECT GREATEST($1::bigint,
			(SELECT COALESCE(MAX(id), 0) FROM %[1]s),
			COALESCE(pg_sequence_last_value(s.seq), 0)) AS v) cur`, entriesTable)

	if _, err := q.Exec(ctx, query, floor); err != nil {
		return fmt.Errorf("advance id sequence: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*models.Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return e, nil
}

// mapPostgresError translates unique violations into storage errors.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	if pgErr.ConstraintName == entriesTable+"_date_key" {
		return ErrDuplicateDate
	}
	return ErrDuplicateID
}
