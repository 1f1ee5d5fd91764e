// internal/runstore/runstore.go
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shelfsort/internal/catalog"
)

var (
	ErrDuplicateRun      = errors.New("run already recorded")
	ErrUnsupportedDriver = errors.New("unsupported run store driver")
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultListLimit is used by List when limit is not positive.
const DefaultListLimit = 50

var schemas = map[string]string{
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS runs (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			algorithm TEXT NOT NULL,
			sort_order TEXT NOT NULL DEFAULT '',
			size INT NOT NULL,
			probes INT NOT NULL DEFAULT 0,
			op_count BIGINT NOT NULL,
			elapsed_ns BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			algorithm TEXT NOT NULL,
			sort_order TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL,
			probes INTEGER NOT NULL DEFAULT 0,
			op_count INTEGER NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
}

// Store keeps a log of sort and search runs in postgres or sqlite.
type Store struct {
	db     *sql.DB
	driver string
	tracer trace.Tracer
}

// Open connects to dsn with the named driver and prepares the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s, err := New(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and prepares the schema.
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{
		db:     db,
		driver: driver,
		tracer: otel.Tracer("shelfsort/runstore"),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Append records a completed run.
func (s *Store) Append(ctx context.Context, run catalog.Run) error {
	ctx, span := s.tracer.Start(ctx, "runstore.append",
		trace.WithAttributes(
			attribute.String("run.id", run.ID.String()),
			attribute.String("run.kind", run.Kind),
			attribute.String("run.algorithm", string(run.Algorithm)),
		),
	)
	defer span.End()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (id, kind, algorithm, sort_order, size, probes, op_count, elapsed_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), run.ID, run.Kind, string(run.Algorithm), string(run.Order), run.Size, run.Probes,
		run.Count, int64(run.Elapsed), run.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return ErrDuplicateRun
		}
		span.RecordError(err)
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return false
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]catalog.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ctx, span := s.tracer.Start(ctx, "runstore.list", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, kind, algorithm, sort_order, size, probes, op_count, elapsed_ns, created_at
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []catalog.Run
	for rows.Next() {
		var (
			run       catalog.Run
			algorithm string
			order     string
			elapsed   int64
		)
		if err := rows.Scan(&run.ID, &run.Kind, &algorithm, &order, &run.Size, &run.Probes,
			&run.Count, &elapsed, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Algorithm = catalog.Algorithm(algorithm)
		run.Order = catalog.Order(order)
		run.Elapsed = time.Duration(elapsed)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	span.SetAttributes(attribute.Int("runs.loaded", len(runs)))
	return runs, nil
}

// Summary averages operation counts and elapsed time per kind and algorithm.
func (s *Store) Summary(ctx context.Context) ([]catalog.RunStats, error) {
	ctx, span := s.tracer.Start(ctx, "runstore.summary")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, algorithm, COUNT(*),
			CAST(AVG(op_count) AS DOUBLE PRECISION),
			CAST(AVG(elapsed_ns) AS DOUBLE PRECISION)
		FROM runs
		GROUP BY kind, algorithm
		ORDER BY kind, algorithm
	`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var stats []catalog.RunStats
	for rows.Next() {
		var (
			st         catalog.RunStats
			algorithm  string
			avgElapsed float64
		)
		if err := rows.Scan(&st.Kind, &algorithm, &st.Runs, &st.AvgCount, &avgElapsed); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		st.Algorithm = catalog.Algorithm(algorithm)
		st.AvgElapsed = time.Duration(avgElapsed)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return stats, nil
}
