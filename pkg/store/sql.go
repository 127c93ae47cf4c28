package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
)

// Dialect holds what differs between SQL backends
type Dialect struct {
	Name   string
	Driver string
	schema string
}

var (
	// Postgres stores reports as JSONB
	Postgres = Dialect{
		Name:   "postgres",
		Driver: "postgres",
		schema: `
	CREATE TABLE IF NOT EXISTS eventlens_reports (
		run_id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		events INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		report JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_eventlens_reports_job ON eventlens_reports(job, started_at DESC);
	`,
	}

	// SQLite stores reports as JSON text
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		schema: `
	CREATE TABLE IF NOT EXISTS eventlens_reports (
		run_id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		events INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		report TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_eventlens_reports_job ON eventlens_reports(job, started_at DESC);
	`,
	}
)

const (
	insertReportQuery = `
		INSERT INTO eventlens_reports (run_id, job, started_at, events, rejected, report)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO NOTHING
	`

	pruneReportsQuery = `
		DELETE FROM eventlens_reports
		WHERE job = $1 AND run_id NOT IN (
			SELECT run_id FROM eventlens_reports
			WHERE job = $1
			ORDER BY started_at DESC, run_id DESC
			LIMIT $2
		)
	`

	selectReportsQuery = `
		SELECT report FROM eventlens_reports
		WHERE job = $1
		ORDER BY started_at DESC, run_id DESC
		LIMIT $2
	`
)

// SQLStore keeps reports in an eventlens_reports table
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	history int
	tracer  trace.Tracer
}

// NewSQLStore creates a store on an open database and ensures its table
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, history int) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect,
		history: Options{History: history}.history(),
		tracer:  observability.Tracer(),
	}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure eventlens_reports table: %w", err)
	}
	return s, nil
}

// OpenSQL connects to dsn with the dialect's driver
func OpenSQL(ctx context.Context, dialect Dialect, dsn string, history int) (*SQLStore, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect.Name, err)
	}
	if dialect == SQLite {
		// one writer keeps in-memory databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect.Name, err)
	}

	s, err := NewSQLStore(ctx, db, dialect, history)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

func (s *SQLStore) start(ctx context.Context, op, jobName string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "SQL."+op, trace.WithAttributes(
		attribute.String("db.system", s.dialect.Name),
		attribute.String("eventlens.job", jobName),
	))
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// Save inserts the report and prunes the job's history in one transaction
func (s *SQLStore) Save(ctx context.Context, report *job.Report) error {
	if err := checkReport(report); err != nil {
		return err
	}
	key := jobKey(report.Job)

	ctx, span := s.start(ctx, "SaveReport", key)
	defer span.End()

	data, err := encodeReport(report)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(span, err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// JSON goes as text; lib/pq sends []byte as bytea
	if _, err := tx.ExecContext(ctx, insertReportQuery,
		report.RunID, key, report.StartedAt.UnixMilli(), report.Events, report.Rejected(), string(data),
	); err != nil {
		return fail(span, err, "failed to insert report")
	}
	if _, err := tx.ExecContext(ctx, pruneReportsQuery, key, s.history); err != nil {
		return fail(span, err, "failed to prune reports")
	}
	if err := tx.Commit(); err != nil {
		return fail(span, err, "failed to commit report")
	}

	span.SetStatus(codes.Ok, "report saved")
	return nil
}

// Latest returns the newest report of the job
func (s *SQLStore) Latest(ctx context.Context, jobName string) (*job.Report, error) {
	reports, err := s.List(ctx, jobName, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNotFound
	}
	return reports[0], nil
}

// List returns the newest reports of the job
func (s *SQLStore) List(ctx context.Context, jobName string, limit int) ([]*job.Report, error) {
	key := jobKey(jobName)
	if limit <= 0 {
		limit = s.history
	}

	ctx, span := s.start(ctx, "ListReports", key)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, selectReportsQuery, key, limit)
	if err != nil {
		return nil, fail(span, err, "failed to query reports")
	}
	defer rows.Close()

	var reports []*job.Report
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fail(span, err, "failed to scan report")
		}
		report, err := decodeReport(data)
		if err != nil {
			return nil, fail(span, err, "invalid stored report")
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, err, "failed to read reports")
	}

	span.SetAttributes(attribute.Int("eventlens.reports", len(reports)))
	span.SetStatus(codes.Ok, "reports listed")
	return reports, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
