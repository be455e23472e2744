package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pranavgnn/thirdeye/internal/db"
	"github.com/pranavgnn/thirdeye/internal/model"
)

// PostgresStore persists reports in PostgreSQL.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to PostgreSQL and validates the connection.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used in tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS violation_reports (
	id BIGSERIAL PRIMARY KEY,
	reporter_phone TEXT,
	reported_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	reported_image TEXT NOT NULL,
	title TEXT NOT NULL,
	short_description TEXT,
	detailed_description TEXT,
	is_violation BOOLEAN,
	license_plate TEXT,
	license_plate_confidence DOUBLE PRECISION,
	is_india_location BOOLEAN,
	location_confidence DOUBLE PRECISION,
	confidence_score DOUBLE PRECISION,
	violations JSONB NOT NULL DEFAULT '[]',
	needs_manual_verification BOOLEAN
);
CREATE INDEX IF NOT EXISTS idx_violation_reports_timestamp
	ON violation_reports (reported_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_violation_reports_phone
	ON violation_reports (reporter_phone);
`

// Migrate creates the reports table and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "store: migrate postgres")
	}
	return nil
}

// InsertReport inserts a row with the given columns and returns its id.
func (s *PostgresStore) InsertReport(ctx context.Context, columns []string, values []any) (int64, error) {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO violation_reports (%s) VALUES (%s) RETURNING id",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	var id int64
	if err := s.pool.QueryRow(ctx, query, values...).Scan(&id); err != nil {
		return 0, eris.Wrap(err, "store: insert report")
	}
	return id, nil
}

const maxListLimit = 1000

// ListReports returns the most recent reports, newest first.
func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]model.StoredReport, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, reporter_phone, reported_timestamp, reported_image, title,
			short_description, detailed_description, is_violation, license_plate,
			license_plate_confidence, is_india_location, location_confidence,
			confidence_score, violations, needs_manual_verification
		FROM violation_reports
		ORDER BY reported_timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list reports")
	}
	defer rows.Close()

	var reports []model.StoredReport
	for rows.Next() {
		var (
			r              model.StoredReport
			violationsJSON []byte
		)
		if err := rows.Scan(
			&r.ID, &r.ReporterPhone, &r.ReportedAt, &r.ImageReference,
			&r.Title, &r.ShortDescription, &r.DetailedDescription, &r.IsViolation,
			&r.LicensePlate, &r.LicensePlateConfidence, &r.IsIndiaLocation,
			&r.LocationConfidence, &r.ConfidenceScore, &violationsJSON,
			&r.NeedsManualVerification,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan report")
		}
		if len(violationsJSON) > 0 {
			if err := json.Unmarshal(violationsJSON, &r.Violations); err != nil {
				return nil, eris.Wrap(err, "store: decode violations")
			}
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate reports")
	}
	return reports, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}
