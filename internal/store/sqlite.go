package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pranavgnn/thirdeye/internal/model"
)

// SQLiteStore persists reports in a local SQLite database. Used for
// single-node deployments and development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}

	// Serialize writers; SQLite allows only one at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: %s", pragma)
		}
	}

	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS violation_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reporter_phone TEXT,
	reported_timestamp TEXT NOT NULL,
	reported_image TEXT NOT NULL,
	title TEXT NOT NULL,
	short_description TEXT,
	detailed_description TEXT,
	is_violation INTEGER,
	license_plate TEXT,
	license_plate_confidence REAL,
	is_india_location INTEGER,
	location_confidence REAL,
	confidence_score REAL,
	violations TEXT NOT NULL DEFAULT '[]',
	needs_manual_verification INTEGER
);
CREATE INDEX IF NOT EXISTS idx_violation_reports_timestamp
	ON violation_reports (reported_timestamp DESC);
`

// Migrate creates the reports table and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "store: migrate sqlite")
	}
	return nil
}

// InsertReport inserts a row with the given columns and returns its id.
func (s *SQLiteStore) InsertReport(ctx context.Context, columns []string, values []any) (int64, error) {
	placeholders := make([]string, len(columns))
	args := make([]any, len(values))
	for i := range columns {
		placeholders[i] = "?"
		args[i] = sqliteValue(values[i])
	}
	query := fmt.Sprintf(
		"INSERT INTO violation_reports (%s) VALUES (%s) RETURNING id",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, eris.Wrap(err, "store: insert report")
	}
	return id, nil
}

// sqliteValue converts driver-unfriendly values to SQLite-native ones.
// Timestamps are stored as RFC 3339 text so ordering by the column works.
func sqliteValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	default:
		return v
	}
}

// ListReports returns the most recent reports, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]model.StoredReport, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reporter_phone, reported_timestamp, reported_image, title,
			short_description, detailed_description, is_violation, license_plate,
			license_plate_confidence, is_india_location, location_confidence,
			confidence_score, violations, needs_manual_verification
		FROM violation_reports
		ORDER BY reported_timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list reports")
	}
	defer rows.Close()

	var reports []model.StoredReport
	for rows.Next() {
		var (
			r              model.StoredReport
			reportedAt     string
			violationsJSON string
		)
		if err := rows.Scan(
			&r.ID, &r.ReporterPhone, &reportedAt, &r.ImageReference,
			&r.Title, &r.ShortDescription, &r.DetailedDescription, &r.IsViolation,
			&r.LicensePlate, &r.LicensePlateConfidence, &r.IsIndiaLocation,
			&r.LocationConfidence, &r.ConfidenceScore, &violationsJSON,
			&r.NeedsManualVerification,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan report")
		}
		if ts, err := time.Parse(time.RFC3339Nano, reportedAt); err == nil {
			r.ReportedAt = ts
		}
		if violationsJSON != "" {
			if err := json.Unmarshal([]byte(violationsJSON), &r.Violations); err != nil {
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

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
