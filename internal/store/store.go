package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pranavgnn/thirdeye/internal/model"
)

// Store persists violation reports.
type Store interface {
	// InsertReport inserts a row with the given column set and returns the
	// new report id.
	InsertReport(ctx context.Context, columns []string, values []any) (int64, error)

	// ListReports returns the most recent reports, newest first.
	ListReports(ctx context.Context, limit int) ([]model.StoredReport, error)

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Close releases database resources.
	Close() error
}

// Postgres error codes that indicate the target schema lacks a column or
// table rather than a transient failure.
const (
	pgUndefinedColumn  = "42703"
	pgUndefinedTable   = "42P01"
	pgDatatypeMismatch = "42804"
)

// IsSchemaError reports whether err indicates the database schema does not
// match the attempted insert. Connectivity and constraint errors are not
// schema errors.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedColumn, pgUndefinedTable, pgDatatypeMismatch:
			return true
		}
		return false
	}

	// SQLite reports schema mismatches as string errors.
	msg := err.Error()
	for _, needle := range []string{
		"no such column",
		"no such table",
		"has no column named",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
