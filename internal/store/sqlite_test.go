package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_PersistAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	report := sampleReport()
	outcome := PersistReport(ctx, s, report)

	require.True(t, outcome.Stored)
	assert.Equal(t, "v2", outcome.Schema)
	assert.Greater(t, outcome.ReportID, int64(0))

	reports, err := s.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	got := reports[0]
	assert.Equal(t, outcome.ReportID, got.ID)
	assert.Equal(t, "Helmetless riding", got.Title)
	require.NotNil(t, got.ImageReference)
	assert.Equal(t, "https://example.com/scene.jpg", *got.ImageReference)
	require.NotNil(t, got.LicensePlate)
	assert.Equal(t, "KA01AB1234", *got.LicensePlate)
	assert.Equal(t, report.CreatedAt, got.ReportedAt)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, "Helmet Missing", got.Violations[0].Name)
	require.NotNil(t, got.NeedsManualVerification)
	assert.False(t, *got.NeedsManualVerification)
}

func TestSQLiteStore_ListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	older := sampleReport()
	newer := sampleReport()
	newer.CreatedAt = newer.CreatedAt.Add(time.Hour)
	newer.Analysis.Title = strPtr("Later report")

	require.True(t, PersistReport(ctx, s, older).Stored)
	require.True(t, PersistReport(ctx, s, newer).Stored)

	reports, err := s.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "Later report", reports[0].Title)
}

func TestSQLiteStore_MissingColumnIsSchemaError(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_, err := s.InsertReport(ctx, []string{"reported_image", "title", "bogus_column"},
		[]any{"img", "t", 1})

	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}
