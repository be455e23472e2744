package store

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/pranavgnn/thirdeye/internal/model"
)

// defaultTitle is used when the vision analysis produced no title.
const defaultTitle = "Traffic Violation Report"

// schemaVariant describes one known shape of the violation_reports table.
// Deployments migrated at different times, so inserts try the current shape
// first and fall back to the older one on a schema mismatch.
type schemaVariant struct {
	Name    string
	Columns []string
	Values  func(r *model.Report, violationsJSON []byte) []any
}

func reportTitle(r *model.Report) string {
	if r.Analysis.Title != nil && *r.Analysis.Title != "" {
		return *r.Analysis.Title
	}
	return defaultTitle
}

var schemaVariants = []schemaVariant{
	{
		Name: "v2",
		Columns: []string{
			"reporter_phone",
			"reported_timestamp",
			"reported_image",
			"title",
			"short_description",
			"detailed_description",
			"is_violation",
			"license_plate",
			"license_plate_confidence",
			"is_india_location",
			"location_confidence",
			"confidence_score",
			"violations",
			"needs_manual_verification",
		},
		Values: func(r *model.Report, violationsJSON []byte) []any {
			return []any{
				r.ReporterIdentity,
				r.CreatedAt,
				r.ImageReference,
				reportTitle(r),
				r.Analysis.ShortDescription,
				r.Analysis.DetailedDescription,
				r.Analysis.IsViolation,
				r.Analysis.LicensePlate,
				r.Analysis.LicensePlateConfidence,
				r.Analysis.IsIndiaLocation,
				r.Analysis.LocationConfidence,
				r.Analysis.OverallConfidence,
				violationsJSON,
				r.NeedsManualVerification,
			}
		},
	},
	{
		Name: "v1",
		Columns: []string{
			"reporter_phone",
			"reported_timestamp",
			"reported_image",
			"title",
			"short_description",
			"detailed_description",
			"is_violation",
			"license_plate",
			"confidence_score",
			"violations",
		},
		Values: func(r *model.Report, violationsJSON []byte) []any {
			return []any{
				r.ReporterIdentity,
				r.CreatedAt,
				r.ImageReference,
				reportTitle(r),
				r.Analysis.ShortDescription,
				r.Analysis.DetailedDescription,
				r.Analysis.IsViolation,
				r.Analysis.LicensePlate,
				r.Analysis.OverallConfidence,
				violationsJSON,
			}
		},
	},
}

// PersistReport writes a report through the schema variants in order. A
// schema mismatch moves on to the next variant; any other error stops
// immediately. Failure is reported in the outcome rather than as an error so
// the caller can still tell the reporter what was found.
func PersistReport(ctx context.Context, st Store, report *model.Report) model.StorageOutcome {
	violationsJSON, err := json.Marshal(report.Violations)
	if err != nil {
		return model.StorageOutcome{Error: err.Error()}
	}

	var firstErr error
	for _, variant := range schemaVariants {
		id, err := st.InsertReport(ctx, variant.Columns, variant.Values(report, violationsJSON))
		if err == nil {
			return model.StorageOutcome{Stored: true, ReportID: id, Schema: variant.Name}
		}
		if firstErr == nil {
			firstErr = err
		}
		if !IsSchemaError(err) {
			break
		}
		zap.L().Warn("store: insert failed, trying older schema",
			zap.String("variant", variant.Name),
			zap.Error(err))
	}

	zap.L().Error("store: report not persisted", zap.Error(firstErr))
	return model.StorageOutcome{Error: firstErr.Error()}
}
