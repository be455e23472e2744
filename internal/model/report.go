package model

import (
	"time"

	"github.com/pranavgnn/thirdeye/internal/catalog"
)

// Report is the unit of persistence: one analyzed image with its verified
// violations and the manual-verification decision. The wrapped analysis and
// violations are owned exclusively by the report for the lifetime of one
// pipeline run.
type Report struct {
	Analysis                AnalysisRecord  `json:"analysis"`
	Violations              []catalog.Entry `json:"violations"`
	ReporterIdentity        *string         `json:"reporter_identity"`
	ImageReference          string          `json:"image_reference"`
	NeedsManualVerification bool            `json:"needs_manual_verification"`
	CreatedAt               time.Time       `json:"created_at"`
}

// StorageOutcome is the terminal persistence state of a report. Either a row
// with an id exists (Stored) or none does; both states leave the in-memory
// report intact so narration can still run.
type StorageOutcome struct {
	Stored   bool   `json:"stored"`
	ReportID int64  `json:"report_id,omitempty"`
	Schema   string `json:"schema,omitempty"` // schema variant that accepted the row
	Error    string `json:"error,omitempty"`  // original failure reason when not stored
}

// ProcessResult is what one pipeline run hands back to the caller.
type ProcessResult struct {
	Report    *Report        `json:"report"`
	Storage   StorageOutcome `json:"storage"`
	Narration string         `json:"narration"`
}

// StoredReport is one persisted row as read back from the store. Columns
// added after the original schema are nullable so rows written through the
// reduced schema still scan.
type StoredReport struct {
	ID                      int64           `json:"id"`
	ReporterPhone           *string         `json:"reporter_phone"`
	ReportedAt              time.Time       `json:"reported_timestamp"`
	ImageReference          *string         `json:"reported_image"`
	Title                   string          `json:"title"`
	ShortDescription        *string         `json:"short_description"`
	DetailedDescription     *string         `json:"detailed_description"`
	IsViolation             *bool           `json:"is_violation"`
	LicensePlate            *string         `json:"license_plate"`
	LicensePlateConfidence  *float64        `json:"license_plate_confidence"`
	IsIndiaLocation         *bool           `json:"is_india_location"`
	LocationConfidence      *float64        `json:"location_confidence"`
	ConfidenceScore         *float64        `json:"confidence_score"`
	Violations              []catalog.Entry `json:"violations"`
	NeedsManualVerification *bool           `json:"needs_manual_verification"`
}
