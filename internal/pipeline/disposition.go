package pipeline

import (
	"github.com/pranavgnn/thirdeye/internal/catalog"
	"github.com/pranavgnn/thirdeye/internal/model"
)

// Confidence floors below which a report is routed to a human reviewer.
const (
	plateConfidenceFloor    = 0.7
	locationConfidenceFloor = 0.7
	overallConfidenceFloor  = 0.6
)

// NeedsManualVerification decides whether a confirmed violation report must
// be reviewed by a human before action. Reports without a confirmed
// violation never need review. Any single trigger is sufficient:
// a reported plate below the plate confidence floor, a location reading
// below its floor, low overall confidence, or a violation with no catalog
// match.
func NeedsManualVerification(a model.AnalysisRecord, matched []catalog.Entry) bool {
	if !a.ViolationConfirmed() {
		return false
	}
	if a.PlateReported() && a.LicensePlateConfidence < plateConfidenceFloor {
		return true
	}
	if a.LocationConfidence < locationConfidenceFloor {
		return true
	}
	if a.OverallConfidence < overallConfidenceFloor {
		return true
	}
	if len(matched) == 0 {
		return true
	}
	return false
}
