package model

// AnalysisRecord is the structured output of the vision classifier for a
// single road-scene image. Field names mirror the JSON schema the classifier
// is instructed to produce. A record is created once per request and never
// mutated afterwards.
type AnalysisRecord struct {
	VehicleDetected        bool     `json:"vehicle_detected"`
	IsViolation            *bool    `json:"is_violation"`
	LicensePlate           *string  `json:"license_plate"`
	LicensePlateConfidence float64  `json:"license_plate_confidence"`
	IsIndiaLocation        bool     `json:"is_india_location"`
	LocationConfidence     float64  `json:"location_confidence"`
	Title                  *string  `json:"title"`
	ShortDescription       *string  `json:"short_description"`
	DetailedDescription    *string  `json:"detailed_description"`
	ViolationLabels        []string `json:"violations"`
	OverallConfidence      float64  `json:"confidence_score"`
}

// ViolationConfirmed reports whether the classifier affirmatively flagged a
// violation. A nil IsViolation (no vehicle, or indeterminate) counts as false.
func (a AnalysisRecord) ViolationConfirmed() bool {
	return a.IsViolation != nil && *a.IsViolation
}

// PlateReported reports whether the classifier claimed a readable plate.
// Downstream consumers must still check LicensePlateConfidence before
// surfacing the value.
func (a AnalysisRecord) PlateReported() bool {
	return a.LicensePlate != nil && *a.LicensePlate != ""
}
