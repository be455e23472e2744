package pipeline

import "fmt"

// ClassificationError wraps a failure of the vision analysis phase. The image
// could not be analyzed at all, so no report exists.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("pipeline: vision analysis failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ValidationError wraps a failure of candidate validation. Matching results
// are unreliable when the validator cannot answer, so the run stops rather
// than file a partially verified report.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline: candidate validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
