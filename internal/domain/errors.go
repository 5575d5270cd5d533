package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for solver outcomes.
var (
	ErrInfeasible = errors.New("model is infeasible")
	ErrTimeout    = errors.New("solver exceeded time limit")
)

// ValidationError rejects a partition before solving: malformed or missing
// master/forecast data. Scoped to the offending partition only.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// SolverError wraps a numeric or backend failure.
type SolverError struct {
	Err error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver error: %v", e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// PolicyRoundingError flags a rounded plan that violates MOQ or capacity.
// The controller treats it like an infeasible model and runs the repair ladder.
type PolicyRoundingError struct {
	ProductID  string
	LocationID string
	Period     int
	Reason     string
}

func (e *PolicyRoundingError) Error() string {
	return fmt.Sprintf("policy rounding failed for %s@%s period %d: %s",
		e.ProductID, e.LocationID, e.Period, e.Reason)
}

// PartialBatchFailure is raised at cycle level when the fraction of failed
// partitions exceeds the configured threshold.
type PartialBatchFailure struct {
	Failed    int
	Total     int
	Threshold float64
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("cycle failed %d of %d partitions (threshold %.2f)",
		e.Failed, e.Total, e.Threshold)
}
