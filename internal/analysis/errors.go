package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTimestamps means no record carried a parseable capture time.
	ErrNoTimestamps = errors.New("no records with a parseable capture time")

	// ErrInsufficientDeployment means detections exist but the cameras account
	// for zero camera-days, so no rate can be computed.
	ErrInsufficientDeployment = errors.New("insufficient deployment data: total camera-days is zero")

	// ErrInvalidBinSize means a history was requested with a bin width below one day.
	ErrInvalidBinSize = errors.New("bin size must be at least 1 day")

	// ErrSaturated means a species was detected more often than there were
	// camera-days, so the Wilson interval is undefined and has been collapsed.
	ErrSaturated = errors.New("detections exceed camera-days; interval collapsed to the point estimate")
)

// DropStats counts records a stage skipped without failing.
type DropStats struct {
	Unparsable int // Records whose Date_taken did not parse
	NoCamera   int // Records whose label matched no camera slot
}

// Total returns the number of skipped records.
func (d DropStats) Total() int {
	return d.Unparsable + d.NoCamera
}

// EstimateError reports a per-species problem that did not abort estimation.
type EstimateError struct {
	Species string
	Err     error
}

func (e EstimateError) Error() string {
	return fmt.Sprintf("estimate for species %s: %v", e.Species, e.Err)
}

func (e EstimateError) Unwrap() error {
	return e.Err
}
