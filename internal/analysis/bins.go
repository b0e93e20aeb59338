package analysis

import "time"

// Bins returns start, start+step, start+2*step, ... while the value is <= end.
// Consecutive values bound half-open bins [bins[i], bins[i+1]). At least one
// value is produced when start <= end; none when stepDays < 1 or start > end.
func Bins(start, end time.Time, stepDays int) []time.Time {
	if stepDays < 1 || start.After(end) {
		return nil
	}

	step := time.Duration(stepDays) * 24 * time.Hour
	var bins []time.Time
	for d := start; !d.After(end); d = d.Add(step) {
		bins = append(bins, d)
	}
	return bins
}
