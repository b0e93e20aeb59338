package models

import (
	"errors"
	"time"
)

// DeploymentWindow is the span during which one camera label was recording,
// derived from the first and last photograph taken under that label.
type DeploymentWindow struct {
	Camera string    `json:"camera"`      // Camera label as it appears in the data
	First  time.Time `json:"first_photo"` // Earliest capture time
	Last   time.Time `json:"last_photo"`  // Latest capture time
	Days   int       `json:"days"`        // Inclusive calendar-day span, at least 1
}

// ActiveDays returns the inclusive number of calendar days between first and last.
// Days are counted in Unix seconds since time.Duration saturates at about 292 years.
func ActiveDays(first, last time.Time) int {
	fy, fm, fd := first.Date()
	ly, lm, ld := last.Date()
	firstDay := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	return int((lastDay.Unix()-firstDay.Unix())/secondsPerDay) + 1
}

const secondsPerDay = 24 * 60 * 60

// Contains reports whether t falls inside the window, bounds included.
func (w *DeploymentWindow) Contains(t time.Time) bool {
	return !t.Before(w.First) && !t.After(w.Last)
}

// Validate checks that all deployment fields are valid.
func (w *DeploymentWindow) Validate() error {
	if w.Camera == "" {
		return errors.New("camera label must not be empty")
	}
	if w.First.IsZero() || w.Last.IsZero() {
		return errors.New("first and last photo must be set")
	}
	if w.First.After(w.Last) {
		return errors.New("first photo must be <= last photo")
	}
	if w.Days < 1 {
		return errors.New("number of days must be at least 1")
	}
	return nil
}
