// Package models defines the core domain entities for the camtrap application.
// These models represent camera-trap photographs, camera deployment windows,
// species trap rates and binned detection histories.
// Derived models include built-in validation so invariants are checked at the
// boundaries where they are produced and exported.
//
// Terminology (matching the survey spreadsheets):
//   - Label: free-text camera label, e.g. "Site A Cam07". The camera identifier
//     ("Cam07") is embedded somewhere in it.
//   - Burst class: the species classification assigned to a photograph burst.
package models

import (
	"errors"
	"time"
)

// Record is one photograph (trigger event) as read from the data sheet.
// Raw cell text is kept so exports reproduce the input exactly; Taken and
// Parsed are filled in once DateTaken has been parsed.
type Record struct {
	Row       int       `json:"row"`        // 1-based row in the source sheet
	Label     string    `json:"label"`      // Free-text camera label
	DateTaken string    `json:"date_taken"` // EXIF capture time, "YYYY:MM:DD HH:MM:SS"
	Species   string    `json:"species"`    // Burst_class; may be empty
	Count     string    `json:"count"`      // Raw Count cell; may be empty or non-numeric
	Taken     time.Time `json:"taken"`      // Parsed DateTaken; meaningful only when Parsed
	Parsed    bool      `json:"parsed"`     // DateTaken has been parsed into Taken
}

// HasTimestamp reports whether the record carries a parsed capture time.
func (r *Record) HasTimestamp() bool {
	return r.Parsed
}

// SetTaken records the parsed capture time.
func (r *Record) SetTaken(t time.Time) {
	r.Taken = t
	r.Parsed = true
}

// Validate checks that a parsed record can take part in the analysis.
func (r *Record) Validate() error {
	if r.Label == "" {
		return errors.New("record label must not be empty")
	}
	if !r.HasTimestamp() {
		return errors.New("record timestamp must be parsed")
	}
	return nil
}
