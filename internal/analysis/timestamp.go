// Package analysis implements the camera-trap survey computations: deployment
// windows, independent-detection filtering, trap-rate estimation with Wilson-score
// intervals, and binned detection histories for occupancy modelling.
//
// Every function here is a pure transformation of its inputs. Per-record problems
// (unparsable timestamps, labels without a camera identifier) are skipped and
// counted; only global preconditions such as "no usable timestamps" or "zero
// camera-days" surface as errors.
package analysis

import (
	"strconv"
	"strings"
	"time"

	"github.com/camtrapnz/camtrap/internal/models"
)

// ExifLayout is the canonical capture-time format, "YYYY:MM:DD HH:MM:SS".
const ExifLayout = "2006:01:02 15:04:05"

// FormatTimestamp renders t in ExifLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ExifLayout)
}

// ParseTimestamp parses an EXIF capture time. Components may be unpadded
// ("2023:8:1 5:0:0") but the separators and part counts are exact, and the
// result must be a real calendar instant. The second return is false for any
// mismatch, including the empty string; callers exclude such records.
func ParseTimestamp(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), " ")
	if len(parts) != 2 {
		return time.Time{}, false
	}

	date, ok := splitInts(parts[0])
	if !ok {
		return time.Time{}, false
	}
	clock, ok := splitInts(parts[1])
	if !ok {
		return time.Time{}, false
	}

	y, mo, d := date[0], date[1], date[2]
	h, mi, sec := clock[0], clock[1], clock[2]
	if y < 1 || mo < 1 || mo > 12 || d < 1 || h > 23 || mi > 59 || sec > 59 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(mo), d, h, mi, sec, 0, time.UTC)
	// time.Date normalises overflow (Feb 30 -> Mar 2); reject it instead.
	if t.Day() != d || t.Month() != time.Month(mo) {
		return time.Time{}, false
	}
	return t, true
}

// splitInts splits a colon-separated triple of non-negative integers.
func splitInts(s string) ([3]int, bool) {
	var out [3]int
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return out, false
	}
	for i, f := range fields {
		if f == "" || strings.HasPrefix(f, "+") || strings.HasPrefix(f, "-") {
			return out, false
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

// ParseRecords returns a copy of records with Taken filled in wherever
// DateTaken parses, and the number that could not be parsed. The input slice
// is left untouched.
func ParseRecords(records []models.Record) ([]models.Record, int) {
	out := make([]models.Record, len(records))
	unparsable := 0
	for i, r := range records {
		r.Taken, r.Parsed = time.Time{}, false
		if t, ok := ParseTimestamp(r.DateTaken); ok {
			r.SetTaken(t)
		} else {
			unparsable++
		}
		out[i] = r
	}
	return out, unparsable
}

// timestampOf returns the record's capture time, parsing DateTaken when
// Taken has not been filled in yet.
func timestampOf(r *models.Record) (time.Time, bool) {
	if r.HasTimestamp() {
		return r.Taken, true
	}
	return ParseTimestamp(r.DateTaken)
}
