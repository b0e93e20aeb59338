package analysis

import (
	"sort"
	"time"

	"github.com/camtrapnz/camtrap/internal/models"
)

// SummarizeDeployments groups records by camera label and returns one window per
// label spanning its earliest and latest parseable capture time. Records with
// unparsable timestamps are skipped and counted. Windows are ordered by the
// first appearance of their label in records.
func SummarizeDeployments(records []models.Record) ([]models.DeploymentWindow, DropStats) {
	var stats DropStats
	index := make(map[string]int)
	var windows []models.DeploymentWindow

	for i := range records {
		taken, ok := timestampOf(&records[i])
		if !ok {
			stats.Unparsable++
			continue
		}

		label := records[i].Label
		pos, seen := index[label]
		if !seen {
			index[label] = len(windows)
			windows = append(windows, models.DeploymentWindow{Camera: label, First: taken, Last: taken})
			continue
		}

		w := &windows[pos]
		if taken.Before(w.First) {
			w.First = taken
		}
		if taken.After(w.Last) {
			w.Last = taken
		}
	}

	for i := range windows {
		windows[i].Days = models.ActiveDays(windows[i].First, windows[i].Last)
	}
	return windows, stats
}

// TotalCameraDays sums the active days of every window.
func TotalCameraDays(windows []models.DeploymentWindow) int {
	total := 0
	for _, w := range windows {
		total += w.Days
	}
	return total
}

// CameraWindows keys deployment windows by the camera identifier extracted from
// each label. Labels without an identifier are left out. When several labels
// share an identifier the result spans all of them.
func CameraWindows(windows []models.DeploymentWindow) map[string]models.DeploymentWindow {
	byCamera := make(map[string]models.DeploymentWindow)
	for _, w := range windows {
		id := ExtractCameraID(w.Camera)
		if id == "" {
			continue
		}
		existing, ok := byCamera[id]
		if !ok {
			w.Camera = id
			byCamera[id] = w
			continue
		}
		if w.First.Before(existing.First) {
			existing.First = w.First
		}
		if w.Last.After(existing.Last) {
			existing.Last = w.Last
		}
		existing.Days = models.ActiveDays(existing.First, existing.Last)
		byCamera[id] = existing
	}
	return byCamera
}

// SurveySpan returns the earliest and latest parseable capture times.
func SurveySpan(records []models.Record) (start, end time.Time, err error) {
	found := false
	for i := range records {
		taken, ok := timestampOf(&records[i])
		if !ok {
			continue
		}
		if !found || taken.Before(start) {
			start = taken
		}
		if !found || taken.After(end) {
			end = taken
		}
		found = true
	}
	if !found {
		return time.Time{}, time.Time{}, ErrNoTimestamps
	}
	return start, end, nil
}

// SpeciesList returns the distinct non-empty species in records, sorted.
func SpeciesList(records []models.Record) []string {
	seen := make(map[string]bool)
	var species []string
	for _, r := range records {
		if r.Species == "" || seen[r.Species] {
			continue
		}
		seen[r.Species] = true
		species = append(species, r.Species)
	}
	sort.Strings(species)
	return species
}
