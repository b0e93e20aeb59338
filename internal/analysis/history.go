package analysis

import (
	"sort"
	"time"

	"github.com/camtrapnz/camtrap/internal/models"
)

// HistoryOptions controls detection-history construction.
type HistoryOptions struct {
	Species     []string // Species to build grids for, in output order
	BinDays     int      // Bin width in days
	CameraSlots int      // Number of slots Cam01..CamNN; 0 means DefaultCameraSlots
}

// slotKey identifies the photographs of one species under one camera slot.
type slotKey struct {
	slot    string
	species string
}

// detectionIndex holds sorted capture times per (slot, species) so that each
// bin lookup is a binary search instead of a scan over every record.
type detectionIndex map[slotKey][]time.Time

func buildDetectionIndex(records []models.Record, slots []string, want map[string]bool) (detectionIndex, DropStats) {
	var stats DropStats
	idx := make(detectionIndex)
	labelSlots := make(map[string][]string)

	for i := range records {
		r := &records[i]
		taken, ok := timestampOf(r)
		if !ok {
			stats.Unparsable++
			continue
		}

		matched, cached := labelSlots[r.Label]
		if !cached {
			matched = slotsInLabel(r.Label, slots)
			labelSlots[r.Label] = matched
		}
		if len(matched) == 0 {
			stats.NoCamera++
			continue
		}
		if !want[r.Species] {
			continue
		}
		for _, slot := range matched {
			k := slotKey{slot: slot, species: r.Species}
			idx[k] = append(idx[k], taken)
		}
	}

	for k := range idx {
		times := idx[k]
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	}
	return idx, stats
}

// anyIn reports whether a capture of the stream falls in [start, end).
func (idx detectionIndex) anyIn(k slotKey, start, end time.Time) bool {
	times := idx[k]
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(start) })
	return i < len(times) && times[i].Before(end)
}

// BuildHistories produces one camera-by-bin grid per requested species from the
// raw, non-deduplicated records. Bins run from the earliest capture to the
// latest capture plus one bin width, so the final bin is closed. Deployment
// windows are keyed by camera identifier (see CameraWindows).
//
// A cell is models.NotDeployed when the slot has no window or the half-open bin
// does not overlap it (bin end at or before the first photo, or bin start after
// the last photo).
// Otherwise it is models.Present if any record whose label contains the slot
// identifier, whose species matches exactly, was captured in [bin start, bin end).
func BuildHistories(records []models.Record, windows map[string]models.DeploymentWindow, opts HistoryOptions) ([]models.DetectionHistory, DropStats, error) {
	if opts.BinDays < 1 {
		return nil, DropStats{}, ErrInvalidBinSize
	}
	slotCount := opts.CameraSlots
	if slotCount == 0 {
		slotCount = DefaultCameraSlots
	}

	start, end, err := SurveySpan(records)
	if err != nil {
		return nil, DropStats{}, err
	}
	edges := Bins(start, end.AddDate(0, 0, opts.BinDays), opts.BinDays)
	slots := CameraSlots(slotCount)

	want := make(map[string]bool, len(opts.Species))
	for _, sp := range opts.Species {
		want[sp] = true
	}
	idx, stats := buildDetectionIndex(records, slots, want)

	binCount := len(edges) - 1
	histories := make([]models.DetectionHistory, 0, len(opts.Species))
	for _, sp := range opts.Species {
		h := models.DetectionHistory{
			Species: sp,
			BinDays: opts.BinDays,
			Bins:    append([]time.Time(nil), edges[:binCount]...),
			Rows:    make([]models.HistoryRow, 0, len(slots)),
		}

		for _, slot := range slots {
			window, deployed := windows[slot]
			cells := make([]models.Occupancy, binCount)
			for b := 0; b < binCount; b++ {
				binStart, binEnd := edges[b], edges[b+1]
				switch {
				case !deployed || !binEnd.After(window.First) || binStart.After(window.Last):
					cells[b] = models.NotDeployed
				case idx.anyIn(slotKey{slot: slot, species: sp}, binStart, binEnd):
					cells[b] = models.Present
				default:
					cells[b] = models.Absent
				}
			}
			h.Rows = append(h.Rows, models.HistoryRow{Camera: slot, Cells: cells})
		}
		histories = append(histories, h)
	}
	return histories, stats, nil
}
