package models

import (
	"errors"
	"fmt"
	"time"
)

// Occupancy is a single detection-history cell.
type Occupancy int8

const (
	// NotDeployed marks a bin that does not overlap the camera's deployment.
	NotDeployed Occupancy = -1
	// Absent marks a deployed bin with no photograph of the species.
	Absent Occupancy = 0
	// Present marks a deployed bin with at least one photograph of the species.
	Present Occupancy = 1
)

// BinDateLayout formats bin start dates in history headers.
const BinDateLayout = "2006-01-02"

// String renders the cell the way occupancy tools expect: "0", "1" or "-".
func (o Occupancy) String() string {
	switch o {
	case Present:
		return "1"
	case Absent:
		return "0"
	default:
		return "-"
	}
}

// HistoryRow is one camera slot across all bins.
type HistoryRow struct {
	Camera string      `json:"camera"` // Camera slot, e.g. "Cam07"
	Cells  []Occupancy `json:"cells"`
}

// DetectionHistory is the camera-by-bin presence grid for one species.
// Bins holds the left edge of every bin; each row has len(Bins) cells.
type DetectionHistory struct {
	Species string       `json:"species"`
	BinDays int          `json:"bin_days"`
	Bins    []time.Time  `json:"bins"`
	Rows    []HistoryRow `json:"rows"`
}

// Headers returns the column headers: "Camera" followed by each bin start date.
func (h *DetectionHistory) Headers() []string {
	headers := make([]string, 0, len(h.Bins)+1)
	headers = append(headers, "Camera")
	for _, b := range h.Bins {
		headers = append(headers, b.Format(BinDateLayout))
	}
	return headers
}

// Validate checks that every row is as wide as the bin list.
func (h *DetectionHistory) Validate() error {
	if h.Species == "" {
		return errors.New("species must not be empty")
	}
	if h.BinDays < 1 {
		return errors.New("bin days must be at least 1")
	}
	for _, row := range h.Rows {
		if len(row.Cells) != len(h.Bins) {
			return fmt.Errorf("camera %s has %d cells, want %d", row.Camera, len(row.Cells), len(h.Bins))
		}
	}
	return nil
}
