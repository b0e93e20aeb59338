package analysis

import (
	"sort"
	"time"

	"github.com/camtrapnz/camtrap/internal/models"
)

// DefaultIndependenceGap is the minimum time between two independent detections
// of the same species at the same camera.
const DefaultIndependenceGap = 30 * time.Minute

// GapFunc returns the independence gap for a species.
type GapFunc func(species string) time.Duration

// FixedGap returns a GapFunc that applies the same gap to every species.
func FixedGap(gap time.Duration) GapFunc {
	return func(string) time.Duration { return gap }
}

// detectionKey identifies one (camera label, species) stream.
type detectionKey struct {
	label   string
	species string
}

// independenceTracker remembers the last kept capture time per stream.
type independenceTracker struct {
	lastKept map[detectionKey]time.Time
	gapFor   GapFunc
}

func newIndependenceTracker(gapFor GapFunc) *independenceTracker {
	if gapFor == nil {
		gapFor = FixedGap(DefaultIndependenceGap)
	}
	return &independenceTracker{
		lastKept: make(map[detectionKey]time.Time),
		gapFor:   gapFor,
	}
}

// keep reports whether a detection at taken starts a new independent event.
// The gap is measured from the last kept detection of the stream, not from the
// previous photograph, so a long burst yields one event per elapsed gap.
func (t *independenceTracker) keep(key detectionKey, taken time.Time) bool {
	last, exists := t.lastKept[key]
	if exists && taken.Sub(last) < t.gapFor(key.species) {
		return false
	}
	t.lastKept[key] = taken
	return true
}

// FilterOptions controls the independent-detection scan.
type FilterOptions struct {
	// GapFor returns the minimum gap per species; nil means DefaultIndependenceGap.
	GapFor GapFunc
	// Chronological scans records in capture-time order instead of input order.
	// Ties keep their input order.
	Chronological bool
}

// FilterIndependent keeps the records that start a new independent event for
// their (camera label, species) pair. Records without a parseable timestamp are
// dropped first. The scan is sequential and order-dependent: by default the
// input order is trusted to be capture order, and kept records retain it.
func FilterIndependent(records []models.Record, opts FilterOptions) ([]models.Record, DropStats) {
	var stats DropStats
	parsed := make([]models.Record, 0, len(records))
	for _, r := range records {
		taken, ok := timestampOf(&r)
		if !ok {
			stats.Unparsable++
			continue
		}
		r.SetTaken(taken)
		parsed = append(parsed, r)
	}

	if opts.Chronological {
		sort.SliceStable(parsed, func(i, j int) bool {
			return parsed[i].Taken.Before(parsed[j].Taken)
		})
	}

	tracker := newIndependenceTracker(opts.GapFor)
	kept := make([]models.Record, 0, len(parsed))
	for _, r := range parsed {
		if tracker.keep(detectionKey{label: r.Label, species: r.Species}, r.Taken) {
			kept = append(kept, r)
		}
	}
	return kept, stats
}
