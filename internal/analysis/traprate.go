package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/camtrapnz/camtrap/internal/models"
)

// Z95 is the standard normal quantile for a two-sided 95% interval.
const Z95 = 1.96

// DetectionCount parses a Count cell. Missing, non-numeric, negative, NaN or
// infinite values count as one detection.
func DetectionCount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 1
	}
	return n
}

// WilsonInterval returns the Wilson-score interval for proportion p over n trials:
//
//	denom  = 1 + z²/n
//	center = p + z²/(2n)
//	margin = z·sqrt(p(1−p)/n + z²/(4n²))
//	lower, upper = (center ∓ margin) / denom
//
// n must be positive. A negative radicand (p > 1) is clamped to zero.
func WilsonInterval(p, n, z float64) (lower, upper float64) {
	z2 := z * z
	denom := 1 + z2/n
	center := p + z2/(2*n)
	radicand := p*(1-p)/n + z2/(4*n*n)
	if radicand < 0 {
		radicand = 0
	}
	margin := z * math.Sqrt(radicand)
	return (center - margin) / denom, (center + margin) / denom
}

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EstimateTrapRates sums independent detections per species and converts them
// into rates per 100 camera-days with 95% Wilson-score intervals, where the
// number of trials is the total camera-days across all windows. Records with an
// empty species are ignored. Results are sorted by species.
//
// A species detected more often than there were camera-days is reported with
// its bounds collapsed onto the rate, flagged Saturated, and listed in the
// returned per-species errors. ErrInsufficientDeployment is returned when any
// species was detected but the windows total zero camera-days.
func EstimateTrapRates(windows []models.DeploymentWindow, detections []models.Record) ([]models.TrapRate, []EstimateError, error) {
	counts := make(map[string]float64)
	for _, d := range detections {
		if d.Species == "" {
			continue
		}
		counts[d.Species] += DetectionCount(d.Count)
	}
	if len(counts) == 0 {
		return []models.TrapRate{}, nil, nil
	}

	totalDays := TotalCameraDays(windows)
	if totalDays <= 0 {
		return nil, nil, ErrInsufficientDeployment
	}
	n := float64(totalDays)

	species := make([]string, 0, len(counts))
	for sp := range counts {
		species = append(species, sp)
	}
	sort.Strings(species)

	rates := make([]models.TrapRate, 0, len(species))
	var warnings []EstimateError
	for _, sp := range species {
		count := counts[sp]
		p := count / n

		tr := models.TrapRate{Species: sp, Count: count, Rate: round2(100 * p)}
		if p > 1 {
			tr.Lower95, tr.Upper95 = tr.Rate, tr.Rate
			tr.Saturated = true
			warnings = append(warnings, EstimateError{
				Species: sp,
				Err:     fmt.Errorf("%w (%.0f detections over %d camera-days)", ErrSaturated, count, totalDays),
			})
		} else {
			lower, upper := WilsonInterval(p, n, Z95)
			tr.Lower95 = round2(100 * lower)
			tr.Upper95 = round2(100 * upper)
			// Rounding can nudge a bound across the rounded rate at the extremes.
			tr.Lower95 = math.Min(tr.Lower95, tr.Rate)
			tr.Upper95 = math.Max(tr.Upper95, tr.Rate)
		}
		tr.MinusBar = round2(tr.Rate - tr.Lower95)
		tr.PlusBar = round2(tr.Upper95 - tr.Rate)

		if err := tr.Validate(); err != nil {
			return nil, warnings, fmt.Errorf("trap rate for %s: %w", sp, err)
		}
		rates = append(rates, tr)
	}
	return rates, warnings, nil
}

// FilterRates keeps only the rates whose species is in selected, preserving
// order. An empty selection keeps everything.
func FilterRates(rates []models.TrapRate, selected []string) []models.TrapRate {
	if len(selected) == 0 {
		return rates
	}
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		want[s] = true
	}
	filtered := make([]models.TrapRate, 0, len(rates))
	for _, r := range rates {
		if want[r.Species] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
