package analysis

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrapnz/camtrap/internal/models"
)

func detections(species string, count int) []models.Record {
	out := make([]models.Record, count)
	for i := range out {
		out[i] = models.Record{Label: "Cam01", Species: species}
	}
	return out
}

func window(days int) []models.DeploymentWindow {
	return []models.DeploymentWindow{{Camera: "Cam01", Days: days}}
}

func TestDetectionCount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", 1},
		{"  ", 1},
		{"3", 3},
		{" 2 ", 2},
		{"0", 0},
		{"1.5", 1.5},
		{"-4", 1},
		{"NaN", 1},
		{"Inf", 1},
		{"two", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectionCount(tt.raw), "DetectionCount(%q)", tt.raw)
	}
}

func TestWilsonIntervalBracketsProportion(t *testing.T) {
	for _, p := range []float64{0, 0.01, 0.2, 0.5, 0.99, 1} {
		lower, upper := WilsonInterval(p, 50, Z95)
		assert.GreaterOrEqual(t, lower, -1e-12, "p=%v", p)
		assert.LessOrEqual(t, upper, 1+1e-12, "p=%v", p)
		assert.LessOrEqual(t, lower, p+1e-12, "p=%v", p)
		assert.GreaterOrEqual(t, upper, p-1e-12, "p=%v", p)
	}

	lower, upper := WilsonInterval(1.5, 10, Z95)
	assert.False(t, math.IsNaN(lower))
	assert.False(t, math.IsNaN(upper))
}

func TestEstimateTrapRates(t *testing.T) {
	tests := []struct {
		name  string
		count int
		days  int
		rate  float64
		lower float64
		upper float64
		minus float64
		plus  float64
	}{
		{"five in a hundred", 5, 100, 5.0, 2.15, 11.18, 2.85, 6.18},
		{"one in ten", 1, 10, 10.0, 1.79, 40.42, 8.21, 30.42},
		{"three in twelve", 3, 12, 25.0, 8.89, 53.23, 16.11, 28.23},
		{"two in seven", 2, 7, 28.57, 8.22, 64.11, 20.35, 35.54},
		{"every day", 10, 10, 100, 72.25, 100, 27.75, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates, warnings, err := EstimateTrapRates(window(tt.days), detections("Stoat", tt.count))
			require.NoError(t, err)
			assert.Empty(t, warnings)
			require.Len(t, rates, 1)

			r := rates[0]
			assert.Equal(t, "Stoat", r.Species)
			assert.Equal(t, float64(tt.count), r.Count)
			assert.InDelta(t, tt.rate, r.Rate, 1e-9)
			assert.InDelta(t, tt.lower, r.Lower95, 1e-9)
			assert.InDelta(t, tt.upper, r.Upper95, 1e-9)
			assert.InDelta(t, tt.minus, r.MinusBar, 1e-9)
			assert.InDelta(t, tt.plus, r.PlusBar, 1e-9)
			assert.False(t, r.Saturated)
		})
	}
}

func TestEstimateTrapRatesZeroCount(t *testing.T) {
	recs := []models.Record{{Label: "Cam01", Species: "Weka", Count: "0"}}
	rates, _, err := EstimateTrapRates(window(10), recs)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, 0.0, rates[0].Rate)
	assert.Equal(t, 0.0, rates[0].Lower95)
	assert.InDelta(t, 27.75, rates[0].Upper95, 1e-9)
	assert.InDelta(t, 27.75, rates[0].PlusBar, 1e-9)
}

func TestEstimateTrapRatesSumsCountsAndSorts(t *testing.T) {
	recs := []models.Record{
		{Species: "Stoat", Count: "2"},
		{Species: "Cat"},
		{Species: "Stoat", Count: "3"},
		{Species: ""},
		{Species: "Cat", Count: "-1"},
	}
	rates, _, err := EstimateTrapRates(window(100), recs)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "Cat", rates[0].Species)
	assert.Equal(t, 2.0, rates[0].Count)
	assert.Equal(t, "Stoat", rates[1].Species)
	assert.Equal(t, 5.0, rates[1].Count)
	assert.InDelta(t, 5.0, rates[1].Rate, 1e-9)
}

func TestEstimateTrapRatesInsufficientDeployment(t *testing.T) {
	_, _, err := EstimateTrapRates(nil, detections("Stoat", 1))
	assert.ErrorIs(t, err, ErrInsufficientDeployment)

	rates, _, err := EstimateTrapRates(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestEstimateTrapRatesSaturated(t *testing.T) {
	recs := append(detections("Rat", 15), detections("Cat", 2)...)
	rates, warnings, err := EstimateTrapRates(window(10), recs)
	require.NoError(t, err)
	require.Len(t, rates, 2)

	rat := rates[1]
	assert.Equal(t, "Rat", rat.Species)
	assert.True(t, rat.Saturated)
	assert.InDelta(t, 150.0, rat.Rate, 1e-9)
	assert.Equal(t, rat.Rate, rat.Lower95)
	assert.Equal(t, rat.Rate, rat.Upper95)
	assert.Zero(t, rat.MinusBar)
	assert.Zero(t, rat.PlusBar)

	require.Len(t, warnings, 1)
	assert.Equal(t, "Rat", warnings[0].Species)
	assert.True(t, errors.Is(warnings[0], ErrSaturated))
	assert.False(t, rates[0].Saturated)
}

func TestEstimateTrapRatesInvariants(t *testing.T) {
	for days := 1; days <= 40; days += 3 {
		for count := 0; count <= days; count++ {
			recs := []models.Record{{Species: "Possum", Count: strconv.Itoa(count)}}
			rates, _, err := EstimateTrapRates(window(days), recs)
			require.NoError(t, err)
			r := rates[0]
			assert.LessOrEqual(t, r.Lower95, r.Rate, "count=%d days=%d", count, days)
			assert.LessOrEqual(t, r.Rate, r.Upper95, "count=%d days=%d", count, days)
			assert.GreaterOrEqual(t, r.MinusBar, 0.0)
			assert.GreaterOrEqual(t, r.PlusBar, 0.0)
		}
	}
}

func TestFilterRates(t *testing.T) {
	rates := []models.TrapRate{{Species: "Cat"}, {Species: "Rat"}, {Species: "Stoat"}}
	assert.Equal(t, rates, FilterRates(rates, nil))

	got := FilterRates(rates, []string{"Stoat", "Cat", "Weka"})
	require.Len(t, got, 2)
	assert.Equal(t, "Cat", got[0].Species)
	assert.Equal(t, "Stoat", got[1].Species)
}
