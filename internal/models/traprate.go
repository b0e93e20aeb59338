package models

import (
	"errors"
	"math"
)

// TrapRate is a species detection rate per 100 camera-trap-days with a 95%
// Wilson-score interval. All values are rounded to 2 decimal places.
type TrapRate struct {
	Species   string  `json:"species"`
	Count     float64 `json:"count"`     // Summed independent detections
	Rate      float64 `json:"rate"`      // Detections per 100 camera-days
	Lower95   float64 `json:"lower_95"`  // Lower 95% bound, per 100 camera-days
	Upper95   float64 `json:"upper_95"`  // Upper 95% bound, per 100 camera-days
	MinusBar  float64 `json:"minus_bar"` // Rate - Lower95
	PlusBar   float64 `json:"plus_bar"`  // Upper95 - Rate
	Saturated bool    `json:"saturated"` // Count exceeded camera-days; bounds collapsed
}

// Validate checks that the estimate is finite and ordered.
func (r *TrapRate) Validate() error {
	if r.Species == "" {
		return errors.New("species must not be empty")
	}
	for _, v := range []float64{r.Rate, r.Lower95, r.Upper95, r.MinusBar, r.PlusBar} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("trap rate values must be finite")
		}
	}
	if r.Rate < 0 {
		return errors.New("rate must not be negative")
	}
	if r.Lower95 > r.Rate || r.Rate > r.Upper95 {
		return errors.New("lower_95 <= rate <= upper_95 must hold")
	}
	if r.MinusBar < 0 || r.PlusBar < 0 {
		return errors.New("error bars must not be negative")
	}
	return nil
}
