package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/camtrapnz/camtrap/internal/models"
)

// printMessages writes pipeline status lines.
func printMessages(w io.Writer, messages []string) {
	for _, m := range messages {
		fmt.Fprintln(w, m)
	}
}

// printTrapRates displays the trap-rate table
func printTrapRates(w io.Writer, rates []models.TrapRate) {
	fmt.Fprintln(w, "\nTRAP RATES (per 100 camera-days, 95% Wilson interval):")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	if len(rates) == 0 {
		fmt.Fprintln(w, "  No trap rates for the selected species.")
		return
	}

	width := speciesWidth(rates)
	fmt.Fprintf(w, "  %-*s %8s %10s %10s %10s\n", width, "Species", "Count", "Rate", "Lower95", "Upper95")
	for _, r := range rates {
		fmt.Fprintf(w, "  %-*s %8.0f %10.2f %10.2f %10.2f", width, r.Species, r.Count, r.Rate, r.Lower95, r.Upper95)
		if r.Saturated {
			fmt.Fprint(w, "  (saturated)")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
}

// printSpecies displays raw and independent counts per species
func printSpecies(w io.Writer, counts []speciesCount) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No species found.")
		return
	}

	width := len("Species")
	for _, c := range counts {
		width = max(width, len(c.Species))
	}
	fmt.Fprintf(w, "%-*s %8s %12s\n", width, "Species", "Records", "Independent")
	for _, c := range counts {
		fmt.Fprintf(w, "%-*s %8d %12d\n", width, c.Species, c.Raw, c.Independent)
	}
	fmt.Fprintf(w, "\nTotal species: %d\n", len(counts))
}

func speciesWidth(rates []models.TrapRate) int {
	width := len("Species")
	for _, r := range rates {
		width = max(width, len(r.Species))
	}
	return width
}
