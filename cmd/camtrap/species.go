package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camtrapnz/camtrap/internal/analysis"
	"github.com/camtrapnz/camtrap/internal/models"
	"github.com/camtrapnz/camtrap/internal/storage"
)

// speciesCount is one line of the species listing.
type speciesCount struct {
	Species     string
	Raw         int
	Independent int
}

func speciesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "species <input>",
		Short: "List species with raw and independent detection counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			survey, err := storage.Load(args[0], storage.ReadOptions{DataSheet: cfg.Input.DataSheet})
			if err != nil {
				return fmt.Errorf("failed to load survey: %w", err)
			}

			independent, _ := analysis.FilterIndependent(survey.Records, analysis.FilterOptions{
				GapFor:        cfg.Survey.GapFor,
				Chronological: cfg.Survey.Chronological,
			})
			printSpecies(cmd.OutOrStdout(), countSpecies(survey.Records, independent))
			return nil
		},
	}
}

// countSpecies tallies records per species, sorted by name. Records without a
// species are not listed.
func countSpecies(records, independent []models.Record) []speciesCount {
	raw := tally(records)
	kept := tally(independent)

	names := analysis.SpeciesList(records)
	counts := make([]speciesCount, 0, len(names))
	for _, name := range names {
		counts = append(counts, speciesCount{Species: name, Raw: raw[name], Independent: kept[name]})
	}
	return counts
}

func tally(records []models.Record) map[string]int {
	m := make(map[string]int)
	for _, r := range records {
		m[r.Species]++
	}
	return m
}
