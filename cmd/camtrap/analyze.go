package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/camtrapnz/camtrap/internal/analysis"
	"github.com/camtrapnz/camtrap/internal/config"
	"github.com/camtrapnz/camtrap/internal/logger"
	"github.com/camtrapnz/camtrap/internal/pipeline"
	"github.com/camtrapnz/camtrap/internal/storage"
	"github.com/camtrapnz/camtrap/internal/telegram"
)

// analyzeFlags holds the analyze command's overrides. They only replace
// configuration values when set on the command line.
type analyzeFlags struct {
	species       []string
	binDays       int
	gap           time.Duration
	outputDir     string
	prefix        string
	noChart       bool
	chronological bool
}

func analyzeCommand(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze <input>",
		Short: "Analyze a camera trap survey",
		Long:  `Analyze an image table (.xlsx or .csv) and export deployment summaries, independent detections, trap rates and detection histories.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, a.cfg)
			return a.analyze(cmd, args[0])
		},
	}

	setupAnalyzeFlags(cmd, &f)
	return cmd
}

func setupAnalyzeFlags(cmd *cobra.Command, f *analyzeFlags) {
	cmd.Flags().StringSliceVarP(&f.species, "species", "s", nil, "Species to report, comma separated (default every species detected)")
	cmd.Flags().IntVarP(&f.binDays, "bin-days", "b", 7, "Detection history bin width in days")
	cmd.Flags().DurationVarP(&f.gap, "gap", "g", analysis.DefaultIndependenceGap, "Minimum gap between independent detections")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for the result workbook and chart")
	cmd.Flags().StringVarP(&f.prefix, "prefix", "p", "", "File name prefix for exported results")
	cmd.Flags().BoolVar(&f.noChart, "no-chart", false, "Skip the trap rate chart")
	cmd.Flags().BoolVar(&f.chronological, "chronological", false, "Sort records by capture time before the independence scan")
}

// apply copies explicitly set flags onto cfg.
func (f *analyzeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("species") {
		cfg.Survey.Species = f.species
	}
	if flags.Changed("bin-days") {
		cfg.Survey.BinDays = f.binDays
	}
	if flags.Changed("gap") {
		cfg.Survey.IndependenceGap = f.gap
	}
	if flags.Changed("output-dir") {
		cfg.Export.OutputDir = f.outputDir
	}
	if flags.Changed("prefix") {
		cfg.Export.Prefix = f.prefix
	}
	if flags.Changed("no-chart") {
		cfg.Export.Chart = !f.noChart
	}
	if flags.Changed("chronological") {
		cfg.Survey.Chronological = f.chronological
	}
}

func (a *app) analyze(cmd *cobra.Command, input string) error {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	survey, err := storage.Load(input, storage.ReadOptions{
		DataSheet:    cfg.Input.DataSheet,
		SummarySheet: cfg.Input.SummarySheet,
	})
	if err != nil {
		return fmt.Errorf("failed to load survey: %w", err)
	}

	res, messages, err := pipeline.Run(survey, pipeline.OptionsFromConfig(cfg))
	printMessages(out, messages)
	if err != nil {
		return err
	}
	printTrapRates(out, res.TrapRates)

	paths, messages, err := pipeline.Export(res, pipeline.ExportOptionsFromConfig(cfg))
	printMessages(out, messages)
	if err != nil {
		return err
	}
	logger.Info("Run %s finished: %d independent detections, %d species", res.RunID, len(res.Independent), len(res.Species))

	if cfg.Telegram.Enabled {
		notify(cfg, res, paths)
	}
	return nil
}

// notify sends the run summary to Telegram. Delivery failures are logged and
// do not fail the run.
func notify(cfg *config.Config, res *pipeline.Results, paths pipeline.ExportPaths) {
	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
	if err != nil {
		logger.Error("Failed to initialize Telegram client: %v", err)
		return
	}

	report := telegram.Report{
		Source:      res.Source,
		RunID:       res.RunID,
		Cameras:     len(res.Summary),
		CameraDays:  analysis.TotalCameraDays(res.Summary),
		Independent: len(res.Independent),
		Gap:         cfg.Survey.IndependenceGap,
		BinDays:     cfg.Survey.BinDays,
		Rates:       res.TrapRates,
		Warnings:    len(res.Warnings),
	}
	if err := client.Send(report, paths.Chart); err != nil {
		logger.Error("Failed to send Telegram summary: %v", err)
		return
	}
	logger.Info("Telegram summary sent")
}
