// Package pipeline sequences the survey analysis over a loaded survey and
// packages the results as named tables for export.
//
// Run never panics on bad data: per-record problems become status messages,
// and global failures (no usable timestamps, zero camera-days) are returned as
// errors alongside the messages gathered so far.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/camtrapnz/camtrap/internal/analysis"
	"github.com/camtrapnz/camtrap/internal/config"
	"github.com/camtrapnz/camtrap/internal/logger"
	"github.com/camtrapnz/camtrap/internal/models"
	"github.com/camtrapnz/camtrap/internal/storage"
)

// Options controls one analysis run.
type Options struct {
	Species       []string         // Selected species; empty selects every species detected
	BinDays       int              // Detection-history bin width
	GapFor        analysis.GapFunc // Independence gap per species; nil means 30 minutes
	CameraSlots   int              // Slots Cam01..CamNN in the histories
	Chronological bool             // Sort by capture time before the independence scan
}

// OptionsFromConfig builds run options from the survey section.
func OptionsFromConfig(cfg *config.Config) Options {
	survey := cfg.Survey
	return Options{
		Species:       survey.Species,
		BinDays:       survey.BinDays,
		GapFor:        survey.GapFor,
		CameraSlots:   survey.CameraSlots,
		Chronological: survey.Chronological,
	}
}

// Results is the output of one run.
type Results struct {
	RunID       string
	Source      string
	StartedAt   time.Time
	Species     []string                  // Species the histories were built for
	Summary     []models.DeploymentWindow // One window per camera label
	Independent []models.Record           // Records kept by the independence filter
	TrapRates   []models.TrapRate         // Restricted to the selected species
	Histories   []models.DetectionHistory // One grid per selected species
	Warnings    []string
}

// Run analyses survey and returns the results with human-readable status
// messages. On error the messages up to the failing stage are still returned.
func Run(survey *storage.Survey, opts Options) (*Results, []string, error) {
	var messages []string
	if survey == nil || len(survey.Records) == 0 {
		return nil, []string{"Survey contains no records."}, analysis.ErrNoTimestamps
	}
	if opts.BinDays == 0 {
		opts.BinDays = 7
	}

	res := &Results{
		RunID:     uuid.NewString(),
		Source:    survey.Source,
		StartedAt: time.Now(),
	}
	logger.Debug("Run %s: %d records from %s", res.RunID, len(survey.Records), survey.Source)
	messages = append(messages, fmt.Sprintf("Data loaded: %d records.", len(survey.Records)))

	records, unparsable, unlabelled := usableRecords(survey.Records)
	if len(records) == 0 {
		messages = append(messages, fmt.Sprintf("None of the %d records has a camera label and a parseable Date_taken.", len(survey.Records)))
		return nil, messages, analysis.ErrNoTimestamps
	}
	if unparsable > 0 {
		res.warn(fmt.Sprintf("Skipped %d records with an unparsable Date_taken.", unparsable))
	}
	if unlabelled > 0 {
		res.warn(fmt.Sprintf("Skipped %d records with a blank Label.", unlabelled))
	}

	summary, _ := analysis.SummarizeDeployments(records)
	res.Summary = summary
	messages = append(messages, fmt.Sprintf("Summarized camera dates: %d cameras, %d camera-days.",
		len(summary), analysis.TotalCameraDays(summary)))

	independent, _ := analysis.FilterIndependent(records, analysis.FilterOptions{
		GapFor:        opts.GapFor,
		Chronological: opts.Chronological,
	})
	res.Independent = independent
	messages = append(messages, fmt.Sprintf("Identified %d independent detections.", len(independent)))
	logger.Debug("Run %s: independence filter kept %d of %d records", res.RunID, len(independent), len(survey.Records))

	rates, estimateErrs, err := analysis.EstimateTrapRates(summary, independent)
	if err != nil {
		messages = append(messages, fmt.Sprintf("Trap rate calculation failed: %v", err))
		return nil, messages, fmt.Errorf("failed to estimate trap rates: %w", err)
	}
	for _, e := range estimateErrs {
		res.warn(e.Error())
	}

	res.Species = nonEmpty(opts.Species)
	if len(res.Species) == 0 {
		res.Species = analysis.SpeciesList(independent)
	}
	res.TrapRates = analysis.FilterRates(rates, nonEmpty(opts.Species))
	for _, sp := range missingSpecies(res.Species, rates) {
		res.warn(fmt.Sprintf("Species %q has no independent detections.", sp))
	}
	messages = append(messages, fmt.Sprintf("Calculated trap rates for %d species.", len(res.TrapRates)))

	if survey.SkippedDeployments > 0 {
		res.warn(fmt.Sprintf("Skipped %d summary sheet rows with a blank Camera or an unreadable date.", survey.SkippedDeployments))
	}
	windows := analysis.CameraWindows(summary)
	if len(survey.Deployments) > 0 {
		windows = analysis.CameraWindows(survey.Deployments)
		messages = append(messages, "Using deployment windows from the summary sheet.")
		if n := outsideWindows(records, windows); n > 0 {
			res.warn(fmt.Sprintf("%d records fall outside their camera's summary sheet deployment window.", n))
		}
	}
	histories, histDrops, err := analysis.BuildHistories(records, windows, analysis.HistoryOptions{
		Species:     res.Species,
		BinDays:     opts.BinDays,
		CameraSlots: opts.CameraSlots,
	})
	if err != nil {
		messages = append(messages, fmt.Sprintf("Detection history construction failed: %v", err))
		return nil, messages, fmt.Errorf("failed to build detection histories: %w", err)
	}
	for i := range histories {
		if err := histories[i].Validate(); err != nil {
			return nil, messages, fmt.Errorf("invalid detection history for %s: %w", histories[i].Species, err)
		}
	}
	res.Histories = histories
	if histDrops.NoCamera > 0 {
		res.warn(fmt.Sprintf("%d records have no camera identifier matching Cam01..Cam%02d and were left out of the histories.",
			histDrops.NoCamera, cameraSlots(opts.CameraSlots)))
	}
	messages = append(messages, fmt.Sprintf("Created %d detection history tables.", len(histories)))

	messages = append(messages, res.Warnings...)
	return res, messages, nil
}

// IsInputError reports whether err was caused by the survey data rather than
// by the environment.
func IsInputError(err error) bool {
	var schemaErr *storage.SchemaError
	return errors.Is(err, analysis.ErrNoTimestamps) ||
		errors.Is(err, analysis.ErrInsufficientDeployment) ||
		errors.Is(err, analysis.ErrInvalidBinSize) ||
		errors.As(err, &schemaErr)
}

func (r *Results) warn(msg string) {
	logger.Warn("%s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// usableRecords parses every record once and keeps those that pass
// Record.Validate, counting unparsable dates and blank labels separately.
func usableRecords(raw []models.Record) (records []models.Record, unparsable, unlabelled int) {
	parsed, unparsable := analysis.ParseRecords(raw)
	records = make([]models.Record, 0, len(parsed))
	for _, r := range parsed {
		if err := r.Validate(); err != nil {
			if r.HasTimestamp() {
				unlabelled++
			}
			continue
		}
		records = append(records, r)
	}
	return records, unparsable, unlabelled
}

// outsideWindows counts records whose camera has a window that does not
// contain their capture time.
func outsideWindows(records []models.Record, windows map[string]models.DeploymentWindow) int {
	n := 0
	for i := range records {
		w, ok := windows[analysis.ExtractCameraID(records[i].Label)]
		if ok && !w.Contains(records[i].Taken) {
			n++
		}
	}
	return n
}

func missingSpecies(selected []string, rates []models.TrapRate) []string {
	have := make(map[string]bool, len(rates))
	for _, r := range rates {
		have[r.Species] = true
	}
	var missing []string
	for _, sp := range selected {
		if !have[sp] {
			missing = append(missing, sp)
		}
	}
	return missing
}

func nonEmpty(species []string) []string {
	var out []string
	for _, sp := range species {
		if sp != "" {
			out = append(out, sp)
		}
	}
	return out
}

func cameraSlots(n int) int {
	if n == 0 {
		return analysis.DefaultCameraSlots
	}
	return n
}
