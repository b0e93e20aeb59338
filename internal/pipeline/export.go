package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/camtrapnz/camtrap/internal/chart"
	"github.com/camtrapnz/camtrap/internal/config"
	"github.com/camtrapnz/camtrap/internal/models"
	"github.com/camtrapnz/camtrap/internal/storage"
)

// Sheet names of the result workbook.
const (
	SheetSummary     = "CameraDateSummary"
	SheetIndependent = "IndependentDetections"
	SheetTrapRates   = "CameraTrapRates"
)

// ExportOptions controls where and how results are written.
type ExportOptions struct {
	OutputDir       string
	Prefix          string
	Chart           bool
	ChartOptions    chart.Options
	FilePermissions os.FileMode
	DirPermissions  os.FileMode
}

// ExportOptionsFromConfig builds export options from the export section.
func ExportOptionsFromConfig(cfg *config.Config) ExportOptions {
	chartOpts := chart.DefaultOptions()
	chartOpts.Width = cfg.Export.ChartWidth
	chartOpts.Height = cfg.Export.ChartHeight
	return ExportOptions{
		OutputDir:       cfg.Export.OutputDir,
		Prefix:          cfg.Export.Prefix,
		Chart:           cfg.Export.Chart,
		ChartOptions:    chartOpts,
		FilePermissions: cfg.Export.FilePermissions,
		DirPermissions:  cfg.Export.DirPermissions,
	}
}

// ExportPaths lists the files written by Export. Chart is empty when no
// chart was drawn.
type ExportPaths struct {
	Workbook string
	Chart    string
}

// WorkbookPath returns "<dir>/<prefix>_output.xlsx".
func (o ExportOptions) WorkbookPath() string {
	return filepath.Join(o.OutputDir, o.Prefix+"_output.xlsx")
}

// ChartPath returns "<dir>/<prefix>_trap_rates_plot.png".
func (o ExportOptions) ChartPath() string {
	return filepath.Join(o.OutputDir, o.Prefix+"_trap_rates_plot.png")
}

// Tables converts results into the sheets of the result workbook, in order:
// deployment summary, independent detections, trap rates, then one history
// sheet per species.
func (r *Results) Tables() []storage.Table {
	tables := []storage.Table{
		summaryTable(r.Summary),
		independentTable(r.Independent),
		trapRateTable(r.TrapRates),
	}
	for i := range r.Histories {
		tables = append(tables, historyTable(&r.Histories[i]))
	}
	return tables
}

// Export writes the workbook and, when enabled and there is something to
// plot, the trap-rate chart.
func Export(r *Results, opts ExportOptions) (ExportPaths, []string, error) {
	var paths ExportPaths
	if r == nil {
		return paths, []string{"No analysis results to export."}, errors.New("no results to export")
	}
	if opts.Prefix == "" {
		opts.Prefix = "camera_trap"
	}

	store := storage.New(opts.WorkbookPath(), opts.FilePermissions, opts.DirPermissions)
	for _, t := range r.Tables() {
		if _, err := store.AddTable(t); err != nil {
			return paths, []string{fmt.Sprintf("Export failed: %v", err)}, err
		}
	}
	if err := store.Save(); err != nil {
		return paths, []string{fmt.Sprintf("Export failed: %v", err)}, fmt.Errorf("failed to save workbook: %w", err)
	}
	paths.Workbook = store.Path()
	messages := []string{fmt.Sprintf("Exported workbook to %s.", paths.Workbook)}

	if !opts.Chart {
		return paths, messages, nil
	}
	if len(r.TrapRates) == 0 {
		return paths, append(messages, "No trap rates to plot; chart skipped."), nil
	}

	img, err := chart.RenderTrapRates(r.TrapRates, opts.ChartOptions)
	if err != nil {
		return paths, append(messages, fmt.Sprintf("Chart failed: %v", err)), fmt.Errorf("failed to render chart: %w", err)
	}
	if err := chart.Save(img, opts.ChartPath(), opts.FilePermissions, opts.DirPermissions); err != nil {
		return paths, append(messages, fmt.Sprintf("Chart failed: %v", err)), err
	}
	paths.Chart = opts.ChartPath()
	return paths, append(messages, fmt.Sprintf("Saved trap rate chart to %s.", paths.Chart)), nil
}

func summaryTable(windows []models.DeploymentWindow) storage.Table {
	t := storage.Table{
		Name:    SheetSummary,
		Headers: []string{storage.ColCamera, storage.ColFirstPhoto, storage.ColLastPhoto, storage.ColNumberOfDays},
		Rows:    make([][]any, 0, len(windows)),
	}
	for _, w := range windows {
		t.Rows = append(t.Rows, []any{w.Camera, w.First, w.Last, w.Days})
	}
	return t
}

func independentTable(records []models.Record) storage.Table {
	t := storage.Table{
		Name:    SheetIndependent,
		Headers: []string{storage.ColLabel, storage.ColDateTaken, storage.ColBurstClass, storage.ColCount, "ParsedDate"},
		Rows:    make([][]any, 0, len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []any{r.Label, r.DateTaken, r.Species, countCell(r.Count), r.Taken})
	}
	return t
}

func trapRateTable(rates []models.TrapRate) storage.Table {
	t := storage.Table{
		Name:    SheetTrapRates,
		Headers: []string{"Species", "Rate_per100CamDays", "Lower95CI", "Upper95CI", "MinusBar", "PlusBar"},
		Rows:    make([][]any, 0, len(rates)),
	}
	for _, r := range rates {
		t.Rows = append(t.Rows, []any{r.Species, r.Rate, r.Lower95, r.Upper95, r.MinusBar, r.PlusBar})
	}
	return t
}

func historyTable(h *models.DetectionHistory) storage.Table {
	t := storage.Table{
		Name:    h.Species,
		Headers: h.Headers(),
		Rows:    make([][]any, 0, len(h.Rows)),
	}
	for _, row := range h.Rows {
		cells := make([]any, 0, len(row.Cells)+1)
		cells = append(cells, row.Camera)
		for _, c := range row.Cells {
			if c == models.NotDeployed {
				cells = append(cells, c.String())
			} else {
				cells = append(cells, int(c))
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// countCell keeps numeric counts numeric and blank counts blank.
func countCell(raw string) any {
	if raw == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}
