package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/camtrapnz/camtrap/internal/analysis"
	"github.com/camtrapnz/camtrap/internal/logger"
	"github.com/camtrapnz/camtrap/internal/models"
)

// Column names of the survey data sheet.
const (
	ColLabel      = "Label"
	ColDateTaken  = "Date_taken"
	ColBurstClass = "Burst_class"
	ColCount      = "Count"
)

// Column names of the deployment summary sheet.
const (
	ColCamera       = "Camera"
	ColFirstPhoto   = "FirstPhoto"
	ColLastPhoto    = "LastPhoto"
	ColNumberOfDays = "NumberOfDays"
)

var (
	// ErrUnsupportedFormat is returned for inputs that are neither .xlsx nor .csv.
	ErrUnsupportedFormat = errors.New("unsupported input format")
	// ErrSheetNotFound is returned when the data sheet is missing from a workbook.
	ErrSheetNotFound = errors.New("sheet not found")
)

// SchemaError reports required columns missing from a sheet.
type SchemaError struct {
	Sheet   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sheet %q is missing required columns: %s", e.Sheet, strings.Join(e.Missing, ", "))
}

// ReadOptions names the sheets read from a workbook.
type ReadOptions struct {
	DataSheet    string // Defaults to "Sheet1"
	SummarySheet string // Optional; skipped silently when absent
}

// Survey is the parsed content of an input file.
type Survey struct {
	Source      string
	SheetNames  []string
	Records     []models.Record
	Deployments []models.DeploymentWindow // From the summary sheet; nil when there is none

	// SkippedDeployments counts summary rows left out for a blank camera,
	// an unreadable date or an inverted window.
	SkippedDeployments int
}

// Load reads a survey from an .xlsx workbook or a .csv file.
func Load(path string, opts ReadOptions) (*Survey, error) {
	if opts.DataSheet == "" {
		opts.DataSheet = "Sheet1"
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		survey *Survey
		err    error
	)
	switch ext {
	case ".xlsx", ".xlsm":
		survey, err = loadWorkbook(path, opts)
	case ".csv":
		survey, err = loadCSV(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Loaded %d records and %d deployment rows from %s", len(survey.Records), len(survey.Deployments), path)
	return survey, nil
}

func loadWorkbook(path string, opts ReadOptions) (*Survey, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	survey := &Survey{Source: path, SheetNames: f.GetSheetList()}
	if !containsSheet(survey.SheetNames, opts.DataSheet) {
		return nil, fmt.Errorf("%w: %q (workbook has %s)", ErrSheetNotFound, opts.DataSheet, strings.Join(survey.SheetNames, ", "))
	}

	rows, err := f.GetRows(opts.DataSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", opts.DataSheet, err)
	}
	survey.Records, err = parseRecords(opts.DataSheet, rows)
	if err != nil {
		return nil, err
	}
	normalizeSerialDates(survey.Records)

	if opts.SummarySheet != "" && containsSheet(survey.SheetNames, opts.SummarySheet) {
		rows, err := f.GetRows(opts.SummarySheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", opts.SummarySheet, err)
		}
		survey.Deployments, survey.SkippedDeployments, err = parseDeployments(opts.SummarySheet, rows)
		if err != nil {
			return nil, err
		}
	}

	return survey, nil
}

func loadCSV(path string) (*Survey, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	records, err := parseRecords(name, rows)
	if err != nil {
		return nil, err
	}
	return &Survey{Source: path, SheetNames: []string{name}, Records: records}, nil
}

// parseRecords maps data rows to records by header name. Blank rows are skipped.
func parseRecords(sheet string, rows [][]string) ([]models.Record, error) {
	cols, err := requireColumns(sheet, rows, ColLabel, ColDateTaken, ColBurstClass)
	if err != nil {
		return nil, err
	}
	countCol, hasCount := cols[ColCount]

	records := make([]models.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		r := models.Record{
			Row:       i + 2,
			Label:     cell(row, cols[ColLabel]),
			DateTaken: cell(row, cols[ColDateTaken]),
			Species:   cell(row, cols[ColBurstClass]),
		}
		if hasCount {
			r.Count = cell(row, countCol)
		}
		records = append(records, r)
	}
	return records, nil
}

// parseDeployments reads a summary sheet written by a previous export. Rows
// with a blank camera, an unreadable date or first after last are skipped and
// counted; only missing columns fail.
func parseDeployments(sheet string, rows [][]string) ([]models.DeploymentWindow, int, error) {
	cols, err := requireColumns(sheet, rows, ColCamera, ColFirstPhoto, ColLastPhoto)
	if err != nil {
		return nil, 0, err
	}

	var windows []models.DeploymentWindow
	skipped := 0
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		w, err := parseDeploymentRow(row, cols)
		if err != nil {
			logger.Debug("Skipping sheet %s row %d: %v", sheet, i+2, err)
			skipped++
			continue
		}
		windows = append(windows, w)
	}
	return windows, skipped, nil
}

func parseDeploymentRow(row []string, cols map[string]int) (models.DeploymentWindow, error) {
	first, err := ParseSheetTime(cell(row, cols[ColFirstPhoto]))
	if err != nil {
		return models.DeploymentWindow{}, fmt.Errorf("%s: %w", ColFirstPhoto, err)
	}
	last, err := ParseSheetTime(cell(row, cols[ColLastPhoto]))
	if err != nil {
		return models.DeploymentWindow{}, fmt.Errorf("%s: %w", ColLastPhoto, err)
	}

	w := models.DeploymentWindow{
		Camera: cell(row, cols[ColCamera]),
		First:  first,
		Last:   last,
		Days:   models.ActiveDays(first, last),
	}
	if err := w.Validate(); err != nil {
		return models.DeploymentWindow{}, err
	}
	return w, nil
}

// maxExcelSerial is 9999-12-31, the last date Excel can store.
const maxExcelSerial = 2958465

// normalizeSerialDates rewrites Date_taken cells stored as Excel date serials
// in the EXIF layout. EXIF text never parses as a number.
func normalizeSerialDates(records []models.Record) {
	for i := range records {
		raw := records[i].DateTaken
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(serial) || serial <= 0 || serial >= maxExcelSerial+1 {
			continue
		}
		t, err := ParseSheetTime(raw)
		if err != nil {
			continue
		}
		records[i].DateTaken = analysis.FormatTimestamp(t)
	}
}

// sheetTimeLayouts are the text forms accepted for summary-sheet dates.
var sheetTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006:01:02 15:04:05",
	time.RFC3339,
}

// ParseSheetTime parses an Excel date serial or a textual timestamp, in UTC.
func ParseSheetTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date serial %q: %w", s, err)
		}
		return t.Round(time.Second).UTC(), nil
	}
	for _, layout := range sheetTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// requireColumns indexes the header row and reports every missing column.
func requireColumns(sheet string, rows [][]string, required ...string) (map[string]int, error) {
	cols := make(map[string]int)
	if len(rows) > 0 {
		for i, h := range rows[0] {
			h = strings.TrimSpace(h)
			if _, dup := cols[h]; !dup && h != "" {
				cols[h] = i
			}
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Sheet: sheet, Missing: missing}
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func containsSheet(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
