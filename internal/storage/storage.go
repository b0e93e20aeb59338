// Package storage reads survey workbooks and writes result workbooks.
//
// Input is either an .xlsx workbook (a data sheet plus an optional deployment
// summary sheet from a previous export) or a flat .csv file holding the data
// sheet alone. Output tables are collected in memory and written to a single
// .xlsx file with an atomic temp-file-and-rename, so a failed export never
// leaves a half-written workbook behind.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateTimeFormat is the number format applied to timestamp columns.
const DateTimeFormat = "yyyy-mm-dd hh:mm:ss"

// Table is a named sheet of rows under a header row.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Validate checks that the table has a name, headers, and rectangular rows.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("table name must not be empty")
	}
	if len(t.Headers) == 0 {
		return errors.New("table must have at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i+1, len(row), len(t.Headers))
		}
	}
	return nil
}

// Storage collects result tables and persists them as one workbook.
type Storage struct {
	tables []Table
	names  map[string]bool

	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// New creates a Storage that saves to filePath.
// If filePath is empty, uses an OS-appropriate tmp directory.
func New(filePath string, filePermissions, dirPermissions os.FileMode) *Storage {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "camtrap", "output.xlsx")
	}

	return &Storage{
		names:           make(map[string]bool),
		filePath:        filePath,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
	}
}

// Path returns the workbook destination.
func (s *Storage) Path() string {
	return s.filePath
}

// AddTable queues a table for the next Save. The table's name is sanitized for
// Excel and made unique among the queued tables; the final name is returned.
func (s *Storage) AddTable(t Table) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("invalid table %q: %w", t.Name, err)
	}

	t.Name = UniqueSheetName(SanitizeSheetName(t.Name), s.names)
	s.names[strings.ToLower(t.Name)] = true
	s.tables = append(s.tables, t)
	return t.Name, nil
}

// Save writes every queued table to the workbook file.
func (s *Storage) Save() error {
	if len(s.tables) == 0 {
		return errors.New("no tables to save")
	}

	// Create output directory if needed
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, s.dirPermissions); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: stringPtr(DateTimeFormat)})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, t := range s.tables {
		if i == 0 {
			if first := f.GetSheetName(0); first != t.Name {
				if err := f.SetSheetName(first, t.Name); err != nil {
					return fmt.Errorf("failed to name sheet %s: %w", t.Name, err)
				}
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", t.Name, err)
		}
		if err := writeTable(f, t, headerStyle, dateStyle); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", t.Name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), s.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

func writeTable(f *excelize.File, t Table, headerStyle, dateStyle int) error {
	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(t.Headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(t.Name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := t.Rows[i]
		if err := f.SetSheetRow(t.Name, cell, &row); err != nil {
			return err
		}
		for col, v := range row {
			if _, ok := v.(time.Time); !ok {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(t.Name, ref, ref, dateStyle); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(t.Name, "A", lastCol, 14)
}

func stringPtr(s string) *string {
	return &s
}
