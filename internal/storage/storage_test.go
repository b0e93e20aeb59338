package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func dataTable(name string) Table {
	return Table{
		Name:    name,
		Headers: []string{ColLabel, ColDateTaken, ColBurstClass, ColCount},
		Rows: [][]any{
			{"Ridge Cam01", "2023:01:01 10:00:00", "Stoat", 2},
			{"Ridge Cam01", "2023:01:01 10:05:00", "Stoat", nil},
			{nil, nil, nil, nil},
			{"Creek Cam02", "2023:01:03 06:30:00", "", "many"},
		},
	}
}

func TestTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr bool
	}{
		{"valid", dataTable("Sheet1"), false},
		{"empty name", Table{Name: " ", Headers: []string{"A"}}, true},
		{"no headers", Table{Name: "T"}, true},
		{"ragged row", Table{Name: "T", Headers: []string{"A", "B"}, Rows: [][]any{{1}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStorage_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "survey.xlsx")
	s := New(path, 0o644, 0o755)

	first := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	last := time.Date(2023, 1, 9, 18, 45, 30, 0, time.UTC)

	_, err := s.AddTable(dataTable("Sheet1"))
	require.NoError(t, err)
	_, err = s.AddTable(Table{
		Name:    "CameraDateSummary",
		Headers: []string{ColCamera, ColFirstPhoto, ColLastPhoto, ColNumberOfDays},
		Rows:    [][]any{{"Ridge Cam01", first, last, 9}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	survey, err := Load(path, ReadOptions{DataSheet: "Sheet1", SummarySheet: "CameraDateSummary"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "CameraDateSummary"}, survey.SheetNames)

	require.Len(t, survey.Records, 3, "blank row is skipped")
	r := survey.Records[0]
	assert.Equal(t, 2, r.Row)
	assert.Equal(t, "Ridge Cam01", r.Label)
	assert.Equal(t, "2023:01:01 10:00:00", r.DateTaken)
	assert.Equal(t, "Stoat", r.Species)
	assert.Equal(t, "2", r.Count)
	assert.Equal(t, "", survey.Records[1].Count)
	assert.Equal(t, 5, survey.Records[2].Row)
	assert.Equal(t, "many", survey.Records[2].Count)

	require.Len(t, survey.Deployments, 1)
	w := survey.Deployments[0]
	assert.Equal(t, "Ridge Cam01", w.Camera)
	assert.WithinDuration(t, first, w.First, time.Second)
	assert.WithinDuration(t, last, w.Last, time.Second)
	assert.Equal(t, 9, w.Days)
}

func TestStorage_SaveWithoutTables(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "empty.xlsx"), 0o644, 0o755)
	assert.Error(t, s.Save())
}

func TestStorage_AddTableDeduplicatesNames(t *testing.T) {
	s := New("", 0o644, 0o755)
	assert.Equal(t, filepath.Join(os.TempDir(), "camtrap", "output.xlsx"), s.Path())

	a, err := s.AddTable(Table{Name: "Rat/Mouse", Headers: []string{"Camera"}})
	require.NoError(t, err)
	b, err := s.AddTable(Table{Name: "rat?mouse", Headers: []string{"Camera"}})
	require.NoError(t, err)

	assert.Equal(t, "Rat_Mouse", a)
	assert.Equal(t, "rat_mouse_2", b)
}

func TestStorage_DateColumnsAreFormatted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dates.xlsx")
	s := New(path, 0o644, 0o755)
	ts := time.Date(2023, 2, 3, 4, 5, 6, 0, time.UTC)
	_, err := s.AddTable(Table{Name: "Dates", Headers: []string{"When"}, Rows: [][]any{{ts}}})
	require.NoError(t, err)
	require.NoError(t, s.Save())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Dates", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2023-02-03 04:05:06", v)
}

func TestLoad_SchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	s := New(path, 0o644, 0o755)
	_, err := s.AddTable(Table{Name: "Sheet1", Headers: []string{ColLabel, "Date"}, Rows: [][]any{{"Cam01", "x"}}})
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = Load(path, ReadOptions{})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, "Sheet1", schemaErr.Sheet)
	assert.Equal(t, []string{ColDateTaken, ColBurstClass}, schemaErr.Missing)
	assert.Contains(t, err.Error(), "Date_taken, Burst_class")
}

func TestLoad_MissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.xlsx")
	s := New(path, 0o644, 0o755)
	_, err := s.AddTable(dataTable("Photos"))
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = Load(path, ReadOptions{DataSheet: "Sheet1"})
	assert.ErrorIs(t, err, ErrSheetNotFound)
	assert.Contains(t, err.Error(), "Photos")

	survey, err := Load(path, ReadOptions{DataSheet: "Photos", SummarySheet: "CameraDateSummary"})
	require.NoError(t, err)
	assert.Nil(t, survey.Deployments, "absent summary sheet is not an error")
}

func TestLoad_SkipsBadSummaryRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	s := New(path, 0o644, 0o755)
	_, err := s.AddTable(dataTable("Sheet1"))
	require.NoError(t, err)
	_, err = s.AddTable(Table{
		Name:    "CameraDateSummary",
		Headers: []string{ColCamera, ColFirstPhoto, ColLastPhoto},
		Rows: [][]any{
			{"Ridge Cam01", "2023-01-01 10:00:00", "2023-01-09 18:00:00"},
			{"Creek Cam02", "2023-01-02 08:00:00", "n/a"},
			{nil, "2023-01-02 08:00:00", "2023-01-04 08:00:00"},
			{"Hill Cam03", "2023-01-05", "2023-01-01"},
			{"Gully Cam04", "2023-01-03", "2023-01-03"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Save())

	survey, err := Load(path, ReadOptions{SummarySheet: "CameraDateSummary"})
	require.NoError(t, err)
	assert.Equal(t, 3, survey.SkippedDeployments)
	require.Len(t, survey.Deployments, 2)
	assert.Equal(t, "Ridge Cam01", survey.Deployments[0].Camera)
	assert.Equal(t, "Gully Cam04", survey.Deployments[1].Camera)
	assert.Equal(t, 1, survey.Deployments[1].Days)
}

func TestLoad_SerialDateTaken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serial.xlsx")
	s := New(path, 0o644, 0o755)
	_, err := s.AddTable(Table{
		Name:    "Sheet1",
		Headers: []string{ColLabel, ColDateTaken, ColBurstClass},
		Rows: [][]any{
			{"Ridge Cam01", 45150.5, "Stoat"},
			{"Ridge Cam01", "2023:08:12 13:00:00", "Stoat"},
			{"Ridge Cam01", -3, "Stoat"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Save())

	survey, err := Load(path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, survey.Records, 3)
	assert.Equal(t, "2023:08:12 12:00:00", survey.Records[0].DateTaken)
	assert.Equal(t, "2023:08:12 13:00:00", survey.Records[1].DateTaken)
	assert.Equal(t, "-3", survey.Records[2].DateTaken, "non-positive numbers are not dates")
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.csv")
	content := "\ufeffLabel,Date_taken,Burst_class\n" +
		"Cam01 North,2023:01:01 10:00:00,Stoat\n" +
		"\n" +
		"Cam02 South, 2023:01:02 11:00:00,Rat\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	survey, err := Load(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"survey"}, survey.SheetNames)
	require.Len(t, survey.Records, 2)
	assert.Equal(t, "Cam01 North", survey.Records[0].Label)
	assert.Equal(t, "2023:01:02 11:00:00", survey.Records[1].DateTaken)
	assert.Equal(t, "Rat", survey.Records[1].Species)
	assert.Equal(t, "", survey.Records[1].Count)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load("survey.json", ReadOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseSheetTime(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2023-01-09 18:45:30", time.Date(2023, 1, 9, 18, 45, 30, 0, time.UTC), false},
		{"2023-01-09", time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC), false},
		{"2023:01:09 18:45:30", time.Date(2023, 1, 9, 18, 45, 30, 0, time.UTC), false},
		{"2023-01-09T18:45:30Z", time.Date(2023, 1, 9, 18, 45, 30, 0, time.UTC), false},
		{"44935.5", time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := ParseSheetTime(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.True(t, tt.want.Equal(got), "ParseSheetTime(%q) = %v, want %v", tt.input, got, tt.want)
	}
}

func TestSanitizeSheetName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Stoat", "Stoat"},
		{"Rat [ship]", "Rat _ship_"},
		{"a:b*c?d/e\\f", "a_b_c_d_e_f"},
		{"'quoted'", "quoted"},
		{"", "Sheet"},
		{"A very long species name that overflows", "A very long species name that o"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeSheetName(tt.input), "SanitizeSheetName(%q)", tt.input)
	}
	assert.Len(t, SanitizeSheetName("x234567890123456789012345678901234567890"), MaxSheetNameLength)
}

func TestUniqueSheetName(t *testing.T) {
	taken := map[string]bool{"stoat": true, "stoat_2": true}
	assert.Equal(t, "Stoat_3", UniqueSheetName("Stoat", taken))
	assert.Equal(t, "Cat", UniqueSheetName("Cat", taken))

	long := "abcdefghijklmnopqrstuvwxyz01234"
	got := UniqueSheetName(long, map[string]bool{long: true})
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz012_2", got)
}
