package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrapnz/camtrap/internal/models"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"valid exif date", "2023:08:12 15:20:00", time.Date(2023, 8, 12, 15, 20, 0, 0, time.UTC), true},
		{"surrounding whitespace", "  2023:08:12 15:20:00\n", time.Date(2023, 8, 12, 15, 20, 0, 0, time.UTC), true},
		{"unpadded components", "2023:8:1 5:0:9", time.Date(2023, 8, 1, 5, 0, 9, 0, time.UTC), true},
		{"leap day", "2024:02:29 00:00:00", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), true},
		{"slash separators", "2023/08/12 15:20:00", time.Time{}, false},
		{"empty string", "", time.Time{}, false},
		{"iso layout", "2023-08-12T15:20:00", time.Time{}, false},
		{"missing time", "2023:08:12", time.Time{}, false},
		{"double space", "2023:08:12  15:20:00", time.Time{}, false},
		{"non-numeric", "2023:Aug:12 15:20:00", time.Time{}, false},
		{"extra component", "2023:08:12 15:20:00:01", time.Time{}, false},
		{"signed component", "2023:+8:12 15:20:00", time.Time{}, false},
		{"february 30", "2023:02:30 10:00:00", time.Time{}, false},
		{"hour 24", "2023:02:10 24:00:00", time.Time{}, false},
		{"month 13", "2023:13:01 10:00:00", time.Time{}, false},
		{"nan text", "nan", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2023, 8, 12, 15, 20, 0, 0, time.UTC)
	s := FormatTimestamp(ts)
	assert.Equal(t, "2023:08:12 15:20:00", s)

	back, ok := ParseTimestamp(s)
	require.True(t, ok)
	assert.True(t, ts.Equal(back))
}

func TestParseRecordsLeavesInputUntouched(t *testing.T) {
	in := []models.Record{
		{Row: 2, Label: "Cam01", DateTaken: "2023:01:01 10:00:00"},
		{Row: 3, Label: "Cam01", DateTaken: "garbage"},
	}

	out, unparsable := ParseRecords(in)
	assert.Equal(t, 1, unparsable)
	require.Len(t, out, 2)
	assert.True(t, out[0].HasTimestamp())
	assert.False(t, out[1].HasTimestamp())
	assert.False(t, in[0].HasTimestamp(), "input must not be mutated")
}

func TestParseRecordsYearOneIsParsed(t *testing.T) {
	out, unparsable := ParseRecords([]models.Record{{Label: "Cam01", DateTaken: "0001:01:01 00:00:00"}})
	assert.Equal(t, 0, unparsable)
	require.True(t, out[0].HasTimestamp())
	assert.True(t, out[0].Taken.IsZero())

	kept, stats := FilterIndependent(out, FilterOptions{})
	assert.Len(t, kept, 1)
	assert.Zero(t, stats.Unparsable)
}
