package daterange

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{"valid", "2025-01-01", "2025-01-31", false},
		{"single day", "2025-01-01", "2025-01-01", false},
		{"end before start", "2025-02-01", "2025-01-01", true},
		{"slashes", "2025/01/01", "2025-01-02", true},
		{"no padding", "2025-1-1", "2025-01-02", true},
		{"impossible day", "2025-02-30", "2025-03-01", true},
		{"empty end", "2025-01-01", "", true},
		{"trailing time", "2025-01-01", "2025-01-02T00:00:00Z", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.start, tt.end)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Errorf("Parse(%q, %q) error = %v, want ErrInvalidDate", tt.start, tt.end, err)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
		})
	}
}

func TestParseErrorNamesField(t *testing.T) {
	t.Parallel()

	_, err := Parse("2025-01-01", "01-02-2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end date")
	assert.Contains(t, err.Error(), "01-02-2025")
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2025-03-09")
	require.NoError(t, err)
	assert.Equal(t, time.March, d.Month())

	_, err = ParseDate("yesterday")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	// Wednesday.
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-01-12", StartOfWeek(now).Format(Layout))
	assert.Equal(t, Range{Start: "2025-01-12", End: "2025-01-15"}, WeekToDate(now))
	assert.Equal(t, Range{Start: "2025-01-08", End: "2025-01-15"}, LastDays(now, 7))
	assert.Equal(t, Range{Start: "2024-12-16", End: "2025-01-15"}, LastDays(now, 30))

	sunday := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-12", StartOfWeek(sunday).Format(Layout))
}

func TestTimestamps(t *testing.T) {
	t.Parallel()

	start, end := Range{Start: "2025-01-01", End: "2025-01-31"}.Timestamps()
	assert.Equal(t, "2025-01-01T00:00:00Z", start)
	assert.Equal(t, "2025-01-31T23:59:59Z", end)
	assert.Equal(t, "2025-01-01 to 2025-01-31", Range{Start: "2025-01-01", End: "2025-01-31"}.String())
}
