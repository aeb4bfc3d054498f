package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddYears(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want string
	}{
		{"plain", time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), 3, "2029-10-18"},
		{"leap day to non-leap", time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), 3, "2031-02-28"},
		{"leap day to leap", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 4, "2028-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatISODate(AddYears(tt.in, tt.n)))
		})
	}
}

func TestIsLeap(t *testing.T) {
	assert.True(t, IsLeap(2000))
	assert.True(t, IsLeap(2028))
	assert.False(t, IsLeap(1900))
	assert.False(t, IsLeap(2026))
}

func TestValidityWindow(t *testing.T) {
	from, to := ValidityWindow(time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, "2026-10-18", FormatISODate(from))
	assert.Equal(t, "2029-10-18", FormatISODate(to))
	assert.Zero(t, from.Hour())
}

func TestContractDateParts(t *testing.T) {
	ts := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "March", MonthName(ts))
	assert.Equal(t, 7, DayOfMonth(ts))
}

func TestParseISODate(t *testing.T) {
	got, err := ParseISODate("2029-10-18")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2029, 10, 18, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseISODate("18.10.2029")
	assert.Error(t, err)
}

func TestClock(t *testing.T) {
	pinned := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, pinned, Fixed(pinned)())

	var c Clock
	assert.WithinDuration(t, time.Now(), c.OrSystem()(), time.Second)
}

func TestClamp(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)
	assert.Equal(t, b, Clamp(a, b))
	assert.Equal(t, b, Clamp(b, a))
}
