package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndEndOfDay(t *testing.T) {
	// A Kazakhstan-local evening is already the next UTC-adjacent
	// day boundary case: 23:30 +05:00 is 18:30 UTC the same day.
	local := time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("ALMT", 5*3600))

	start := StartOfDay(local)
	assert.Equal(t, Date(2026, 3, 14), start)
	assert.Equal(t, time.UTC, start.Location())

	end := EndOfDay(local)
	assert.Equal(t, 2026, end.Year())
	assert.Equal(t, 14, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"wednesday", Date(2026, 3, 18), Date(2026, 3, 16)},
		{"monday is its own week start", Date(2026, 3, 16), Date(2026, 3, 16)},
		{"sunday belongs to the preceding monday", Date(2026, 3, 22), Date(2026, 3, 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartOfWeek(tt.in))
		})
	}
}

func TestIsSameDay(t *testing.T) {
	morning := DateTime(2026, 3, 14, 0, 0, 1)
	night := DateTime(2026, 3, 14, 23, 59, 59)
	nextDay := DateTime(2026, 3, 15, 0, 0, 0)

	assert.True(t, IsSameDay(morning, night))
	assert.False(t, IsSameDay(night, nextDay), "one second across midnight is a new day")

	// A local-time evening and the following local morning can still be
	// the same UTC day; the comparison must use the UTC boundary.
	almaty := time.FixedZone("ALMT", 5*3600)
	localNight := time.Date(2026, 3, 14, 2, 0, 0, 0, almaty) // 2026-03-13 21:00 UTC
	localNoon := time.Date(2026, 3, 14, 12, 0, 0, 0, almaty) // 2026-03-14 07:00 UTC
	assert.False(t, IsSameDay(localNight, localNoon))
}

func TestIsConsecutiveDay(t *testing.T) {
	day := Date(2026, 3, 14)

	assert.True(t, IsConsecutiveDay(day, day.AddDate(0, 0, 1)))
	assert.True(t, IsConsecutiveDay(day, DateTime(2026, 3, 15, 23, 59, 59)), "any time on the next day counts")
	assert.False(t, IsConsecutiveDay(day, day))
	assert.False(t, IsConsecutiveDay(day, day.AddDate(0, 0, 2)))
	assert.False(t, IsConsecutiveDay(day.AddDate(0, 0, 1), day), "order matters")

	// Year boundary.
	assert.True(t, IsConsecutiveDay(Date(2026, 12, 31), Date(2027, 1, 1)))
}

func TestDaysBetween(t *testing.T) {
	a := DateTime(2026, 3, 14, 23, 0, 0)
	b := DateTime(2026, 3, 17, 1, 0, 0)

	assert.Equal(t, 3, DaysBetween(a, b), "calendar days, not 24h periods")
	assert.Equal(t, 3, DaysBetween(b, a), "symmetric")
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestParseAndFormatDate(t *testing.T) {
	parsed, err := ParseDate("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, Date(2026, 3, 14), parsed)
	assert.Equal(t, "2026-03-14", FormatDateStr(parsed))

	_, err = ParseDate("14.03.2026")
	assert.Error(t, err)
}

func TestFormatRelative(t *testing.T) {
	assert.Equal(t, "just now", FormatRelative(Now().Add(-30*time.Second)))
	assert.Equal(t, "5m ago", FormatRelative(Now().Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", FormatRelative(Now().Add(-3*time.Hour)))
	assert.Equal(t, "in 2h", FormatRelative(Now().Add(2*time.Hour+time.Minute)))
}
