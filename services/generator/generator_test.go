package generator

import (
	"testing"
	"time"

	scheduleTypes "classflow/types/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalTime(t *testing.T) {
	hour, minute, err := parseLocalTime("18:30")
	require.NoError(t, err)
	assert.Equal(t, 18, hour)
	assert.Equal(t, 30, minute)

	for _, bad := range []string{"1830", "25:00", "12:60", "ab:cd", "12:30:00"} {
		_, _, err := parseLocalTime(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = parseDate("02/03/2026")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExpandOccurrencesTwoWeekdayPicks(t *testing.T) {
	// Mon 2026-03-02 through Sun 2026-03-15: two full weeks.
	start, _ := parseDate("2026-03-02")
	end, _ := parseDate("2026-03-15")
	picks := []scheduleTypes.Pick{
		{Weekday: int(time.Monday), LocalTime: "18:00"},
		{Weekday: int(time.Wednesday), LocalTime: "07:30"},
	}

	occs, err := expandOccurrences(start, end, picks, 60, "UTC")
	require.NoError(t, err)
	require.Len(t, occs, 4)

	assert.Equal(t, "2026-03-02", occs[0].Date)
	assert.Equal(t, "2026-03-04", occs[1].Date)
	assert.Equal(t, "2026-03-09", occs[2].Date)
	assert.Equal(t, "2026-03-11", occs[3].Date)

	assert.Equal(t, 18, occs[0].StartAt.Hour())
	assert.Equal(t, occs[0].StartAt.Add(time.Hour), occs[0].EndAt)
}

func TestExpandOccurrencesKeepsLocalTimeAcrossDST(t *testing.T) {
	// US spring-forward falls inside this range; 09:00 local must hold on
	// both sides, so the UTC hour shifts from 14 to 13.
	start, _ := parseDate("2026-03-02")
	end, _ := parseDate("2026-03-15")
	picks := []scheduleTypes.Pick{{Weekday: int(time.Monday), LocalTime: "09:00"}}

	occs, err := expandOccurrences(start, end, picks, 45, "America/New_York")
	require.NoError(t, err)
	require.Len(t, occs, 2)

	assert.Equal(t, 14, occs[0].StartAt.Hour())
	assert.Equal(t, 13, occs[1].StartAt.Hour())
	assert.Equal(t, 45*time.Minute, occs[0].EndAt.Sub(occs[0].StartAt))
}

func TestExpandOccurrencesMultiplePicksSameDay(t *testing.T) {
	start, _ := parseDate("2026-03-02")
	end, _ := parseDate("2026-03-02")
	picks := []scheduleTypes.Pick{
		{Weekday: int(time.Monday), LocalTime: "07:00"},
		{Weekday: int(time.Monday), LocalTime: "18:00"},
	}

	occs, err := expandOccurrences(start, end, picks, 60, "UTC")
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, occs[0].Date, occs[1].Date)
	assert.True(t, occs[0].StartAt.Before(occs[1].StartAt))
}

func TestExpandOccurrencesNoMatchingWeekday(t *testing.T) {
	// A Monday-only range with a Friday pick yields nothing, not an error.
	start, _ := parseDate("2026-03-02")
	end, _ := parseDate("2026-03-02")
	picks := []scheduleTypes.Pick{{Weekday: int(time.Friday), LocalTime: "09:00"}}

	occs, err := expandOccurrences(start, end, picks, 60, "UTC")
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestExpandOccurrencesRejectsBadInput(t *testing.T) {
	start, _ := parseDate("2026-03-02")
	end, _ := parseDate("2026-03-15")

	_, err := expandOccurrences(start, end, []scheduleTypes.Pick{{Weekday: 7, LocalTime: "09:00"}}, 60, "UTC")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = expandOccurrences(start, end, []scheduleTypes.Pick{{Weekday: 1, LocalTime: "9am"}}, 60, "UTC")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = expandOccurrences(start, end, []scheduleTypes.Pick{{Weekday: 1, LocalTime: "09:00"}}, 60, "Bad/Zone")
	assert.Error(t, err)
}
