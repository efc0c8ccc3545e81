package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayStartFor_TruncatesToLocalMidnight(t *testing.T) {
	zone, err := domain.LoadZone("UTC")
	require.NoError(t, err)

	got := domain.DayStartFor(time.Date(2026, 3, 15, 23, 59, 0, 0, zone), zone)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, zone), got)
}

func TestDayStartFor_PanicsOnZeroTime(t *testing.T) {
	zone, err := domain.LoadZone("UTC")
	require.NoError(t, err)

	assert.Panics(t, func() {
		domain.DayStartFor(time.Time{}, zone)
	})
}

func TestNeedsDayReset(t *testing.T) {
	zone, err := domain.LoadZone("UTC")
	require.NoError(t, err)

	dayStart := time.Date(2026, 3, 15, 0, 0, 0, 0, zone)
	sameDay := time.Date(2026, 3, 15, 18, 0, 0, 0, zone)
	nextDay := time.Date(2026, 3, 16, 0, 0, 1, 0, zone)

	assert.False(t, domain.NeedsDayReset(sameDay, dayStart, zone))
	assert.True(t, domain.NeedsDayReset(nextDay, dayStart, zone))
}

func TestTradingDayFor_MatchesCalendarDateAcrossZones(t *testing.T) {
	ny, err := domain.LoadZone("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC is still 21:00 the previous day in New York.
	utcTime := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)
	got := domain.TradingDayFor(utcTime, ny)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, ny), got)
}

func TestMinutesUntilMidnight(t *testing.T) {
	zone, err := domain.LoadZone("UTC")
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 23, 45, 0, 0, zone)
	assert.Equal(t, 15, domain.MinutesUntilMidnight(now, zone))

	atMidnight := time.Date(2026, 3, 16, 0, 0, 0, 0, zone)
	assert.Equal(t, 0, domain.MinutesUntilMidnight(atMidnight, zone))
}

func TestInMidnightWindow(t *testing.T) {
	zone, err := domain.LoadZone("UTC")
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 23, 45, 0, 0, zone)
	assert.True(t, domain.InMidnightWindow(now, zone, 30))
	assert.False(t, domain.InMidnightWindow(now, zone, 10))
	assert.False(t, domain.InMidnightWindow(now, zone, 0))
}

func TestLoadZone_ErrorsOnUnknownName(t *testing.T) {
	_, err := domain.LoadZone("Not/AZone")
	assert.Error(t, err)
}
