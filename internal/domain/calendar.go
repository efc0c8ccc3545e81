package domain

import (
	"fmt"
	"time"
)

// DayStartFor returns the instant at local 00:00 of t's calendar date in
// zone. t must be a populated instant; a zero-value time.Time is a
// programmer error (the uninitialized-timestamp equivalent of the source's
// "naive datetime") and panics rather than silently misbehaving across a
// day boundary.
func DayStartFor(t time.Time, zone *time.Location) time.Time {
	requireZoned(t)
	local := t.In(zone)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, zone)
}

// NeedsDayReset reports whether now has crossed into a later civil day than
// dayStart, and the state's day-roll bookkeeping must be refreshed.
func NeedsDayReset(now, dayStart time.Time, zone *time.Location) bool {
	requireZoned(now)
	return DayStartFor(now, zone).After(dayStart.In(zone))
}

// TradingDayFor returns the local calendar date of t under zone.
func TradingDayFor(t time.Time, zone *time.Location) time.Time {
	requireZoned(t)
	local := t.In(zone)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, zone)
}

// NextMidnight returns the instant at the following local 00:00.
func NextMidnight(now time.Time, zone *time.Location) time.Time {
	requireZoned(now)
	return DayStartFor(now, zone).AddDate(0, 0, 1)
}

// MinutesUntilMidnight returns the non-negative count of whole wall-clock
// minutes remaining until the next local midnight. On a DST spring-forward
// day this still counts wall-clock minutes, since it subtracts local clock
// values rather than elapsed duration.
func MinutesUntilMidnight(now time.Time, zone *time.Location) int {
	requireZoned(now)
	delta := NextMidnight(now, zone).Sub(now.In(zone))
	minutes := int(delta / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}

// InMidnightWindow reports whether now falls within windowMinutes of the
// next local midnight. A non-positive window disables the predicate.
func InMidnightWindow(now time.Time, zone *time.Location, windowMinutes int) bool {
	if windowMinutes <= 0 {
		return false
	}
	return MinutesUntilMidnight(now, zone) <= windowMinutes
}

func requireZoned(t time.Time) {
	if t.IsZero() {
		panic(fmt.Sprintf("domain: timezone-aware instant required, got zero time"))
	}
}

// LoadZone resolves an IANA zone name, wrapping the stdlib error so callers
// can treat a bad timezone name as a ConfigurationError.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("domain.LoadZone: %q: %w", name, err)
	}
	return loc, nil
}
