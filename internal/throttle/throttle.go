// Package throttle guards outbound broker traffic: a daily request cap, a
// minimum spacing between requests, and a per-minute cap on
// modify/cancel calls.
package throttle

import (
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"golang.org/x/time/rate"
)

// Decision is the throttle's verdict on one request.
type Decision struct {
	Allow  bool
	Reason string
}

// RequestThrottle tracks daily and per-minute request counters against a
// frozen civil-day boundary in Zone. It is not safe for concurrent use
// without external locking; the execution engine calls it without a lock
// of its own.
type RequestThrottle struct {
	MaxRequestsPerDay        int
	MinSecondsBetweenRequests int
	Zone                     *time.Location

	dayStart        time.Time
	dailyCount      int
	lastRequestTime time.Time

	modLimiter *rate.Limiter
}

// New constructs a RequestThrottle. maxModificationsPerMinute feeds a
// token-bucket limiter (golang.org/x/time/rate) sized to refill one token
// per modification slot each minute, so burst behavior matches the
// source's fixed per-minute window without this package tracking its own
// minute-boundary bookkeeping.
func New(maxRequestsPerDay, maxModificationsPerMinute, minSecondsBetweenRequests int, zone *time.Location) *RequestThrottle {
	var limiter *rate.Limiter
	if maxModificationsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(maxModificationsPerMinute)/60.0), maxModificationsPerMinute)
	}
	return &RequestThrottle{
		MaxRequestsPerDay:         maxRequestsPerDay,
		MinSecondsBetweenRequests: minSecondsBetweenRequests,
		Zone:                      zone,
		modLimiter:                limiter,
	}
}

// Allow evaluates whether a request of kind ("place", "modify", "cancel")
// may proceed at now, updating the internal counters on a true result.
func (t *RequestThrottle) Allow(kind string, now time.Time) Decision {
	dayStart := domain.DayStartFor(now, t.Zone)
	if t.dayStart.IsZero() || dayStart.After(t.dayStart) {
		t.dayStart = dayStart
		t.dailyCount = 0
	}

	if t.MaxRequestsPerDay > 0 && t.dailyCount >= t.MaxRequestsPerDay {
		return Decision{false, "Daily request cap reached"}
	}

	if t.MinSecondsBetweenRequests > 0 && !t.lastRequestTime.IsZero() {
		if now.Sub(t.lastRequestTime) < time.Duration(t.MinSecondsBetweenRequests)*time.Second {
			return Decision{false, "Request rate too high"}
		}
	}

	isModKind := kind == "modify" || kind == "cancel"
	if isModKind && t.modLimiter != nil {
		if !t.modLimiter.AllowN(now, 1) {
			return Decision{false, "Modification rate cap reached"}
		}
	}

	t.dailyCount++
	t.lastRequestTime = now
	return Decision{true, "Allowed"}
}
