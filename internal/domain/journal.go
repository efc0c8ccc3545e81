package domain

import (
	"strconv"
	"time"
)

// JournalEntry is one durable record of an order-placement attempt, as
// persisted by the execution journal before and after submission. The
// journal is written before the broker call (status Pending) and updated
// after (status Submitted/Accepted/Rejected/Failed), so a crash between the
// two leaves a recoverable trail rather than a silent duplicate risk.
type JournalEntry struct {
	ClientOrderID string
	RunID         string
	Fingerprint   string
	Intent        OrderIntent
	Status        OrderStatus
	BrokerOrderID string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastError     string
}

// FingerprintKey derives the secondary duplicate-window key for an intent:
// same symbol, side, volume and minute-truncated time collapse to one
// fingerprint. ClientOrderID is the journal's real primary key and
// idempotency key; the fingerprint only catches a logically duplicate order
// placed under a different client order ID within the configured duplicate
// window (see ExecutionConfig.DuplicateWindowSeconds).
func (i OrderIntent) FingerprintKey() string {
	minute := i.Time.Truncate(time.Minute).UTC().Format(time.RFC3339)
	volume := strconv.FormatFloat(i.Volume, 'f', -1, 64)
	return i.Symbol + "|" + i.Side + "|" + volume + "|" + minute
}
