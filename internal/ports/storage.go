package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
)

// Journal is the durable, idempotent record of order-placement attempts.
// Put must be safe to call twice with the same ClientOrderID: the second
// call overwrites rather than duplicates.
type Journal interface {
	Put(ctx context.Context, entry domain.JournalEntry) error
	Get(ctx context.Context, clientOrderID string) (domain.JournalEntry, bool, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (domain.JournalEntry, bool, error)
	ListOpen(ctx context.Context) ([]domain.JournalEntry, error)
}

// SafeModeStore persists the safe-mode latch across process restarts.
type SafeModeStore interface {
	Load(ctx context.Context) (domain.SafeModeState, error)
	Save(ctx context.Context, state domain.SafeModeState) error
}

// DriftStore persists the drift tracker's aging table across restarts.
type DriftStore interface {
	Load(ctx context.Context) (map[string]*domain.DriftEntry, error)
	Save(ctx context.Context, entries map[string]*domain.DriftEntry) error
}

// StatusStore persists the latest RuntimeStatus snapshot so external
// monitoring can read it without touching the live process.
type StatusStore interface {
	Save(ctx context.Context, status domain.RuntimeStatus) error
	Load(ctx context.Context) (domain.RuntimeStatus, error)
}

// DailyMetricsStore appends one closing-of-day compliance snapshot per
// civil day.
type DailyMetricsStore interface {
	Append(ctx context.Context, entry domain.DailyMetricsEntry) error
	List(ctx context.Context) ([]domain.DailyMetricsEntry, error)
}

// AuditLog is the append-only structured event trail.
type AuditLog interface {
	Log(ctx context.Context, event domain.AuditEvent) error
}

// BundleEmitter packages the artifacts of a closed civil day (journal
// entries, audit lines, daily metrics) for external delivery. The core
// only calls it once per day roll and does not care how, or whether, the
// implementation actually assembles anything — packaging and delivery are
// out of scope, the hook exists so a future implementation has somewhere
// to attach.
type BundleEmitter interface {
	EmitDailyBundle(ctx context.Context, day time.Time) error
}
