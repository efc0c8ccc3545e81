package domain

import "time"

// DriftEntry is one observed mismatch between the journal and the broker's
// reported state, as produced by a reconcile pass.
type DriftEntry struct {
	Kind        string // "missing_in_broker" | "missing_in_journal" | "status_mismatch" | "position_mismatch"
	Key         string // client order ID, broker order ID, or symbol
	FirstSeen   time.Time
	LastSeen    time.Time
	Occurrences int
	// Alerted is set once this entry has aged past MaxAge and escalated,
	// so a resolved entry that later clears is reported exactly once.
	Alerted bool
}

// DriftTracker ages observed mismatches by wall-clock time: a mismatch
// that has persisted since FirstSeen for at least MaxAge is no longer
// ordinary settlement lag and escalates to safe mode.
type DriftTracker struct {
	MaxAge  time.Duration
	Entries map[string]*DriftEntry
}

// NewDriftTracker returns a tracker that escalates once a mismatch key has
// been continuously present for at least maxAge.
func NewDriftTracker(maxAge time.Duration) *DriftTracker {
	return &DriftTracker{MaxAge: maxAge, Entries: make(map[string]*DriftEntry)}
}

// DriftObservation is the outcome of one Observe call: mismatches seen for
// the first time this pass, mismatches that just aged past MaxAge and
// require escalation to safe mode, and previously escalated mismatches
// that have now cleared.
type DriftObservation struct {
	Detected   []DriftEntry
	Unresolved []DriftEntry
	Resolved   []DriftEntry
}

// Observe records one reconcile pass's mismatches against the tracked
// table and returns what changed: newly detected mismatches, mismatches
// that just escalated, and previously escalated mismatches that cleared.
func (t *DriftTracker) Observe(report ReconcileReport) DriftObservation {
	seen := make(map[string]bool, len(t.Entries))
	var obs DriftObservation

	record := func(kind, key string) {
		k := kind + "|" + key
		seen[k] = true
		if e, ok := t.Entries[k]; ok {
			e.Occurrences++
			e.LastSeen = report.At
			return
		}
		e := &DriftEntry{Kind: kind, Key: key, FirstSeen: report.At, LastSeen: report.At, Occurrences: 1}
		t.Entries[k] = e
		obs.Detected = append(obs.Detected, *e)
	}
	for _, id := range report.MissingAtBroker {
		record("missing_in_broker", id)
	}
	for _, id := range report.UnknownAtBroker {
		record("missing_in_journal", id)
	}
	for _, id := range report.StatusMismatches {
		record("status_mismatch", id)
	}
	if report.PositionMismatch {
		record("position_mismatch", "account")
	}

	for k, e := range t.Entries {
		if !seen[k] {
			if e.Alerted {
				obs.Resolved = append(obs.Resolved, *e)
			}
			delete(t.Entries, k)
			continue
		}
		if !e.Alerted && report.At.Sub(e.FirstSeen) >= t.MaxAge {
			e.Alerted = true
			obs.Unresolved = append(obs.Unresolved, *e)
		}
	}
	return obs
}

// Clear forgets all tracked drift, used after an operator reset.
func (t *DriftTracker) Clear() {
	t.Entries = make(map[string]*DriftEntry)
}
