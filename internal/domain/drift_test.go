package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriftTracker_Observe_DetectsOnFirstSight(t *testing.T) {
	tracker := domain.NewDriftTracker(time.Minute)
	at := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	obs := tracker.Observe(domain.ReconcileReport{At: at, MissingAtBroker: []string{"A"}})

	require.Len(t, obs.Detected, 1)
	assert.Equal(t, "missing_in_broker", obs.Detected[0].Kind)
	assert.Equal(t, "A", obs.Detected[0].Key)
	assert.Empty(t, obs.Unresolved)
	assert.Empty(t, obs.Resolved)
}

func TestDriftTracker_Observe_EscalatesOnlyAfterMaxAgeElapses(t *testing.T) {
	tracker := domain.NewDriftTracker(time.Minute)
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	obs := tracker.Observe(domain.ReconcileReport{At: start, MissingAtBroker: []string{"A"}})
	assert.Empty(t, obs.Unresolved)

	obs = tracker.Observe(domain.ReconcileReport{At: start.Add(30 * time.Second), MissingAtBroker: []string{"A"}})
	assert.Empty(t, obs.Unresolved, "30s since first seen must not yet breach a 1-minute max age")

	obs = tracker.Observe(domain.ReconcileReport{At: start.Add(time.Minute), MissingAtBroker: []string{"A"}})
	require.Len(t, obs.Unresolved, 1)
	assert.Equal(t, "A", obs.Unresolved[0].Key)
	assert.True(t, tracker.Entries["missing_in_broker|A"].Alerted)
}

func TestDriftTracker_Observe_EscalatesOnceNotRepeatedly(t *testing.T) {
	tracker := domain.NewDriftTracker(time.Minute)
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	tracker.Observe(domain.ReconcileReport{At: start, MissingAtBroker: []string{"A"}})
	obs := tracker.Observe(domain.ReconcileReport{At: start.Add(time.Minute), MissingAtBroker: []string{"A"}})
	require.Len(t, obs.Unresolved, 1)

	obs = tracker.Observe(domain.ReconcileReport{At: start.Add(2 * time.Minute), MissingAtBroker: []string{"A"}})
	assert.Empty(t, obs.Unresolved, "an already-alerted entry must not re-escalate on every later pass")
}

func TestDriftTracker_Observe_ResolvesAlertedEntryThatClears(t *testing.T) {
	tracker := domain.NewDriftTracker(time.Minute)
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	tracker.Observe(domain.ReconcileReport{At: start, MissingAtBroker: []string{"A"}})
	obs := tracker.Observe(domain.ReconcileReport{At: start.Add(time.Minute), MissingAtBroker: []string{"A"}})
	require.Len(t, obs.Unresolved, 1)

	obs = tracker.Observe(domain.ReconcileReport{At: start.Add(2 * time.Minute)})
	require.Len(t, obs.Resolved, 1)
	assert.Equal(t, "A", obs.Resolved[0].Key)
	_, stillTracked := tracker.Entries["missing_in_broker|A"]
	assert.False(t, stillTracked)
}

func TestDriftTracker_Observe_ForgetsUnalertedEntryThatClearsWithoutResolving(t *testing.T) {
	tracker := domain.NewDriftTracker(time.Minute)
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	tracker.Observe(domain.ReconcileReport{At: start, MissingAtBroker: []string{"A"}})
	obs := tracker.Observe(domain.ReconcileReport{At: start.Add(10 * time.Second)})

	assert.Empty(t, obs.Resolved, "an entry that never escalated should vanish quietly, not emit drift_resolved")
}
