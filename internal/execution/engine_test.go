package execution_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/adapters/broker"
	"github.com/alejandrodnm/ftmorisk/internal/adapters/storage"
	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*execution.Engine, *broker.Paper) {
	t.Helper()
	journalPath := t.TempDir() + "/journal.db"
	journal, err := storage.NewSQLiteJournal(journalPath)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	paperBroker := broker.NewPaper(true, nil)
	counter := 0
	newID := func() string {
		counter++
		return fmt.Sprintf("coid-gen-%d", counter)
	}
	engine := execution.New(paperBroker, journal, nil, nil, nil, "run-1", newID)
	return engine, paperBroker
}

func TestEngine_PlaceOrder_JournalsAndFills(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now}

	order, err := engine.PlaceOrder(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, "filled", order.Status)

	entry, ok, err := engine.Journal.Get(ctx, order.ClientOrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.OrderAccepted, entry.Status)
}

func TestEngine_PlaceOrder_DuplicateFingerprintWithoutClientOrderIDFailsWhenBlocked(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now}

	_, err := engine.PlaceOrder(ctx, intent)
	require.NoError(t, err)

	// A caller that never assigns its own ClientOrderID gets a fresh one
	// minted each call, so the second submission of the same logical order
	// is only caught by the secondary fingerprint duplicate window.
	_, err = engine.PlaceOrder(ctx, intent)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)
}

func TestEngine_PlaceOrder_ReplayingClientOrderIDReturnsCachedOrder(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now, ClientOrderID: "caller-assigned-1"}

	first, err := engine.PlaceOrder(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, "caller-assigned-1", first.ClientOrderID)

	// A retry that crosses a minute boundary must still replay, not
	// double-submit, because identity is keyed on ClientOrderID and not
	// on the minute-truncated fingerprint.
	retryIntent := intent
	retryIntent.Time = now.Add(90 * time.Second)
	second, err := engine.PlaceOrder(ctx, retryIntent)
	require.NoError(t, err)

	assert.Equal(t, first.BrokerOrderID, second.BrokerOrderID)

	entry, ok, err := engine.Journal.Get(ctx, "caller-assigned-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, entry.Attempts)
}

func TestEngine_PlaceOrder_DuplicateWindowBlocksDifferentClientOrderID(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	_, err := engine.PlaceOrder(ctx, domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now, ClientOrderID: "order-a"})
	require.NoError(t, err)

	_, err = engine.PlaceOrder(ctx, domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now.Add(2 * time.Second), ClientOrderID: "order-b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)

	_, ok, err := engine.Journal.Get(ctx, "order-b")
	require.NoError(t, err)
	assert.False(t, ok, "a duplicate blocked within the window should never be journaled under its own client order id")
}

func TestEngine_PlaceOrder_DuplicateWindowLogsAndProceedsWhenNotBlocked(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.DuplicateBlock = false
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	first, err := engine.PlaceOrder(ctx, domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now, ClientOrderID: "order-a"})
	require.NoError(t, err)

	second, err := engine.PlaceOrder(ctx, domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now.Add(2 * time.Second), ClientOrderID: "order-b"})
	require.NoError(t, err)

	assert.NotEqual(t, first.BrokerOrderID, second.BrokerOrderID)
	_, ok, err := engine.Journal.Get(ctx, "order-b")
	require.NoError(t, err)
	assert.True(t, ok, "with duplicate_block disabled the second order still submits and journals")
}

func TestEngine_Reconcile_CleanWhenInSync(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	report, err := engine.Reconcile(ctx, now)
	require.NoError(t, err)
	assert.True(t, report.Clean)
	assert.Empty(t, report.MissingAtBroker)
	assert.Empty(t, report.UnknownAtBroker)
}

func TestEngine_Reconcile_DetectsUnknownAtBroker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	// An order the broker knows about but the journal never recorded,
	// simulating a prior crashed run.
	ghost := broker.NewPaper(false, nil)
	_, err := ghost.PlaceOrder(ctx, "ghost-1", domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now})
	require.NoError(t, err)

	ghostEngine := newEngineWithBroker(t, ghost)
	report, err := ghostEngine.Reconcile(ctx, now)
	require.NoError(t, err)
	assert.False(t, report.Clean)
	assert.Contains(t, report.UnknownAtBroker, "ghost-1")
	assert.Contains(t, report.ReconciledAdded, "ghost-1")

	entry, ok, err := ghostEngine.Journal.Get(ctx, "ghost-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSubmitted, entry.Status)
}

func TestEngine_Reconcile_ClosesJournalEntryMissingAtBroker(t *testing.T) {
	engine, paperBroker := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now, ClientOrderID: "vanished-1"}
	placed, err := engine.PlaceOrder(ctx, intent)
	require.NoError(t, err)

	// The broker no longer reports this order as open (filled and aged
	// out, or cancelled by an operator outside this run).
	require.NoError(t, paperBroker.CancelOrder(ctx, placed.BrokerOrderID))

	report, err := engine.Reconcile(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Contains(t, report.MissingAtBroker, "vanished-1")
	assert.Contains(t, report.ReconciledClosed, "vanished-1")

	entry, ok, err := engine.Journal.Get(ctx, "vanished-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.OrderClosed, entry.Status)

	open, err := engine.Journal.ListOpen(ctx)
	require.NoError(t, err)
	for _, e := range open {
		assert.NotEqual(t, "vanished-1", e.ClientOrderID)
	}
}

func newEngineWithBroker(t *testing.T, b *broker.Paper) *execution.Engine {
	t.Helper()
	journalPath := t.TempDir() + "/journal.db"
	journal, err := storage.NewSQLiteJournal(journalPath)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return execution.New(b, journal, nil, nil, nil, "run-2", func() string { return "unused" })
}
