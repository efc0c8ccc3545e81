// Package execution implements the journaled, idempotent order-submission
// engine: every placement is recorded before it reaches the broker, so a
// crash between record and broker acknowledgement is recoverable rather
// than a silent double-order risk. ClientOrderID is the journal's primary
// key and the idempotency key; a symbol/side/volume/minute fingerprint is
// kept only as a secondary duplicate-window check for orders that arrive
// under a different, never-before-seen client order ID.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/metrics"
	"github.com/alejandrodnm/ftmorisk/internal/ports"
	"github.com/alejandrodnm/ftmorisk/internal/throttle"
)

// Engine places, cancels, modifies and reconciles orders through a Broker,
// journaling every attempt.
type Engine struct {
	Broker   ports.Broker
	Journal  ports.Journal
	Throttle *throttle.RequestThrottle
	Audit    ports.AuditLog
	Monitor  ports.Monitor
	RunID    string

	// DuplicateWindow and DuplicateBlock configure the secondary
	// fingerprint-based duplicate check: a logically identical order
	// placed under a different ClientOrderID within DuplicateWindow of a
	// previously submitted one is refused when DuplicateBlock is true, and
	// only audit-logged (then submitted) when it is false.
	DuplicateWindow time.Duration
	DuplicateBlock  bool

	newClientOrderID func() string
}

// New constructs an Engine. newClientOrderID mints a client order ID for
// intents the caller leaves unset (typically github.com/google/uuid.NewString).
func New(broker ports.Broker, journal ports.Journal, th *throttle.RequestThrottle, audit ports.AuditLog, monitor ports.Monitor, runID string, newClientOrderID func() string) *Engine {
	return &Engine{
		Broker: broker, Journal: journal, Throttle: th, Audit: audit, Monitor: monitor, RunID: runID,
		DuplicateWindow: 10 * time.Second, DuplicateBlock: true,
		newClientOrderID: newClientOrderID,
	}
}

func (e *Engine) log(ctx context.Context, name string, payload interface{}) {
	if e.Audit == nil {
		return
	}
	_ = e.Audit.Log(ctx, domain.AuditEvent{Name: name, Payload: payload, RunID: e.RunID})
}

func (e *Engine) throttleCheck(ctx context.Context, kind string, now time.Time) error {
	if e.Throttle == nil {
		return nil
	}
	decision := e.Throttle.Allow(kind, now)
	if !decision.Allow {
		e.log(ctx, "throttle_block", map[string]interface{}{"kind": kind, "reason": decision.Reason})
		return domain.NewError(domain.ErrThrottleBlock, decision.Reason)
	}
	return nil
}

// CheckConnection pings the broker and notifies the monitor on failure.
func (e *Engine) CheckConnection(ctx context.Context) bool {
	err := e.Broker.Ping(ctx)
	if err != nil {
		if e.Monitor != nil {
			e.Monitor.Disconnect("Broker connection lost")
		}
		return false
	}
	return true
}

// PlaceOrder submits intent idempotently: a replay of the same
// ClientOrderID — the journal's primary key — returns the previously
// placed broker order instead of submitting again, and a journaled-but-
// not-yet-submitted entry for that ID is resumed rather than re-recorded.
// A caller that leaves ClientOrderID empty gets one minted for it. As a
// secondary safety net, a logically identical order (same symbol/side/
// volume/minute fingerprint) placed under a different, never-before-seen
// ClientOrderID within DuplicateWindow of a prior submission is refused
// with ErrDuplicateOrder when DuplicateBlock is set, and otherwise logged
// and submitted.
func (e *Engine) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.BrokerOrder, error) {
	clientOrderID := intent.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = e.newClientOrderID()
	}

	existing, hasEntry, err := e.Journal.Get(ctx, clientOrderID)
	if err != nil {
		return domain.BrokerOrder{}, err
	}
	if hasEntry && existing.BrokerOrderID != "" {
		e.log(ctx, "order_duplicate_suppressed", map[string]interface{}{
			"client_order_id": existing.ClientOrderID, "reason": "client_order_id_replay",
		})
		return brokerOrderFromEntry(existing), nil
	}

	fingerprint := intent.FingerprintKey()
	if !hasEntry {
		if dup, duplicate, err := e.duplicateWithinWindow(ctx, fingerprint, intent.Time); err != nil {
			return domain.BrokerOrder{}, err
		} else if duplicate {
			e.log(ctx, "duplicate_order_detected", map[string]interface{}{
				"client_order_id": clientOrderID, "matches_client_order_id": dup.ClientOrderID, "fingerprint": fingerprint,
			})
			if e.DuplicateBlock {
				return domain.BrokerOrder{}, domain.NewError(domain.ErrDuplicateOrder, fmt.Sprintf("order fingerprint %s resubmitted within duplicate window", fingerprint))
			}
		}
	}

	var entry domain.JournalEntry
	if hasEntry {
		entry = existing
	} else {
		entry = domain.JournalEntry{
			ClientOrderID: clientOrderID,
			RunID:         e.RunID,
			Fingerprint:   fingerprint,
			Intent:        intent,
			Status:        domain.OrderPending,
			CreatedAt:     intent.Time,
			UpdatedAt:     intent.Time,
		}
		if err := e.Journal.Put(ctx, entry); err != nil {
			return domain.BrokerOrder{}, err
		}
	}

	if err := e.throttleCheck(ctx, "place", intent.Time); err != nil {
		return domain.BrokerOrder{}, err
	}

	brokerOrder, err := e.Broker.PlaceOrder(ctx, clientOrderID, intent)
	if err != nil {
		entry.Status = domain.OrderFailed
		entry.LastError = err.Error()
		entry.Attempts++
		entry.UpdatedAt = intent.Time
		_ = e.Journal.Put(ctx, entry)
		return domain.BrokerOrder{}, domain.NewError(domain.ErrBrokerTransient, err.Error())
	}

	entry.BrokerOrderID = brokerOrder.BrokerOrderID
	entry.Attempts++
	entry.UpdatedAt = intent.Time
	switch brokerOrder.Status {
	case "rejected", "cancelled", "filled", "open", "partial":
		entry.Status = statusFromBroker(brokerOrder.Status)
	default:
		entry.Status = domain.OrderSubmitted
	}
	if err := e.Journal.Put(ctx, entry); err != nil {
		return domain.BrokerOrder{}, err
	}

	metrics.OrdersPlaced.WithLabelValues(intent.Symbol, intent.Side).Inc()
	e.log(ctx, domain.EventOrderSubmitted, domain.OrderEventPayload{
		ClientOrderID: clientOrderID, BrokerOrderID: brokerOrder.BrokerOrderID,
		Symbol: intent.Symbol, Side: intent.Side, Volume: intent.Volume,
	})
	if brokerOrder.Status == "rejected" {
		metrics.OrdersRejected.WithLabelValues(intent.Symbol).Inc()
		e.log(ctx, domain.EventOrderRejected, domain.OrderEventPayload{
			ClientOrderID: clientOrderID, BrokerOrderID: brokerOrder.BrokerOrderID,
		})
		return brokerOrder, domain.NewError(domain.ErrBrokerReject, fmt.Sprintf("order %s rejected by broker", clientOrderID))
	}
	return brokerOrder, nil
}

func brokerOrderFromEntry(entry domain.JournalEntry) domain.BrokerOrder {
	return domain.BrokerOrder{
		BrokerOrderID: entry.BrokerOrderID,
		ClientOrderID: entry.ClientOrderID,
		Symbol:        entry.Intent.Symbol,
		Side:          entry.Intent.Side,
		Volume:        entry.Intent.Volume,
		Status:        string(entry.Status),
	}
}

// duplicateWithinWindow reports the most recent journal entry sharing
// fingerprint, if it already reached the broker within DuplicateWindow of
// now — the secondary defense against a logically duplicate order placed
// under a fresh ClientOrderID.
func (e *Engine) duplicateWithinWindow(ctx context.Context, fingerprint string, now time.Time) (domain.JournalEntry, bool, error) {
	existing, ok, err := e.Journal.GetByFingerprint(ctx, fingerprint)
	if err != nil || !ok || existing.BrokerOrderID == "" {
		return domain.JournalEntry{}, false, err
	}
	if e.DuplicateWindow <= 0 || now.Sub(existing.UpdatedAt) > e.DuplicateWindow {
		return domain.JournalEntry{}, false, nil
	}
	return existing, true, nil
}

func statusFromBroker(status string) domain.OrderStatus {
	switch status {
	case "rejected":
		return domain.OrderRejected
	case "filled", "open", "partial":
		return domain.OrderAccepted
	default:
		return domain.OrderSubmitted
	}
}

// CancelOrder throttles and forwards a cancel to the broker.
func (e *Engine) CancelOrder(ctx context.Context, brokerOrderID string, now time.Time) error {
	if err := e.throttleCheck(ctx, "cancel", now); err != nil {
		return err
	}
	if err := e.Broker.CancelOrder(ctx, brokerOrderID); err != nil {
		return domain.NewError(domain.ErrBrokerTransient, err.Error())
	}
	e.log(ctx, "order_canceled", map[string]interface{}{"broker_order_id": brokerOrderID})
	return nil
}

// ModifyOrder throttles and forwards a volume modification to the broker.
func (e *Engine) ModifyOrder(ctx context.Context, brokerOrderID string, volume float64, now time.Time) error {
	if err := e.throttleCheck(ctx, "modify", now); err != nil {
		return err
	}
	if err := e.Broker.ModifyOrder(ctx, brokerOrderID, volume); err != nil {
		return domain.NewError(domain.ErrBrokerTransient, err.Error())
	}
	e.log(ctx, "order_modified", map[string]interface{}{"broker_order_id": brokerOrderID, "volume": volume})
	return nil
}

// Reconcile compares journal state against the broker's open orders and
// positions, closing journal entries the broker no longer shows open and
// adopting broker orders the journal never recorded (e.g. placed by a
// prior crashed run before the journal write landed).
func (e *Engine) Reconcile(ctx context.Context, now time.Time) (domain.ReconcileReport, error) {
	report := domain.ReconcileReport{At: now, JournalPositions: map[string]float64{}, BrokerPositions: map[string]float64{}}

	brokerOpen, err := e.Broker.ListOpenOrders(ctx)
	if err != nil {
		return domain.ReconcileReport{}, domain.NewError(domain.ErrBrokerTransient, err.Error())
	}
	brokerByID := make(map[string]domain.BrokerOrder, len(brokerOpen))
	for _, o := range brokerOpen {
		brokerByID[o.ClientOrderID] = o
	}

	journalOpen, err := e.Journal.ListOpen(ctx)
	if err != nil {
		return domain.ReconcileReport{}, err
	}
	journalByID := make(map[string]domain.JournalEntry, len(journalOpen))
	for _, entry := range journalOpen {
		journalByID[entry.ClientOrderID] = entry
	}

	for _, entry := range journalOpen {
		bo, stillOpen := brokerByID[entry.ClientOrderID]
		if !stillOpen {
			report.MissingAtBroker = append(report.MissingAtBroker, entry.ClientOrderID)
			entry.Status = domain.OrderClosed
			entry.UpdatedAt = now
			if err := e.Journal.Put(ctx, entry); err != nil {
				return domain.ReconcileReport{}, err
			}
			report.ReconciledClosed = append(report.ReconciledClosed, entry.ClientOrderID)
			e.log(ctx, domain.EventOrderReconciled, domain.ReconciledPayload{ClientOrderID: entry.ClientOrderID, Action: "closed"})
			continue
		}
		if string(entry.Status) != bo.Status && statusFromBroker(bo.Status) != entry.Status {
			report.StatusMismatches = append(report.StatusMismatches, entry.ClientOrderID)
		}
	}

	for clientOrderID, bo := range brokerByID {
		if _, ok := journalByID[clientOrderID]; ok {
			continue
		}
		report.UnknownAtBroker = append(report.UnknownAtBroker, clientOrderID)
		adopted := domain.JournalEntry{
			ClientOrderID: clientOrderID,
			RunID:         e.RunID,
			BrokerOrderID: bo.BrokerOrderID,
			Intent: domain.OrderIntent{
				Symbol: bo.Symbol, Side: bo.Side, Volume: bo.Volume, Time: now, ClientOrderID: clientOrderID,
			},
			Status:    domain.OrderSubmitted,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.Journal.Put(ctx, adopted); err != nil {
			return domain.ReconcileReport{}, err
		}
		report.ReconciledAdded = append(report.ReconciledAdded, clientOrderID)
		e.log(ctx, domain.EventOrderReconciled, domain.ReconciledPayload{ClientOrderID: clientOrderID, Action: "adopted"})
	}

	positions, err := e.Broker.ListPositions(ctx)
	if err != nil {
		return domain.ReconcileReport{}, domain.NewError(domain.ErrBrokerTransient, err.Error())
	}
	for _, p := range positions {
		report.BrokerPositions[p.Symbol] = p.Volume
	}

	report.Clean = len(report.MissingAtBroker) == 0 && len(report.UnknownAtBroker) == 0 && len(report.StatusMismatches) == 0

	e.log(ctx, domain.EventReconcile, domain.ReconcilePayload{Report: report})
	return report, nil
}
