package domain

import "time"

// AuditEvent is one structured record written to the append-only audit
// log. Name identifies the event schema; Payload is whatever struct below
// corresponds to it.
type AuditEvent struct {
	At      time.Time
	RunID   string
	Name    string
	Payload interface{}
}

// Audit event names, each with its own payload type below.
const (
	EventRuleViolation   = "rule_violation"
	EventOrderSubmitted  = "order_submitted"
	EventOrderAccepted   = "order_accepted"
	EventOrderRejected   = "order_rejected"
	EventGovernorChanged = "governor_state_changed"
	EventSafeModeTripped = "safe_mode_tripped"
	EventSafeModeCleared = "safe_mode_cleared"
	EventReconcile       = "reconcile_report"
	EventOrderReconciled = "order_reconciled"
	EventDriftDetected   = "drift_detected"
	EventDriftUnresolved = "drift_unresolved"
	EventDriftResolved   = "drift_resolved"
)

// RuleViolationPayload accompanies EventRuleViolation.
type RuleViolationPayload struct {
	Codes []ViolationCode
}

// OrderEventPayload accompanies EventOrderSubmitted/Accepted/Rejected.
type OrderEventPayload struct {
	ClientOrderID string
	BrokerOrderID string
	Symbol        string
	Side          string
	Volume        float64
	Reason        string
}

// GovernorChangedPayload accompanies EventGovernorChanged.
type GovernorChangedPayload struct {
	From string
	To   string
	Why  string
}

// SafeModePayload accompanies EventSafeModeTripped/Cleared.
type SafeModePayload struct {
	Reason SafeModeReason
	Detail string
}

// ReconcilePayload accompanies EventReconcile.
type ReconcilePayload struct {
	Report ReconcileReport
}

// ReconciledPayload accompanies EventOrderReconciled: one per journal
// mutation Reconcile applied.
type ReconciledPayload struct {
	ClientOrderID string
	Action        string // "closed" | "adopted"
}

// DriftEventPayload accompanies EventDriftDetected/Unresolved/Resolved.
type DriftEventPayload struct {
	Entries []DriftEntry
}
