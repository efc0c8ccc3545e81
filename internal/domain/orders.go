package domain

import "time"

// BrokerOrder is the broker's own view of an order, as returned by
// ports.Broker.ListOpenOrders/PlaceOrder.
type BrokerOrder struct {
	BrokerOrderID string
	ClientOrderID string
	Symbol        string
	Side          string
	Volume        float64
	Price         float64
	Status        string // "submitted" | "open" | "filled" | "cancelled" | "rejected"
	SubmittedAt   time.Time
	UpdatedAt     time.Time
}

// Position is an open net position as reported by the broker.
type Position struct {
	Symbol       string
	Volume       float64
	AveragePrice float64
	FloatingPnL  float64
}

// SymbolSpec is the broker's tradeable-instrument metadata, used to round
// volumes and estimate risk.
type SymbolSpec struct {
	Symbol       string
	LotStep      float64
	MinVolume    float64
	MaxVolume    float64
	PipValue     float64
	ContractSize float64
}

// OrderStatus is the execution engine's own lifecycle for a journaled
// order, distinct from BrokerOrder.Status.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderSubmitted OrderStatus = "submitted"
	OrderAccepted  OrderStatus = "accepted"
	OrderRejected  OrderStatus = "rejected"
	OrderFailed    OrderStatus = "failed"
	// OrderClosed marks a journal entry reconcile found the broker no
	// longer knows about (filled/cancelled and aged out of its open-order
	// list, or closed by a prior run reconcile never observed).
	OrderClosed OrderStatus = "closed"
)

// ReconcileReport is the outcome of comparing the journal against the
// broker's live order and position state for one reconcile pass, plus the
// mutations Reconcile applied to bring the journal back in sync.
type ReconcileReport struct {
	At               time.Time
	MissingAtBroker  []string // client order IDs journaled but absent at the broker
	UnknownAtBroker  []string // client order IDs of broker open orders with no journal entry
	StatusMismatches []string // client order IDs whose journal/broker status disagree
	PositionMismatch bool
	JournalPositions map[string]float64
	BrokerPositions  map[string]float64
	Clean            bool
	// ReconciledClosed holds the MissingAtBroker client order IDs whose
	// journal entry was transitioned to OrderClosed by this pass.
	ReconciledClosed []string
	// ReconciledAdded holds the UnknownAtBroker client order IDs adopted
	// into fresh journal entries by this pass.
	ReconciledAdded []string
}
