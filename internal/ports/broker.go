// Package ports declares the interfaces the application layer depends on
// and the adapters layer implements: broker connectivity, durable storage,
// and observability. Nothing in this package performs I/O itself.
package ports

import (
	"context"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
)

// Broker is the execution engine's view of a trading venue. Implementations
// must be safe for concurrent use; the execution engine may call PlaceOrder
// from the service loop's fast task while reconcile runs concurrently.
type Broker interface {
	PlaceOrder(ctx context.Context, clientOrderID string, intent domain.OrderIntent) (domain.BrokerOrder, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	ModifyOrder(ctx context.Context, brokerOrderID string, volume float64) error
	ListOpenOrders(ctx context.Context) ([]domain.BrokerOrder, error)
	ListPositions(ctx context.Context) ([]domain.Position, error)
	GetAccountSnapshot(ctx context.Context) (domain.RuleState, error)
	GetSymbolSpec(ctx context.Context, symbol string) (domain.SymbolSpec, error)
	Ping(ctx context.Context) error
}

// Strategy produces order intents from market data. It is the only
// component SPEC_FULL.md leaves to a concrete, pluggable implementation;
// the service loop drives it but does not interpret its internals.
type Strategy interface {
	OnMarketData(ctx context.Context, bar domain.PriceBar) error
	GenerateIntents(ctx context.Context, state domain.RuleState) ([]domain.OrderIntent, error)
}
