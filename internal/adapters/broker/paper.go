// Package broker provides an in-memory broker adapter for local testing
// and as cmd/supervisor's fallback broker: orders fill immediately on
// placement, with no network call involved.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
)

// Paper is an in-memory ports.Broker that, with FillOnPlace, fills every
// order it accepts, netting same-symbol fills into one position the same
// way the adapter this is grounded on does. It records no fill price:
// BrokerOrder.Price and the Position price/P&L fields stay zero.
type Paper struct {
	FillOnPlace bool
	SymbolSpecs map[string]domain.SymbolSpec

	mu        sync.Mutex
	orders    map[string]domain.BrokerOrder
	positions map[string]domain.Position
	counter   int
}

// NewPaper constructs a Paper broker. fillOnPlace mirrors the source's
// constructor flag: true fills synchronously, false leaves orders
// "submitted" until a test manually advances them.
func NewPaper(fillOnPlace bool, symbolSpecs map[string]domain.SymbolSpec) *Paper {
	if symbolSpecs == nil {
		symbolSpecs = map[string]domain.SymbolSpec{}
	}
	return &Paper{
		FillOnPlace: fillOnPlace,
		SymbolSpecs: symbolSpecs,
		orders:      map[string]domain.BrokerOrder{},
		positions:   map[string]domain.Position{},
	}
}

// PlaceOrder is idempotent on clientOrderID: replaying the same ID returns
// the order already recorded rather than creating a second one.
func (p *Paper) PlaceOrder(ctx context.Context, clientOrderID string, intent domain.OrderIntent) (domain.BrokerOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.orders[clientOrderID]; ok {
		return existing, nil
	}

	p.counter++
	status := "submitted"
	if p.FillOnPlace {
		status = "filled"
	}

	order := domain.BrokerOrder{
		BrokerOrderID: fmt.Sprintf("paper-%d", p.counter),
		ClientOrderID: clientOrderID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Volume:        intent.Volume,
		Status:        status,
		SubmittedAt:   intent.Time,
		UpdatedAt:     intent.Time,
	}
	p.orders[clientOrderID] = order

	if status == "filled" {
		p.applyFill(intent)
	}
	return order, nil
}

func (p *Paper) applyFill(intent domain.OrderIntent) {
	existing, ok := p.positions[intent.Symbol]
	if !ok {
		p.positions[intent.Symbol] = domain.Position{Symbol: intent.Symbol, Volume: signedVolume(intent)}
		return
	}

	volume := existing.Volume + signedVolume(intent)
	if volume == 0 {
		delete(p.positions, intent.Symbol)
		return
	}
	existing.Volume = volume
	p.positions[intent.Symbol] = existing
}

func signedVolume(intent domain.OrderIntent) float64 {
	if intent.Side == "sell" {
		return -intent.Volume
	}
	return intent.Volume
}

// CancelOrder marks every recorded order matching brokerOrderID cancelled.
func (p *Paper) CancelOrder(ctx context.Context, brokerOrderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, order := range p.orders {
		if order.BrokerOrderID == brokerOrderID {
			order.Status = "cancelled"
			p.orders[id] = order
		}
	}
	return nil
}

// ModifyOrder rewrites the volume on every order matching brokerOrderID.
func (p *Paper) ModifyOrder(ctx context.Context, brokerOrderID string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, order := range p.orders {
		if order.BrokerOrderID == brokerOrderID {
			order.Volume = volume
			p.orders[id] = order
		}
	}
	return nil
}

// ListOpenOrders returns every order still submitted or open.
func (p *Paper) ListOpenOrders(ctx context.Context) ([]domain.BrokerOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.BrokerOrder
	for _, order := range p.orders {
		if order.Status == "submitted" || order.Status == "open" {
			out = append(out, order)
		}
	}
	return out, nil
}

// ListPositions returns every currently open net position.
func (p *Paper) ListPositions(ctx context.Context) ([]domain.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out, nil
}

// GetAccountSnapshot has no account equity of its own to report; callers
// driving the paper broker own the RuleState and pass it through
// governor/engine calls directly, so this returns a zero snapshot.
func (p *Paper) GetAccountSnapshot(ctx context.Context) (domain.RuleState, error) {
	return domain.RuleState{Now: time.Now().UTC()}, nil
}

// GetSymbolSpec returns the configured spec for symbol, or a zero value if
// none was registered.
func (p *Paper) GetSymbolSpec(ctx context.Context, symbol string) (domain.SymbolSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SymbolSpecs[symbol], nil
}

// Ping always succeeds; there is no connection to lose.
func (p *Paper) Ping(ctx context.Context) error {
	return nil
}
