package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway for tests and dev mode. Orders
// become payable immediately; a callback body of {"order_id": N} verifies.
type NoopGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[int64]int64 // order id -> amount
	paid    map[int64]bool
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{
		intents: make(map[int64]int64),
		paid:    make(map[int64]bool),
	}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreatePayment(ctx context.Context, orderID int64, amountMinor int64, description string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[orderID] = amountMinor
	return fmt.Sprintf("https://example.test/pay/%d", orderID), nil
}

// MarkPaid simulates the user completing the payment.
func (g *NoopGateway) MarkPaid(orderID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[orderID] = true
}

func (g *NoopGateway) VerifyCallback(ctx context.Context, raw []byte) (adapter.CallbackResult, error) {
	var body struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.OrderID == 0 {
		return adapter.CallbackResult{}, domain.ErrCallbackFailed
	}
	return g.QueryStatus(ctx, body.OrderID)
}

func (g *NoopGateway) QueryStatus(ctx context.Context, orderID int64) (adapter.CallbackResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.intents[orderID]; !ok {
		return adapter.CallbackResult{}, domain.ErrNotFound
	}
	g.seq++
	return adapter.CallbackResult{
		OrderID:      orderID,
		GatewayTxnID: fmt.Sprintf("noop-%d", g.seq),
		Paid:         g.paid[orderID],
	}, nil
}
