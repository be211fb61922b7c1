package adapter

import "context"

// CallbackResult is the provider-agnostic outcome of verifying a gateway
// callback or polling a payment's status.
type CallbackResult struct {
	OrderID      int64
	GatewayTxnID string
	Paid         bool
}

// PaymentGateway is the hex port for payment providers. The signing and
// verification protocols live entirely behind this boundary.
type PaymentGateway interface {
	Name() string

	// CreatePayment registers a payment intent and returns the instrument
	// handed to the client (pay URL or prepay token payload).
	CreatePayment(ctx context.Context, orderID int64, amountMinor int64, description string) (payload string, err error)

	// VerifyCallback checks the callback's signature/content and reports
	// whether the referenced order is paid.
	VerifyCallback(ctx context.Context, raw []byte) (CallbackResult, error)

	// QueryStatus polls the provider for the order's payment state; used by
	// the reconciler when callbacks were lost.
	QueryStatus(ctx context.Context, orderID int64) (CallbackResult, error)
}
