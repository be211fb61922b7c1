package adapter

import "context"

// BillingService is the external microservice owning long-lived VIP hashrate
// balances. Both calls are idempotent per idempotency key, so the credit
// reconciler may replay them safely.
type BillingService interface {
	// GrantBalance adds hashrate to the user's balance.
	GrantBalance(ctx context.Context, idemKey, userID string, amount int64) error
	// RenewBalance extends the validity of an existing VIP balance.
	RenewBalance(ctx context.Context, idemKey, userID string, days int) error
}

// Fulfillment marks bundled products (delivered media, voice cloning) ready
// for download/consumption downstream. Idempotent per key.
type Fulfillment interface {
	MarkReady(ctx context.Context, idemKey string, orderID int64, productID string) error
}

// IDGen produces globally unique, roughly time-ordered 64-bit order ids.
type IDGen interface {
	NextID() int64
}
