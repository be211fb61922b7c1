package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/domain/model"
)

// QuotaLedger is the tiered day/week/month counter ledger. Every
// read-modify-write is a single atomic step on the store side; callers never
// see a partially-applied decrement.
type QuotaLedger interface {
	// Initialize opens windows for every (target, period) of the product under
	// the given scope, carrying over unexpired remainders from prevScope.
	// prevScope may be empty when there is nothing to inherit.
	Initialize(ctx context.Context, userID, scope, prevScope, productID string) error
	// Consume decrements every period window of one target and returns the
	// post-decrement value per period.
	Consume(ctx context.Context, userID, scope, productID, target string, amount int64) (map[model.Period]int64, error)
	// Gift adds the configured bonus for an action to every period window.
	Gift(ctx context.Context, userID, scope, productID, action string) error
	// Read returns remaining values per target and period for display.
	Read(ctx context.Context, userID, scope string) (map[string]map[model.Period]int64, error)
}

// PackageLedger is the FIFO counted-package ledger with its aggregate mirror.
type PackageLedger interface {
	// Grant appends a purchased package and bumps both aggregates.
	Grant(ctx context.Context, pkg model.Package) error
	// Consume draws `amount` from the oldest live package, evicting expired or
	// drained ones on the way. ErrQuotaExhausted when nothing is left.
	Consume(ctx context.Context, userID, productID string, amount int64) error
	// Read returns the aggregate remaining and original totals.
	Read(ctx context.Context, userID, productID string) (model.PackageBalance, error)
}

// CreditLedger is the decimal cross-tier pool, consumed earliest-expiry-first
// under the grace/boundary rules.
type CreditLedger interface {
	Grant(ctx context.Context, pkg model.CreditPackage) error
	// Consume charges `cost` against the best candidate package across tiers.
	Consume(ctx context.Context, userID string, cost decimal.Decimal) error
	// Read returns per-tier balances plus the grand total.
	Read(ctx context.Context, userID string) ([]model.CreditBalance, decimal.Decimal, error)
}
