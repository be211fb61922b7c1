package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Membership is the validity row written when a membership-category order is
// credited. The billing service owns the long-lived hashrate balance; this row
// only records the local validity window and rolls back with the saga savepoint.
type Membership struct {
	ID        string // UUID
	UserID    string
	ProductID string
	OrderID   int64
	StartAt   time.Time
	ExpireAt  time.Time
	CreatedAt time.Time
}

func (m *Membership) Active(now time.Time) bool {
	return !now.Before(m.StartAt) && now.Before(m.ExpireAt)
}

// AffiliateCommission records the payout triggered by a distribution-category
// order on the referring user.
type AffiliateCommission struct {
	ID         string // UUID
	ReferrerID string
	OrderID    int64
	Amount     decimal.Decimal
	TierLevel  int
	CreatedAt  time.Time
}
