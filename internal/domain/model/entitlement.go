package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScopeRegistered is the ledger scope of users without a live membership. A
// real order id (stringified snowflake) is used as the scope for paying/VIP
// users; every API operation requires an authenticated user, so no anonymous
// scope exists.
const ScopeRegistered = "2"

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth}

// QuotaWindow is one rolling counter of the tiered quota ledger, stored as a
// JSON hash field under quota:{user}:{scope}.
type QuotaWindow struct {
	ExpireDate int64 `json:"expire_date"` // epoch seconds of the window boundary
	Value      int64 `json:"value"`       // remaining count, clamped at zero
}

func (w QuotaWindow) Expired(now time.Time) bool {
	return now.Unix() > w.ExpireDate
}

// Package is one purchased block of discrete uses, FIFO-consumed.
type Package struct {
	UserID    string
	ProductID string
	OrderID   int64
	Count     int64 // remaining uses, >= 0
	ExpireAt  int64 // epoch seconds
}

func (p Package) Expired(now time.Time) bool {
	return p.ExpireAt < now.Unix()
}

// CreditPackage is one purchased slice of the cross-tier credit pool.
// TotalPrice is exact decimal; it may dip slightly negative after the final
// consumption rather than truncate.
type CreditPackage struct {
	UserID     string
	TierID     string
	OrderID    int64
	TotalPrice decimal.Decimal
	ExpireAt   int64 // epoch seconds
}

func (p CreditPackage) Expired(now time.Time) bool {
	return p.ExpireAt < now.Unix()
}

// PackageBalance is the aggregate mirror of the counted-package ledger for one
// (user, product). Rest and Total are tracked independently of the members.
type PackageBalance struct {
	ProductID string `json:"product_id"`
	Rest      int64  `json:"rest"`
	Total     int64  `json:"total"`
}

// CreditBalance is the per-tier aggregate view of the credit pool.
type CreditBalance struct {
	TierID string          `json:"tier_id"`
	Rest   decimal.Decimal `json:"rest"`
	Total  decimal.Decimal `json:"total"`
}

// EntitlementView is the aggregate read model returned by the entitlements API.
type EntitlementView struct {
	UserID      string                      `json:"user_id"`
	Scope       string                      `json:"scope"`
	Quotas      map[string]map[Period]int64 `json:"quotas"` // target -> period -> remaining
	Packages    []PackageBalance            `json:"packages"`
	Credits     []CreditBalance             `json:"credits"`
	CreditTotal decimal.Decimal             `json:"credit_total"`
}
