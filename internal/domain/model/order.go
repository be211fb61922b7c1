package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"  // created; awaiting payment
	OrderStatusPaid     OrderStatus = "paid"     // payment confirmed by gateway
	OrderStatusCanceled OrderStatus = "canceled" // user/admin cancel before payment
	OrderStatusExpired  OrderStatus = "expired"  // payment window elapsed unpaid
)

type CreditStatus string

const (
	CreditStatusNone   CreditStatus = "none"          // not yet credited
	CreditStatusDone   CreditStatus = "credited"      // every dispatched action succeeded
	CreditStatusFailed CreditStatus = "credit_failed" // at least one action failed; reconciler retries
)

// ProductCategory drives the Credit() dispatch of the settlement saga.
type ProductCategory string

const (
	CategoryMembership   ProductCategory = "membership"   // VIP validity + billing hashrate grant
	CategoryFlowPackage  ProductCategory = "flow_package" // counted packages / credit pool / hashrate
	CategoryDistribution ProductCategory = "distribution" // affiliate commission + tier upgrade
	CategoryBundle       ProductCategory = "bundle"       // delivered media, voice cloning, ...
)

// Order is created once at checkout and mutated only by the settlement saga.
// Rows are never physically deleted; DeletedAt marks soft deletion.
type Order struct {
	ID                int64 // snowflake, roughly time-ordered
	UserID            string
	ProductCategoryID ProductCategory
	TotalAmount       decimal.Decimal
	Status            OrderStatus
	CreditStatus      CreditStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// OrderItem is inserted atomically with its Order and is immutable thereafter.
type OrderItem struct {
	OrderID   int64
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Stale reports whether an unpaid order has outlived the payment window.
func (o *Order) Stale(now time.Time, window time.Duration) bool {
	return o.Status == OrderStatusPending && now.Sub(o.CreatedAt) > window
}
