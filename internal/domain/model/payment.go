package model

import "time"

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"   // instrument issued; awaiting confirmation
	PaymentStatusPaid     PaymentStatus = "paid"     // verified at gateway
	PaymentStatusRefunded PaymentStatus = "refunded" // refunded after settlement
	PaymentStatusFailed   PaymentStatus = "failed"   // gateway rejected or verification failed
	PaymentStatusExpired  PaymentStatus = "expired"  // order expired before payment
)

// Payment is the 1:1 companion row of an Order. It is created together with
// the order and updated exactly once, on the confirmed callback/poll.
type Payment struct {
	ID             string // UUID
	OrderID        int64
	Method         string // gateway name, e.g. "wxpay", "alipay", "code"
	Status         PaymentStatus
	GatewayPayload string // pay URL / prepay token returned by the gateway
	GatewayTxnID   string // gateway transaction id, set on confirmation
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PaidAt         *time.Time
}
