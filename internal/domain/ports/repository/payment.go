package repository

import (
	"context"
	"time"

	"ai-entitlement-service/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByOrderID(ctx context.Context, tx Tx, orderID int64) (*model.Payment, error)
	SetPayload(ctx context.Context, tx Tx, id string, payload string) error
	// MarkPaidIfUnpaid flips unpaid -> paid exactly once; reports whether the
	// row changed so a replayed callback cannot double-confirm.
	MarkPaidIfUnpaid(ctx context.Context, tx Tx, id string, gatewayTxnID string, paidAt time.Time) (bool, error)
	// MarkExpired flips unpaid -> expired alongside the order transition.
	MarkExpired(ctx context.Context, tx Tx, id string) error
}
