package repository

import (
	"context"
	"time"

	"ai-entitlement-service/internal/domain/model"
)

// OrderRepository persists orders and their immutable items. All status
// transitions go through conditional updates so a lost race surfaces as zero
// affected rows instead of a silent overwrite.
type OrderRepository interface {
	// CreateWithItems inserts the order and its items; must run inside a tx.
	CreateWithItems(ctx context.Context, tx Tx, o *model.Order, items []model.OrderItem) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Order, error)
	ListItems(ctx context.Context, tx Tx, orderID int64) ([]model.OrderItem, error)
	// MarkPaid transitions pending -> paid; reports whether the row changed.
	MarkPaid(ctx context.Context, tx Tx, id int64) (bool, error)
	// MarkExpired transitions pending -> expired; reports whether the row changed.
	MarkExpired(ctx context.Context, tx Tx, id int64) (bool, error)
	SetCreditStatus(ctx context.Context, tx Tx, id int64, status model.CreditStatus) error
	// ListStalePending returns unpaid orders created before the cutoff.
	ListStalePending(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
	// ListCreditFailed returns paid-but-uncredited orders for the reconciler.
	ListCreditFailed(ctx context.Context, tx Tx, limit int) ([]*model.Order, error)
	// CountPaidByUserAndProduct backs the once-only purchase check.
	CountPaidByUserAndProduct(ctx context.Context, tx Tx, userID, productID string) (int, error)
}
