package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, product_category_id, total_amount::text, status, credit_status, created_at, updated_at, deleted_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var amount string
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductCategoryID, &amount, &o.Status, &o.CreditStatus, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	total, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	o.TotalAmount = total
	return o, nil
}

// CreateWithItems inserts the order row and every item. Callers run it inside
// a transaction so a partial insert can never persist.
func (r *orderRepo) CreateWithItems(ctx context.Context, tx repository.Tx, o *model.Order, items []model.OrderItem) error {
	const qo = `
INSERT INTO orders (id, user_id, product_category_id, total_amount, status, credit_status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	if _, err := execSQL(ctx, r.pool, tx, qo,
		o.ID, o.UserID, o.ProductCategoryID, o.TotalAmount.String(), o.Status, o.CreditStatus, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrStorage
	}

	const qi = `
INSERT INTO order_items (order_id, product_id, quantity, unit_price)
VALUES ($1,$2,$3,$4);`
	for _, it := range items {
		if _, err := execSQL(ctx, r.pool, tx, qi, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice.String()); err != nil {
			return domain.ErrStorage
		}
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1 AND deleted_at IS NULL`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) ListItems(ctx context.Context, tx repository.Tx, orderID int64) ([]model.OrderItem, error) {
	const q = `SELECT order_id, product_id, quantity, unit_price::text FROM order_items WHERE order_id=$1;`
	rows, err := queryRows(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, domain.ErrStorage
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		var price string
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &price); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		it.UnitPrice = p
		out = append(out, it)
	}
	return out, nil
}

func (r *orderRepo) MarkPaid(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	const q = `UPDATE orders SET status='paid', updated_at=NOW() WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, domain.ErrStorage
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *orderRepo) MarkExpired(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	const q = `UPDATE orders SET status='expired', updated_at=NOW() WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, domain.ErrStorage
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *orderRepo) SetCreditStatus(ctx context.Context, tx repository.Tx, id int64, status model.CreditStatus) error {
	const q = `UPDATE orders SET credit_status=$2, updated_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id, status); err != nil {
		return domain.ErrStorage
	}
	return nil
}

func (r *orderRepo) ListStalePending(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE status='pending' AND deleted_at IS NULL AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *orderRepo) ListCreditFailed(ctx context.Context, tx repository.Tx, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE status='paid' AND credit_status='credit_failed' AND deleted_at IS NULL ORDER BY updated_at ASC LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *orderRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return nil, err
		}
		return nil, domain.ErrStorage
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *orderRepo) CountPaidByUserAndProduct(ctx context.Context, tx repository.Tx, userID, productID string) (int, error) {
	const q = `
SELECT COUNT(*) FROM orders o
  JOIN order_items i ON i.order_id = o.id
 WHERE o.user_id=$1 AND i.product_id=$2 AND o.status='paid' AND o.deleted_at IS NULL;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, productID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
