package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, method, status, gateway_payload, gateway_txn_id, created_at, updated_at, paid_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (id, order_id, method, status, gateway_payload, gateway_txn_id, created_at, updated_at, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OrderID, p.Method, p.Status, p.GatewayPayload, p.GatewayTxnID, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrStorage
	}
	return nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID int64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.GatewayPayload, &p.GatewayTxnID, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) SetPayload(ctx context.Context, tx repository.Tx, id string, payload string) error {
	const q = `UPDATE payments SET gateway_payload=$2, updated_at=NOW() WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id, payload); err != nil {
		return domain.ErrStorage
	}
	return nil
}

// MarkPaidIfUnpaid atomically flips the payment to paid only while it is
// still unpaid, so a replayed callback affects zero rows.
func (r *paymentRepo) MarkPaidIfUnpaid(ctx context.Context, tx repository.Tx, id string, gatewayTxnID string, paidAt time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status='paid', gateway_txn_id=$2, paid_at=$3, updated_at=NOW()
 WHERE id=$1 AND status='unpaid';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, gatewayTxnID, paidAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrStorage
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE payments SET status='expired', updated_at=NOW() WHERE id=$1 AND status='unpaid';`
	if _, err := execSQL(ctx, r.pool, tx, q, id); err != nil {
		return domain.ErrStorage
	}
	return nil
}
