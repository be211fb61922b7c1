package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.ActivationCodeRepository = (*activationCodeRepo)(nil)

type activationCodeRepo struct {
	pool *pgxpool.Pool
}

func NewActivationCodeRepo(pool *pgxpool.Pool) repository.ActivationCodeRepository {
	return &activationCodeRepo{pool: pool}
}

func (r *activationCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.ActivationCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	const q = `
INSERT INTO activation_codes (id, code, target_product_id, status, consumed_by, consumed_at, created_at, expired_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		code.ID, code.Code, code.TargetProductID, code.Status, code.ConsumedBy, code.ConsumedAt, code.CreatedAt, code.ExpiredDate)
	if err != nil {
		return domain.ErrStorage
	}
	return nil
}

func (r *activationCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationCode, error) {
	q := `
SELECT id, code, target_product_id, status, consumed_by, consumed_at, created_at, expired_date
  FROM activation_codes
 WHERE code = $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}

	var ac model.ActivationCode
	err = row.Scan(&ac.ID, &ac.Code, &ac.TargetProductID, &ac.Status, &ac.ConsumedBy, &ac.ConsumedAt, &ac.CreatedAt, &ac.ExpiredDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &ac, nil
}

// ConsumeIfUnused flips the code exactly once; a concurrent redemption sees
// zero affected rows and must roll back its transaction.
func (r *activationCodeRepo) ConsumeIfUnused(ctx context.Context, tx repository.Tx, code string, userID string) (bool, error) {
	const q = `
UPDATE activation_codes
   SET status='consumed', consumed_by=$2, consumed_at=NOW()
 WHERE code=$1 AND status='unused';`
	cmd, err := execSQL(ctx, r.pool, tx, q, code, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrStorage
	}
	return cmd.RowsAffected() == 1, nil
}
