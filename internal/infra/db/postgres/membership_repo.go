package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
)

var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct{ pool *pgxpool.Pool }

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

func (r *membershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `
INSERT INTO memberships (id, user_id, product_id, order_id, start_at, expire_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	if _, err := execSQL(ctx, r.pool, tx, q, m.ID, m.UserID, m.ProductID, m.OrderID, m.StartAt, m.ExpireAt, m.CreatedAt); err != nil {
		return domain.ErrStorage
	}
	return nil
}

func (r *membershipRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.Membership, error) {
	const q = `
SELECT id, user_id, product_id, order_id, start_at, expire_at, created_at
  FROM memberships
 WHERE user_id=$1 AND start_at <= $2 AND expire_at > $2
 ORDER BY expire_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, now)
	if err != nil {
		return nil, err
	}
	m := &model.Membership{}
	if err := row.Scan(&m.ID, &m.UserID, &m.ProductID, &m.OrderID, &m.StartAt, &m.ExpireAt, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

var _ repository.AffiliateRepository = (*affiliateRepo)(nil)

type affiliateRepo struct{ pool *pgxpool.Pool }

func NewAffiliateRepo(pool *pgxpool.Pool) *affiliateRepo {
	return &affiliateRepo{pool: pool}
}

func (r *affiliateRepo) AddCommission(ctx context.Context, tx repository.Tx, c *model.AffiliateCommission) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `
INSERT INTO affiliate_commissions (id, referrer_id, order_id, amount, tier_level, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	if _, err := execSQL(ctx, r.pool, tx, q, c.ID, c.ReferrerID, c.OrderID, c.Amount.String(), c.TierLevel, c.CreatedAt); err != nil {
		return domain.ErrStorage
	}
	return nil
}

func (r *affiliateRepo) UpgradeTier(ctx context.Context, tx repository.Tx, referrerID string, level int) error {
	const q = `
UPDATE affiliates SET tier_level = GREATEST(tier_level, $2), updated_at=NOW()
 WHERE user_id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, referrerID, level); err != nil {
		return domain.ErrStorage
	}
	return nil
}

func (r *affiliateRepo) ReferrerOf(ctx context.Context, tx repository.Tx, userID string) (string, error) {
	const q = `SELECT referrer_id FROM affiliates WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return "", err
	}
	var ref string
	if err := row.Scan(&ref); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", domain.ErrReadDatabaseRow
	}
	return ref, nil
}
