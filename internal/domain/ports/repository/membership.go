package repository

import (
	"context"
	"time"

	"ai-entitlement-service/internal/domain/model"
)

type MembershipRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Membership) error
	// FindActiveByUser returns the membership covering `now`, or ErrNotFound.
	FindActiveByUser(ctx context.Context, tx Tx, userID string, now time.Time) (*model.Membership, error)
}

// AffiliateRepository backs the distribution-category credit dispatch.
type AffiliateRepository interface {
	AddCommission(ctx context.Context, tx Tx, c *model.AffiliateCommission) error
	// UpgradeTier bumps the referrer's distribution tier when the payout
	// crosses the next threshold.
	UpgradeTier(ctx context.Context, tx Tx, referrerID string, level int) error
	// ReferrerOf resolves who referred the purchasing user, "" when nobody.
	ReferrerOf(ctx context.Context, tx Tx, userID string) (string, error)
}
