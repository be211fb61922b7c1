package repository

import (
	"context"

	"ai-entitlement-service/internal/domain/model"
)

// ActivationCodeRepository is the port for managing activation codes.
type ActivationCodeRepository interface {
	// Save creates a new activation code.
	Save(ctx context.Context, tx Tx, code *model.ActivationCode) error
	// FindByCode returns the code row regardless of status.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.ActivationCode, error)
	// ConsumeIfUnused atomically flips unused -> consumed for the given user;
	// reports whether the row changed (false means another redemption won).
	ConsumeIfUnused(ctx context.Context, tx Tx, code string, userID string) (bool, error)
}
