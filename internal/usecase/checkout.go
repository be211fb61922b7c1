package usecase

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/ports/repository"
)

// CheckoutRequest carries the client's view of the purchase. The quoted price
// is compared against the catalog server-side; the client never sets the
// authoritative amount.
type CheckoutRequest struct {
	UserID    string
	ProductID string
	Quantity  int64
	Quoted    decimal.Decimal
}

// CheckoutCheck is one admission rule of the order pipeline. Checks run in
// order and the first failure aborts creation before anything is persisted.
type CheckoutCheck func(ctx context.Context, req CheckoutRequest, product config.Product) error

func runChecks(ctx context.Context, req CheckoutRequest, product config.Product, checks ...CheckoutCheck) error {
	for _, check := range checks {
		if err := check(ctx, req, product); err != nil {
			return err
		}
	}
	return nil
}

func checkParams(ctx context.Context, req CheckoutRequest, _ config.Product) error {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.ProductID) == "" {
		return domain.ErrParamMissing
	}
	if req.Quantity <= 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}

// checkAmount rejects any quote that disagrees with the catalog price. The
// quantity-scaled catalog price is the only amount that reaches the gateway.
func checkAmount(ctx context.Context, req CheckoutRequest, product config.Product) error {
	expected := product.Price.Mul(decimal.NewFromInt(req.Quantity))
	if !req.Quoted.Equal(expected) {
		return domain.ErrAmountMismatch
	}
	return nil
}

// checkOncePerUser rejects a second paid purchase of a once-only product.
func checkOncePerUser(orders repository.OrderRepository) CheckoutCheck {
	return func(ctx context.Context, req CheckoutRequest, product config.Product) error {
		if !product.OnceOnly {
			return nil
		}
		n, err := orders.CountPaidByUserAndProduct(ctx, nil, req.UserID, req.ProductID)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAlreadyPurchased
		}
		return nil
	}
}
