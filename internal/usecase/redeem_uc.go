package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/adapter"
	"ai-entitlement-service/internal/domain/ports/repository"
)

// Compile-time check
var _ RedeemUseCase = (*redeemUC)(nil)

type RedeemUseCase interface {
	// Redeem converts a single-use activation code into a settled zero-gateway
	// order for the code's target product. Exactly one caller can win a code.
	Redeem(ctx context.Context, userID, code string) (*model.Order, error)
	// GenerateCodes mints n codes for a product. Admin surface.
	GenerateCodes(ctx context.Context, productID string, n int, expire *time.Time) ([]string, error)
}

type redeemUC struct {
	tm         repository.TransactionManager
	codes      repository.ActivationCodeRepository
	orders     repository.OrderRepository
	payments   repository.PaymentRepository
	settlement SettlementUseCase
	ids        adapter.IDGen
	catalog    *config.Catalog
	log        *zerolog.Logger
}

func NewRedeemUseCase(
	tm repository.TransactionManager,
	codes repository.ActivationCodeRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	settlement SettlementUseCase,
	ids adapter.IDGen,
	catalog *config.Catalog,
	log *zerolog.Logger,
) *redeemUC {
	l := log.With().Str("uc", "redeem").Logger()
	return &redeemUC{
		tm:         tm,
		codes:      codes,
		orders:     orders,
		payments:   payments,
		settlement: settlement,
		ids:        ids,
		catalog:    catalog,
		log:        &l,
	}
}

// Redeem creates the already-paid order and burns the code in one relational
// transaction. The conditional unused->consumed flip is the single-use gate:
// of two concurrent redemptions one sees zero affected rows and loses.
// Crediting runs after commit, like any other paid order.
func (u *redeemUC) Redeem(ctx context.Context, userID, code string) (*model.Order, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(code) == "" {
		return nil, domain.ErrParamMissing
	}
	code = strings.ToUpper(strings.TrimSpace(code))

	var order *model.Order
	now := time.Now()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ac, err := u.codes.FindByCode(ctx, tx, code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrCodeInvalid
			}
			return err
		}
		if ac.Status == model.CodeStatusConsumed {
			return domain.ErrCodeConsumed
		}
		if ac.Expired(now) {
			return domain.ErrCodeExpired
		}
		product, ok := u.catalog.Product(ac.TargetProductID)
		if !ok {
			return domain.ErrPlanNotConfigured
		}

		won, err := u.codes.ConsumeIfUnused(ctx, tx, code, userID)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrCodeConsumed
		}

		order = &model.Order{
			ID:                u.ids.NextID(),
			UserID:            userID,
			ProductCategoryID: product.Category,
			TotalAmount:       decimal.Zero,
			Status:            model.OrderStatusPaid,
			CreditStatus:      model.CreditStatusNone,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		items := []model.OrderItem{{
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  1,
			UnitPrice: decimal.Zero,
		}}
		if err := u.orders.CreateWithItems(ctx, tx, order, items); err != nil {
			return err
		}
		paidAt := now
		return u.payments.Save(ctx, tx, &model.Payment{
			ID:           uuid.NewString(),
			OrderID:      order.ID,
			Method:       "code",
			Status:       model.PaymentStatusPaid,
			GatewayTxnID: code,
			CreatedAt:    now,
			UpdatedAt:    now,
			PaidAt:       &paidAt,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := u.settlement.Credit(ctx, order); err != nil {
		u.log.Error().Err(err).Int64("order_id", order.ID).Str("code", code).Msg("redeemed order crediting failed; queued for reconciliation")
		return order, domain.ErrCreditFailed
	}
	return order, nil
}

func (u *redeemUC) GenerateCodes(ctx context.Context, productID string, n int, expire *time.Time) ([]string, error) {
	if n <= 0 || n > 1000 {
		return nil, domain.ErrInvalidArgument
	}
	if _, ok := u.catalog.Product(productID); !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]string, 0, n)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for i := 0; i < n; i++ {
			code, err := generateActivationCode()
			if err != nil {
				return err
			}
			ac := &model.ActivationCode{
				ID:              uuid.NewString(),
				Code:            code,
				TargetProductID: productID,
				Status:          model.CodeStatusUnused,
				CreatedAt:       time.Now(),
				ExpiredDate:     expire,
			}
			if err := u.codes.Save(ctx, tx, ac); err != nil {
				return err
			}
			out = append(out, code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
