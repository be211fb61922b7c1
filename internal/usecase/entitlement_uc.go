package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
	"ai-entitlement-service/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

type EntitlementUseCase interface {
	// Read aggregates quotas, packages and credit balances for display.
	Read(ctx context.Context, userID string) (*model.EntitlementView, error)
	// Consume draws `amount` uses of a target, trying the tiered quota first,
	// then the target's counted packages, then the credit pool.
	Consume(ctx context.Context, userID, target string, amount int64) error
	// Gift adds the configured bonus for an action to the user's quota windows.
	Gift(ctx context.Context, userID, action string) error
}

type entitlementUC struct {
	quotas      repository.QuotaLedger
	packages    repository.PackageLedger
	credits     repository.CreditLedger
	memberships repository.MembershipRepository
	catalog     *config.Catalog
	log         *zerolog.Logger
}

func NewEntitlementUseCase(
	quotas repository.QuotaLedger,
	packages repository.PackageLedger,
	credits repository.CreditLedger,
	memberships repository.MembershipRepository,
	catalog *config.Catalog,
	log *zerolog.Logger,
) *entitlementUC {
	l := log.With().Str("uc", "entitlement").Logger()
	return &entitlementUC{
		quotas:      quotas,
		packages:    packages,
		credits:     credits,
		memberships: memberships,
		catalog:     catalog,
		log:         &l,
	}
}

// scopeFor resolves the quota scope and its backing quota product. A user
// with an active membership consumes under the per-order scope opened when
// that membership was credited; everyone else consumes the registered scope,
// whose limits are keyed by the scope id itself.
func (u *entitlementUC) scopeFor(ctx context.Context, userID string) (scope, quotaProduct string, member *model.Membership) {
	m, err := u.memberships.FindActiveByUser(ctx, nil, userID, time.Now())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Err(err).Str("user_id", userID).Msg("membership lookup failed; falling back to registered scope")
		}
		return model.ScopeRegistered, model.ScopeRegistered, nil
	}
	return strconv.FormatInt(m.OrderID, 10), m.ProductID, m
}

func (u *entitlementUC) Read(ctx context.Context, userID string) (*model.EntitlementView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrParamMissing
	}
	scope, _, _ := u.scopeFor(ctx, userID)

	quotas, err := u.quotas.Read(ctx, userID, scope)
	if err != nil {
		return nil, err
	}

	var pkgs []model.PackageBalance
	seen := make(map[string]bool)
	for _, t := range u.catalog.Targets {
		if t.ProductID == "" || seen[t.ProductID] {
			continue
		}
		seen[t.ProductID] = true
		b, err := u.packages.Read(ctx, userID, t.ProductID)
		if err != nil {
			return nil, err
		}
		if b.Total > 0 {
			pkgs = append(pkgs, b)
		}
	}

	credits, grand, err := u.credits.Read(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.EntitlementView{
		UserID:      userID,
		Scope:       scope,
		Quotas:      quotas,
		Packages:    pkgs,
		Credits:     credits,
		CreditTotal: grand,
	}, nil
}

func (u *entitlementUC) Consume(ctx context.Context, userID, target string, amount int64) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(target) == "" {
		return domain.ErrParamMissing
	}
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	tc, ok := u.catalog.Targets[target]
	if !ok {
		return domain.ErrPlanNotConfigured
	}

	start := time.Now()
	defer func() { metrics.ObserveLedgerOp("consume", float64(time.Since(start).Milliseconds())) }()

	scope, quotaProduct, _ := u.scopeFor(ctx, userID)

	_, err := u.quotas.Consume(ctx, userID, scope, quotaProduct, target, amount)
	if err == nil {
		metrics.IncLedgerConsume("quota", target)
		return nil
	}
	if !errors.Is(err, domain.ErrQuotaExhausted) && !errors.Is(err, domain.ErrPlanNotConfigured) {
		return err
	}

	if tc.ProductID != "" {
		err = u.packages.Consume(ctx, userID, tc.ProductID, amount)
		if err == nil {
			metrics.IncLedgerConsume("package", target)
			return nil
		}
		if !errors.Is(err, domain.ErrQuotaExhausted) {
			return err
		}
	}

	if tc.Cost.IsPositive() {
		cost := tc.Cost.Mul(decimal.NewFromInt(amount))
		err = u.credits.Consume(ctx, userID, cost)
		if err == nil {
			metrics.IncLedgerConsume("credit", target)
			return nil
		}
		if !errors.Is(err, domain.ErrQuotaExhausted) {
			return err
		}
	}

	metrics.IncLedgerExhausted(target)
	u.log.Debug().Str("user_id", userID).Str("target", target).Int64("amount", amount).Msg("all entitlement sources exhausted")
	return domain.ErrQuotaExhausted
}

func (u *entitlementUC) Gift(ctx context.Context, userID, action string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(action) == "" {
		return domain.ErrParamMissing
	}
	if _, ok := u.catalog.Gifts[action]; !ok {
		return domain.ErrPlanNotConfigured
	}
	scope, quotaProduct, member := u.scopeFor(ctx, userID)
	if strings.HasPrefix(action, "vip_") && member == nil {
		return domain.ErrVipExpired
	}
	return u.quotas.Gift(ctx, userID, scope, quotaProduct, action)
}
