package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/adapter"
	"ai-entitlement-service/internal/domain/ports/repository"
	"ai-entitlement-service/internal/infra/metrics"
)

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

type SettlementUseCase interface {
	// CreateOrder runs the admission checks, persists order+items+payment in
	// one transaction, then requests a payment instrument from the gateway.
	CreateOrder(ctx context.Context, req CheckoutRequest) (*model.Order, *model.Payment, error)
	// HandleCallback verifies a raw gateway notification, confirms the
	// payment and runs crediting. Replays are answered from the stored state.
	HandleCallback(ctx context.Context, raw []byte) (*model.Order, error)
	// ConfirmPayment applies a verified gateway result: payment and order
	// flip to paid in one transaction, then crediting runs.
	ConfirmPayment(ctx context.Context, res adapter.CallbackResult) (*model.Order, error)
	// Credit dispatches the order's items to the ledgers and downstream
	// services. Idempotent per order; safe for the reconciler to replay.
	Credit(ctx context.Context, order *model.Order) error
	// Repay re-reads the payment instrument of a pending order, expiring it
	// first when the payment window has lapsed.
	Repay(ctx context.Context, userID string, orderID int64) (string, error)
	// ResolveStale settles one order past the payment window: confirmed at
	// the gateway means a lost callback, anything else expires it.
	ResolveStale(ctx context.Context, order *model.Order) error
}

type settlementUC struct {
	tm          repository.TransactionManager
	orders      repository.OrderRepository
	payments    repository.PaymentRepository
	memberships repository.MembershipRepository
	affiliates  repository.AffiliateRepository
	quotas      repository.QuotaLedger
	packages    repository.PackageLedger
	credits     repository.CreditLedger
	gateway     adapter.PaymentGateway
	billing     adapter.BillingService
	fulfill     adapter.Fulfillment
	ids         adapter.IDGen
	catalog     *config.Catalog
	window      time.Duration
	log         *zerolog.Logger
}

func NewSettlementUseCase(
	tm repository.TransactionManager,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	memberships repository.MembershipRepository,
	affiliates repository.AffiliateRepository,
	quotas repository.QuotaLedger,
	packages repository.PackageLedger,
	credits repository.CreditLedger,
	gateway adapter.PaymentGateway,
	billing adapter.BillingService,
	fulfill adapter.Fulfillment,
	ids adapter.IDGen,
	catalog *config.Catalog,
	window time.Duration,
	log *zerolog.Logger,
) *settlementUC {
	l := log.With().Str("uc", "settlement").Logger()
	return &settlementUC{
		tm:          tm,
		orders:      orders,
		payments:    payments,
		memberships: memberships,
		affiliates:  affiliates,
		quotas:      quotas,
		packages:    packages,
		credits:     credits,
		gateway:     gateway,
		billing:     billing,
		fulfill:     fulfill,
		ids:         ids,
		catalog:     catalog,
		window:      window,
		log:         &l,
	}
}

// idemKey derives the idempotency key for one downstream action of an order.
// It is a ULID seeded from the order's creation time and a hash of
// (order id, action), so every retry of the same action sends the same key.
func idemKey(order *model.Order, action string) string {
	h := fnv.New128a()
	fmt.Fprintf(h, "%d:%s", order.ID, action)
	seed := h.Sum(nil)
	id, err := ulid.New(ulid.Timestamp(order.CreatedAt.UTC()), bytes.NewReader(seed))
	if err != nil {
		// 16 hash bytes always satisfy the 10-byte entropy read.
		return fmt.Sprintf("%d-%s", order.ID, action)
	}
	return id.String()
}

func (u *settlementUC) CreateOrder(ctx context.Context, req CheckoutRequest) (*model.Order, *model.Payment, error) {
	product, ok := u.catalog.Product(req.ProductID)
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if err := runChecks(ctx, req, product,
		checkParams,
		checkAmount,
		checkOncePerUser(u.orders),
	); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	order := &model.Order{
		ID:                u.ids.NextID(),
		UserID:            req.UserID,
		ProductCategoryID: product.Category,
		TotalAmount:       product.Price.Mul(decimal.NewFromInt(req.Quantity)),
		Status:            model.OrderStatusPending,
		CreditStatus:      model.CreditStatusNone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	items := []model.OrderItem{{
		OrderID:   order.ID,
		ProductID: product.ID,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
	}}
	payment := &model.Payment{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Method:    u.gateway.Name(),
		Status:    model.PaymentStatusUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.orders.CreateWithItems(ctx, tx, order, items); err != nil {
			return err
		}
		return u.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, nil, err
	}

	// The instrument request runs outside the transaction; a gateway failure
	// leaves a pending order that Repay can retry and the reconciler expires.
	payload, err := u.gateway.CreatePayment(ctx, order.ID, amountMinor(order.TotalAmount), product.Name)
	if err != nil {
		u.log.Error().Err(err).Int64("order_id", order.ID).Msg("payment instrument request failed")
		return order, payment, err
	}
	if err := u.payments.SetPayload(ctx, nil, payment.ID, payload); err != nil {
		return order, payment, err
	}
	payment.GatewayPayload = payload
	metrics.IncOrdersCreated(string(product.Category))
	return order, payment, nil
}

func (u *settlementUC) HandleCallback(ctx context.Context, raw []byte) (*model.Order, error) {
	res, err := u.gateway.VerifyCallback(ctx, raw)
	if err != nil {
		return nil, err
	}
	order, err := u.ConfirmPayment(ctx, res)
	if err == nil {
		metrics.IncOrdersConfirmed("callback")
	}
	return order, err
}

func (u *settlementUC) ConfirmPayment(ctx context.Context, res adapter.CallbackResult) (*model.Order, error) {
	if !res.Paid {
		return nil, domain.ErrCallbackFailed
	}

	var order *model.Order
	now := time.Now()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByID(ctx, tx, res.OrderID)
		if err != nil {
			return err
		}
		p, err := u.payments.FindByOrderID(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		flipped, err := u.payments.MarkPaidIfUnpaid(ctx, tx, p.ID, res.GatewayTxnID, now)
		if err != nil {
			return err
		}
		if !flipped {
			// Replayed callback: already settled, answer idempotently.
			order = o
			return nil
		}
		moved, err := u.orders.MarkPaid(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrCallbackFailed
		}
		o.Status = model.OrderStatusPaid
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.Status == model.OrderStatusPaid && order.CreditStatus == model.CreditStatusNone {
		if err := u.Credit(ctx, order); err != nil {
			// Paid but uncredited is a legal intermediate state; the credit
			// reconciler replays with the same idempotency keys.
			u.log.Error().Err(err).Int64("order_id", order.ID).Msg("crediting failed; order queued for reconciliation")
			return order, domain.ErrCreditFailed
		}
	}
	return order, nil
}

func (u *settlementUC) Credit(ctx context.Context, order *model.Order) error {
	if order.Status != model.OrderStatusPaid {
		return domain.ErrInvalidArgument
	}
	if order.CreditStatus == model.CreditStatusDone {
		return nil
	}

	items, err := u.orders.ListItems(ctx, nil, order.ID)
	if err != nil {
		return err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, item := range items {
			product, ok := u.catalog.Product(item.ProductID)
			if !ok {
				return domain.ErrPlanNotConfigured
			}
			if err := u.creditItem(ctx, tx, order, item, product); err != nil {
				return fmt.Errorf("credit item %s: %w", item.ProductID, err)
			}
		}
		return u.orders.SetCreditStatus(ctx, tx, order.ID, model.CreditStatusDone)
	})
	if err != nil {
		if serr := u.orders.SetCreditStatus(ctx, nil, order.ID, model.CreditStatusFailed); serr != nil {
			u.log.Error().Err(serr).Int64("order_id", order.ID).Msg("failed to flag order for credit reconciliation")
		}
		order.CreditStatus = model.CreditStatusFailed
		metrics.IncOrdersCreditFailed()
		return err
	}
	order.CreditStatus = model.CreditStatusDone
	metrics.IncOrdersCredited("inline")
	return nil
}

// creditItem dispatches one order item by product category. Relational writes
// ride the surrounding transaction; ledger and downstream calls are
// idempotent per derived key so a replay after rollback cannot double-grant.
func (u *settlementUC) creditItem(ctx context.Context, tx repository.Tx, order *model.Order, item model.OrderItem, product config.Product) error {
	switch product.Category {
	case model.CategoryMembership:
		return u.creditMembership(ctx, tx, order, item, product)
	case model.CategoryFlowPackage:
		return u.creditFlowPackage(ctx, order, item, product)
	case model.CategoryDistribution:
		return u.creditDistribution(ctx, tx, order, item, product)
	case model.CategoryBundle:
		return u.fulfill.MarkReady(ctx, idemKey(order, "fulfill:"+item.ProductID), order.ID, item.ProductID)
	default:
		return domain.ErrPlanNotConfigured
	}
}

func (u *settlementUC) creditMembership(ctx context.Context, tx repository.Tx, order *model.Order, item model.OrderItem, product config.Product) error {
	now := time.Now()
	duration := time.Duration(product.DurationDays*int(item.Quantity)) * 24 * time.Hour

	prevScope := model.ScopeRegistered
	current, err := u.memberships.FindActiveByUser(ctx, tx, order.UserID, now)
	switch {
	case err == nil:
		// Renewal: extend hashrate validity, membership window starts where
		// the current one ends.
		prevScope = strconv.FormatInt(current.OrderID, 10)
		if err := u.billing.RenewBalance(ctx, idemKey(order, "renew"), order.UserID, product.DurationDays*int(item.Quantity)); err != nil {
			return err
		}
		m := &model.Membership{
			ID:        uuid.NewString(),
			UserID:    order.UserID,
			ProductID: product.ID,
			OrderID:   order.ID,
			StartAt:   current.ExpireAt,
			ExpireAt:  current.ExpireAt.Add(duration),
			CreatedAt: now,
		}
		if err := u.memberships.Save(ctx, tx, m); err != nil {
			return err
		}
	case errors.Is(err, domain.ErrNotFound):
		if product.Hashrate > 0 {
			if err := u.billing.GrantBalance(ctx, idemKey(order, "grant"), order.UserID, product.Hashrate*item.Quantity); err != nil {
				return err
			}
		}
		m := &model.Membership{
			ID:        uuid.NewString(),
			UserID:    order.UserID,
			ProductID: product.ID,
			OrderID:   order.ID,
			StartAt:   now,
			ExpireAt:  now.Add(duration),
			CreatedAt: now,
		}
		if err := u.memberships.Save(ctx, tx, m); err != nil {
			return err
		}
	default:
		return err
	}

	// Open the per-order quota scope, inheriting unexpired remainders.
	metrics.IncLedgerGrant("quota")
	scope := strconv.FormatInt(order.ID, 10)
	return u.quotas.Initialize(ctx, order.UserID, scope, prevScope, product.ID)
}

func (u *settlementUC) creditFlowPackage(ctx context.Context, order *model.Order, item model.OrderItem, product config.Product) error {
	if product.Hashrate > 0 {
		if err := u.billing.GrantBalance(ctx, idemKey(order, "grant:"+item.ProductID), order.UserID, product.Hashrate*item.Quantity); err != nil {
			return err
		}
	}
	expireAt := packageExpiry(time.Now(), product.DurationDays)
	if product.Tier {
		metrics.IncLedgerGrant("credit")
		return u.credits.Grant(ctx, model.CreditPackage{
			UserID:     order.UserID,
			TierID:     product.ID,
			OrderID:    order.ID,
			TotalPrice: product.CreditAmount.Mul(decimal.NewFromInt(item.Quantity)),
			ExpireAt:   expireAt,
		})
	}
	metrics.IncLedgerGrant("package")
	return u.packages.Grant(ctx, model.Package{
		UserID:    order.UserID,
		ProductID: product.ID,
		OrderID:   order.ID,
		Count:     product.Count * item.Quantity,
		ExpireAt:  expireAt,
	})
}

func (u *settlementUC) creditDistribution(ctx context.Context, tx repository.Tx, order *model.Order, item model.OrderItem, product config.Product) error {
	referrer, err := u.affiliates.ReferrerOf(ctx, tx, order.UserID)
	if err != nil {
		return err
	}
	if referrer == "" {
		return nil // nobody to pay out
	}
	level := int(item.Quantity)
	if err := u.affiliates.AddCommission(ctx, tx, &model.AffiliateCommission{
		ID:         uuid.NewString(),
		ReferrerID: referrer,
		OrderID:    order.ID,
		Amount:     order.TotalAmount,
		TierLevel:  level,
		CreatedAt:  time.Now(),
	}); err != nil {
		return err
	}
	return u.affiliates.UpgradeTier(ctx, tx, referrer, level)
}

func (u *settlementUC) Repay(ctx context.Context, userID string, orderID int64) (string, error) {
	order, err := u.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		return "", err
	}
	if order.UserID != userID {
		return "", domain.ErrNotFound
	}
	switch order.Status {
	case model.OrderStatusPending:
	case model.OrderStatusExpired, model.OrderStatusCanceled:
		return "", domain.ErrOrderExpired
	default:
		return "", domain.ErrAlreadyExists
	}

	if order.Stale(time.Now(), u.window) {
		if err := u.expire(ctx, order); err != nil {
			return "", err
		}
		return "", domain.ErrOrderExpired
	}

	payment, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return "", err
	}
	if payment.GatewayPayload != "" {
		return payment.GatewayPayload, nil
	}
	payload, err := u.gateway.CreatePayment(ctx, order.ID, amountMinor(order.TotalAmount), "")
	if err != nil {
		return "", err
	}
	if err := u.payments.SetPayload(ctx, nil, payment.ID, payload); err != nil {
		return "", err
	}
	return payload, nil
}

func (u *settlementUC) ResolveStale(ctx context.Context, order *model.Order) error {
	res, err := u.gateway.QueryStatus(ctx, order.ID)
	if err == nil && res.Paid {
		// Lost callback: settle as if the notification had arrived.
		if _, err := u.ConfirmPayment(ctx, res); err != nil {
			return err
		}
		metrics.IncOrdersConfirmed("poll")
		return nil
	}
	if err != nil {
		u.log.Warn().Err(err).Int64("order_id", order.ID).Msg("status poll failed; expiring stale order")
	}
	return u.expire(ctx, order)
}

// expire transitions a pending order and its payment together. The
// conditional updates make a concurrent confirmation win cleanly.
func (u *settlementUC) expire(ctx context.Context, order *model.Order) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		moved, err := u.orders.MarkExpired(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !moved {
			return nil // paid or already expired meanwhile
		}
		order.Status = model.OrderStatusExpired
		metrics.IncOrdersExpired()
		p, err := u.payments.FindByOrderID(ctx, tx, order.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		return u.payments.MarkExpired(ctx, tx, p.ID)
	})
}

// packageExpiry returns the epoch-second expiry for a granted package; zero
// duration means the grant never expires on its own.
func packageExpiry(now time.Time, durationDays int) int64 {
	if durationDays <= 0 {
		return now.AddDate(100, 0, 0).Unix()
	}
	return now.Add(time.Duration(durationDays) * 24 * time.Hour).Unix()
}

// amountMinor converts an exact decimal amount to gateway minor units (cents).
func amountMinor(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}
