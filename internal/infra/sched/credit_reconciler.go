package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-entitlement-service/internal/domain/ports/repository"
	"ai-entitlement-service/internal/infra/metrics"
	"ai-entitlement-service/internal/usecase"
)

// CreditReconciler retries crediting for paid orders whose dispatch failed.
// Replays reuse the per-order idempotency keys, so a partially applied
// dispatch converges instead of double-granting.
type CreditReconciler struct {
	uc          usecase.SettlementUseCase
	orders      repository.OrderRepository
	interval    time.Duration
	maxAttempts int
	attempts    map[int64]int // order id -> retries this process lifetime
	log         *zerolog.Logger
}

func NewCreditReconciler(uc usecase.SettlementUseCase, orders repository.OrderRepository, interval time.Duration, maxAttempts int, logger *zerolog.Logger) *CreditReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	l := logger.With().Str("component", "CreditReconciler").Logger()
	return &CreditReconciler{
		uc:          uc,
		orders:      orders,
		interval:    interval,
		maxAttempts: maxAttempts,
		attempts:    make(map[int64]int),
		log:         &l,
	}
}

func (w *CreditReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting credit reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping credit reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *CreditReconciler) tick(ctx context.Context) {
	failed, err := w.orders.ListCreditFailed(ctx, nil, 100)
	if err != nil {
		w.log.Error().Err(err).Msg("list credit-failed orders failed")
		return
	}
	for _, o := range failed {
		if w.attempts[o.ID] >= w.maxAttempts {
			// Left for operator intervention; stays visible in the listing.
			continue
		}
		w.attempts[o.ID]++
		if err := w.uc.Credit(ctx, o); err != nil {
			w.log.Error().Err(err).Int64("order_id", o.ID).Int("attempt", w.attempts[o.ID]).Msg("credit retry failed")
			continue
		}
		delete(w.attempts, o.ID)
		metrics.IncOrdersCredited("reconciled")
		w.log.Info().Int64("order_id", o.ID).Msg("credit retry succeeded")
	}
}
