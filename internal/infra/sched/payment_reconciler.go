package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-entitlement-service/internal/domain/ports/repository"
	"ai-entitlement-service/internal/infra/metrics"
	"ai-entitlement-service/internal/usecase"
)

// PaymentReconciler periodically scans for pending orders past the payment
// window and settles each one: a gateway poll decides between a lost-callback
// confirmation and expiry. This covers dropped notifications and crashes
// mid-confirm.
type PaymentReconciler struct {
	uc         usecase.SettlementUseCase
	orders     repository.OrderRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending order must be to resolve
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.SettlementUseCase, orders repository.OrderRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, orders: orders, interval: interval, staleAfter: staleAfter, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.orders.ListStalePending(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale pending failed")
		return
	}
	for _, o := range stale {
		if err := w.uc.ResolveStale(ctx, o); err != nil {
			w.log.Error().Err(err).Int64("order_id", o.ID).Msg("stale order resolution failed")
			continue
		}
		metrics.IncOrdersReconciled(string(o.Status))
		w.log.Info().Int64("order_id", o.ID).Str("status", string(o.Status)).Msg("stale order resolved")
	}
}
