package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain/ports/adapter"
	"ai-entitlement-service/internal/infra/adapters/billing"
	"ai-entitlement-service/internal/infra/adapters/gateway"
	pg "ai-entitlement-service/internal/infra/db/postgres"
	"ai-entitlement-service/internal/infra/idgen"
	"ai-entitlement-service/internal/infra/logging"
	"ai-entitlement-service/internal/infra/metrics"
	red "ai-entitlement-service/internal/infra/redis"
	"ai-entitlement-service/internal/infra/sched"
	"ai-entitlement-service/internal/infra/web"
	"ai-entitlement-service/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop gateway)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	catalog, err := config.BuildCatalog(cfg)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories / ledgers ----
	tm := pg.NewTxManager(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	codeRepo := pg.NewActivationCodeRepo(pool)
	membershipRepo := pg.NewMembershipRepo(pool)
	affiliateRepo := pg.NewAffiliateRepo(pool)

	quotaLedger := red.NewQuotaLedger(redisClient, catalog, locker)
	packageLedger := red.NewPackageLedger(redisClient)
	creditLedger := red.NewCreditLedger(redisClient, catalog)

	// ---- Adapters ----
	ids, err := idgen.NewSnowflakeGen(cfg.IDGen.NodeID)
	if err != nil {
		logger.Fatal().Err(err).Msg("idgen")
	}

	var pgw adapter.PaymentGateway
	if cfg.Runtime.Dev || cfg.Gateway.Sandbox {
		pgw = gateway.NewNoopGateway()
		logger.Warn().Msg("payment gateway: noop (sandbox)")
	} else {
		pgw, err = gateway.NewHTTPGateway(&cfg.Gateway)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway")
		}
	}
	billingClient := billing.NewClient(&cfg.Billing)
	fulfillClient := billing.NewFulfillmentClient(&cfg.Billing)

	// ---- Use cases ----
	entitlementUC := usecase.NewEntitlementUseCase(quotaLedger, packageLedger, creditLedger, membershipRepo, catalog, logger)
	settlementUC := usecase.NewSettlementUseCase(
		tm, orderRepo, paymentRepo, membershipRepo, affiliateRepo,
		quotaLedger, packageLedger, creditLedger,
		pgw, billingClient, fulfillClient, ids, catalog,
		cfg.Settlement.PaymentWindow, logger,
	)
	redeemUC := usecase.NewRedeemUseCase(tm, codeRepo, orderRepo, paymentRepo, settlementUC, ids, catalog, logger)

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, !cfg.Runtime.Dev, cfg.Server.SessionTTL)
	srv := web.NewServer(entitlementUC, settlementUC, redeemUC, auth, cfg.Server.AdminAPIKey, promhttp.Handler(), logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Workers ----
	payRecon := sched.NewPaymentReconciler(settlementUC, orderRepo, cfg.Settlement.ReconcileInterval, cfg.Settlement.StaleAfter, logger)
	go func() { _ = payRecon.Run(ctx) }()
	creditRecon := sched.NewCreditReconciler(settlementUC, orderRepo, cfg.Settlement.ReconcileInterval, cfg.Settlement.MaxAttempts, logger)
	go func() { _ = creditRecon.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
