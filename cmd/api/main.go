package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/billforge/billforge-backend/api/routes"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	accountsvc "github.com/billforge/billforge-backend/internal/billingaccounts"
	billsvc "github.com/billforge/billforge-backend/internal/bills"
	"github.com/billforge/billforge-backend/internal/notifications"
	paymentsvc "github.com/billforge/billforge-backend/internal/payments"
	plansvc "github.com/billforge/billforge-backend/internal/plans"
	productsvc "github.com/billforge/billforge-backend/internal/products"
	quotasvc "github.com/billforge/billforge-backend/internal/quota"
	subscriptionsvc "github.com/billforge/billforge-backend/internal/subscriptions"
	sweepersvc "github.com/billforge/billforge-backend/internal/sweeper"
	razorpaywebhook "github.com/billforge/billforge-backend/internal/webhooks/razorpay"
	"github.com/billforge/billforge-backend/pkg/config"
	"github.com/billforge/billforge-backend/pkg/db"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/metrics"
	"github.com/billforge/billforge-backend/pkg/migrate"
	"github.com/billforge/billforge-backend/pkg/razorpay"
	"github.com/billforge/billforge-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(cfg.Razorpay)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	authRepo := authsvc.NewRepository(dbClient.DB())
	planRepo := plansvc.NewRepository(dbClient.DB())
	subRepo := subscriptionsvc.NewRepository(dbClient.DB())
	paymentRepo := paymentsvc.NewRepository(dbClient.DB())
	productRepo := productsvc.NewRepository(dbClient.DB())
	billRepo := billsvc.NewRepository(dbClient.DB())
	accountRepo := accountsvc.NewRepository(dbClient.DB())
	usageRepo := quotasvc.NewRepository(dbClient.DB())

	notifier, err := buildNotifier(cfg, authRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Repo: authRepo,
		JWT:  cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	planService, err := plansvc.NewService(plansvc.ServiceParams{Repo: planRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptionsvc.NewService(subscriptionsvc.ServiceParams{
		Repo:              subRepo,
		Plans:             planService,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	quotaService, err := quotasvc.NewService(quotasvc.ServiceParams{
		Repo:              usageRepo,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quota service", err)
		os.Exit(1)
	}

	paymentService, err := paymentsvc.NewService(paymentsvc.ServiceParams{
		Repo:              paymentRepo,
		SubscriptionRepo:  subRepo,
		Plans:             planService,
		Gateway:           gateway,
		Tenants:           authRepo,
		Notifier:          notifier,
		TransactionRunner: dbClient,
		Logger:            logg,
		KeyID:             cfg.Razorpay.KeyID,
		RenewalPeriod:     time.Duration(cfg.Sweep.RenewalDays) * 24 * time.Hour,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	productService, err := productsvc.NewService(productsvc.ServiceParams{
		Repo:          productRepo,
		Quota:         quotaService,
		Subscriptions: subscriptionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	billService, err := billsvc.NewService(billsvc.ServiceParams{
		Repo:          billRepo,
		Quota:         quotaService,
		Subscriptions: subscriptionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bill service", err)
		os.Exit(1)
	}

	accountService, err := accountsvc.NewService(accountsvc.ServiceParams{
		Repo:          accountRepo,
		Quota:         quotaService,
		Subscriptions: subscriptionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing account service", err)
		os.Exit(1)
	}

	sweeperService, err := sweepersvc.NewService(sweepersvc.ServiceParams{
		Subscriptions:     subRepo,
		Payments:          paymentRepo,
		Products:          productRepo,
		Plans:             planService,
		Tenants:           authRepo,
		Notifier:          notifier,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           metrics.NewSweepMetrics(prometheus.DefaultRegisterer),
		GracePeriod:       time.Duration(cfg.Sweep.GraceDays) * 24 * time.Hour,
		RenewalPeriod:     time.Duration(cfg.Sweep.RenewalDays) * 24 * time.Hour,
		BatchLimit:        cfg.Sweep.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper", err)
		os.Exit(1)
	}

	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Payments: paymentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := razorpaywebhook.NewIdempotencyGuard(redisClient, cfg.Sweep.WebhookEventTTL, "razorpay-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Gateway:       gateway,
			Auth:          authService,
			Plans:         planService,
			Subscriptions: subscriptionService,
			Quota:         quotaService,
			Payments:      paymentService,
			Products:      productService,
			Bills:         billService,
			Accounts:      accountService,
			Sweeper:       sweeperService,
			Webhooks:      webhookService,
			WebhookGuard:  webhookGuard,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

// buildNotifier picks Postmark when a server token is configured and
// falls back to log-only delivery otherwise.
func buildNotifier(cfg *config.Config, owners notifications.OwnerLookup, logg *logger.Logger) (notifications.Sender, error) {
	if cfg.Mail.PostmarkServerToken != "" {
		return notifications.NewPostmarkSender(notifications.PostmarkSenderParams{
			Mail:   cfg.Mail,
			Owners: owners,
			Logger: logg,
		})
	}
	return notifications.NewLogSender(logg)
}
