package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	authsvc "github.com/billforge/billforge-backend/internal/auth"
	"github.com/billforge/billforge-backend/internal/cron"
	"github.com/billforge/billforge-backend/internal/notifications"
	paymentsvc "github.com/billforge/billforge-backend/internal/payments"
	plansvc "github.com/billforge/billforge-backend/internal/plans"
	productsvc "github.com/billforge/billforge-backend/internal/products"
	subscriptionsvc "github.com/billforge/billforge-backend/internal/subscriptions"
	sweepersvc "github.com/billforge/billforge-backend/internal/sweeper"
	"github.com/billforge/billforge-backend/pkg/config"
	"github.com/billforge/billforge-backend/pkg/db"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/metrics"
	"github.com/billforge/billforge-backend/pkg/migrate"
	"github.com/billforge/billforge-backend/pkg/redis"
)

const lockKeyFormat = "bf:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	authRepo := authsvc.NewRepository(dbClient.DB())
	planRepo := plansvc.NewRepository(dbClient.DB())
	subRepo := subscriptionsvc.NewRepository(dbClient.DB())
	paymentRepo := paymentsvc.NewRepository(dbClient.DB())
	productRepo := productsvc.NewRepository(dbClient.DB())

	notifier, err := buildNotifier(cfg, authRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	planService, err := plansvc.NewService(plansvc.ServiceParams{Repo: planRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
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

	sweepJob, err := cron.NewSweepJob(cron.SweepJobParams{
		Logger:  logg,
		Sweeper: sweeperService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
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
