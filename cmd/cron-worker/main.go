package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rank0/digimenu-backend/internal/cron"
	"github.com/rank0/digimenu-backend/internal/orders"
	"github.com/rank0/digimenu-backend/internal/restaurants"
	"github.com/rank0/digimenu-backend/pkg/config"
	"github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
	"github.com/rank0/digimenu-backend/pkg/migrate"
	"github.com/rank0/digimenu-backend/pkg/outbox"
	"github.com/rank0/digimenu-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single renewal cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names to run with -once (default: all)")
	flag.Parse()

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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	registry, err := buildRegistry(cfg, logg, dbClient, metricsCollector)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envOrLocal(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, prometheus.DefaultGatherer); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	if *once {
		report, err := service.RunOnce(ctx, splitJobs(*only)...)
		if err != nil {
			logg.Error(ctx, "renewal cycle failed", err)
			os.Exit(1)
		}
		if len(report.Failed) > 0 {
			logg.Warn(logg.WithField(ctx, "failed_jobs", report.Failed), "renewal cycle finished with failures")
			os.Exit(1)
		}
		return
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildRegistry wires the daily jobs in the order they should run: new
// renewal orders first, then expiry, then reminders, then outbox cleanup.
func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, m *metrics.CronJobMetrics) (*cron.Registry, error) {
	gdb := dbClient.DB()
	outboxRepo := outbox.NewRepository(gdb)
	events := outbox.NewService(outboxRepo, logg)

	restaurantSvc, err := restaurants.NewService(restaurants.ServiceParams{
		Repo:          restaurants.NewRepository(gdb),
		DB:            dbClient,
		Outbox:        events,
		ExtensionDays: cfg.Renewal.ExtensionDays,
	})
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:          orders.NewRepository(gdb),
		DB:            dbClient,
		Outbox:        events,
		Restaurants:   restaurantSvc,
		BasePrice:     cfg.Renewal.OrderBasePrice,
		SeoExtraPrice: cfg.Renewal.OrderSeoExtraPrice,
	})
	if err != nil {
		return nil, err
	}

	renewalOrders, err := cron.NewRenewalOrdersJob(cron.RenewalOrdersJobParams{
		Logger:      logg,
		Restaurants: restaurantSvc,
		Orders:      orderSvc,
		Metrics:     m,
		HorizonDays: cfg.Renewal.HorizonDays,
	})
	if err != nil {
		return nil, err
	}
	expired, err := cron.NewExpiredRestaurantsJob(cron.ExpiredRestaurantsJobParams{
		Logger:      logg,
		Restaurants: restaurantSvc,
		Metrics:     m,
	})
	if err != nil {
		return nil, err
	}
	reminders, err := cron.NewRenewalRemindersJob(cron.RenewalRemindersJobParams{
		Logger:      logg,
		DB:          dbClient,
		Restaurants: restaurantSvc,
		Outbox:      events,
		Metrics:     m,
		MinDays:     cfg.Renewal.ReminderMinDays,
		MaxDays:     cfg.Renewal.ReminderMaxDays,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outboxRepo,
		Metrics:       m,
		RetentionDays: cfg.Outbox.RetentionDays,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(renewalOrders, expired, reminders, retention)
}

func splitJobs(value string) []string {
	var names []string
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
