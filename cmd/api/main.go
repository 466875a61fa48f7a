package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/rank0/digimenu-backend/api/routes"
	"github.com/rank0/digimenu-backend/internal/foods"
	"github.com/rank0/digimenu-backend/internal/orders"
	"github.com/rank0/digimenu-backend/internal/payments"
	"github.com/rank0/digimenu-backend/internal/plans"
	"github.com/rank0/digimenu-backend/internal/pricing"
	"github.com/rank0/digimenu-backend/internal/restaurants"
	"github.com/rank0/digimenu-backend/pkg/config"
	"github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
	"github.com/rank0/digimenu-backend/pkg/migrate"
	"github.com/rank0/digimenu-backend/pkg/outbox"
	"github.com/rank0/digimenu-backend/pkg/redis"
	"github.com/rank0/digimenu-backend/pkg/zarinpal"
)

const shutdownTimeout = 15 * time.Second

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

	svc, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, prometheus.DefaultGatherer); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, svc),
		ReadHeaderTimeout: 10 * time.Second,
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	gdb := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(gdb), logg)

	fallback, err := decimal.NewFromString(cfg.Pricing.FallbackRate)
	if err != nil {
		return routes.Services{}, err
	}
	pricingSvc, err := pricing.NewService(pricing.ServiceParams{
		Repo:         pricing.NewRepository(gdb),
		DB:           dbClient,
		Outbox:       events,
		Logger:       logg,
		Metrics:      metrics.NewPricingMetrics(prometheus.DefaultRegisterer),
		FallbackRate: fallback,
	})
	if err != nil {
		return routes.Services{}, err
	}

	restaurantSvc, err := restaurants.NewService(restaurants.ServiceParams{
		Repo:          restaurants.NewRepository(gdb),
		DB:            dbClient,
		Outbox:        events,
		ExtensionDays: cfg.Renewal.ExtensionDays,
	})
	if err != nil {
		return routes.Services{}, err
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
		return routes.Services{}, err
	}

	foodSvc, err := foods.NewService(foods.NewRepository(gdb), pricingSvc)
	if err != nil {
		return routes.Services{}, err
	}

	planSvc, err := plans.NewService(plans.ServiceParams{
		Repo:   plans.NewRepository(gdb),
		DB:     dbClient,
		Outbox: events,
	})
	if err != nil {
		return routes.Services{}, err
	}

	gateway, err := zarinpal.NewClient(cfg.Zarinpal.MerchantID,
		zarinpal.WithBaseURL(cfg.Zarinpal.BaseURL),
		zarinpal.WithStartPayURL(cfg.Zarinpal.StartPayURL),
		zarinpal.WithTimeout(cfg.Zarinpal.Timeout),
	)
	if err != nil {
		return routes.Services{}, err
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:        payments.NewRepository(gdb),
		Orders:      orderSvc,
		Gateway:     gateway,
		Guard:       redisClient,
		Limiter:     redisClient,
		Logger:      logg,
		Metrics:     metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		CallbackURL: cfg.Zarinpal.CallbackURL,
		Description: cfg.Zarinpal.Description,
		CallbackTTL: cfg.Zarinpal.CallbackTTL,
		StartLimit:  cfg.RateLimit.PaymentStartLimit,
		StartWindow: cfg.RateLimit.PaymentStartWindow,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Restaurants: restaurantSvc,
		Orders:      orderSvc,
		Payments:    paymentSvc,
		Pricing:     pricingSvc,
		Foods:       foodSvc,
		Plans:       planSvc,
	}, nil
}
