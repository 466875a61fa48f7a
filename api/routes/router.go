package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rank0/digimenu-backend/api/controllers"
	foodcontrollers "github.com/rank0/digimenu-backend/api/controllers/foods"
	ordercontrollers "github.com/rank0/digimenu-backend/api/controllers/orders"
	paymentcontrollers "github.com/rank0/digimenu-backend/api/controllers/payments"
	plancontrollers "github.com/rank0/digimenu-backend/api/controllers/plans"
	ratecontrollers "github.com/rank0/digimenu-backend/api/controllers/rates"
	restaurantcontrollers "github.com/rank0/digimenu-backend/api/controllers/restaurants"
	"github.com/rank0/digimenu-backend/api/middleware"
	"github.com/rank0/digimenu-backend/internal/foods"
	"github.com/rank0/digimenu-backend/internal/orders"
	"github.com/rank0/digimenu-backend/internal/payments"
	"github.com/rank0/digimenu-backend/internal/plans"
	"github.com/rank0/digimenu-backend/internal/pricing"
	"github.com/rank0/digimenu-backend/internal/restaurants"
	"github.com/rank0/digimenu-backend/pkg/config"
	"github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/enums"
	"github.com/rank0/digimenu-backend/pkg/logger"
	pkgredis "github.com/rank0/digimenu-backend/pkg/redis"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Restaurants restaurants.Service
	Orders      orders.Service
	Payments    payments.Service
	Pricing     pricing.Service
	Foods       foods.Service
	Plans       plans.Service
}

// redisStore is the slice of the Redis client the middleware uses.
type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	svc Services,
) http.Handler {
	var store redisStore
	if redisClient != nil {
		store = redisClient
	}
	return newRouter(cfg, logg, dbP, store, svc)
}

func newRouter(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, store redisStore, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["postgres"] = dbP
	}
	var idempotencyStore pkgredis.IdempotencyStore
	var limiterStore middleware.RateLimiterStore
	if store != nil {
		deps["redis"] = store
		idempotencyStore = store
		limiterStore = store
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	callbackPolicy := middleware.NewRateLimitPolicy("zarinpal_callback", cfg.RateLimit.CallbackWindow, cfg.RateLimit.CallbackLimit)
	r.With(middleware.IPRateLimit(callbackPolicy, limiterStore, logg)).
		Get("/api/payments/callback", paymentcontrollers.Callback(svc.Payments, cfg.Zarinpal.ResultURL, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", plancontrollers.List(svc.Plans, logg))
		r.Get("/foods", foodcontrollers.List(svc.Foods, logg))
		r.Get("/foods/{foodId}", foodcontrollers.Detail(svc.Foods, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			daily := middleware.Idempotent(idempotencyStore, logg, middleware.DefaultIdempotencyTTL)
			weekly := middleware.Idempotent(idempotencyStore, logg, middleware.CriticalIdempotencyTTL)

			r.Get("/restaurants", restaurantcontrollers.Mine(svc.Restaurants, logg))
			r.Get("/restaurants/{restaurantId}", restaurantcontrollers.Detail(svc.Restaurants, logg))
			r.Get("/restaurants/{restaurantId}/orders", ordercontrollers.ListByRestaurant(svc.Orders, logg))
			r.Get("/restaurants/{restaurantId}/foods", restaurantcontrollers.SelectedFoods(svc.Restaurants, logg))
			r.Put("/restaurants/{restaurantId}/foods/{foodId}", restaurantcontrollers.SelectFood(svc.Restaurants, logg))
			r.Delete("/restaurants/{restaurantId}/foods/{foodId}", restaurantcontrollers.DeselectFood(svc.Restaurants, logg))

			r.With(daily).Post("/orders", ordercontrollers.Create(svc.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
			r.Get("/orders/{orderId}/status", ordercontrollers.Status(svc.Orders, logg))
			r.With(weekly).Post("/orders/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))
			r.Get("/orders/{orderId}/payments", paymentcontrollers.List(svc.Payments, logg))
			r.With(daily).Post("/orders/{orderId}/payments", paymentcontrollers.Start(svc.Payments, logg))

			r.Get("/plans/cart", plancontrollers.Cart(svc.Plans, logg))
			r.Get("/plans/orders", plancontrollers.Orders(svc.Plans, logg))
			r.With(daily).Post("/plans/{planSlug}/purchase", plancontrollers.Purchase(svc.Plans, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

				r.With(daily).Post("/admin/restaurants", restaurantcontrollers.AdminCreate(svc.Restaurants, logg))
				r.With(daily).Post("/admin/restaurants/extend", restaurantcontrollers.AdminBulkExtend(svc.Restaurants, logg))
				r.With(daily).Post("/admin/restaurants/{restaurantId}/extend", restaurantcontrollers.AdminExtend(svc.Restaurants, logg))
				r.With(daily).Post("/admin/orders/{orderId}/transition", ordercontrollers.AdminTransition(svc.Orders, logg))
				r.Get("/admin/rates", ratecontrollers.List(svc.Pricing, logg))
				r.With(daily).Post("/admin/rates", ratecontrollers.Create(svc.Pricing, logg))
				r.With(daily).Post("/admin/rates/{rateId}/activate", ratecontrollers.Activate(svc.Pricing, logg))
				r.Post("/admin/foods", foodcontrollers.AdminCreate(svc.Foods, logg))
				r.Put("/admin/foods/{foodId}", foodcontrollers.AdminUpdate(svc.Foods, logg))
				r.With(weekly).Post("/admin/plan-orders/{planOrderId}/activate", plancontrollers.AdminActivate(svc.Plans, logg))
			})
		})
	})

	return r
}
