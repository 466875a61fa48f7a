package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
	"github.com/rank0/digimenu-backend/pkg/outbox"
	"github.com/rank0/digimenu-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RateProvider exposes the rate used to derive USD prices.
type RateProvider interface {
	ActiveRate(ctx context.Context) (decimal.Decimal, error)
}

// Service manages exchange rates and keeps derived food prices in step.
type Service interface {
	RateProvider
	CreateRate(ctx context.Context, input CreateRateInput) (*ActivationResult, error)
	Activate(ctx context.Context, rateID uuid.UUID, actorID *uuid.UUID) (*ActivationResult, error)
	RecomputeAllPrices(ctx context.Context, rate decimal.Decimal) RecomputeResult
	ListRates(ctx context.Context) ([]RateDTO, error)
}

// ServiceParams wires the pricing service.
type ServiceParams struct {
	Repo         Repository
	DB           txRunner
	Outbox       outboxEmitter
	Logger       *logger.Logger
	Metrics      *metrics.PricingMetrics
	FallbackRate decimal.Decimal
}

type service struct {
	repo     Repository
	db       txRunner
	outbox   outboxEmitter
	logg     *logger.Logger
	metrics  *metrics.PricingMetrics
	fallback decimal.Decimal
	now      func() time.Time
}

// CreateRateInput records a new rate, optionally making it the active one.
type CreateRateInput struct {
	Rate      decimal.Decimal
	Activate  bool
	CreatedBy *uuid.UUID
}

// RecomputeResult reports a best-effort recompute. Err aggregates the
// per-food failures and does not mean the batch stopped.
type RecomputeResult struct {
	Updated int
	Failed  int
	Err     error
}

// ActivationResult is returned after a rate is stored or activated.
type ActivationResult struct {
	Rate      RateDTO
	Recompute *RecomputeResult
}

// RateDTO is the API view of an exchange rate.
type RateDTO struct {
	ID        uuid.UUID `json:"id"`
	Rate      string    `json:"rate"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !params.FallbackRate.IsPositive() {
		return nil, fmt.Errorf("fallback rate must be positive")
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
		fallback: params.FallbackRate,
		now:      time.Now,
	}, nil
}

func (s *service) CreateRate(ctx context.Context, input CreateRateInput) (*ActivationResult, error) {
	if !input.Rate.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate must be greater than zero")
	}
	row := &models.ExchangeRate{Rate: input.Rate, CreatedBy: input.CreatedBy}
	if err := s.repo.CreateRate(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create exchange rate")
	}
	if !input.Activate {
		return &ActivationResult{Rate: toRateDTO(row)}, nil
	}
	return s.Activate(ctx, row.ID, input.CreatedBy)
}

// Activate makes rateID the only active rate, then recomputes every derived
// price with it once the activation has committed.
func (s *service) Activate(ctx context.Context, rateID uuid.UUID, actorID *uuid.UUID) (*ActivationResult, error) {
	if rateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate id required")
	}

	var activated models.ExchangeRate
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rate, err := repo.FindRateForUpdate(ctx, rateID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("exchange rate")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load exchange rate")
		}
		if !rate.Rate.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "rate must be greater than zero")
		}
		if err := repo.DeactivateOthers(ctx, rate.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate exchange rates")
		}
		if err := repo.MarkActive(ctx, rate.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate exchange rate")
		}
		rate.IsActive = true
		activated = *rate

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventExchangeRateActivated,
			AggregateType: enums.AggregateExchangeRate,
			AggregateID:   rate.ID,
			OccurredAt:    s.now().UTC(),
			Actor:         actorRef(actorID),
			Data: payloads.ExchangeRateActivatedEvent{
				ExchangeRateID: rate.ID,
				Rate:           rate.Rate.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	rateValue, _ := activated.Rate.Float64()
	s.metrics.ObserveActivation(rateValue)

	result := s.RecomputeAllPrices(ctx, activated.Rate)
	return &ActivationResult{Rate: toRateDTO(&activated), Recompute: &result}, nil
}

// RecomputeAllPrices rewrites the cached USD price of every priced food.
// Foods are updated one by one; readers may see a mix of old and new prices
// until the loop finishes.
func (s *service) RecomputeAllPrices(ctx context.Context, rate decimal.Decimal) RecomputeResult {
	var result RecomputeResult
	if !rate.IsPositive() {
		result.Err = pkgerrors.New(pkgerrors.CodeValidation, "rate must be greater than zero")
		return result
	}

	foods, err := s.repo.ListPricedFoods(ctx)
	if err != nil {
		result.Err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list priced foods")
		return result
	}

	for _, food := range foods {
		cents := DerivePrice(food.BasePriceLocal, rate)
		if err := s.repo.UpdateDerivedPrice(ctx, food.ID, cents); err != nil {
			result.Failed++
			result.Err = multierr.Append(result.Err, fmt.Errorf("food %s: %w", food.ID, err))
			continue
		}
		result.Updated++
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"rate":    rate.String(),
		"updated": result.Updated,
		"failed":  result.Failed,
	})
	if result.Err != nil {
		s.logg.Error(logCtx, "price recompute finished with failures", result.Err)
	} else {
		s.logg.Info(logCtx, "price recompute finished")
	}
	s.metrics.ObserveRecompute(result.Updated, result.Failed)
	return result
}

// ActiveRate falls back to the configured rate when none is active.
func (s *service) ActiveRate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := s.repo.FindActiveRate(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fallback, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active exchange rate")
	}
	return rate.Rate, nil
}

func (s *service) ListRates(ctx context.Context) ([]RateDTO, error) {
	rows, err := s.repo.ListRates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list exchange rates")
	}
	out := make([]RateDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toRateDTO(&rows[i]))
	}
	return out, nil
}

func toRateDTO(rate *models.ExchangeRate) RateDTO {
	return RateDTO{
		ID:        rate.ID,
		Rate:      rate.Rate.String(),
		IsActive:  rate.IsActive,
		CreatedAt: rate.CreatedAt,
	}
}

func actorRef(userID *uuid.UUID) *outbox.ActorRef {
	if userID == nil {
		return outbox.SystemActor
	}
	id := *userID
	return &outbox.ActorRef{UserID: &id, Role: string(enums.RoleAdmin)}
}
