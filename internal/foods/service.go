package foods

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/internal/pricing"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
)

// Service manages the shared food catalog. Saving a food with a local price
// and no USD price fills the USD price from the active exchange rate.
type Service interface {
	Create(ctx context.Context, input SaveInput) (*models.Food, error)
	Update(ctx context.Context, id uuid.UUID, input SaveInput) (*models.Food, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Food, error)
	List(ctx context.Context, availableOnly bool) ([]models.Food, error)
}

// SaveInput carries the editable food fields. A nil DerivedPriceMinor asks
// for the USD price to be derived.
type SaveInput struct {
	Title             string
	BasePriceLocal    *int64
	DerivedPriceMinor *int64
	IsAvailable       bool
}

type service struct {
	repo  Repository
	rates pricing.RateProvider
}

func NewService(repo Repository, rates pricing.RateProvider) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("foods repository required")
	}
	if rates == nil {
		return nil, fmt.Errorf("rate provider required")
	}
	return &service{repo: repo, rates: rates}, nil
}

func (s *service) Create(ctx context.Context, input SaveInput) (*models.Food, error) {
	food := &models.Food{}
	if err := s.apply(ctx, food, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, food); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create food")
	}
	return food, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input SaveInput) (*models.Food, error) {
	food, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, food, input); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, food); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update food")
	}
	return food, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	food, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("food")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food")
	}
	return food, nil
}

func (s *service) List(ctx context.Context, availableOnly bool) ([]models.Food, error) {
	foods, err := s.repo.List(ctx, availableOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list foods")
	}
	return foods, nil
}

func (s *service) apply(ctx context.Context, food *models.Food, input SaveInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.BasePriceLocal != nil && *input.BasePriceLocal < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base price must not be negative")
	}
	if input.DerivedPriceMinor != nil && *input.DerivedPriceMinor < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usd price must not be negative")
	}

	food.Title = title
	food.IsAvailable = input.IsAvailable
	food.BasePriceLocal = input.BasePriceLocal
	food.DerivedPriceMinor = input.DerivedPriceMinor

	if food.BasePriceLocal != nil && food.DerivedPriceMinor == nil {
		rate, err := s.rates.ActiveRate(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load exchange rate")
		}
		food.DerivedPriceMinor = pricing.DerivePrice(food.BasePriceLocal, rate)
	}
	return nil
}
