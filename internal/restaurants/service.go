package restaurants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/outbox"
	"github.com/rank0/digimenu-backend/pkg/outbox/payloads"
)

// DefaultExpirationDays is the lifetime given to restaurants created without
// an explicit window.
const DefaultExpirationDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns restaurant expiry state and food selection.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Restaurant, error)
	CreateWithExpiration(ctx context.Context, input CreateInput) (*models.Restaurant, error)
	Extend(ctx context.Context, id uuid.UUID, days int) (*models.Restaurant, error)
	SetFromToday(ctx context.Context, id uuid.UUID, days int) (*models.Restaurant, error)
	DeactivateIfExpired(ctx context.Context, id uuid.UUID) (bool, error)
	DeactivateIfExpiredAt(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	BulkExtend(ctx context.Context, ids []uuid.UUID, days int) (*BulkExtendResult, error)
	ActivateForOrder(ctx context.Context, tx *gorm.DB, order *models.MenuOrder) error

	Expired(ctx context.Context, now time.Time) ([]models.Restaurant, error)
	ExpiredActive(ctx context.Context, now time.Time) ([]models.Restaurant, error)
	Active(ctx context.Context, now time.Time) ([]models.Restaurant, error)
	ExpiringWithin(ctx context.Context, now time.Time, days int) ([]models.Restaurant, error)
	ExpiringBetween(ctx context.Context, now time.Time, minDays, maxDays int) ([]models.Restaurant, error)
	DueForRenewal(ctx context.Context, now time.Time, horizonDays int) ([]models.Restaurant, error)

	SelectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error)
	DeselectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error)
	SelectedFoods(ctx context.Context, restaurantID uuid.UUID) ([]models.Food, error)
}

// ServiceParams wires the restaurant service.
type ServiceParams struct {
	Repo   Repository
	DB     txRunner
	Outbox outboxEmitter
	// ExtensionDays is applied when a paid order activates or renews a restaurant.
	ExtensionDays int
}

type service struct {
	repo          Repository
	db            txRunner
	outbox        outboxEmitter
	extensionDays int
	now           func() time.Time
}

// CreateInput describes a new restaurant. Days falls back to
// DefaultExpirationDays.
type CreateInput struct {
	OwnerID uuid.UUID
	Name    string
	Slug    string
	IsSeo   bool
	Days    int
}

// BulkExtendResult lists the restaurants extended by BulkExtend. Err carries
// the per-restaurant failures.
type BulkExtendResult struct {
	Extended []uuid.UUID
	Err      error
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("restaurants repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	days := params.ExtensionDays
	if days <= 0 {
		days = DefaultExpirationDays
	}
	return &service{
		repo:          params.Repo,
		db:            params.DB,
		outbox:        params.Outbox,
		extensionDays: days,
		now:           time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	restaurant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return restaurant, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Restaurant, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list restaurants")
	}
	return rows, nil
}

func (s *service) CreateWithExpiration(ctx context.Context, input CreateInput) (*models.Restaurant, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	name := strings.TrimSpace(input.Name)
	slug := strings.TrimSpace(input.Slug)
	if name == "" || slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and slug are required")
	}
	days := input.Days
	if days <= 0 {
		days = DefaultExpirationDays
	}
	expires := s.now().UTC().Add(time.Duration(days) * day)
	restaurant := &models.Restaurant{
		OwnerID:    input.OwnerID,
		Name:       name,
		Slug:       slug,
		IsActive:   true,
		IsSeo:      input.IsSeo,
		ExpireDate: &expires,
	}
	if err := s.repo.Create(ctx, restaurant); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_restaurants_slug") || dbpkg.IsUniqueViolation(err, "restaurants.slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create restaurant")
	}
	return restaurant, nil
}

func (s *service) Extend(ctx context.Context, id uuid.UUID, days int) (*models.Restaurant, error) {
	if days <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be greater than zero")
	}
	var out *models.Restaurant
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		restaurant, err := s.extendTx(ctx, tx, id, days, false)
		out = restaurant
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) SetFromToday(ctx context.Context, id uuid.UUID, days int) (*models.Restaurant, error) {
	if days <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be greater than zero")
	}
	var out *models.Restaurant
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		restaurant, err := s.extendTx(ctx, tx, id, days, true)
		out = restaurant
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// extendTx moves the expiry inside tx. fromToday ignores the current expiry
// and also re-activates the restaurant.
func (s *service) extendTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, days int, fromToday bool) (*models.Restaurant, error) {
	repo := s.repo.WithTx(tx)
	restaurant, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}

	now := s.now().UTC()
	previous := restaurant.ExpireDate
	var next time.Time
	if fromToday {
		next = now.Add(time.Duration(days) * day)
	} else {
		next = ExtendedExpiry(restaurant, now, days)
	}
	if err := repo.UpdateExpiry(ctx, restaurant.ID, next, fromToday); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update restaurant expiry")
	}
	restaurant.ExpireDate = &next
	if fromToday {
		restaurant.IsActive = true
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventRestaurantExtended,
		AggregateType: enums.AggregateRestaurant,
		AggregateID:   restaurant.ID,
		OccurredAt:    now,
		Data: payloads.RestaurantExtendedEvent{
			RestaurantID:   restaurant.ID,
			PreviousExpiry: previous,
			ExpireDate:     next,
			Days:           days,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return restaurant, nil
}

// ActivateForOrder applies a confirmed payment to the order's restaurant
// within the caller's transaction. Renewals extend the current window; a
// first purchase starts a fresh one when there is no live expiry.
func (s *service) ActivateForOrder(ctx context.Context, tx *gorm.DB, order *models.MenuOrder) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	switch order.Status {
	case enums.OrderStatusRenewal:
		_, err := s.extendTx(ctx, tx, order.RestaurantID, s.extensionDays, false)
		return err
	case enums.OrderStatusPaid:
		restaurant, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, order.RestaurantID)
		if err != nil {
			return mapLoadError(err)
		}
		if restaurant.ExpireDate != nil && !IsExpired(restaurant, s.now()) {
			return nil
		}
		_, err = s.extendTx(ctx, tx, order.RestaurantID, s.extensionDays, true)
		return err
	default:
		return nil
	}
}

func (s *service) DeactivateIfExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.DeactivateIfExpiredAt(ctx, id, s.now())
}

// DeactivateIfExpiredAt judges expiry as of now rather than the wall clock.
func (s *service) DeactivateIfExpiredAt(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	now = now.UTC()
	var changed bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.DeactivateIfExpired(ctx, id, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate restaurant")
		}
		if !ok {
			return nil
		}
		changed = true
		restaurant, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		data := payloads.RestaurantDeactivatedEvent{
			RestaurantID:  restaurant.ID,
			OwnerID:       restaurant.OwnerID,
			DeactivatedAt: now,
		}
		if restaurant.ExpireDate != nil {
			data.ExpireDate = *restaurant.ExpireDate
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRestaurantDeactivated,
			AggregateType: enums.AggregateRestaurant,
			AggregateID:   restaurant.ID,
			OccurredAt:    now,
			Actor:         outbox.SystemActor,
			Data:          data,
		})
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// BulkExtend extends each restaurant independently; one failure does not stop
// the rest.
func (s *service) BulkExtend(ctx context.Context, ids []uuid.UUID, days int) (*BulkExtendResult, error) {
	if days <= 0 {
		days = DefaultExpirationDays
	}
	rows, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurants")
	}
	result := &BulkExtendResult{}
	for _, row := range rows {
		if _, err := s.Extend(ctx, row.ID, days); err != nil {
			result.Err = multierr.Append(result.Err, fmt.Errorf("restaurant %s: %w", row.ID, err))
			continue
		}
		result.Extended = append(result.Extended, row.ID)
	}
	return result, nil
}

func (s *service) Expired(ctx context.Context, now time.Time) ([]models.Restaurant, error) {
	return wrapList(s.repo.ListExpired(ctx, now, false))
}

// ExpiredActive lists restaurants still switched on past their expiry.
func (s *service) ExpiredActive(ctx context.Context, now time.Time) ([]models.Restaurant, error) {
	return wrapList(s.repo.ListExpired(ctx, now, true))
}

func (s *service) Active(ctx context.Context, now time.Time) ([]models.Restaurant, error) {
	return wrapList(s.repo.ListActive(ctx, now))
}

func (s *service) ExpiringWithin(ctx context.Context, now time.Time, days int) ([]models.Restaurant, error) {
	if days < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must not be negative")
	}
	return wrapList(s.repo.ListExpiringBetween(ctx, now, now.Add(time.Duration(days)*day)))
}

func (s *service) ExpiringBetween(ctx context.Context, now time.Time, minDays, maxDays int) ([]models.Restaurant, error) {
	if minDays < 0 || maxDays < minDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid day window")
	}
	from := now.Add(time.Duration(minDays) * day)
	to := now.Add(time.Duration(maxDays) * day)
	return wrapList(s.repo.ListExpiringBetween(ctx, from, to))
}

// DueForRenewal lists live restaurants whose expiry falls on or before the
// day horizonDays from now and that have no open order.
func (s *service) DueForRenewal(ctx context.Context, now time.Time, horizonDays int) ([]models.Restaurant, error) {
	if horizonDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "horizon must be positive")
	}
	threshold := now.UTC().Truncate(day).Add(time.Duration(horizonDays+1) * day)
	return wrapList(s.repo.ListDueForRenewal(ctx, now, threshold))
}

func (s *service) SelectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error) {
	if err := s.ensureSelectable(ctx, restaurantID, foodID); err != nil {
		return false, err
	}
	added, err := s.repo.SelectFood(ctx, restaurantID, foodID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "select food")
	}
	return added, nil
}

// DeselectFood only removes the link; the food stays in the shared catalog.
func (s *service) DeselectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error) {
	removed, err := s.repo.DeselectFood(ctx, restaurantID, foodID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deselect food")
	}
	return removed, nil
}

func (s *service) SelectedFoods(ctx context.Context, restaurantID uuid.UUID) ([]models.Food, error) {
	foods, err := s.repo.ListSelectedFoods(ctx, restaurantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list selected foods")
	}
	return foods, nil
}

func (s *service) ensureSelectable(ctx context.Context, restaurantID, foodID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, restaurantID); err != nil {
		return mapLoadError(err)
	}
	exists, err := s.repo.FoodExists(ctx, foodID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food")
	}
	if !exists {
		return pkgerrors.NotFound("food")
	}
	return nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("restaurant")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
}

func wrapList(rows []models.Restaurant, err error) ([]models.Restaurant, error) {
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query restaurants")
	}
	return rows, nil
}
