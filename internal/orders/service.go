package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/outbox"
	"github.com/rank0/digimenu-backend/pkg/outbox/payloads"
)

// Gateway verification codes that mean the money was received.
const (
	codeVerified        = 100
	codeAlreadyVerified = 101
)

const openRenewalConstraint = "ux_menu_orders_open_renewal"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Restaurants is the slice of the restaurant service orders depend on.
// ActivateForOrder runs inside the payment transaction.
type Restaurants interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	ActivateForOrder(ctx context.Context, tx *gorm.DB, order *models.MenuOrder) error
}

// Service defines the menu order state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.MenuOrder, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.MenuOrder, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, actor Actor) ([]models.MenuOrder, error)
	CreateRenewal(ctx context.Context, restaurant *models.Restaurant) (*models.MenuOrder, bool, error)
	MarkPaid(ctx context.Context, input MarkPaidInput) (*MarkPaidResult, error)
	MarkUnpaidCancelled(ctx context.Context, orderID uuid.UUID) (*models.MenuOrder, error)
	AdminTransition(ctx context.Context, orderID uuid.UUID, status string, actor Actor) (*models.MenuOrder, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) error
}

// ServiceParams wires the order service. The prices are the defaults used
// when a request or a renewal does not carry its own.
type ServiceParams struct {
	Repo          Repository
	DB            txRunner
	Outbox        outboxPublisher
	Restaurants   Restaurants
	BasePrice     int64
	SeoExtraPrice int64
}

type service struct {
	repo          Repository
	tx            txRunner
	outbox        outboxPublisher
	restaurants   Restaurants
	basePrice     int64
	seoExtraPrice int64
	now           func() time.Time
}

// NewService builds a menu order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Restaurants == nil {
		return nil, fmt.Errorf("restaurant service required")
	}
	if params.BasePrice <= 0 || params.SeoExtraPrice < 0 {
		return nil, fmt.Errorf("invalid default order prices")
	}
	return &service{
		repo:          params.Repo,
		tx:            params.DB,
		outbox:        params.Outbox,
		restaurants:   params.Restaurants,
		basePrice:     params.BasePrice,
		seoExtraPrice: params.SeoExtraPrice,
		now:           time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.MenuOrder, error) {
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	if (input.BasePrice != nil && *input.BasePrice < 0) || (input.SeoExtraPrice != nil && *input.SeoExtraPrice < 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	restaurant, err := s.restaurants.Get(ctx, input.RestaurantID)
	if err != nil {
		return nil, err
	}
	if err := authorize(input.Actor, restaurant); err != nil {
		return nil, err
	}

	order := &models.MenuOrder{
		RestaurantID:  restaurant.ID,
		Status:        enums.OrderStatusUnpaid,
		IsSeo:         input.SeoEnabled,
		BasePrice:     s.basePrice,
	}
	if input.BasePrice != nil {
		order.BasePrice = *input.BasePrice
	}
	if order.IsSeo {
		order.SeoExtraPrice = s.seoExtraPrice
		if input.SeoExtraPrice != nil {
			order.SeoExtraPrice = *input.SeoExtraPrice
		}
	}
	for i, url := range input.ImageURLs {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		order.Images = append(order.Images, models.MenuImage{URL: url, Position: i})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateMenuOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.Actor, restaurant.ID),
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				RestaurantID: restaurant.ID,
				FinalPrice:   order.FinalPrice,
				IsSeo:        order.IsSeo,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.MenuOrder, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if actor.isAdmin() {
		return order, nil
	}
	restaurant, err := s.restaurants.Get(ctx, order.RestaurantID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, restaurant); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, actor Actor) ([]models.MenuOrder, error) {
	restaurant, err := s.restaurants.Get(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, restaurant); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

// CreateRenewal opens a NOT_RENEWED placeholder for an expiring restaurant.
// It reports false when the restaurant already has an open renewal-blocking
// order, including one inserted concurrently.
func (s *service) CreateRenewal(ctx context.Context, restaurant *models.Restaurant) (*models.MenuOrder, bool, error) {
	if restaurant == nil || restaurant.ID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "restaurant required")
	}
	var created *models.MenuOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		open, err := repo.HasOpenRenewalOrder(ctx, restaurant.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open orders")
		}
		if open {
			return nil
		}
		order := &models.MenuOrder{
			RestaurantID:  restaurant.ID,
			Status:        enums.OrderStatusNotRenewed,
			IsFinal:       false,
			IsActive:      false,
			IsSeo:         restaurant.IsSeo,
			BasePrice:     s.basePrice,
			SeoExtraPrice: s.seoExtraPrice,
		}
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		data := payloads.RenewalOrderCreatedEvent{
			OrderID:      order.ID,
			RestaurantID: restaurant.ID,
			FinalPrice:   order.FinalPrice,
		}
		if restaurant.ExpireDate != nil {
			data.ExpireDate = *restaurant.ExpireDate
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRenewalOrderCreated,
			AggregateType: enums.AggregateMenuOrder,
			AggregateID:   order.ID,
			Actor:         outbox.SystemActor,
			OccurredAt:    s.now().UTC(),
			Data:          data,
		}); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, openRenewalConstraint) || dbpkg.IsUniqueViolation(err, "menu_orders.restaurant_id") {
			return nil, false, nil
		}
		if pkgerrors.As(err) != nil {
			return nil, false, err
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create renewal order")
	}
	return created, created != nil, nil
}

// MarkPaid records a settled payment. UNPAID orders become PAID and
// NOT_RENEWED placeholders become RENEWAL; either way the restaurant is
// activated in the same transaction. A repeated confirmation of a paid order
// succeeds without side effects.
func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) (*MarkPaidResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.StatusCode != codeVerified && input.StatusCode != codeAlreadyVerified {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status code %d does not confirm a payment", input.StatusCode))
	}

	var result *MarkPaidResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err)
		}

		target, ok := paidTarget(order.Status)
		if !ok {
			if isDuplicateConfirmation(order.Status, input.StatusCode) {
				result = &MarkPaidResult{Order: order, From: order.Status}
				return nil
			}
			return pkgerrors.StateConflict("order", string(order.Status), "be marked paid")
		}

		updates := map[string]any{
			"status":     target,
			"is_final":   true,
			"is_active":  true,
			"updated_at": s.now().UTC(),
		}
		if input.RefID != "" {
			updates["ref_id"] = input.RefID
		}
		moved, err := repo.TransitionStatus(ctx, order.ID, order.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			current, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return mapLoadError(err)
			}
			if current.Status.IsPaid() {
				result = &MarkPaidResult{Order: current, From: current.Status}
				return nil
			}
			return pkgerrors.StateConflict("order", string(current.Status), "be marked paid")
		}

		from := order.Status
		order.Status = target
		order.IsFinal = true
		order.IsActive = true
		if input.RefID != "" {
			ref := input.RefID
			order.RefID = &ref
		}
		if err := s.restaurants.ActivateForOrder(ctx, tx, order); err != nil {
			return err
		}

		result = &MarkPaidResult{Order: order, From: from, Transitioned: true}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateMenuOrder,
			AggregateID:   order.ID,
			OccurredAt:    s.now().UTC(),
			Data: payloads.OrderPaidEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				Status:       target,
				RefID:        input.RefID,
				Amount:       input.Amount,
				PaidAt:       s.now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkUnpaidCancelled handles a payer abandoning the gateway. The status is
// kept; only the payment markers are cleared.
func (s *service) MarkUnpaidCancelled(ctx context.Context, orderID uuid.UUID) (*models.MenuOrder, error) {
	var out *models.MenuOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if order.Status != enums.OrderStatusUnpaid && order.Status != enums.OrderStatusNotRenewed {
			return pkgerrors.StateConflict("order", string(order.Status), "cancel payment")
		}
		moved, err := repo.TransitionStatus(ctx, order.ID, order.Status, map[string]any{
			"is_final":   false,
			"is_active":  false,
			"updated_at": s.now().UTC(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset order payment")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		order.IsFinal = false
		order.IsActive = false
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdminTransition overwrites the status with any declared value.
func (s *service) AdminTransition(ctx context.Context, orderID uuid.UUID, status string, actor Actor) (*models.MenuOrder, error) {
	if !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	target, err := enums.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
			WithDetails(map[string]any{"status": status})
	}

	var out *models.MenuOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		out = order
		if order.Status == target {
			return nil
		}
		from := order.Status
		if err := repo.UpdateColumns(ctx, order.ID, map[string]any{
			"status":     target,
			"updated_at": s.now().UTC(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = target
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateMenuOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(actor, order.RestaurantID),
			Data: payloads.OrderStateChangedEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				From:         from,
				To:           target,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel deletes an UNPAID order and its images.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	order, err := s.Get(ctx, orderID, actor)
	if err != nil {
		return err
	}
	if order.Status != enums.OrderStatusUnpaid {
		return pkgerrors.StateConflict("order", string(order.Status), "cancel")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deleted, err := repo.DeleteUnpaid(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if !deleted {
			current, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return mapLoadError(err)
			}
			return pkgerrors.StateConflict("order", string(current.Status), "cancel")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateMenuOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(actor, order.RestaurantID),
			Data: payloads.OrderCanceledEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				CanceledAt:   s.now().UTC(),
			},
		})
	})
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.MenuOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

// paidTarget returns the status a confirmed payment moves the order to.
func paidTarget(status enums.OrderStatus) (enums.OrderStatus, bool) {
	switch status {
	case enums.OrderStatusUnpaid:
		return enums.OrderStatusPaid, true
	case enums.OrderStatusNotRenewed:
		return enums.OrderStatusRenewal, true
	}
	return "", false
}

// isDuplicateConfirmation accepts code 101 for any paid order, and code 100
// only while the order has not moved past the payment step.
func isDuplicateConfirmation(status enums.OrderStatus, code int) bool {
	if !status.IsPaid() {
		return false
	}
	if code == codeAlreadyVerified {
		return true
	}
	return status == enums.OrderStatusPaid || status == enums.OrderStatusRenewal
}

func authorize(actor Actor, restaurant *models.Restaurant) error {
	if actor.isAdmin() {
		return nil
	}
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if restaurant.OwnerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "restaurant does not belong to user")
	}
	return nil
}

func buildActor(actor Actor, restaurantID uuid.UUID) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return outbox.SystemActor
	}
	userID := actor.UserID
	rid := restaurantID
	return &outbox.ActorRef{UserID: &userID, RestaurantID: &rid, Role: string(actor.Role)}
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("order")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
