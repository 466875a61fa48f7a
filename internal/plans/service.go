package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/outbox"
	"github.com/rank0/digimenu-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service sells subscription plans.
type Service interface {
	ListActive(ctx context.Context) ([]PlanDTO, error)
	Purchase(ctx context.Context, userID uuid.UUID, planSlug string) (*PurchaseResult, error)
	Cart(ctx context.Context, userID uuid.UUID) (*CartSummary, error)
	Activate(ctx context.Context, planOrderID uuid.UUID, trackingCode string) (*models.PlanOrder, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]PlanOrderDTO, error)
}

type ServiceParams struct {
	Repo   Repository
	DB     txRunner
	Outbox outboxEmitter
}

// PurchaseResult reports whether an existing unpaid order was reused.
type PurchaseResult struct {
	Order  *models.PlanOrder
	Reused bool
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxEmitter
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: params.Repo, tx: params.DB, outbox: params.Outbox, now: time.Now}, nil
}

func (s *service) ListActive(ctx context.Context) ([]PlanDTO, error) {
	plans, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	out := make([]PlanDTO, 0, len(plans))
	for i := range plans {
		out = append(out, toPlanDTO(&plans[i]))
	}
	return out, nil
}

// Purchase puts a plan in the user's cart. The expiry is fixed here, from the
// plan's length at purchase time.
func (s *service) Purchase(ctx context.Context, userID uuid.UUID, planSlug string) (*PurchaseResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	slug := strings.TrimSpace(planSlug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan slug required")
	}
	plan, err := s.repo.FindActiveBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("plan")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}

	existing, err := s.repo.FindUnpaidOrder(ctx, userID, plan.ID)
	switch {
	case err == nil:
		existing.Plan = plan
		return &PurchaseResult{Order: existing, Reused: true}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan orders")
	}

	days := plan.ExpiryDays
	if days <= 0 {
		days = models.DefaultPlanExpiryDays
	}
	now := s.now().UTC()
	order := &models.PlanOrder{
		PlanID:     plan.ID,
		UserID:     userID,
		FinalPrice: plan.Price,
		ExpiryDate: now.Add(time.Duration(days) * day),
		CreatedAt:  now,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan order")
	}
	order.Plan = plan
	return &PurchaseResult{Order: order}, nil
}

// Cart summarises the user's most recent unpaid plan. An empty cart is all
// zeroes.
func (s *service) Cart(ctx context.Context, userID uuid.UUID) (*CartSummary, error) {
	order, err := s.repo.LatestUnpaidOrder(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			summary := Summarize(0, 0)
			return &summary, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	// stands are not sold yet
	summary := Summarize(order.FinalPrice, 0)
	if order.Plan != nil {
		summary.PlanName = order.Plan.Name
	}
	id := order.ID.String()
	summary.PlanOrderID = &id
	return &summary, nil
}

// Activate marks a plan purchase paid. Calling it again returns the order
// unchanged.
func (s *service) Activate(ctx context.Context, planOrderID uuid.UUID, trackingCode string) (*models.PlanOrder, error) {
	var out *models.PlanOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, planOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("plan order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan order")
		}
		out = order
		if order.IsPaid {
			return nil
		}

		paidAt := s.now().UTC()
		var code *string
		if trackingCode = strings.TrimSpace(trackingCode); trackingCode != "" {
			code = &trackingCode
		}
		changed, err := repo.MarkOrderPaid(ctx, order.ID, paidAt, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate plan order")
		}
		if !changed {
			return nil
		}
		order.IsPaid = true
		order.PaidAt = &paidAt
		if code != nil {
			order.TrackingCode = code
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlanOrderPaid,
			AggregateType: enums.AggregatePlanOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &order.UserID, Role: string(enums.RoleOwner)},
			OccurredAt:    paidAt,
			Data: payloads.PlanOrderPaidEvent{
				PlanOrderID:  order.ID,
				PlanID:       order.PlanID,
				UserID:       order.UserID,
				TrackingCode: trackingCode,
				ExpiryDate:   order.ExpiryDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]PlanOrderDTO, error) {
	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plan orders")
	}
	now := s.now().UTC()
	out := make([]PlanOrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, toPlanOrderDTO(&orders[i], now))
	}
	return out, nil
}
