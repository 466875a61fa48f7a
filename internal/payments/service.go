package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/internal/orders"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
	"github.com/rank0/digimenu-backend/pkg/zarinpal"
)

const (
	callbackScope      = "zarinpal_callback"
	startScope         = "payment_start"
	cancelledByPayer   = "cancelled by user"
	defaultStartLimit  = 5
	defaultStartWindow = time.Minute
)

// Gateway is the payment provider surface used here.
type Gateway interface {
	Request(ctx context.Context, req zarinpal.PaymentRequest) (*zarinpal.PaymentStart, error)
	Verify(ctx context.Context, authority string, amount int64) (*zarinpal.Verification, error)
}

// Orders is the slice of the order state machine payments drive.
type Orders interface {
	Get(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.MenuOrder, error)
	MarkPaid(ctx context.Context, input orders.MarkPaidInput) (*orders.MarkPaidResult, error)
	MarkUnpaidCancelled(ctx context.Context, orderID uuid.UUID) (*models.MenuOrder, error)
}

// CallbackGuard claims a gateway authority so concurrent callbacks for the
// same payment are processed once.
type CallbackGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// RateLimiter bounds how often one user may open gateway sessions.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service starts gateway payments and settles them from callbacks.
type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
	HandleCallback(ctx context.Context, input CallbackInput) (*CallbackResult, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) ([]models.Payment, error)
}

// ServiceParams wires the payment service. Guard and Limiter are optional.
type ServiceParams struct {
	Repo        Repository
	Orders      Orders
	Gateway     Gateway
	Guard       CallbackGuard
	Limiter     RateLimiter
	Logger      *logger.Logger
	Metrics     *metrics.PaymentMetrics
	CallbackURL string
	Description string
	CallbackTTL time.Duration
	StartLimit  int64
	StartWindow time.Duration
}

// StartInput opens a gateway session for an order.
type StartInput struct {
	OrderID uuid.UUID
	Actor   orders.Actor
}

// StartResult points the payer at the gateway.
type StartResult struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Amount      int64     `json:"amount"`
	Authority   string    `json:"authority"`
	RedirectURL string    `json:"redirect_url"`
}

// CallbackInput is the query the gateway appends when the payer returns.
type CallbackInput struct {
	Authority string
	Status    string
}

// CallbackResult summarises how a callback was settled.
type CallbackResult struct {
	OrderID     uuid.UUID         `json:"order_id"`
	Paid        bool              `json:"paid"`
	OrderStatus enums.OrderStatus `json:"order_status,omitempty"`
	StatusCode  *int              `json:"status_code,omitempty"`
	RefID       string            `json:"ref_id,omitempty"`
	Message     string            `json:"message,omitempty"`
	Duplicate   bool              `json:"duplicate"`
}

type service struct {
	repo        Repository
	orders      Orders
	gateway     Gateway
	guard       CallbackGuard
	limiter     RateLimiter
	logg        *logger.Logger
	metrics     *metrics.PaymentMetrics
	callbackURL string
	description string
	callbackTTL time.Duration
	startLimit  int64
	startWindow time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(params.CallbackURL) == "" {
		return nil, fmt.Errorf("callback url required")
	}
	svc := &service{
		repo:        params.Repo,
		orders:      params.Orders,
		gateway:     params.Gateway,
		guard:       params.Guard,
		limiter:     params.Limiter,
		logg:        params.Logger,
		metrics:     params.Metrics,
		callbackURL: params.CallbackURL,
		description: params.Description,
		callbackTTL: params.CallbackTTL,
		startLimit:  params.StartLimit,
		startWindow: params.StartWindow,
		now:         time.Now,
	}
	if svc.callbackTTL <= 0 {
		svc.callbackTTL = 24 * time.Hour
	}
	if svc.startLimit <= 0 {
		svc.startLimit = defaultStartLimit
	}
	if svc.startWindow <= 0 {
		svc.startWindow = defaultStartWindow
	}
	if svc.description == "" {
		svc.description = "digital menu order"
	}
	return svc, nil
}

func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := s.allowStart(ctx, input.Actor.UserID); err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, input.OrderID, input.Actor)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusUnpaid && order.Status != enums.OrderStatusNotRenewed {
		return nil, pkgerrors.StateConflict("order", string(order.Status), "start a payment")
	}

	req := zarinpal.PaymentRequest{
		Amount:      order.FinalPrice,
		Description: fmt.Sprintf("%s %s", s.description, order.ID),
		CallbackURL: s.callbackURL,
	}
	if user, err := s.repo.FindUser(ctx, input.Actor.UserID); err == nil {
		req.Mobile = user.Mobile
		if user.Email != nil {
			req.Email = *user.Email
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payer")
	}

	start, err := s.gateway.Request(ctx, req)
	if err != nil {
		s.metrics.ObserveStart("rejected")
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "payment request failed")
		return nil, err
	}

	payment := &models.Payment{
		OrderID:    order.ID,
		CustomerID: input.Actor.UserID,
		Amount:     order.FinalPrice,
		Authority:  start.Authority,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		s.metrics.ObserveStart("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	s.metrics.ObserveStart("started")

	return &StartResult{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		Amount:      payment.Amount,
		Authority:   start.Authority,
		RedirectURL: start.RedirectURL,
	}, nil
}

func (s *service) allowStart(ctx context.Context, userID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	ok, _, err := s.limiter.FixedWindowAllow(ctx, startScope+":"+userID.String(), s.startLimit, s.startWindow)
	if err != nil {
		// fail open
		s.logg.Warn(ctx, "payment rate limiter unavailable")
		return nil
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many payment attempts, try again shortly")
	}
	return nil
}

// HandleCallback settles the payment named by the authority. A gateway
// failure leaves the order and payment untouched so the callback can be
// retried.
func (s *service) HandleCallback(ctx context.Context, input CallbackInput) (*CallbackResult, error) {
	authority := strings.TrimSpace(input.Authority)
	if authority == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authority required")
	}
	status := strings.ToUpper(strings.TrimSpace(input.Status))
	if status != zarinpal.CallbackStatusOK && status != zarinpal.CallbackStatusCancel {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown callback status").
			WithDetails(map[string]any{"status": input.Status})
	}

	payment, err := s.loadPayment(ctx, authority)
	if err != nil {
		return nil, err
	}
	if payment.IsFinal {
		s.metrics.ObserveCallback("duplicate")
		return storedResult(payment), nil
	}

	release, err := s.claim(ctx, authority)
	if err != nil {
		return nil, err
	}
	settled := false
	defer func() {
		if !settled {
			release()
		}
	}()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":  payment.OrderID.String(),
		"authority": authority,
	})

	if status == zarinpal.CallbackStatusCancel {
		result, err := s.cancel(ctx, payment, nil, cancelledByPayer)
		if err != nil {
			return nil, err
		}
		settled = true
		s.metrics.ObserveCallback("cancelled")
		return result, nil
	}

	verification, err := s.gateway.Verify(ctx, authority, payment.Amount)
	if err != nil {
		s.metrics.ObserveCallback("gateway_error")
		s.logg.Error(ctx, "payment verification failed", err)
		return nil, err
	}

	code := verification.Code
	if !verification.Settled() {
		result, err := s.cancel(ctx, payment, &code, verification.Message)
		if err != nil {
			return nil, err
		}
		settled = true
		s.metrics.ObserveCallback("rejected")
		return result, nil
	}

	paid, err := s.orders.MarkPaid(ctx, orders.MarkPaidInput{
		OrderID:    payment.OrderID,
		RefID:      verification.RefID,
		StatusCode: code,
		Amount:     payment.Amount,
	})
	if err != nil {
		s.metrics.ObserveCallback("failed")
		return nil, err
	}

	refID := verification.RefID
	outcome := Outcome{IsFinal: true, StatusCode: &code, At: s.now().UTC()}
	if refID != "" {
		outcome.RefID = &refID
	}
	if verification.Message != "" {
		msg := verification.Message
		outcome.Message = &msg
	}
	if err := s.repo.RecordResult(ctx, payment.ID, outcome); err != nil {
		s.metrics.ObserveCallback("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment result")
	}
	settled = true
	s.metrics.ObserveCallback("paid")
	s.logg.Info(ctx, "payment settled")

	return &CallbackResult{
		OrderID:     payment.OrderID,
		Paid:        true,
		OrderStatus: paid.Order.Status,
		StatusCode:  &code,
		RefID:       refID,
		Message:     verification.Message,
		Duplicate:   !paid.Transitioned,
	}, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) ([]models.Payment, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, nil
}

// cancel records a failed or abandoned attempt and routes the order back to
// awaiting payment. An order that was already paid through another attempt
// is left as is.
func (s *service) cancel(ctx context.Context, payment *models.Payment, code *int, message string) (*CallbackResult, error) {
	result := &CallbackResult{OrderID: payment.OrderID, StatusCode: code, Message: message}

	order, err := s.orders.MarkUnpaidCancelled(ctx, payment.OrderID)
	switch {
	case err == nil:
		result.OrderStatus = order.Status
	case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
		s.logg.Warn(ctx, "callback for an order that no longer awaits payment")
	case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		// cancelled orders take their payments with them
		return result, nil
	default:
		return nil, err
	}

	outcome := Outcome{StatusCode: code, At: s.now().UTC()}
	if message != "" {
		outcome.Message = &message
	}
	if err := s.repo.RecordResult(ctx, payment.ID, outcome); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment result")
	}
	return result, nil
}

func (s *service) loadPayment(ctx context.Context, authority string) (*models.Payment, error) {
	payment, err := s.repo.FindByAuthority(ctx, authority)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("payment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// claim takes the per-authority guard. The returned func releases it.
func (s *service) claim(ctx context.Context, authority string) (func(), error) {
	if s.guard == nil {
		return func() {}, nil
	}
	key := s.guard.IdempotencyKey(callbackScope, authority)
	ok, err := s.guard.SetNX(ctx, key, s.now().UTC().Format(time.RFC3339), s.callbackTTL)
	if err != nil {
		s.logg.Warn(ctx, "callback guard unavailable")
		return func() {}, nil
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment callback already in progress")
	}
	return func() {
		if err := s.guard.Del(context.WithoutCancel(ctx), key); err != nil {
			s.logg.Warn(ctx, "release callback guard failed")
		}
	}, nil
}

func storedResult(payment *models.Payment) *CallbackResult {
	result := &CallbackResult{
		OrderID:    payment.OrderID,
		Paid:       true,
		StatusCode: payment.StatusCode,
		Duplicate:  true,
	}
	if payment.RefID != nil {
		result.RefID = *payment.RefID
	}
	if payment.Message != nil {
		result.Message = *payment.Message
	}
	return result
}
