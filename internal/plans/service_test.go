package plans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/dbtest"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/outbox"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, dbtest.Plans, dbtest.OutboxEvents)
	logg := logger.New(logger.Options{ServiceName: "plans-test"})
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		DB:     dbpkg.Wrap(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), logg),
	})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return testNow }
	return impl, conn
}

func seedPlan(t *testing.T, conn *gorm.DB, slug string, price int64, active bool) models.Plan {
	t.Helper()
	value := "unlimited"
	plan := models.Plan{
		Name:       slug,
		Slug:       slug,
		Price:      price,
		ExpiryDays: 90,
		IsActive:   active,
		Features: []models.PlanFeature{
			{Title: "QR menu", Position: 2, IsAvailable: true},
			{Title: "Items", Value: &value, Position: 1, IsAvailable: true},
		},
	}
	require.NoError(t, conn.Create(&plan).Error)
	if !active {
		require.NoError(t, conn.Model(&plan).UpdateColumn("is_active", false).Error)
	}
	return plan
}

func TestListActiveOrdersByPrice(t *testing.T) {
	svc, conn := newTestService(t)
	seedPlan(t, conn, "gold", 3000000, true)
	seedPlan(t, conn, "bronze", 1000000, true)
	seedPlan(t, conn, "legacy", 10, false)

	plans, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "bronze", plans[0].Slug)
	assert.Equal(t, "gold", plans[1].Slug)
	require.Len(t, plans[0].Features, 2)
	assert.Equal(t, "Items", plans[0].Features[0].Title)
}

func TestPurchaseReusesUnpaidOrder(t *testing.T) {
	svc, conn := newTestService(t)
	plan := seedPlan(t, conn, "silver", 2000000, true)
	userID := uuid.New()
	ctx := context.Background()

	first, err := svc.Purchase(ctx, userID, "silver")
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Equal(t, int64(2000000), first.Order.FinalPrice)
	assert.True(t, first.Order.ExpiryDate.Equal(testNow.Add(90*24*time.Hour)))

	svc.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	second, err := svc.Purchase(ctx, userID, "silver")
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	var count int64
	require.NoError(t, conn.Model(&models.PlanOrder{}).Where("plan_id = ?", plan.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = svc.Purchase(ctx, userID, "missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestActivateIsIdempotentAndKeepsExpiry(t *testing.T) {
	svc, conn := newTestService(t)
	seedPlan(t, conn, "silver", 2000000, true)
	ctx := context.Background()

	purchase, err := svc.Purchase(ctx, uuid.New(), "silver")
	require.NoError(t, err)
	expiry := purchase.Order.ExpiryDate

	svc.now = func() time.Time { return testNow.Add(time.Hour) }
	paid, err := svc.Activate(ctx, purchase.Order.ID, "TRK-1")
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	firstPaidAt := *paid.PaidAt

	svc.now = func() time.Time { return testNow.Add(5 * time.Hour) }
	again, err := svc.Activate(ctx, purchase.Order.ID, "TRK-2")
	require.NoError(t, err)
	require.NotNil(t, again.PaidAt)
	assert.True(t, again.PaidAt.Equal(firstPaidAt))
	assert.True(t, again.ExpiryDate.Equal(expiry))
	require.NotNil(t, again.TrackingCode)
	assert.Equal(t, "TRK-1", *again.TrackingCode)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPlanOrderPaid).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	_, err = svc.Activate(ctx, uuid.New(), "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCartAppliesNinePercentTax(t *testing.T) {
	svc, conn := newTestService(t)
	seedPlan(t, conn, "silver", 1999999, true)
	userID := uuid.New()
	ctx := context.Background()

	empty, err := svc.Cart(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalCost)
	assert.Nil(t, empty.PlanOrderID)

	_, err = svc.Purchase(ctx, userID, "silver")
	require.NoError(t, err)

	cart, err := svc.Cart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "silver", cart.PlanName)
	assert.Equal(t, int64(1999999), cart.PlanCost)
	assert.Equal(t, int64(179999), cart.TaxCost)
	assert.Equal(t, int64(2179998), cart.TotalCost)
}

func TestSummarizeAndExpiryHelpers(t *testing.T) {
	s := Summarize(1000000, 250000)
	assert.Equal(t, int64(112500), s.TaxCost)
	assert.Equal(t, int64(1362500), s.TotalCost)

	order := &models.PlanOrder{IsPaid: true, ExpiryDate: testNow.Add(36 * time.Hour)}
	assert.Equal(t, 1, DaysRemaining(order, testNow))
	assert.True(t, IsActive(order, testNow))
	assert.False(t, IsActive(order, testNow.Add(37*time.Hour)))
	assert.True(t, IsExpired(order, testNow.Add(40*time.Hour)))

	order.IsPaid = false
	assert.False(t, IsActive(order, testNow))
}
