package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, dbtest.Foods, dbtest.ExchangeRates, dbtest.OutboxEvents)
	logg := logger.New(logger.Options{ServiceName: "pricing-test"})
	svc, err := NewService(ServiceParams{
		Repo:         NewRepository(conn),
		DB:           dbpkg.Wrap(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:       logg,
		FallbackRate: decimal.NewFromInt(60000),
	})
	require.NoError(t, err)
	return svc, conn
}

func seedFood(t *testing.T, conn *gorm.DB, base *int64) models.Food {
	t.Helper()
	food := models.Food{Title: "kebab", BasePriceLocal: base, IsAvailable: true}
	require.NoError(t, conn.Create(&food).Error)
	return food
}

func TestActivateKeepsSingleActiveRate(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateRate(ctx, CreateRateInput{Rate: decimal.NewFromInt(60000), Activate: true})
	require.NoError(t, err)
	second, err := svc.CreateRate(ctx, CreateRateInput{Rate: decimal.NewFromInt(65000), Activate: true})
	require.NoError(t, err)

	var active []models.ExchangeRate
	require.NoError(t, conn.Where("is_active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, second.Rate.ID, active[0].ID)

	_, err = svc.Activate(ctx, first.Rate.ID, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Where("is_active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, first.Rate.ID, active[0].ID)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventExchangeRateActivated).
		Count(&events).Error)
	assert.Equal(t, int64(3), events)
}

func TestActivateRecomputesDerivedPrices(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	base := int64(100000)
	priced := seedFood(t, conn, &base)
	unpriced := seedFood(t, conn, nil)

	result, err := svc.CreateRate(ctx, CreateRateInput{Rate: decimal.NewFromInt(60000), Activate: true})
	require.NoError(t, err)
	require.NotNil(t, result.Recompute)
	assert.Equal(t, 1, result.Recompute.Updated)
	assert.Equal(t, 0, result.Recompute.Failed)
	assert.NoError(t, result.Recompute.Err)

	var reloaded models.Food
	require.NoError(t, conn.First(&reloaded, "id = ?", priced.ID).Error)
	require.NotNil(t, reloaded.DerivedPriceMinor)
	assert.Equal(t, int64(166), *reloaded.DerivedPriceMinor)

	var unpricedReloaded models.Food
	require.NoError(t, conn.First(&unpricedReloaded, "id = ?", unpriced.ID).Error)
	assert.Nil(t, unpricedReloaded.BasePriceLocal)
	assert.Nil(t, unpricedReloaded.DerivedPriceMinor)
}

func TestCreateRateRejectsNonPositive(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateRate(context.Background(), CreateRateInput{Rate: decimal.Zero, Activate: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestActivateUnknownRate(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Activate(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestActiveRateFallsBackWhenNoneActive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rate, err := svc.ActiveRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(60000)))

	_, err = svc.CreateRate(ctx, CreateRateInput{Rate: decimal.RequireFromString("71500.5"), Activate: true})
	require.NoError(t, err)
	rate, err = svc.ActiveRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "71500.5", rate.String())
}

type flakyRepo struct {
	Repository
	foods   []models.Food
	failIDs map[uuid.UUID]bool
	written map[uuid.UUID]int64
}

func (f *flakyRepo) ListPricedFoods(context.Context) ([]models.Food, error) {
	return f.foods, nil
}

func (f *flakyRepo) UpdateDerivedPrice(_ context.Context, id uuid.UUID, cents *int64) error {
	if f.failIDs[id] {
		return errors.New("write failed")
	}
	f.written[id] = *cents
	return nil
}

func TestRecomputeContinuesPastFailures(t *testing.T) {
	base := int64(120000)
	foods := []models.Food{
		{ID: uuid.New(), BasePriceLocal: &base},
		{ID: uuid.New(), BasePriceLocal: &base},
		{ID: uuid.New(), BasePriceLocal: &base},
	}
	repo := &flakyRepo{
		foods:   foods,
		failIDs: map[uuid.UUID]bool{foods[1].ID: true},
		written: map[uuid.UUID]int64{},
	}
	svc := &service{
		repo: repo,
		logg: logger.New(logger.Options{ServiceName: "pricing-test"}),
	}

	result := svc.RecomputeAllPrices(context.Background(), decimal.NewFromInt(60000))
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Error(t, result.Err)
	assert.Equal(t, int64(200), repo.written[foods[0].ID])
	assert.Equal(t, int64(200), repo.written[foods[2].ID])
}
