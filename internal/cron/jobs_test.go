package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/internal/orders"
	"github.com/rank0/digimenu-backend/internal/restaurants"
	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/dbtest"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/outbox"
)

type jobsFixture struct {
	conn        *gorm.DB
	db          *dbpkg.Client
	logg        *logger.Logger
	emitter     *outbox.Service
	restaurants restaurants.Service
	orders      orders.Service
}

func newJobsFixture(t *testing.T) *jobsFixture {
	t.Helper()
	conn := dbtest.Open(t, dbtest.Restaurants, dbtest.MenuOrders, dbtest.Payments, dbtest.OutboxEvents)
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	client := dbpkg.Wrap(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	restaurantSvc, err := restaurants.NewService(restaurants.ServiceParams{
		Repo:          restaurants.NewRepository(conn),
		DB:            client,
		Outbox:        emitter,
		ExtensionDays: 30,
	})
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:          orders.NewRepository(conn),
		DB:            client,
		Outbox:        emitter,
		Restaurants:   restaurantSvc,
		BasePrice:     990000,
		SeoExtraPrice: 390000,
	})
	require.NoError(t, err)

	return &jobsFixture{
		conn:        conn,
		db:          client,
		logg:        logg,
		emitter:     emitter,
		restaurants: restaurantSvc,
		orders:      orderSvc,
	}
}

func (f *jobsFixture) seed(t *testing.T, slug string, active bool, expire time.Time) models.Restaurant {
	t.Helper()
	expire = expire.UTC()
	row := models.Restaurant{
		OwnerID:    uuid.New(),
		Name:       slug,
		Slug:       slug,
		IsActive:   true,
		ExpireDate: &expire,
	}
	require.NoError(t, f.conn.Create(&row).Error)
	if !active {
		require.NoError(t, f.conn.Model(&models.Restaurant{}).Where("id = ?", row.ID).Update("is_active", false).Error)
		row.IsActive = false
	}
	return row
}

func (f *jobsFixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestRenewalOrdersJobCreatesOneOrderPerRestaurant(t *testing.T) {
	f := newJobsFixture(t)
	now := time.Now().UTC()
	due := f.seed(t, "due", true, now.Add(2*24*time.Hour))
	f.seed(t, "later", true, now.Add(10*24*time.Hour))

	job, err := NewRenewalOrdersJob(RenewalOrdersJobParams{
		Logger:      f.logg,
		Restaurants: f.restaurants,
		Orders:      f.orders,
	})
	require.NoError(t, err)

	first, err := job.RunAt(context.Background(), now)
	require.NoError(t, err)
	require.NoError(t, first.Err)
	require.Len(t, first.Created, 1)

	second, err := job.RunAt(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, second.Created)

	var rows []models.MenuOrder
	require.NoError(t, f.conn.Where("restaurant_id = ?", due.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.OrderStatusNotRenewed, rows[0].Status)
	assert.Equal(t, int64(990000), rows[0].FinalPrice)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventRenewalOrderCreated))
}

func TestRenewalOrdersJobCollectsPerRestaurantFailures(t *testing.T) {
	now := time.Now().UTC()
	expire := now.Add(24 * time.Hour)
	candidates := []models.Restaurant{
		{ID: uuid.New(), ExpireDate: &expire},
		{ID: uuid.New(), ExpireDate: &expire},
	}
	creator := &flakyRenewals{failFor: candidates[0].ID}
	job, err := NewRenewalOrdersJob(RenewalOrdersJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		Restaurants: staticCandidates(candidates),
		Orders:      creator,
	})
	require.NoError(t, err)

	result, err := job.RunAt(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	assert.Error(t, result.Err)
	assert.Equal(t, 2, creator.calls)

	assert.NoError(t, job.Run(context.Background(), now))
}

func TestExpiredRestaurantsJobDeactivatesOnce(t *testing.T) {
	f := newJobsFixture(t)
	now := time.Now().UTC()
	expired := f.seed(t, "expired", true, now.Add(-time.Hour))
	live := f.seed(t, "live", true, now.Add(5*24*time.Hour))

	job, err := NewExpiredRestaurantsJob(ExpiredRestaurantsJobParams{
		Logger:      f.logg,
		Restaurants: f.restaurants,
	})
	require.NoError(t, err)

	first, err := job.RunAt(context.Background(), now)
	require.NoError(t, err)
	require.NoError(t, first.Err)
	assert.Equal(t, 1, first.Deactivated)

	second, err := job.RunAt(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deactivated)

	var gotExpired, gotLive models.Restaurant
	require.NoError(t, f.conn.First(&gotExpired, "id = ?", expired.ID).Error)
	assert.False(t, gotExpired.IsActive)
	require.NoError(t, f.conn.First(&gotLive, "id = ?", live.ID).Error)
	assert.True(t, gotLive.IsActive)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventRestaurantDeactivated))
}

func TestExpiredRestaurantsJobUsesInjectedNow(t *testing.T) {
	f := newJobsFixture(t)
	wall := time.Now().UTC()
	lapsesLater := f.seed(t, "lapses-later", true, wall.Add(5*24*time.Hour))

	job, err := NewExpiredRestaurantsJob(ExpiredRestaurantsJobParams{
		Logger:      f.logg,
		Restaurants: f.restaurants,
	})
	require.NoError(t, err)

	result, err := job.RunAt(context.Background(), wall.Add(10*24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Deactivated)

	var got models.Restaurant
	require.NoError(t, f.conn.First(&got, "id = ?", lapsesLater.ID).Error)
	assert.False(t, got.IsActive)
}

func TestRenewalRemindersJobSendsOncePerDay(t *testing.T) {
	f := newJobsFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seed(t, "soon", true, now.Add(5*24*time.Hour))
	f.seed(t, "too-close", true, now.Add(24*time.Hour))
	f.seed(t, "far", true, now.Add(20*24*time.Hour))
	f.seed(t, "off", false, now.Add(5*24*time.Hour))

	job, err := NewRenewalRemindersJob(RenewalRemindersJobParams{
		Logger:      f.logg,
		DB:          f.db,
		Restaurants: f.restaurants,
		Outbox:      f.emitter,
	})
	require.NoError(t, err)

	first, err := job.RunAt(context.Background(), now)
	require.NoError(t, err)
	require.NoError(t, first.Err)
	assert.Equal(t, 1, first.Sent)

	sameDay, err := job.RunAt(context.Background(), now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, sameDay.Sent)

	nextDay, err := job.RunAt(context.Background(), now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, nextDay.Sent)

	assert.Equal(t, int64(2), f.countEvents(t, enums.EventRestaurantRenewalReminder))
}

func TestRenewalRemindersJobRunLogsPerRestaurantFailures(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	expire := now.Add(5 * 24 * time.Hour)
	broken := models.Restaurant{ID: uuid.New(), OwnerID: uuid.New(), Name: "broken", ExpireDate: &expire}
	healthy := models.Restaurant{ID: uuid.New(), OwnerID: uuid.New(), Name: "healthy", ExpireDate: &expire}
	emitter := &failingEmitter{failFor: broken.ID}

	job, err := NewRenewalRemindersJob(RenewalRemindersJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:          passthroughTx{},
		Restaurants: staticExpiring{broken, healthy},
		Outbox:      emitter,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background(), now))
	assert.Equal(t, 2, emitter.calls)

	result, err := job.RunAt(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.ErrorContains(t, result.Err, broken.ID.String())
}

func TestRenewalRemindersJobRunPropagatesQueryFailure(t *testing.T) {
	job, err := NewRenewalRemindersJob(RenewalRemindersJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:          passthroughTx{},
		Restaurants: brokenExpiring{},
		Outbox:      &countingEmitter{},
	})
	require.NoError(t, err)
	assert.ErrorContains(t, job.Run(context.Background(), time.Now()), "query expiring restaurants")
}

func TestRenewalRemindersJobRejectsInvertedWindow(t *testing.T) {
	_, err := NewRenewalRemindersJob(RenewalRemindersJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:          passthroughTx{},
		Restaurants: noExpiring{},
		Outbox:      &countingEmitter{},
		MinDays:     7,
		MaxDays:     3,
	})
	assert.Error(t, err)
}

func TestReminderDedupeKeyIsPerDay(t *testing.T) {
	morning := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, ReminderDedupeKey("r1", morning), ReminderDedupeKey("r1", evening))
	assert.NotEqual(t, ReminderDedupeKey("r1", morning), ReminderDedupeKey("r1", morning.Add(24*time.Hour)))
	assert.Equal(t, "restaurant_renewal_reminder:r1:2026-03-10", ReminderDedupeKey("r1", morning))
}

type staticCandidates []models.Restaurant

func (s staticCandidates) DueForRenewal(context.Context, time.Time, int) ([]models.Restaurant, error) {
	return s, nil
}

type flakyRenewals struct {
	failFor uuid.UUID
	calls   int
}

func (f *flakyRenewals) CreateRenewal(_ context.Context, restaurant *models.Restaurant) (*models.MenuOrder, bool, error) {
	f.calls++
	if restaurant.ID == f.failFor {
		return nil, false, errors.New("db down")
	}
	return &models.MenuOrder{ID: uuid.New(), RestaurantID: restaurant.ID}, true, nil
}

type noExpiring struct{}

func (noExpiring) ExpiringBetween(context.Context, time.Time, int, int) ([]models.Restaurant, error) {
	return nil, nil
}

type countingEmitter struct{ calls int }

func (c *countingEmitter) EmitIfNotExists(context.Context, *gorm.DB, outbox.DomainEvent) (bool, error) {
	c.calls++
	return true, nil
}

type staticExpiring []models.Restaurant

func (s staticExpiring) ExpiringBetween(context.Context, time.Time, int, int) ([]models.Restaurant, error) {
	return s, nil
}

type brokenExpiring struct{}

func (brokenExpiring) ExpiringBetween(context.Context, time.Time, int, int) ([]models.Restaurant, error) {
	return nil, errors.New("db down")
}

type failingEmitter struct {
	failFor uuid.UUID
	calls   int
}

func (f *failingEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) (bool, error) {
	f.calls++
	if event.AggregateID == f.failFor {
		return false, errors.New("outbox insert failed")
	}
	return true, nil
}
