package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/internal/restaurants"
	"github.com/rank0/digimenu-backend/pkg/enums"
	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
	"github.com/rank0/digimenu-backend/pkg/outbox"
	"github.com/rank0/digimenu-backend/pkg/outbox/payloads"
)

const (
	defaultReminderMinDays = 3
	defaultReminderMaxDays = 7
)

type RenewalRemindersJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Restaurants expiringRestaurants
	Outbox      dedupingEmitter
	Metrics     *metrics.CronJobMetrics
	MinDays     int
	MaxDays     int
}

// NewRenewalRemindersJob builds the job that queues one reminder per
// restaurant per day while its expiry is inside the reminder window.
func NewRenewalRemindersJob(params RenewalRemindersJobParams) (*RenewalRemindersJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Restaurants == nil {
		return nil, fmt.Errorf("restaurant service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	minDays, maxDays := params.MinDays, params.MaxDays
	if minDays <= 0 && maxDays <= 0 {
		minDays, maxDays = defaultReminderMinDays, defaultReminderMaxDays
	}
	if minDays < 0 || maxDays < minDays {
		return nil, fmt.Errorf("invalid reminder window %d..%d", minDays, maxDays)
	}
	return &RenewalRemindersJob{
		logg:        params.Logger,
		db:          params.DB,
		restaurants: params.Restaurants,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		minDays:     minDays,
		maxDays:     maxDays,
	}, nil
}

type RenewalRemindersJob struct {
	logg        *logger.Logger
	db          txRunner
	restaurants expiringRestaurants
	outbox      dedupingEmitter
	metrics     *metrics.CronJobMetrics
	minDays     int
	maxDays     int
}

func (j *RenewalRemindersJob) Name() string { return "renewal-reminders" }

func (j *RenewalRemindersJob) Run(ctx context.Context, now time.Time) error {
	result, err := j.RunAt(ctx, now.UTC())
	if err != nil {
		return err
	}
	if result.Err != nil {
		j.logg.Error(ctx, "some renewal reminders could not be queued", result.Err)
	}
	return nil
}

// RenewalRemindersResult reports one reminder pass. Err collects the
// per-restaurant failures; the rest of the batch still ran.
type RenewalRemindersResult struct {
	Sent int
	Err  error
}

// RunAt queues reminders as of now.
func (j *RenewalRemindersJob) RunAt(ctx context.Context, now time.Time) (*RenewalRemindersResult, error) {
	rows, err := j.restaurants.ExpiringBetween(ctx, now, j.minDays, j.maxDays)
	if err != nil {
		return nil, fmt.Errorf("query expiring restaurants: %w", err)
	}

	result := &RenewalRemindersResult{}
	for i := range rows {
		restaurant := rows[i]
		event := outbox.DomainEvent{
			EventType:     enums.EventRestaurantRenewalReminder,
			AggregateType: enums.AggregateRestaurant,
			AggregateID:   restaurant.ID,
			Actor:         outbox.SystemActor,
			OccurredAt:    now,
			DedupeKey:     ReminderDedupeKey(restaurant.ID.String(), now),
			Data: payloads.RenewalReminderEvent{
				RestaurantID:  restaurant.ID,
				OwnerID:       restaurant.OwnerID,
				Name:          restaurant.Name,
				ExpireDate:    *restaurant.ExpireDate,
				DaysRemaining: restaurants.DaysUntilExpiry(&restaurant, now),
			},
		}
		var written bool
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := j.outbox.EmitIfNotExists(ctx, tx, event)
			written = ok
			return err
		})
		if err != nil {
			result.Err = multierr.Append(result.Err, fmt.Errorf("restaurant %s: %w", restaurant.ID, err))
			continue
		}
		if written {
			result.Sent++
		}
	}
	failed := len(multierr.Errors(result.Err))
	j.metrics.AddItems(j.Name(), "sent", result.Sent)
	j.metrics.AddItems(j.Name(), "failed", failed)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expiring": len(rows),
		"sent":     result.Sent,
		"failed":   failed,
		"min_days": j.minDays,
		"max_days": j.maxDays,
	})
	j.logg.Info(logCtx, "renewal reminder loop complete")
	return result, nil
}

// ReminderDedupeKey scopes a reminder to one restaurant and one UTC day.
func ReminderDedupeKey(restaurantID string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", enums.EventRestaurantRenewalReminder, restaurantID, now.UTC().Format("2006-01-02"))
}
