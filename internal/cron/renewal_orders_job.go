package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
)

const defaultRenewalHorizonDays = 4

// RenewalOrdersJobParams configure the renewal order scheduler.
type RenewalOrdersJobParams struct {
	Logger      *logger.Logger
	Restaurants renewalCandidates
	Orders      renewalOrderCreator
	Metrics     *metrics.CronJobMetrics
	HorizonDays int
}

// RenewalOrdersResult lists what one pass created. Err combines the
// per-restaurant failures.
type RenewalOrdersResult struct {
	Created []uuid.UUID
	Skipped int
	Err     error
}

// NewRenewalOrdersJob builds the job that opens NOT_RENEWED orders for
// restaurants about to expire.
func NewRenewalOrdersJob(params RenewalOrdersJobParams) (*RenewalOrdersJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Restaurants == nil {
		return nil, fmt.Errorf("restaurant lookup required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	horizon := params.HorizonDays
	if horizon <= 0 {
		horizon = defaultRenewalHorizonDays
	}
	return &RenewalOrdersJob{
		logg:        params.Logger,
		restaurants: params.Restaurants,
		orders:      params.Orders,
		metrics:     params.Metrics,
		horizon:     horizon,
	}, nil
}

type RenewalOrdersJob struct {
	logg        *logger.Logger
	restaurants renewalCandidates
	orders      renewalOrderCreator
	metrics     *metrics.CronJobMetrics
	horizon     int
}

func (j *RenewalOrdersJob) Name() string { return "renewal-orders" }

// Run logs per-restaurant failures instead of failing the cycle; only a
// failed candidate query is reported to the scheduler.
func (j *RenewalOrdersJob) Run(ctx context.Context, now time.Time) error {
	result, err := j.RunAt(ctx, now.UTC())
	if err != nil {
		return err
	}
	if result.Err != nil {
		j.logg.Error(ctx, "some renewal orders could not be created", result.Err)
	}
	return nil
}

// RunAt performs one pass as of now.
func (j *RenewalOrdersJob) RunAt(ctx context.Context, now time.Time) (*RenewalOrdersResult, error) {
	candidates, err := j.restaurants.DueForRenewal(ctx, now, j.horizon)
	if err != nil {
		return nil, fmt.Errorf("query renewal candidates: %w", err)
	}

	result := &RenewalOrdersResult{}
	failed := 0
	for i := range candidates {
		restaurant := &candidates[i]
		order, created, err := j.orders.CreateRenewal(ctx, restaurant)
		if err != nil {
			failed++
			result.Err = multierr.Append(result.Err, fmt.Errorf("restaurant %s: %w", restaurant.ID, err))
			continue
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Created = append(result.Created, order.ID)
	}

	j.metrics.AddItems(j.Name(), "created", len(result.Created))
	j.metrics.AddItems(j.Name(), "skipped", result.Skipped)
	j.metrics.AddItems(j.Name(), "failed", failed)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates":   len(candidates),
		"created":      len(result.Created),
		"skipped":      result.Skipped,
		"failed":       failed,
		"horizon_days": j.horizon,
	})
	j.logg.Info(logCtx, "renewal order loop complete")
	return result, nil
}
