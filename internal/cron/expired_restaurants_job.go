package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
)

type ExpiredRestaurantsJobParams struct {
	Logger      *logger.Logger
	Restaurants expiredRestaurants
	Metrics     *metrics.CronJobMetrics
}

// NewExpiredRestaurantsJob builds the job that switches off restaurants past
// their expiry.
func NewExpiredRestaurantsJob(params ExpiredRestaurantsJobParams) (*ExpiredRestaurantsJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Restaurants == nil {
		return nil, fmt.Errorf("restaurant service required")
	}
	return &ExpiredRestaurantsJob{
		logg:        params.Logger,
		restaurants: params.Restaurants,
		metrics:     params.Metrics,
	}, nil
}

type ExpiredRestaurantsJob struct {
	logg        *logger.Logger
	restaurants expiredRestaurants
	metrics     *metrics.CronJobMetrics
}

func (j *ExpiredRestaurantsJob) Name() string { return "expired-restaurants" }

func (j *ExpiredRestaurantsJob) Run(ctx context.Context, now time.Time) error {
	result, err := j.RunAt(ctx, now.UTC())
	if err != nil {
		return err
	}
	if result.Err != nil {
		j.logg.Error(ctx, "some restaurants could not be deactivated", result.Err)
	}
	return nil
}

// ExpiredRestaurantsResult counts the restaurants a pass switched off.
type ExpiredRestaurantsResult struct {
	Deactivated int
	Err         error
}

// RunAt deactivates every active restaurant expired as of now. A second pass
// finds nothing to do.
func (j *ExpiredRestaurantsJob) RunAt(ctx context.Context, now time.Time) (*ExpiredRestaurantsResult, error) {
	rows, err := j.restaurants.ExpiredActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("query expired restaurants: %w", err)
	}
	result := &ExpiredRestaurantsResult{}
	failed := 0
	for _, row := range rows {
		changed, err := j.restaurants.DeactivateIfExpiredAt(ctx, row.ID, now)
		if err != nil {
			failed++
			result.Err = multierr.Append(result.Err, fmt.Errorf("restaurant %s: %w", row.ID, err))
			continue
		}
		if changed {
			result.Deactivated++
		}
	}
	j.metrics.AddItems(j.Name(), "deactivated", result.Deactivated)
	j.metrics.AddItems(j.Name(), "failed", failed)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired":     len(rows),
		"deactivated": result.Deactivated,
		"failed":      failed,
	})
	j.logg.Info(logCtx, "expired restaurant loop complete")
	return result, nil
}
