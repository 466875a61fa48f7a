package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
)

const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 10
)

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    outboxRetentionRepo
	Metrics       *metrics.CronJobMetrics
	RetentionDays int
	MaxAttempts   int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob builds the job that trims delivered and dead outbox
// rows. MaxAttempts should match the publisher's give-up threshold.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (*OutboxRetentionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = outboxMinAttempts
	}
	return &OutboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		metrics:   params.Metrics,
		retention: retention,
		attempts:  attempts,
	}, nil
}

type OutboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	metrics   *metrics.CronJobMetrics
	retention int
	attempts  int
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context, now time.Time) error {
	cutoff := now.UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.attempts)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.metrics.AddItems(j.Name(), "deleted", int(deleted))
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
