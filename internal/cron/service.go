package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/pkg/logger"
	"github.com/rank0/digimenu-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	Clock    func() time.Time
}

// Service drives the daily renewal cycle: one lock, one stamped instant, and
// every registered job in order.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	clock    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("job registry required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		clock:    clock,
	}, nil
}

// CycleReport summarizes one pass over the registry.
type CycleReport struct {
	ID      string
	At      time.Time
	Skipped bool
	Holder  string
	Ran     []string
	Failed  []string
}

// Run executes a cycle immediately and then once per interval until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "renewal cycle failed", err)
	}
}

// RunOnce runs a single locked cycle over the named jobs, or all jobs when
// none are named. A failing job is logged and the cycle moves on.
func (s *Service) RunOnce(ctx context.Context, names ...string) (*CycleReport, error) {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return nil, err
	}
	report := &CycleReport{ID: uuid.NewString(), At: s.clock().UTC()}
	cycleCtx := s.logg.WithFields(ctx, map[string]any{
		"cycle_id": report.ID,
		"cycle_at": report.At,
	})

	locked, err := s.lock.Acquire(cycleCtx)
	if err != nil {
		return nil, err
	}
	if !locked {
		report.Skipped = true
		report.Holder, err = s.lock.Holder(cycleCtx)
		if err != nil {
			s.logg.Error(cycleCtx, "could not read cron lock holder", err)
		}
		s.logg.Info(s.logg.WithField(cycleCtx, "lock_holder", report.Holder), "renewal cycle held by another worker; skipping")
		return report, nil
	}
	defer func() {
		if relErr := s.lock.Release(cycleCtx); relErr != nil {
			s.logg.Error(cycleCtx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(cycleCtx, "renewal cycle starting")
	for _, job := range jobs {
		report.Ran = append(report.Ran, job.Name())
		if !s.runJob(cycleCtx, job, report.At) {
			report.Failed = append(report.Failed, job.Name())
		}
	}
	s.logg.Info(s.logg.WithFields(cycleCtx, map[string]any{
		"jobs":   len(report.Ran),
		"failed": len(report.Failed),
	}), "renewal cycle complete")
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job, at time.Time) bool {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
	})
	start := time.Now()
	err := job.Run(jobCtx, at)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(jobCtx, "cron job failed", err)
		return false
	}
	s.metrics.IncSuccess(job.Name())
	s.logg.Info(jobCtx, "cron job completed")
	return true
}
