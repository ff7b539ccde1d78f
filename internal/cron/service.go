package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
)

const defaultInterval = 30 * time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Metrics  *metrics.CronJobMetrics
}

// Service ticks every registered job on its own interval. Each tick acquires
// the job's lock first and is a no-op when another instance holds it.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	metrics  *metrics.CronJobMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil || len(params.Registry.Entries()) == 0 {
		return nil, fmt.Errorf("at least one scheduled job required")
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		metrics:  params.Metrics,
	}, nil
}

// Run starts one loop per job until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, entry := range s.registry.Entries() {
		entry := entry
		group.Go(func() error {
			return s.loop(groupCtx, entry)
		})
	}
	return group.Wait()
}

func (s *Service) loop(ctx context.Context, entry Entry) error {
	loopCtx := s.logg.WithField(ctx, "job", entry.Job.Name())
	interval := entry.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	if err := s.runCycle(ctx, entry); err != nil {
		s.logg.Error(loopCtx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(loopCtx, "cron loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx, entry); err != nil {
				s.logg.Error(loopCtx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context, entry Entry) error {
	name := entry.Job.Name()
	ctx = s.logg.WithJob(ctx, name, uuid.NewString())
	lease, err := entry.Lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if lease == nil {
		s.logg.Info(ctx, "lock held by another instance; skipping tick")
		s.metrics.IncSkipped(name)
		return nil
	}
	defer func() {
		// a failed release falls back to the lock TTL
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	jobCtx, cancel := context.WithCancelCause(ctx)
	var renewer sync.WaitGroup
	if entry.Renew > 0 {
		renewer.Go(func() { s.keepAlive(jobCtx, lease, entry.Renew, cancel) })
	}
	defer renewer.Wait()
	defer cancel(nil)

	s.runJob(jobCtx, entry.Job)
	return nil
}

// keepAlive extends lease every interval until ctx ends. Losing the lease
// cancels the running job.
func (s *Service) keepAlive(ctx context.Context, lease Lease, every time.Duration, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := lease.Extend(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logg.Warn(ctx, "cron lock extend failed")
				}
				continue
			}
			if !held {
				s.logg.Error(ctx, "cron lock lost mid-run", ErrLeaseLost)
				cancel(ErrLeaseLost)
				return
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
}
