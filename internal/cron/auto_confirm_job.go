package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
)

const (
	AutoConfirmJobName    = "auto_confirm"
	defaultGracePeriod    = 6 * time.Hour
	defaultConfirmBatch   = 500
	autoConfirmActorLabel = "system"
)

type orderConfirmer interface {
	ListStalePlaced(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (bool, error)
}

// AutoConfirmJobParams configure the auto-confirm job.
type AutoConfirmJobParams struct {
	Logger    *logger.Logger
	Orders    orderConfirmer
	Metrics   *metrics.CronJobMetrics
	Grace     time.Duration
	BatchSize int
}

type autoConfirmJob struct {
	logg      *logger.Logger
	orders    orderConfirmer
	metrics   *metrics.CronJobMetrics
	grace     time.Duration
	batchSize int
}

// NewAutoConfirmJob builds the job that promotes placed orders older than the
// grace period to confirmed.
func NewAutoConfirmJob(params AutoConfirmJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order confirmer required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultConfirmBatch
	}
	return &autoConfirmJob{
		logg:      params.Logger,
		orders:    params.Orders,
		metrics:   params.Metrics,
		grace:     grace,
		batchSize: batch,
	}, nil
}

func (j *autoConfirmJob) Name() string { return AutoConfirmJobName }

// Run confirms each stale order independently. Failures are logged and
// collected; they never stop the rest of the batch.
func (j *autoConfirmJob) Run(ctx context.Context) error {
	stale, err := j.orders.ListStalePlaced(ctx, j.grace, j.batchSize)
	if err != nil {
		return fmt.Errorf("list stale placed orders: %w", err)
	}

	actor := &outbox.ActorRef{Role: autoConfirmActorLabel}
	var (
		errs      error
		confirmed int
		failed    int
	)
	for _, order := range stale {
		orderCtx := j.logg.WithFields(ctx, map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		})
		changed, err := j.orders.Confirm(orderCtx, order.ID, actor)
		if err != nil {
			failed++
			j.logg.Error(orderCtx, "auto-confirm failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if changed {
			confirmed++
		}
	}

	j.metrics.AddProcessed(AutoConfirmJobName, "ok", confirmed)
	j.metrics.AddProcessed(AutoConfirmJobName, "failed", failed)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"confirmed":  confirmed,
		"failed":     failed,
		"status_to":  enums.OrderStatusConfirmed,
	}), "auto-confirm pass complete")
	return errs
}
