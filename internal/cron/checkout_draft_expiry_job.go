package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
)

const CheckoutDraftExpiryJobName = "checkout_draft_expiry"

type draftExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// CheckoutDraftExpiryJobParams configure the draft expiry job.
type CheckoutDraftExpiryJobParams struct {
	Logger  *logger.Logger
	Drafts  draftExpirer
	Metrics *metrics.CronJobMetrics
}

type checkoutDraftExpiryJob struct {
	logg    *logger.Logger
	drafts  draftExpirer
	metrics *metrics.CronJobMetrics
}

// NewCheckoutDraftExpiryJob builds the job that expires abandoned checkout drafts.
func NewCheckoutDraftExpiryJob(params CheckoutDraftExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Drafts == nil {
		return nil, fmt.Errorf("draft expirer required")
	}
	return &checkoutDraftExpiryJob{logg: params.Logger, drafts: params.Drafts, metrics: params.Metrics}, nil
}

func (j *checkoutDraftExpiryJob) Name() string { return CheckoutDraftExpiryJobName }

func (j *checkoutDraftExpiryJob) Run(ctx context.Context) error {
	n, err := j.drafts.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire checkout drafts: %w", err)
	}
	j.metrics.AddProcessed(CheckoutDraftExpiryJobName, "ok", int(n))
	j.logg.Info(j.logg.WithField(ctx, "expired", n), "checkout drafts expired")
	return nil
}
