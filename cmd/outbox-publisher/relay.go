package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/metrics"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackCeiling     = 10
	fallbackParallelism = 8
	fallbackSendTimeout = 15 * time.Second
	maxPause            = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type rowStore interface {
	Claim(tx *gorm.DB, limit, ceiling int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Bury(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, ceiling int, at time.Time) error
}

type router interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type sink interface {
	Ping(context.Context) error
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type RelayParams struct {
	DB      txRunner
	Store   rowStore
	Router  router
	Sink    sink
	Logger  *logger.Logger
	Metrics *metrics.OutboxMetrics
	Config  config.OutboxConfig
}

// Relay moves committed outbox rows to Pub/Sub. Delivery is at least once:
// consumers dedupe on the event_id attribute.
type Relay struct {
	db          txRunner
	store       rowStore
	router      router
	sink        sink
	logg        *logger.Logger
	metrics     *metrics.OutboxMetrics
	batch       int
	ceiling     int
	parallelism int
	poll        time.Duration
	sendTimeout time.Duration
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	var missing error
	for _, dep := range []struct {
		name   string
		absent bool
	}{
		{"db", p.DB == nil},
		{"store", p.Store == nil},
		{"router", p.Router == nil},
		{"sink", p.Sink == nil},
		{"logger", p.Logger == nil},
	} {
		if dep.absent {
			missing = multierr.Append(missing, fmt.Errorf("%s is required", dep.name))
		}
	}
	if missing != nil {
		return nil, missing
	}
	cfg := p.Config
	return &Relay{
		db:          p.DB,
		store:       p.Store,
		router:      p.Router,
		sink:        p.Sink,
		logg:        p.Logger,
		metrics:     p.Metrics,
		batch:       positive(cfg.BatchSize, fallbackBatch),
		ceiling:     positive(cfg.MaxAttempts, fallbackCeiling),
		parallelism: positive(cfg.Parallelism, fallbackParallelism),
		poll:        positive(time.Duration(cfg.PollIntervalMS)*time.Millisecond, fallbackPoll),
		sendTimeout: positive(cfg.PublishTimeout, fallbackSendTimeout),
		now:         time.Now,
	}, nil
}

// Run relays until ctx ends. A full batch is followed immediately by the
// next one; an empty or failed batch waits first.
func (r *Relay) Run(ctx context.Context) error {
	if err := multierr.Combine(r.db.Ping(ctx), r.sink.Ping(ctx)); err != nil {
		return fmt.Errorf("relay dependencies not ready: %w", err)
	}

	pace := newPacer(r.poll, maxPause)
	for {
		claimed, err := r.drain(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = pace.failure()
		case claimed >= r.batch:
			wait = pace.busy()
		default:
			wait = pace.idle()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// drain claims one batch, publishes it and records every outcome in the same
// transaction that holds the row locks.
func (r *Relay) drain(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.Claim(tx, r.batch, r.ceiling)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}
		return r.settle(ctx, tx, r.deliver(ctx, rows))
	})
	return claimed, err
}

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDead
	// verdictHeld: an earlier event of the same aggregate is still pending,
	// so this one waits without spending an attempt.
	verdictHeld
)

type outcome struct {
	row     models.OutboxEvent
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	topic   string
	eventID string
	err     error
}

// deliver publishes aggregates in parallel and each aggregate's rows in
// claim order, stopping that aggregate at its first retryable failure.
func (r *Relay) deliver(ctx context.Context, rows []models.OutboxEvent) []outcome {
	outcomes := make([]outcome, len(rows))
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for _, lane := range lanes(rows) {
		g.Go(func() error {
			blocked := false
			for _, i := range lane {
				if blocked {
					outcomes[i] = outcome{row: rows[i], verdict: verdictHeld}
					continue
				}
				outcomes[i] = r.deliverOne(ctx, rows[i])
				blocked = outcomes[i].verdict == verdictRetry
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Relay) deliverOne(ctx context.Context, row models.OutboxEvent) outcome {
	resolved, err := r.router.Resolve(row)
	if err != nil {
		return outcome{row: row, verdict: verdictDead, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	out := outcome{row: row, topic: resolved.Route.Topic, eventID: resolved.Envelope.EventID}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	err = r.sink.Send(sendCtx, out.topic, message(row, resolved.Envelope))

	switch attempt := row.AttemptCount + 1; {
	case err == nil:
		out.verdict = verdictPublished
	case errors.Is(err, errUnroutable):
		out.verdict, out.reason, out.err = verdictDead, enums.OutboxDLQReasonUnroutable, err
	case registry.IsPermanent(err):
		out.verdict, out.reason, out.err = verdictDead, enums.OutboxDLQReasonNonRetryable, err
	case attempt >= r.ceiling:
		out.verdict, out.reason = verdictDead, enums.OutboxDLQReasonMaxAttempts
		out.err = fmt.Errorf("gave up after %d attempts: %w", attempt, err)
	default:
		out.verdict, out.err = verdictRetry, err
	}
	return out
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, outcomes []outcome) error {
	now := r.now().UTC()
	for _, o := range outcomes {
		eventType := string(o.row.EventType)
		logCtx := r.logg.WithFields(ctx, o.fields())
		var err error
		switch o.verdict {
		case verdictPublished:
			if err = r.store.MarkPublished(tx, o.row.ID, now); err == nil {
				r.metrics.IncPublished(eventType)
				r.logg.Debug(logCtx, "outbox.published")
			}
		case verdictRetry:
			r.metrics.IncFailed(eventType)
			r.logg.Warn(logCtx, "outbox.publish_retry")
			err = r.store.RecordFailure(tx, o.row.ID, o.err)
		case verdictDead:
			r.metrics.IncDeadLettered(eventType, string(o.reason))
			r.logg.Warn(logCtx, "outbox.dead_lettered")
			err = r.store.Bury(tx, o.row, o.reason, o.err, r.ceiling, now)
		case verdictHeld:
			continue
		}
		if err != nil {
			return fmt.Errorf("settle %s: %w", o.row.ID, err)
		}
	}
	return nil
}

func (o outcome) fields() map[string]any {
	fields := map[string]any{
		"outbox_id":    o.row.ID.String(),
		"event_type":   o.row.EventType,
		"aggregate_id": o.row.AggregateID.String(),
		"attempt":      o.row.AttemptCount + 1,
	}
	if o.topic != "" {
		fields["topic"] = o.topic
	}
	if o.eventID != "" {
		fields["event_id"] = o.eventID
	}
	if o.reason != "" {
		fields["reason"] = o.reason
	}
	if o.err != nil {
		fields["error"] = o.err.Error()
	}
	return fields
}

// lanes groups row indexes by aggregate, keeping claim order inside a lane
// and first-seen order across lanes.
func lanes(rows []models.OutboxEvent) [][]int {
	index := map[uuid.UUID]int{}
	var out [][]int
	for i, row := range rows {
		lane, ok := index[row.AggregateID]
		if !ok {
			lane = len(out)
			index[row.AggregateID] = lane
			out = append(out, nil)
		}
		out[lane] = append(out[lane], i)
	}
	return out
}

// message carries the stored envelope byte for byte; attributes repeat the
// routing facts so subscribers can filter without decoding.
func message(row models.OutboxEvent, env outbox.Envelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: row.OrderingKey(),
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"schema_version": strconv.Itoa(env.Version),
			"occurred_at":    env.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func positive[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
