// Package registry routes outbox rows to Pub/Sub topics and checks that each
// payload still decodes into the schema consumers expect.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox/payloads"
)

// Route is where one event type goes and what its data must look like.
type Route struct {
	Topic     string
	Aggregate enums.OutboxAggregateType
	schema    func() any
}

// Resolved is a row that passed routing and schema checks.
type Resolved struct {
	Route    Route
	Envelope outbox.Envelope
	Data     any
}

type Registry struct {
	routes map[enums.OutboxEventType]Route
}

func New(cfg config.PubSubConfig) (*Registry, error) {
	orders := strings.TrimSpace(cfg.OrdersTopic)
	domain := strings.TrimSpace(cfg.DomainTopic)
	if orders == "" || domain == "" {
		return nil, errors.New("orders and domain topics are both required")
	}

	order := func(schema func() any) Route {
		return Route{Topic: orders, Aggregate: enums.AggregateOrder, schema: schema}
	}
	placed := func() any { return &payloads.OrderPlacedEvent{} }
	payment := func() any { return &payloads.OrderPaymentEvent{} }
	status := func() any { return &payloads.OrderStatusEvent{} }

	return &Registry{routes: map[enums.OutboxEventType]Route{
		enums.EventOrderPlaced:        order(placed),
		enums.EventOrderPaid:          order(payment),
		enums.EventOrderPaymentFailed: order(payment),
		enums.EventOrderRefunded:      order(payment),
		enums.EventOrderConfirmed:     order(status),
		enums.EventOrderCancelled:     order(status),
		enums.EventCouponRedeemed: {
			Topic:     domain,
			Aggregate: enums.AggregateCoupon,
			schema:    func() any { return &payloads.CouponRedeemedEvent{} },
		},
	}}, nil
}

// Topics lists every distinct destination, sorted.
func (r *Registry) Topics() []string {
	var topics []string
	for _, route := range r.routes {
		if !slices.Contains(topics, route.Topic) {
			topics = append(topics, route.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve routes row and decodes its data. Every error it returns is
// permanent: retrying the same bytes cannot succeed.
func (r *Registry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	route, ok := r.routes[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("no route for event type %q", row.EventType))
	}
	if row.AggregateType != route.Aggregate {
		return nil, Permanent(fmt.Errorf("%s belongs to %s aggregates, row says %s", row.EventType, route.Aggregate, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("row has no aggregate id"))
	}

	env, err := outbox.OpenEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	if body := bytes.TrimSpace(env.Data); len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, Permanent(fmt.Errorf("%s has an empty data section", row.EventType))
	}
	data := route.schema()
	if err := json.Unmarshal(env.Data, data); err != nil {
		return nil, Permanent(fmt.Errorf("%s data does not match schema: %w", row.EventType, err))
	}
	return &Resolved{Route: route, Envelope: env, Data: data}, nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as one the relay must not retry.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
