package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox"
	"github.com/angelmondragon/partsdirect-backend/pkg/outbox/payloads"
)

const ceiling = 3

func emit(t *testing.T, conn *gorm.DB, w *outbox.Writer, orderID uuid.UUID, eventType enums.OutboxEventType) {
	t.Helper()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return w.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderStatusEvent{OrderID: orderID, To: enums.OrderStatusConfirmed},
		})
	}))
}

func TestWriterSealsEnvelope(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	store := outbox.NewStore(conn)
	orderID := uuid.New()
	emit(t, conn, outbox.NewWriter(store, nil), orderID, enums.EventOrderConfirmed)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Equal(t, orderID.String(), rows[0].OrderingKey())

	env, err := outbox.OpenEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())
	assert.Contains(t, string(env.Data), `"to":"confirmed"`)
}

func TestWriterRejectsBadEvents(t *testing.T) {
	w := outbox.NewWriter(outbox.NewStore(nil), nil)
	ctx := context.Background()

	assert.Error(t, w.Emit(ctx, nil, outbox.DomainEvent{EventType: enums.EventOrderPaid}))

	client := dbtest.Open(t)
	tx := client.DB()
	assert.Error(t, w.Emit(ctx, tx, outbox.DomainEvent{EventType: "order.teleported", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()}))
	assert.Error(t, w.Emit(ctx, tx, outbox.DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder}))
}

func TestStoreLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	store := outbox.NewStore(conn)
	w := outbox.NewWriter(store, nil)
	first, second := uuid.New(), uuid.New()
	emit(t, conn, w, first, enums.EventOrderConfirmed)
	emit(t, conn, w, second, enums.EventOrderCancelled)

	rows, err := store.Claim(conn, 10, ceiling)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	now := time.Now().UTC()

	require.NoError(t, store.MarkPublished(conn, rows[0].ID, now))
	require.NoError(t, store.RecordFailure(conn, rows[1].ID, errors.New("unavailable")))

	pending, err := store.Claim(conn, 10, ceiling)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "unavailable", *pending[0].LastError)

	require.NoError(t, store.Bury(conn, pending[0], enums.OutboxDLQReasonMaxAttempts, errors.New("gave up"), ceiling, now))
	pending, err = store.Claim(conn, 10, ceiling)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var letters []models.OutboxDLQ
	require.NoError(t, conn.Find(&letters).Error)
	require.Len(t, letters, 1)
	assert.Equal(t, rows[1].ID, letters[0].EventID)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, letters[0].ErrorReason)
	assert.Equal(t, 1, letters[0].AttemptCount)

	assert.Error(t, store.Bury(conn, rows[0], "shrug", nil, ceiling, now))

	purged, err := store.Purge(context.Background(), nil, now.Add(time.Hour), ceiling)
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)
	require.NoError(t, conn.Find(&letters).Error)
	assert.Len(t, letters, 1, "dead letters outlive retention")
}
