package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

const maxStoredError = 1024

var errNoTx = errors.New("outbox store needs a transaction")

// Store owns outbox_events and outbox_dlq. A row is pending while
// published_at is null and attempt_count is under the relay's ceiling; a
// buried row sits exactly at the ceiling with a matching dead letter.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(tx *gorm.DB, row *models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(row).Error
}

// Claim locks up to limit pending rows, oldest first. Rows held by another
// relay are skipped rather than waited on.
func (s *Store) Claim(tx *gorm.DB, limit, ceiling int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	var rows []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
		Where("published_at IS NULL AND attempt_count < ?", ceiling).
		Order("created_at, id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Store) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return s.update(tx, id, map[string]any{"published_at": at.UTC(), "last_error": nil})
}

// RecordFailure counts one more failed attempt.
func (s *Store) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return s.update(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    clip(cause),
	})
}

// Bury writes the dead letter and parks the row at ceiling so Claim never
// returns it again.
func (s *Store) Bury(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, ceiling int, at time.Time) error {
	if tx == nil {
		return errNoTx
	}
	if !reason.IsValid() {
		return errors.New("unknown dead letter reason " + string(reason))
	}
	msg := clip(cause)
	letter := models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      at.UTC(),
	}
	if err := tx.Create(&letter).Error; err != nil {
		return err
	}
	return s.update(tx, row.ID, map[string]any{"attempt_count": ceiling, "last_error": msg})
}

// Purge deletes rows published before cutoff and buried rows created before
// it. Dead letters are kept.
func (s *Store) Purge(ctx context.Context, tx *gorm.DB, cutoff time.Time, ceiling int) (int64, error) {
	conn := tx
	if conn == nil {
		conn = s.db
	}
	res := conn.WithContext(ctx).
		Where("published_at < ?", cutoff).
		Or("published_at IS NULL AND attempt_count >= ? AND created_at < ?", ceiling, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (s *Store) update(tx *gorm.DB, id uuid.UUID, values map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values).Error
}

func clip(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxStoredError {
		msg = msg[:maxStoredError]
	}
	return msg
}
