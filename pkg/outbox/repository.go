package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
)

const maxLastErrorLen = 1024

// DeliveryRepository tracks relay progress for immutable events.
type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// FetchPendingForPublish returns the oldest events that are neither published
// nor terminal.
func (r *DeliveryRepository) FetchPendingForPublish(ctx context.Context, limit int) ([]models.Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Event
	err := r.db.WithContext(ctx).
		Table("events").
		Select("events.*").
		Joins("LEFT JOIN event_deliveries ON event_deliveries.event_id = events.id").
		Where("event_deliveries.event_id IS NULL OR event_deliveries.status = ?", enums.DeliveryPending).
		Order("events.created_at ASC").
		Order("events.id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Get returns the delivery row, or nil when the event was never attempted.
func (r *DeliveryRepository) Get(ctx context.Context, eventID uuid.UUID) (*models.EventDelivery, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var row models.EventDelivery
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *DeliveryRepository) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	now := time.Now().UTC()
	return r.upsert(ctx, models.EventDelivery{
		EventID:      eventID,
		Status:       enums.DeliveryPublished,
		AttemptCount: 1,
		PublishedAt:  &now,
	}, map[string]any{
		"status":        enums.DeliveryPublished,
		"published_at":  now,
		"attempt_count": gorm.Expr("event_deliveries.attempt_count + 1"),
		"updated_at":    now,
	})
}

// MarkFailed records a retryable failure and returns the new attempt count.
func (r *DeliveryRepository) MarkFailed(ctx context.Context, eventID uuid.UUID, cause error) (int, error) {
	msg := truncateError(cause)
	now := time.Now().UTC()
	if err := r.upsert(ctx, models.EventDelivery{
		EventID:      eventID,
		Status:       enums.DeliveryPending,
		AttemptCount: 1,
		LastError:    &msg,
	}, map[string]any{
		"last_error":    msg,
		"attempt_count": gorm.Expr("event_deliveries.attempt_count + 1"),
		"updated_at":    now,
	}); err != nil {
		return 0, err
	}
	row, err := r.Get(ctx, eventID)
	if err != nil || row == nil {
		return 0, err
	}
	return row.AttemptCount, nil
}

// MarkTerminal parks the event; the relay will not pick it up again.
func (r *DeliveryRepository) MarkTerminal(ctx context.Context, eventID uuid.UUID, cause error) error {
	msg := truncateError(cause)
	now := time.Now().UTC()
	return r.upsert(ctx, models.EventDelivery{
		EventID:   eventID,
		Status:    enums.DeliveryTerminal,
		LastError: &msg,
	}, map[string]any{
		"status":     enums.DeliveryTerminal,
		"last_error": msg,
		"updated_at": now,
	})
}

func (r *DeliveryRepository) upsert(ctx context.Context, row models.EventDelivery, onConflict map[string]any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.Assignments(onConflict),
		}).
		Create(&row).Error
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= maxLastErrorLen {
		return msg
	}
	return msg[:maxLastErrorLen]
}
