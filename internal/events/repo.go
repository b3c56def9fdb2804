package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

// Repository is insert and read only; events are never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.Event) error
	List(ctx context.Context, params listParams) ([]models.Event, error)
}

type listParams struct {
	TenantID      uuid.UUID
	EventType     *enums.EventType
	AggregateType *enums.AggregateType
	AggregateID   *uuid.UUID
	Since         *time.Time
	Cursor        *pagination.Cursor
	Limit         int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an events repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Event, error) {
	query := r.db.WithContext(ctx).Model(&models.Event{}).Where("tenant_id = ?", params.TenantID)
	if params.EventType != nil {
		query = query.Where("event_type = ?", *params.EventType)
	}
	if params.AggregateType != nil {
		query = query.Where("aggregate_type = ?", *params.AggregateType)
	}
	if params.AggregateID != nil {
		query = query.Where("aggregate_id = ?", *params.AggregateID)
	}
	if params.Since != nil {
		query = query.Where("created_at >= ?", params.Since.UTC())
	}

	var rows []models.Event
	if err := query.Scopes(pagination.Keyset(params.Cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
