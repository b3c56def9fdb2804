package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/enums"
)

// Event is an immutable fact emitted in the same transaction as its mutation.
type Event struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index:idx_events_tenant_created,priority:1"`
	EventType     enums.EventType     `gorm:"column:event_type;not null"`
	AggregateType enums.AggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID           `gorm:"column:aggregate_id;type:uuid;not null;index"`
	ActorUserID   uuid.UUID           `gorm:"column:actor_user_id;type:uuid;not null"`
	ActorRole     enums.MemberRole    `gorm:"column:actor_role;not null"`
	Payload       json.RawMessage     `gorm:"column:payload;type:jsonb;not null"`
	Version       int                 `gorm:"column:version;not null"`
	OccurredAt    time.Time           `gorm:"column:occurred_at;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;not null;index:idx_events_tenant_created,priority:2"`
}

func (m *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (m *Event) BeforeUpdate(*gorm.DB) error { return ErrImmutable }
func (m *Event) BeforeDelete(*gorm.DB) error { return ErrImmutable }

// EventDelivery is the relay's mutable bookkeeping for one event.
type EventDelivery struct {
	EventID      uuid.UUID            `gorm:"column:event_id;type:uuid;primaryKey"`
	Status       enums.DeliveryStatus `gorm:"column:status;not null"`
	AttemptCount int                  `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string              `gorm:"column:last_error"`
	PublishedAt  *time.Time           `gorm:"column:published_at"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
