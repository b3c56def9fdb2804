package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/enums"
)

// StockLevel is the mutable on-hand cell for (tenant, variant, location, unit).
type StockLevel struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_stock_levels_cell,priority:1"`
	VariantID  uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:uq_stock_levels_cell,priority:2"`
	LocationID uuid.UUID       `gorm:"column:location_id;type:uuid;not null;uniqueIndex:uq_stock_levels_cell,priority:3"`
	UnitID     uuid.UUID       `gorm:"column:unit_id;type:uuid;not null;uniqueIndex:uq_stock_levels_cell,priority:4"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:numeric(20,4);not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *StockLevel) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// StockMovement is an append-only record of one stock change.
type StockMovement struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index:idx_stock_movements_cell,priority:1"`
	VariantID    uuid.UUID          `gorm:"column:variant_id;type:uuid;not null;index:idx_stock_movements_cell,priority:2"`
	LocationID   uuid.UUID          `gorm:"column:location_id;type:uuid;not null;index:idx_stock_movements_cell,priority:3"`
	UnitID       uuid.UUID          `gorm:"column:unit_id;type:uuid;not null"`
	Delta        decimal.Decimal    `gorm:"column:delta;type:numeric(20,4);not null"`
	BalanceAfter decimal.Decimal    `gorm:"column:balance_after;type:numeric(20,4);not null"`
	MovementType enums.MovementType `gorm:"column:movement_type;not null"`
	Reason       *string            `gorm:"column:reason"`
	ReferenceID  *uuid.UUID         `gorm:"column:reference_id;type:uuid;index"`
	ActorUserID  uuid.UUID          `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;not null"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (m *StockMovement) BeforeUpdate(*gorm.DB) error { return ErrImmutable }
func (m *StockMovement) BeforeDelete(*gorm.DB) error { return ErrImmutable }

// StockReservation is a time-bounded hold against available stock.
type StockReservation struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index:idx_stock_reservations_cell,priority:1"`
	VariantID  uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;index:idx_stock_reservations_cell,priority:2"`
	LocationID uuid.UUID       `gorm:"column:location_id;type:uuid;not null;index:idx_stock_reservations_cell,priority:3"`
	UnitID     uuid.UUID       `gorm:"column:unit_id;type:uuid;not null"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:numeric(20,4);not null"`
	OrderRef   *uuid.UUID      `gorm:"column:order_ref;type:uuid;index"`
	ExpiresAt  time.Time       `gorm:"column:expires_at;not null;index"`
	CreatedBy  uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockReservation) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	m.ExpiresAt = m.ExpiresAt.UTC()
	return nil
}
