package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/enums"
)

// Order is the mutable header; totals are aggregated from its lines.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index"`
	LocationID     uuid.UUID         `gorm:"column:location_id;type:uuid;not null"`
	CustomerID     *uuid.UUID        `gorm:"column:customer_id;type:uuid"`
	Status         enums.OrderStatus `gorm:"column:status;not null"`
	NetAmount      decimal.Decimal   `gorm:"column:net_amount;type:numeric(20,4);not null"`
	TaxAmount      decimal.Decimal   `gorm:"column:tax_amount;type:numeric(20,4);not null"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(20,4);not null"`
	TotalAmount    decimal.Decimal   `gorm:"column:total_amount;type:numeric(20,4);not null"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata;type:jsonb"`
	ActorUserID    uuid.UUID         `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// OrderLine is one sold line; never mutated after insert.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	LineNo      int             `gorm:"column:line_no;not null"`
	VariantID   uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	UnitID      uuid.UUID       `gorm:"column:unit_id;type:uuid;not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(20,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(20,4);not null"`
	Discount    decimal.Decimal `gorm:"column:discount;type:numeric(20,4);not null"`
	TaxRate     decimal.Decimal `gorm:"column:tax_rate;type:numeric(9,6);not null"`
	TaxAmount   decimal.Decimal `gorm:"column:tax_amount;type:numeric(20,4);not null"`
	NetAmount   decimal.Decimal `gorm:"column:net_amount;type:numeric(20,4);not null"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(20,4);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (m *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

func (m *OrderLine) BeforeUpdate(*gorm.DB) error { return ErrImmutable }
func (m *OrderLine) BeforeDelete(*gorm.DB) error { return ErrImmutable }

// FinancialTransaction records a payment or refund; append-only.
type FinancialTransaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	Type        enums.TransactionType `gorm:"column:type;not null"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(20,4);not null"`
	Method      *enums.PaymentMethod  `gorm:"column:method"`
	Reason      *string               `gorm:"column:reason"`
	ActorUserID uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (m *FinancialTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

func (m *FinancialTransaction) BeforeUpdate(*gorm.DB) error { return ErrImmutable }
func (m *FinancialTransaction) BeforeDelete(*gorm.DB) error { return ErrImmutable }
