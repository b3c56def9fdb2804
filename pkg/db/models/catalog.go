package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Location is a physical or logical stock-holding site.
type Location struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_locations_tenant_code,priority:1"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:uq_locations_tenant_code,priority:2"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *Location) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// ProductVariant is a sellable SKU.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_product_variants_tenant_sku,priority:1"`
	SKU       string    `gorm:"column:sku;not null;uniqueIndex:uq_product_variants_tenant_sku,priority:2"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// UnitDefinition declares that 1 of this unit equals Factor base units of its variant.
type UnitDefinition struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:uq_unit_definitions_variant_code,priority:1"`
	Code      string          `gorm:"column:code;not null;uniqueIndex:uq_unit_definitions_variant_code,priority:2"`
	Name      string          `gorm:"column:name;not null"`
	Factor    decimal.Decimal `gorm:"column:factor;type:numeric(20,6);not null"`
	IsBase    bool            `gorm:"column:is_base;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (m *UnitDefinition) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// Customer is an optional order counterparty.
type Customer struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string            `gorm:"column:name;not null"`
	Email     *string           `gorm:"column:email"`
	Phone     *string           `gorm:"column:phone"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (m *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// ProductBundle is one parent→child composition edge.
type ProductBundle struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	ParentVariantID uuid.UUID       `gorm:"column:parent_variant_id;type:uuid;not null;uniqueIndex:uq_product_bundles_parent_child,priority:1"`
	ChildVariantID  uuid.UUID       `gorm:"column:child_variant_id;type:uuid;not null;uniqueIndex:uq_product_bundles_parent_child,priority:2"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:numeric(20,4);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (m *ProductBundle) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
