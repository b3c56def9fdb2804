package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/erpcore/pkg/db/models"
)

type CreateLocationInput struct {
	TenantID uuid.UUID `json:"-"`
	Code     string    `json:"code" validate:"required,max=64"`
	Name     string    `json:"name" validate:"required,max=255"`
}

// UnitInput declares that one Code equals Factor base units.
type UnitInput struct {
	Code   string          `json:"code" validate:"required,max=32"`
	Name   string          `json:"name" validate:"max=128"`
	Factor decimal.Decimal `json:"factor"`
	IsBase bool            `json:"is_base"`
}

type CreateVariantInput struct {
	TenantID uuid.UUID   `json:"-"`
	SKU      string      `json:"sku" validate:"required,max=64"`
	Name     string      `json:"name" validate:"required,max=255"`
	Units    []UnitInput `json:"units" validate:"dive"`
}

type CreateCustomerInput struct {
	TenantID uuid.UUID      `json:"-"`
	Name     string         `json:"name" validate:"required,max=255"`
	Email    *string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string        `json:"phone,omitempty" validate:"omitempty,max=32"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ComponentInput is one child of a bundle composition.
type ComponentInput struct {
	ChildVariantID uuid.UUID       `json:"child_variant_id" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
}

// VariantDetail is a variant with its unit definitions.
type VariantDetail struct {
	Variant models.ProductVariant   `json:"variant"`
	Units   []models.UnitDefinition `json:"units"`
}
