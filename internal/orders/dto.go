package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
)

// LineInput is one requested order line in the unit the caller sells in.
type LineInput struct {
	VariantID uuid.UUID       `json:"variant_id"`
	UnitID    uuid.UUID       `json:"unit_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

// CreateOrderInput carries a full order. OrderID is optional; callers that
// reserved stock beforehand pass the id they tagged those reservations with.
type CreateOrderInput struct {
	TenantID   uuid.UUID      `json:"tenant_id"`
	OrderID    uuid.UUID      `json:"order_id"`
	LocationID uuid.UUID      `json:"location_id"`
	CustomerID *uuid.UUID     `json:"customer_id,omitempty"`
	Lines      []LineInput    `json:"lines"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// OrderFilters narrow ListOrders.
type OrderFilters struct {
	Status     *enums.OrderStatus
	LocationID *uuid.UUID
	CustomerID *uuid.UUID
}

// OrderDetail is the header with its lines and money movements.
type OrderDetail struct {
	Order        models.Order                  `json:"order"`
	Lines        []models.OrderLine            `json:"lines"`
	Transactions []models.FinancialTransaction `json:"transactions"`
}
