package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/erpcore/pkg/enums"
)

// StockAdjustedPayload records one cell change with its before/after balance.
type StockAdjustedPayload struct {
	MovementID   uuid.UUID          `json:"movement_id"`
	VariantID    uuid.UUID          `json:"variant_id"`
	LocationID   uuid.UUID          `json:"location_id"`
	UnitID       uuid.UUID          `json:"unit_id"`
	MovementType enums.MovementType `json:"movement_type"`
	Delta        decimal.Decimal    `json:"delta"`
	Before       decimal.Decimal    `json:"before"`
	After        decimal.Decimal    `json:"after"`
	Reason       string             `json:"reason,omitempty"`
	ReferenceID  *uuid.UUID         `json:"reference_id,omitempty"`
}

// StockReservedPayload is emitted when a hold is placed.
type StockReservedPayload struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	VariantID     uuid.UUID       `json:"variant_id"`
	LocationID    uuid.UUID       `json:"location_id"`
	UnitID        uuid.UUID       `json:"unit_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	BaseQuantity  decimal.Decimal `json:"base_quantity"`
	OrderRef      *uuid.UUID      `json:"order_ref,omitempty"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// StockReleasedPayload is emitted when a hold is dropped explicitly.
type StockReleasedPayload struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	VariantID     uuid.UUID       `json:"variant_id"`
	LocationID    uuid.UUID       `json:"location_id"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// ReservationsExpiredPayload summarizes one sweep for one tenant.
type ReservationsExpiredPayload struct {
	Count          int64       `json:"count"`
	ReservationIDs []uuid.UUID `json:"reservation_ids"`
	SweptAt        time.Time   `json:"swept_at"`
}

// OrderLineSummary is the per-line slice of an order event.
type OrderLineSummary struct {
	LineID    uuid.UUID       `json:"line_id"`
	VariantID uuid.UUID       `json:"variant_id"`
	UnitID    uuid.UUID       `json:"unit_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// OrderCreatedPayload is emitted once an order and its stock deductions commit.
type OrderCreatedPayload struct {
	OrderID        uuid.UUID          `json:"order_id"`
	LocationID     uuid.UUID          `json:"location_id"`
	CustomerID     *uuid.UUID         `json:"customer_id,omitempty"`
	NetAmount      decimal.Decimal    `json:"net_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	Lines          []OrderLineSummary `json:"lines"`
}

// OrderStatusChangedPayload covers cancel, complete and refund transitions.
type OrderStatusChangedPayload struct {
	OrderID       uuid.UUID         `json:"order_id"`
	From          enums.OrderStatus `json:"from"`
	To            enums.OrderStatus `json:"to"`
	Reason        string            `json:"reason,omitempty"`
	TransactionID *uuid.UUID        `json:"transaction_id,omitempty"`
	Amount        *decimal.Decimal  `json:"amount,omitempty"`
}

// PaymentCompletedPayload is emitted when a payment is recorded against an order.
type PaymentCompletedPayload struct {
	OrderID       uuid.UUID           `json:"order_id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Method        enums.PaymentMethod `json:"method"`
}

// BundleDeduction is one child deduction of a bundle sale.
type BundleDeduction struct {
	ChildVariantID uuid.UUID       `json:"child_variant_id"`
	UnitID         uuid.UUID       `json:"unit_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	MovementID     uuid.UUID       `json:"movement_id"`
}

// BundleSoldPayload summarizes a bundle sale.
type BundleSoldPayload struct {
	ParentVariantID uuid.UUID         `json:"parent_variant_id"`
	LocationID      uuid.UUID         `json:"location_id"`
	Quantity        decimal.Decimal   `json:"quantity"`
	OrderRef        *uuid.UUID        `json:"order_ref,omitempty"`
	Deductions      []BundleDeduction `json:"deductions"`
}

// LocationCreatedPayload is emitted by the catalog.
type LocationCreatedPayload struct {
	LocationID uuid.UUID `json:"location_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
}

// VariantCreatedPayload is emitted by the catalog.
type VariantCreatedPayload struct {
	VariantID uuid.UUID   `json:"variant_id"`
	SKU       string      `json:"sku"`
	Name      string      `json:"name"`
	UnitIDs   []uuid.UUID `json:"unit_ids"`
}

// UnitAddedPayload is emitted when a unit is attached to an existing variant.
type UnitAddedPayload struct {
	UnitID    uuid.UUID       `json:"unit_id"`
	VariantID uuid.UUID       `json:"variant_id"`
	Code      string          `json:"code"`
	Factor    decimal.Decimal `json:"factor"`
	IsBase    bool            `json:"is_base"`
}

// CustomerCreatedPayload is emitted by the catalog.
type CustomerCreatedPayload struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Name       string    `json:"name"`
}

// BundleComponent is one edge of a composition.
type BundleComponent struct {
	ChildVariantID uuid.UUID       `json:"child_variant_id"`
	Quantity       decimal.Decimal `json:"quantity"`
}

// BundleComposedPayload is emitted when a bundle's edges are replaced.
type BundleComposedPayload struct {
	ParentVariantID uuid.UUID         `json:"parent_variant_id"`
	Components      []BundleComponent `json:"components"`
}
