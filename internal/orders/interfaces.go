package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
)

// Repository defines persistence operations for order headers and lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLine(ctx context.Context, line *models.OrderLine) error
	FindOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	FindLines(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderLine, error)
	UpdateTotals(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error)
	ListOrders(ctx context.Context, params listOrdersParams) ([]models.Order, error)
	LocationExists(ctx context.Context, tenantID, locationID uuid.UUID) (bool, error)
	CustomerExists(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error)
}

type stockWriter interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, in stock.AdjustInput) (*stock.AdjustResult, error)
	AvailableTx(ctx context.Context, tx *gorm.DB, tenantID, variantID, locationID uuid.UUID, excludeOrder *uuid.UUID) (*stock.Availability, error)
}

type reservationConsumer interface {
	ConsumeForOrderTx(ctx context.Context, tx *gorm.DB, tenantID, orderID, variantID, locationID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
