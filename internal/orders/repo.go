package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

type listOrdersParams struct {
	TenantID   uuid.UUID
	Status     *enums.OrderStatus
	LocationID *uuid.UUID
	CustomerID *uuid.UUID
	Cursor     *pagination.Cursor
	Limit      int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateLine(ctx context.Context, line *models.OrderLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *repository) FindOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", orderID, tenantID).
		Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLines(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND tenant_id = ?", orderID, tenantID).
		Order("line_no ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) UpdateTotals(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND tenant_id = ?", order.ID, order.TenantID).
		Updates(map[string]any{
			"net_amount":      order.NetAmount,
			"tax_amount":      order.TaxAmount,
			"discount_amount": order.DiscountAmount,
			"total_amount":    order.TotalAmount,
		}).Error
}

// UpdateStatus moves the order only if it is still in from.
func (r *repository) UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND tenant_id = ? AND status = ?", orderID, tenantID, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *repository) ListOrders(ctx context.Context, params listOrdersParams) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("tenant_id = ?", params.TenantID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.LocationID != nil {
		query = query.Where("location_id = ?", *params.LocationID)
	}
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	var orders []models.Order
	if err := query.Scopes(pagination.Keyset(params.Cursor, params.Limit)).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) LocationExists(ctx context.Context, tenantID, locationID uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Location{}, tenantID, locationID)
}

func (r *repository) CustomerExists(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	return r.exists(ctx, &models.Customer{}, tenantID, customerID)
}

func (r *repository) exists(ctx context.Context, model any, tenantID, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
