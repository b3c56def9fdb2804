package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
)

// Repository persists stock reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, reservation *models.StockReservation) error
	Find(ctx context.Context, tenantID, reservationID uuid.UUID) (*models.StockReservation, error)
	Delete(ctx context.Context, tenantID, reservationID uuid.UUID) (int64, error)
	ListExpired(ctx context.Context, tenantID *uuid.UUID, now time.Time, limit int) ([]models.StockReservation, error)
	DeleteIfExpired(ctx context.Context, reservationID uuid.UUID, now time.Time) (int64, error)
	DeleteForOrderCell(ctx context.Context, tenantID, orderID, variantID, locationID uuid.UUID) (int64, error)
	ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.StockReservation, error)
	LocationExists(ctx context.Context, tenantID, locationID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, reservation *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) Find(ctx context.Context, tenantID, reservationID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", reservationID, tenantID).
		Take(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) Delete(ctx context.Context, tenantID, reservationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", reservationID, tenantID).
		Delete(&models.StockReservation{})
	return result.RowsAffected, result.Error
}

func (r *repository) ListExpired(ctx context.Context, tenantID *uuid.UUID, now time.Time, limit int) ([]models.StockReservation, error) {
	query := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC())
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}
	var rows []models.StockReservation
	if err := query.Order("expires_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteIfExpired reports 1 only for the caller that actually removed the row,
// so concurrent sweeps never double count.
func (r *repository) DeleteIfExpired(ctx context.Context, reservationID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND expires_at <= ?", reservationID, now.UTC()).
		Delete(&models.StockReservation{})
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteForOrderCell(ctx context.Context, tenantID, orderID, variantID, locationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_ref = ? AND variant_id = ? AND location_id = ?", tenantID, orderID, variantID, locationID).
		Delete(&models.StockReservation{})
	return result.RowsAffected, result.Error
}

func (r *repository) ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_ref = ?", tenantID, orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) LocationExists(ctx context.Context, tenantID, locationID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Location{}).
		Where("id = ? AND tenant_id = ?", locationID, tenantID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
