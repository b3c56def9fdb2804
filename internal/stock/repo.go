package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

// Repository persists stock cells and movements. Movements are insert-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLevel(ctx context.Context, key CellUnit) (*models.StockLevel, error)
	CreateLevel(ctx context.Context, level *models.StockLevel) error
	UpdateLevelQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error
	InsertMovement(ctx context.Context, movement *models.StockMovement) error
	LevelsForCell(ctx context.Context, tenantID, variantID, locationID uuid.UUID) ([]models.StockLevel, error)
	ActiveReservations(ctx context.Context, tenantID, variantID, locationID uuid.UUID, now time.Time, excludeOrder *uuid.UUID) ([]models.StockReservation, error)
	LocationExists(ctx context.Context, tenantID, locationID uuid.UUID) (bool, error)
	ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, error)
}

// CellUnit addresses one stock_levels row.
type CellUnit struct {
	TenantID   uuid.UUID
	VariantID  uuid.UUID
	LocationID uuid.UUID
	UnitID     uuid.UUID
}

type listMovementsParams struct {
	TenantID     uuid.UUID
	VariantID    *uuid.UUID
	LocationID   *uuid.UUID
	ReferenceID  *uuid.UUID
	MovementType *enums.MovementType
	Cursor       *pagination.Cursor
	Limit        int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLevel(ctx context.Context, key CellUnit) (*models.StockLevel, error) {
	var level models.StockLevel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND location_id = ? AND unit_id = ?",
			key.TenantID, key.VariantID, key.LocationID, key.UnitID).
		Take(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &level, nil
}

func (r *repository) CreateLevel(ctx context.Context, level *models.StockLevel) error {
	return r.db.WithContext(ctx).Create(level).Error
}

func (r *repository) UpdateLevelQuantity(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Where("id = ?", id).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) LevelsForCell(ctx context.Context, tenantID, variantID, locationID uuid.UUID) ([]models.StockLevel, error) {
	var levels []models.StockLevel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND location_id = ?", tenantID, variantID, locationID).
		Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *repository) ActiveReservations(ctx context.Context, tenantID, variantID, locationID uuid.UUID, now time.Time, excludeOrder *uuid.UUID) ([]models.StockReservation, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND location_id = ? AND expires_at > ?",
			tenantID, variantID, locationID, now.UTC())
	if excludeOrder != nil {
		query = query.Where("(order_ref IS NULL OR order_ref <> ?)", *excludeOrder)
	}
	var reservations []models.StockReservation
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
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

func (r *repository) ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{}).Where("tenant_id = ?", params.TenantID)
	if params.VariantID != nil {
		query = query.Where("variant_id = ?", *params.VariantID)
	}
	if params.LocationID != nil {
		query = query.Where("location_id = ?", *params.LocationID)
	}
	if params.ReferenceID != nil {
		query = query.Where("reference_id = ?", *params.ReferenceID)
	}
	if params.MovementType != nil {
		query = query.Where("movement_type = ?", *params.MovementType)
	}

	var movements []models.StockMovement
	if err := query.Scopes(pagination.Keyset(params.Cursor, params.Limit)).Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
