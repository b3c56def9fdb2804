package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
)

// Repository persists catalog master data.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateLocation(ctx context.Context, loc *models.Location) error
	ListLocations(ctx context.Context, tenantID uuid.UUID) ([]models.Location, error)
	CreateVariant(ctx context.Context, variant *models.ProductVariant) error
	FindVariant(ctx context.Context, tenantID, variantID uuid.UUID) (*models.ProductVariant, error)
	CountVariants(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (int64, error)
	CreateUnit(ctx context.Context, unit *models.UnitDefinition) error
	ListUnits(ctx context.Context, variantID uuid.UUID) ([]models.UnitDefinition, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	BundleEdges(ctx context.Context, tenantID, parentVariantID uuid.UUID) ([]models.ProductBundle, error)
	IsBundleParent(ctx context.Context, tenantID uuid.UUID, variantIDs []uuid.UUID) (bool, error)
	UsedAsComponent(ctx context.Context, tenantID, variantID uuid.UUID) (bool, error)
	DeleteBundleEdges(ctx context.Context, tenantID, parentVariantID uuid.UUID) error
	CreateBundleEdges(ctx context.Context, edges []models.ProductBundle) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateLocation(ctx context.Context, loc *models.Location) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

func (r *repository) ListLocations(ctx context.Context, tenantID uuid.UUID) ([]models.Location, error) {
	var locs []models.Location
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("code ASC").Find(&locs).Error; err != nil {
		return nil, err
	}
	return locs, nil
}

func (r *repository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

func (r *repository) FindVariant(ctx context.Context, tenantID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", variantID, tenantID).Take(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

func (r *repository) CountVariants(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Count(&n).Error
	return n, err
}

func (r *repository) CreateUnit(ctx context.Context, unit *models.UnitDefinition) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *repository) ListUnits(ctx context.Context, variantID uuid.UUID) ([]models.UnitDefinition, error) {
	var units []models.UnitDefinition
	if err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("is_base DESC, code ASC").
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) BundleEdges(ctx context.Context, tenantID, parentVariantID uuid.UUID) ([]models.ProductBundle, error) {
	var edges []models.ProductBundle
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND parent_variant_id = ?", tenantID, parentVariantID).
		Order("child_variant_id ASC").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repository) IsBundleParent(ctx context.Context, tenantID uuid.UUID, variantIDs []uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductBundle{}).
		Where("tenant_id = ? AND parent_variant_id IN ?", tenantID, variantIDs).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) UsedAsComponent(ctx context.Context, tenantID, variantID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductBundle{}).
		Where("tenant_id = ? AND child_variant_id = ?", tenantID, variantID).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) DeleteBundleEdges(ctx context.Context, tenantID, parentVariantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND parent_variant_id = ?", tenantID, parentVariantID).
		Delete(&models.ProductBundle{}).Error
}

func (r *repository) CreateBundleEdges(ctx context.Context, edges []models.ProductBundle) error {
	if len(edges) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&edges).Error
}
