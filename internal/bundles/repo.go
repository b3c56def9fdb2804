package bundles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
)

// Repository reads bundle compositions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	VariantExists(ctx context.Context, tenantID, variantID uuid.UUID) (bool, error)
	Components(ctx context.Context, tenantID, parentVariantID uuid.UUID) ([]models.ProductBundle, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bundles repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) VariantExists(ctx context.Context, tenantID, variantID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND tenant_id = ?", variantID, tenantID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Components returns the parent's edges ordered by child for stable output.
func (r *repository) Components(ctx context.Context, tenantID, parentVariantID uuid.UUID) ([]models.ProductBundle, error) {
	var edges []models.ProductBundle
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND parent_variant_id = ?", tenantID, parentVariantID).
		Order("child_variant_id ASC").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}
