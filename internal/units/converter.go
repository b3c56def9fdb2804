// Package units converts declared units of a variant into its base unit.
package units

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

// Unit is a resolved unit definition whose variant belongs to the tenant.
type Unit struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	VariantID uuid.UUID
	Code      string
	Factor    decimal.Decimal
	IsBase    bool
}

// ToBase converts qty expressed in this unit into base units.
func (u Unit) ToBase(qty decimal.Decimal) decimal.Decimal {
	return qty.Mul(u.Factor)
}

// FactorTable maps unit id to its base conversion factor for one variant.
type FactorTable map[uuid.UUID]decimal.Decimal

// Converter resolves units through their owning variant so a unit of another
// tenant is indistinguishable from a missing one.
type Converter struct {
	db *gorm.DB
}

func NewConverter(db *gorm.DB) (*Converter, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Converter{db: db}, nil
}

// WithTx returns a converter bound to an open transaction.
func (c *Converter) WithTx(tx *gorm.DB) *Converter {
	if tx == nil {
		return c
	}
	return &Converter{db: tx}
}

type unitRow struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	VariantID uuid.UUID
	Code      string
	Factor    decimal.Decimal
	IsBase    bool
}

func (r unitRow) toUnit() *Unit {
	return &Unit{
		ID:        r.ID,
		TenantID:  r.TenantID,
		VariantID: r.VariantID,
		Code:      r.Code,
		Factor:    r.Factor,
		IsBase:    r.IsBase,
	}
}

func (c *Converter) units(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).
		Table("unit_definitions").
		Select("unit_definitions.id, product_variants.tenant_id, unit_definitions.variant_id, unit_definitions.code, unit_definitions.factor, unit_definitions.is_base").
		Joins("JOIN product_variants ON product_variants.id = unit_definitions.variant_id")
}

// Resolve loads unitID when its variant belongs to tenantID.
func (c *Converter) Resolve(ctx context.Context, tenantID, unitID uuid.UUID) (*Unit, error) {
	var row unitRow
	err := c.units(ctx).
		Where("unit_definitions.id = ? AND product_variants.tenant_id = ?", unitID, tenantID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unit not found").
				WithDetails(map[string]any{"unit_id": unitID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve unit")
	}
	return row.toUnit(), nil
}

// BaseQuantity returns qty × factor for unitID. The caller must be allowed to
// read tenantID.
func (c *Converter) BaseQuantity(ctx context.Context, tenantID, unitID uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return decimal.Zero, err
	}
	unit, err := c.Resolve(ctx, tenantID, unitID)
	if err != nil {
		return decimal.Zero, err
	}
	return unit.ToBase(qty), nil
}

// VariantBaseQuantity is BaseQuantity for a line that names its variant. A
// unit declared on another variant is reported as not found.
func (c *Converter) VariantBaseQuantity(ctx context.Context, tenantID, variantID, unitID uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return decimal.Zero, err
	}
	unit, err := c.Resolve(ctx, tenantID, unitID)
	if err != nil {
		return decimal.Zero, err
	}
	if unit.VariantID != variantID {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "unit not found").
			WithDetails(map[string]any{"unit_id": unitID})
	}
	return unit.ToBase(qty), nil
}

// Factors returns every unit factor of variantID. It fails MISSING_BASE_UNIT
// unless exactly one unit is flagged base.
func (c *Converter) Factors(ctx context.Context, tenantID, variantID uuid.UUID) (FactorTable, error) {
	rows, err := c.variantUnits(ctx, tenantID, variantID)
	if err != nil {
		return nil, err
	}
	if _, err := singleBase(variantID, rows); err != nil {
		return nil, err
	}
	table := make(FactorTable, len(rows))
	for _, row := range rows {
		table[row.ID] = row.Factor
	}
	return table, nil
}

// BaseUnit returns the single base unit of variantID.
func (c *Converter) BaseUnit(ctx context.Context, tenantID, variantID uuid.UUID) (*Unit, error) {
	rows, err := c.variantUnits(ctx, tenantID, variantID)
	if err != nil {
		return nil, err
	}
	return singleBase(variantID, rows)
}

func (c *Converter) variantUnits(ctx context.Context, tenantID, variantID uuid.UUID) ([]unitRow, error) {
	var count int64
	if err := c.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND tenant_id = ?", variantID, tenantID).
		Count(&count).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup variant")
	}
	if count == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
			WithDetails(map[string]any{"variant_id": variantID})
	}

	var rows []unitRow
	if err := c.units(ctx).
		Where("unit_definitions.variant_id = ? AND product_variants.tenant_id = ?", variantID, tenantID).
		Order("unit_definitions.code ASC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variant units")
	}
	return rows, nil
}

func singleBase(variantID uuid.UUID, rows []unitRow) (*Unit, error) {
	var base *Unit
	bases := 0
	for _, row := range rows {
		if row.IsBase {
			bases++
			base = row.toUnit()
		}
	}
	if bases != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeMissingBaseUnit, "variant must have exactly one base unit").
			WithDetails(map[string]any{"variant_id": variantID, "base_units": bases})
	}
	return base, nil
}
