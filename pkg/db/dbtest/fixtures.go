package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
)

// UnitSpec describes a unit seeded by Variant.
type UnitSpec struct {
	Code   string
	Factor decimal.Decimal
	IsBase bool
}

// Base is the usual single base unit.
func Base(code string) UnitSpec {
	return UnitSpec{Code: code, Factor: decimal.NewFromInt(1), IsBase: true}
}

// Pack is a non-base unit worth factor base units.
func Pack(code string, factor int64) UnitSpec {
	return UnitSpec{Code: code, Factor: decimal.NewFromInt(factor)}
}

// SeededVariant is a variant plus its units keyed by code.
type SeededVariant struct {
	models.ProductVariant
	Units map[string]models.UnitDefinition
}

// Unit returns the id of the seeded unit with code.
func (v SeededVariant) Unit(code string) uuid.UUID {
	return v.Units[code].ID
}

func Location(t testing.TB, conn *gorm.DB, tenantID uuid.UUID, code string) models.Location {
	t.Helper()
	loc := models.Location{TenantID: tenantID, Code: code, Name: code}
	if err := conn.Create(&loc).Error; err != nil {
		t.Fatalf("seed location: %v", err)
	}
	return loc
}

func Variant(t testing.TB, conn *gorm.DB, tenantID uuid.UUID, sku string, units ...UnitSpec) SeededVariant {
	t.Helper()
	variant := models.ProductVariant{TenantID: tenantID, SKU: sku, Name: sku}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	seeded := SeededVariant{ProductVariant: variant, Units: map[string]models.UnitDefinition{}}
	for _, spec := range units {
		unit := models.UnitDefinition{
			TenantID:  tenantID,
			VariantID: variant.ID,
			Code:      spec.Code,
			Name:      spec.Code,
			Factor:    spec.Factor,
			IsBase:    spec.IsBase,
		}
		if err := conn.Create(&unit).Error; err != nil {
			t.Fatalf("seed unit %s: %v", spec.Code, err)
		}
		seeded.Units[spec.Code] = unit
	}
	return seeded
}

func Customer(t testing.TB, conn *gorm.DB, tenantID uuid.UUID, name string) models.Customer {
	t.Helper()
	customer := models.Customer{TenantID: tenantID, Name: name}
	if err := conn.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

func BundleEdge(t testing.TB, conn *gorm.DB, tenantID, parentID, childID uuid.UUID, qty int64) models.ProductBundle {
	t.Helper()
	edge := models.ProductBundle{
		TenantID:        tenantID,
		ParentVariantID: parentID,
		ChildVariantID:  childID,
		Quantity:        decimal.NewFromInt(qty),
	}
	if err := conn.Create(&edge).Error; err != nil {
		t.Fatalf("seed bundle edge: %v", err)
	}
	return edge
}

// StockLevel writes an on-hand cell directly, bypassing the ledger.
func StockLevel(t testing.TB, conn *gorm.DB, tenantID, variantID, locationID, unitID uuid.UUID, qty decimal.Decimal) {
	t.Helper()
	level := models.StockLevel{
		TenantID:   tenantID,
		VariantID:  variantID,
		LocationID: locationID,
		UnitID:     unitID,
		Quantity:   qty,
	}
	if err := conn.Create(&level).Error; err != nil {
		t.Fatalf("seed stock level: %v", err)
	}
}

// Count returns the row count of model filtered by the optional where clause.
func Count(t testing.TB, conn *gorm.DB, model any, where ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
