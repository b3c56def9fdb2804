// Package limits enforces per-tenant plan maxima before catalog writes.
package limits

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

// Gate counts existing resources and compares them with the tenant's plan.
type Gate struct {
	db    *gorm.DB
	plans PlanProvider
}

func NewGate(db *gorm.DB, plans PlanProvider) (*Gate, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if plans == nil {
		return nil, fmt.Errorf("plan provider required")
	}
	return &Gate{db: db, plans: plans}, nil
}

// WithTx counts inside tx so the check sees the caller's pending writes.
func (g *Gate) WithTx(tx *gorm.DB) *Gate {
	if tx == nil {
		return g
	}
	return &Gate{db: tx, plans: g.plans}
}

// Check fails with LIMIT_EXCEEDED when one more kind would pass the plan.
func (g *Gate) Check(ctx context.Context, tenantID uuid.UUID, kind enums.ResourceKind) error {
	return g.CheckN(ctx, tenantID, kind, 1)
}

// CheckN is Check for adding n resources at once. n <= 0 always passes.
func (g *Gate) CheckN(ctx context.Context, tenantID uuid.UUID, kind enums.ResourceKind, n int64) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid resource kind %q", kind))
	}
	if n <= 0 {
		return nil
	}
	plan, err := g.plans.PlanFor(ctx, tenantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve plan")
	}
	ceiling := plan.Max(kind)
	if ceiling <= 0 {
		return nil
	}

	current, err := g.count(ctx, tenantID, kind)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count resources")
	}
	if current+n > ceiling {
		return pkgerrors.New(pkgerrors.CodeLimit, fmt.Sprintf("%s limit reached", kind)).
			WithDetails(map[string]any{
				"resource": kind,
				"limit":    ceiling,
				"current":  current,
			})
	}
	return nil
}

func (g *Gate) count(ctx context.Context, tenantID uuid.UUID, kind enums.ResourceKind) (int64, error) {
	switch kind {
	case enums.ResourceVariant:
		return g.countVariants(ctx, tenantID)
	case enums.ResourceLocation:
		return g.countLocations(ctx, tenantID)
	case enums.ResourceCustomer:
		return g.countCustomers(ctx, tenantID)
	case enums.ResourceBundleEdge:
		return g.countBundleEdges(ctx, tenantID)
	}
	return 0, fmt.Errorf("unhandled resource kind %q", kind)
}

func (g *Gate) countVariants(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return g.countWhere(ctx, &models.ProductVariant{}, tenantID)
}

func (g *Gate) countLocations(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return g.countWhere(ctx, &models.Location{}, tenantID)
}

func (g *Gate) countCustomers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return g.countWhere(ctx, &models.Customer{}, tenantID)
}

func (g *Gate) countBundleEdges(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return g.countWhere(ctx, &models.ProductBundle{}, tenantID)
}

func (g *Gate) countWhere(ctx context.Context, model any, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(model).Where("tenant_id = ?", tenantID).Count(&n).Error
	return n, err
}
