package limits

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/pkg/config"
	"github.com/angelmondragon/erpcore/pkg/enums"
)

// Plan carries per-resource maxima. Zero means unlimited.
type Plan struct {
	MaxVariants    int64
	MaxLocations   int64
	MaxCustomers   int64
	MaxBundleEdges int64
}

// Max returns the ceiling for kind.
func (p Plan) Max(kind enums.ResourceKind) int64 {
	switch kind {
	case enums.ResourceVariant:
		return p.MaxVariants
	case enums.ResourceLocation:
		return p.MaxLocations
	case enums.ResourceCustomer:
		return p.MaxCustomers
	case enums.ResourceBundleEdge:
		return p.MaxBundleEdges
	}
	return 0
}

// PlanProvider resolves the plan a tenant is on.
type PlanProvider interface {
	PlanFor(ctx context.Context, tenantID uuid.UUID) (Plan, error)
}

// StaticPlans gives every tenant the same plan.
type StaticPlans struct {
	plan Plan
}

func NewStaticPlans(cfg config.LimitsConfig) StaticPlans {
	return StaticPlans{plan: Plan{
		MaxVariants:    cfg.MaxVariants,
		MaxLocations:   cfg.MaxLocations,
		MaxCustomers:   cfg.MaxCustomers,
		MaxBundleEdges: cfg.MaxBundleEdges,
	}}
}

func (s StaticPlans) PlanFor(context.Context, uuid.UUID) (Plan, error) {
	return s.plan, nil
}
