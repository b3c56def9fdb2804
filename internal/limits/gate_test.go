package limits

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/pkg/config"
	"github.com/angelmondragon/erpcore/pkg/db/dbtest"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

type failingPlans struct{}

func (failingPlans) PlanFor(context.Context, uuid.UUID) (Plan, error) {
	return Plan{}, errors.New("plan service down")
}

func TestGateEnforcesPlan(t *testing.T) {
	conn := dbtest.Open(t).DB()
	gate, err := NewGate(conn, NewStaticPlans(config.LimitsConfig{MaxLocations: 2, MaxCustomers: 1}))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	ctx := context.Background()
	tenant := uuid.New()

	dbtest.Location(t, conn, tenant, "A")
	if err := gate.Check(ctx, tenant, enums.ResourceLocation); err != nil {
		t.Fatalf("second location should fit: %v", err)
	}
	dbtest.Location(t, conn, tenant, "B")
	err = gate.Check(ctx, tenant, enums.ResourceLocation)
	if !pkgerrors.Is(err, pkgerrors.CodeLimit) {
		t.Fatalf("expected LIMIT_EXCEEDED got %v", err)
	}

	if err := gate.Check(ctx, uuid.New(), enums.ResourceLocation); err != nil {
		t.Fatalf("other tenants have their own count: %v", err)
	}
	if err := gate.CheckN(ctx, tenant, enums.ResourceCustomer, 2); !pkgerrors.Is(err, pkgerrors.CodeLimit) {
		t.Fatalf("expected batch over limit to fail, got %v", err)
	}
	if err := gate.CheckN(ctx, tenant, enums.ResourceCustomer, 0); err != nil {
		t.Fatalf("zero additions always pass: %v", err)
	}
}

func TestGateUnlimitedAndInvalid(t *testing.T) {
	conn := dbtest.Open(t).DB()
	gate, err := NewGate(conn, NewStaticPlans(config.LimitsConfig{}))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	tenant := uuid.New()
	for i := 0; i < 3; i++ {
		dbtest.Variant(t, conn, tenant, uuid.NewString(), dbtest.Base("pc"))
	}
	if err := gate.Check(context.Background(), tenant, enums.ResourceVariant); err != nil {
		t.Fatalf("zero max is unlimited: %v", err)
	}
	if err := gate.Check(context.Background(), tenant, enums.ResourceKind("warehouse")); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGatePlanProviderFailure(t *testing.T) {
	gate, err := NewGate(dbtest.Open(t).DB(), failingPlans{})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	err = gate.Check(context.Background(), uuid.New(), enums.ResourceCustomer)
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPlanMax(t *testing.T) {
	plan := Plan{MaxVariants: 1, MaxLocations: 2, MaxCustomers: 3, MaxBundleEdges: 4}
	want := map[enums.ResourceKind]int64{
		enums.ResourceVariant:    1,
		enums.ResourceLocation:   2,
		enums.ResourceCustomer:   3,
		enums.ResourceBundleEdge: 4,
	}
	for kind, ceiling := range want {
		if got := plan.Max(kind); got != ceiling {
			t.Fatalf("%s: expected %d got %d", kind, ceiling, got)
		}
	}
}
