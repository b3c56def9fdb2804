package reservations_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/erpcore/internal/reservations"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/internal/testkit"
	"github.com/angelmondragon/erpcore/pkg/db/dbtest"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

type fixture struct {
	env      *testkit.Env
	svc      *reservations.Service
	tenant   uuid.UUID
	ctx      context.Context
	location models.Location
	variant  dbtest.SeededVariant
}

func newFixture(t *testing.T, onHand int64) fixture {
	t.Helper()
	env := testkit.New(t)
	svc, err := reservations.NewService(
		env.Client,
		reservations.NewRepository(env.DB),
		env.Units,
		env.Ledger,
		env.Events,
		env.Locker,
		env.Metrics,
		env.Logger,
		time.Hour,
	)
	require.NoError(t, err)

	tenant := uuid.New()
	f := fixture{
		env:      env,
		svc:      svc,
		tenant:   tenant,
		ctx:      testkit.As(tenant, enums.MemberRoleCashier),
		location: dbtest.Location(t, env.DB, tenant, "MAIN"),
		variant:  dbtest.Variant(t, env.DB, tenant, "RICE", dbtest.Base("kg"), dbtest.Pack("sack", 5)),
	}
	if onHand != 0 {
		_, err := env.Ledger.Adjust(testkit.Owner(tenant), stock.AdjustInput{
			TenantID:     tenant,
			VariantID:    f.variant.ID,
			LocationID:   f.location.ID,
			UnitID:       f.variant.Unit("kg"),
			Delta:        decimal.NewFromInt(onHand),
			MovementType: enums.MovementPurchase,
		})
		require.NoError(t, err)
	}
	return f
}

func (f fixture) input(unit string, qty int64) reservations.ReserveInput {
	return reservations.ReserveInput{
		TenantID:   f.tenant,
		VariantID:  f.variant.ID,
		LocationID: f.location.ID,
		UnitID:     f.variant.Unit(unit),
		Quantity:   decimal.NewFromInt(qty),
	}
}

func TestReserveRespectsAvailability(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.svc.Reserve(f.ctx, f.input("kg", 11))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	id, err := f.svc.Reserve(f.ctx, f.input("kg", 4))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	_, err = f.svc.Reserve(f.ctx, f.input("kg", 7))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	_, err = f.svc.Reserve(f.ctx, f.input("kg", 6))
	require.NoError(t, err)

	bal, err := f.env.Ledger.Balance(f.ctx, f.tenant, f.variant.ID, f.location.ID)
	require.NoError(t, err)
	require.True(t, bal.OnHand.Equal(decimal.NewFromInt(10)))
	require.True(t, bal.Available.IsZero())
	require.Equal(t, int64(2), dbtest.Count(t, f.env.DB, &models.Event{}, "event_type = ?", enums.EventStockReserved))
}

func TestReserveConvertsToBaseUnits(t *testing.T) {
	f := newFixture(t, 12)

	_, err := f.svc.Reserve(f.ctx, f.input("sack", 3))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	_, err = f.svc.Reserve(f.ctx, f.input("sack", 2))
	require.NoError(t, err)

	bal, err := f.env.Ledger.Balance(f.ctx, f.tenant, f.variant.ID, f.location.ID)
	require.NoError(t, err)
	require.True(t, bal.Reserved.Equal(decimal.NewFromInt(10)))
}

func TestReserveRejectsInvalidQuantity(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.svc.Reserve(f.ctx, f.input("kg", 0))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidQuantity))
	_, err = f.svc.Reserve(f.ctx, f.input("kg", -1))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidQuantity))
}

func TestConcurrentReservesOnlyOneWins(t *testing.T) {
	const onHand = 20
	const callers = 8
	f := newFixture(t, onHand)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, insufficient := 0, 0
	var unexpected []error

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Reserve(testkit.As(f.tenant, enums.MemberRoleCashier), f.input("kg", onHand))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.Is(err, pkgerrors.CodeInsufficientStock):
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, unexpected)
	require.Equal(t, 1, successes)
	require.Equal(t, callers-1, insufficient)
	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.StockReservation{}))
}

func TestReleaseDeletesAndEmits(t *testing.T) {
	f := newFixture(t, 5)
	id, err := f.svc.Reserve(f.ctx, f.input("kg", 5))
	require.NoError(t, err)

	require.NoError(t, f.svc.Release(f.ctx, f.tenant, id))
	require.Zero(t, dbtest.Count(t, f.env.DB, &models.StockReservation{}))
	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.Event{}, "event_type = ?", enums.EventStockReleased))

	err = f.svc.Release(f.ctx, f.tenant, id)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Reserve(f.ctx, f.input("kg", 5))
	require.NoError(t, err)
}

func TestReservationOperationsRejectForeignTenant(t *testing.T) {
	f := newFixture(t, 5)
	id, err := f.svc.Reserve(f.ctx, f.input("kg", 2))
	require.NoError(t, err)

	otherTenant := uuid.New()
	intruder := testkit.Owner(otherTenant)

	_, err = f.svc.Reserve(intruder, f.input("kg", 1))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))

	err = f.svc.Release(intruder, f.tenant, id)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))

	_, err = f.svc.Get(intruder, f.tenant, id)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))

	tenantScoped := f.tenant
	_, err = f.svc.ExpireSweep(intruder, &tenantScoped)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))

	// Addressed under its own tenant the foreign reservation does not exist.
	err = f.svc.Release(intruder, otherTenant, id)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.StockReservation{}))
}

func TestExpireSweepIsIdempotent(t *testing.T) {
	f := newFixture(t, 10)

	short := f.input("kg", 3)
	short.TTL = time.Millisecond
	_, err := f.svc.Reserve(f.ctx, short)
	require.NoError(t, err)
	_, err = f.svc.Reserve(f.ctx, short)
	require.NoError(t, err)
	_, err = f.svc.Reserve(f.ctx, f.input("kg", 1))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	tenant := f.tenant
	removed, err := f.svc.ExpireSweep(f.ctx, &tenant)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	removed, err = f.svc.ExpireSweep(f.ctx, &tenant)
	require.NoError(t, err)
	require.Zero(t, removed)

	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.StockReservation{}))
	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.Event{}, "event_type = ?", enums.EventStockReservationsExpired))
}

func TestGlobalSweepRequiresSystemActor(t *testing.T) {
	f := newFixture(t, 10)

	short := f.input("kg", 1)
	short.TTL = time.Millisecond
	_, err := f.svc.Reserve(f.ctx, short)
	require.NoError(t, err)

	second := uuid.New()
	loc := dbtest.Location(t, f.env.DB, second, "B")
	v := dbtest.Variant(t, f.env.DB, second, "OIL", dbtest.Base("l"))
	_, err = f.env.Ledger.Adjust(testkit.Owner(second), stock.AdjustInput{
		TenantID: second, VariantID: v.ID, LocationID: loc.ID, UnitID: v.Unit("l"),
		Delta: decimal.NewFromInt(3), MovementType: enums.MovementPurchase,
	})
	require.NoError(t, err)
	_, err = f.svc.Reserve(testkit.Owner(second), reservations.ReserveInput{
		TenantID: second, VariantID: v.ID, LocationID: loc.ID, UnitID: v.Unit("l"),
		Quantity: decimal.NewFromInt(1), TTL: time.Millisecond,
	})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = f.svc.ExpireSweep(testkit.Owner(f.tenant), nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))

	system := tenancy.WithActor(context.Background(), tenancy.SystemActor(uuid.Nil))
	removed, err := f.svc.ExpireSweep(system, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	var sweeps []models.Event
	require.NoError(t, f.env.DB.Where("event_type = ?", enums.EventStockReservationsExpired).Find(&sweeps).Error)
	require.Len(t, sweeps, 2)
	for _, ev := range sweeps {
		require.Equal(t, enums.MemberRoleSystem, ev.ActorRole)
		require.Equal(t, tenancy.SystemUserID, ev.ActorUserID)
	}
}
