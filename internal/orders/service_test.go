package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/erpcore/internal/ledger"
	"github.com/angelmondragon/erpcore/internal/orders"
	"github.com/angelmondragon/erpcore/internal/reservations"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/testkit"
	"github.com/angelmondragon/erpcore/pkg/db/dbtest"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

type fixture struct {
	env      *testkit.Env
	svc      orders.Service
	res      *reservations.Service
	tenant   uuid.UUID
	ctx      context.Context
	location models.Location
	rice     dbtest.SeededVariant
	oil      dbtest.SeededVariant
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	env := testkit.New(t)
	res, err := reservations.NewService(
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
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(env.DB))
	require.NoError(t, err)
	svc, err := orders.NewService(
		env.Client,
		orders.NewRepository(env.DB),
		env.Units,
		env.Ledger,
		res,
		ledgerSvc,
		env.Events,
		env.Locker,
		env.Metrics,
		env.Logger,
	)
	require.NoError(t, err)

	tenant := uuid.New()
	f := fixture{
		env:      env,
		svc:      svc,
		res:      res,
		tenant:   tenant,
		ctx:      testkit.As(tenant, enums.MemberRoleCashier),
		location: dbtest.Location(t, env.DB, tenant, "MAIN"),
		rice:     dbtest.Variant(t, env.DB, tenant, "RICE", dbtest.Base("kg"), dbtest.Pack("sack", 5)),
		oil:      dbtest.Variant(t, env.DB, tenant, "OIL", dbtest.Base("bottle")),
	}
	f.stockUp(t, f.rice, "kg", 20)
	f.stockUp(t, f.oil, "bottle", 10)
	return f
}

func (f fixture) stockUp(t *testing.T, v dbtest.SeededVariant, unit string, qty int64) {
	t.Helper()
	_, err := f.env.Ledger.Adjust(testkit.Owner(f.tenant), stock.AdjustInput{
		TenantID:     f.tenant,
		VariantID:    v.ID,
		LocationID:   f.location.ID,
		UnitID:       v.Unit(unit),
		Delta:        decimal.NewFromInt(qty),
		MovementType: enums.MovementPurchase,
	})
	require.NoError(t, err)
}

func (f fixture) onHand(t *testing.T, v dbtest.SeededVariant) decimal.Decimal {
	t.Helper()
	bal, err := f.env.Ledger.Balance(testkit.Owner(f.tenant), f.tenant, v.ID, f.location.ID)
	require.NoError(t, err)
	return bal.OnHand
}

func line(v dbtest.SeededVariant, unit string, qty, price int64) orders.LineInput {
	return orders.LineInput{
		VariantID: v.ID,
		UnitID:    v.Unit(unit),
		Quantity:  decimal.NewFromInt(qty),
		UnitPrice: decimal.NewFromInt(price),
	}
}

func (f fixture) order(lines ...orders.LineInput) orders.CreateOrderInput {
	return orders.CreateOrderInput{TenantID: f.tenant, LocationID: f.location.ID, Lines: lines}
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "expected %s got %s", want, got)
}

func TestCreateOrderDeductsEveryLine(t *testing.T) {
	f := newFixture(t)
	taxed := line(f.rice, "sack", 3, 100)
	taxed.Discount = decimal.NewFromInt(50)
	taxed.TaxRate = decimal.RequireFromString("0.14")

	orderID, err := f.svc.CreateOrder(f.ctx, f.order(taxed, line(f.oil, "bottle", 4, 10)))
	require.NoError(t, err)

	detail, err := f.svc.GetOrder(f.ctx, f.tenant, orderID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, detail.Order.Status)
	require.Len(t, detail.Lines, 2)
	requireDec(t, "340", detail.Order.NetAmount)
	requireDec(t, "50", detail.Order.DiscountAmount)
	requireDec(t, "35", detail.Order.TaxAmount)
	requireDec(t, "325", detail.Order.TotalAmount)

	requireDec(t, "5", f.onHand(t, f.rice))
	requireDec(t, "6", f.onHand(t, f.oil))
	require.Equal(t, int64(2), dbtest.Count(t, f.env.DB, &models.StockMovement{}, "reference_id = ? AND movement_type = ?", orderID, enums.MovementSale))
	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.Event{}, "event_type = ? AND aggregate_id = ?", enums.EventOrderCreated, orderID))
}

func TestCreateOrderRollsBackOnShortLine(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(f.ctx, f.order(line(f.rice, "kg", 5, 1), line(f.oil, "bottle", 11, 1)))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, 2, details["line"])
	require.Equal(t, f.oil.ID, details["variant_id"])

	requireDec(t, "20", f.onHand(t, f.rice))
	requireDec(t, "10", f.onHand(t, f.oil))
	require.Zero(t, dbtest.Count(t, f.env.DB, &models.Order{}))
	require.Zero(t, dbtest.Count(t, f.env.DB, &models.OrderLine{}))
	require.Zero(t, dbtest.Count(t, f.env.DB, &models.StockMovement{}, "movement_type = ?", enums.MovementSale))
	require.Zero(t, dbtest.Count(t, f.env.DB, &models.Event{}, "event_type = ?", enums.EventOrderCreated))
}

func TestCreateOrderSameCellTwice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(f.ctx, f.order(line(f.rice, "sack", 3, 1), line(f.rice, "kg", 6, 1)))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	_, err = f.svc.CreateOrder(f.ctx, f.order(line(f.rice, "sack", 3, 1), line(f.rice, "kg", 5, 1)))
	require.NoError(t, err)
	requireDec(t, "0", f.onHand(t, f.rice))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	other := dbtest.Location(t, f.env.DB, uuid.New(), "ELSEWHERE")

	_, err := f.svc.CreateOrder(f.ctx, f.order())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	discounted := line(f.rice, "kg", 1, 10)
	discounted.Discount = decimal.NewFromInt(11)
	_, err = f.svc.CreateOrder(f.ctx, f.order(discounted))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidDiscount))

	_, err = f.svc.CreateOrder(f.ctx, f.order(line(f.rice, "kg", 0, 10)))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidQuantity))

	in := f.order(line(f.rice, "kg", 1, 10))
	in.LocationID = other.ID
	_, err = f.svc.CreateOrder(f.ctx, in)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	mismatched := line(f.rice, "bottle", 1, 10)
	mismatched.UnitID = f.oil.Unit("bottle")
	_, err = f.svc.CreateOrder(f.ctx, f.order(mismatched))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	stranger := uuid.New()
	in = f.order(line(f.rice, "kg", 1, 10))
	in.CustomerID = &stranger
	_, err = f.svc.CreateOrder(f.ctx, in)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.CreateOrder(testkit.As(f.tenant, enums.MemberRoleViewer), f.order(line(f.rice, "kg", 1, 10)))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))

	require.Zero(t, dbtest.Count(t, f.env.DB, &models.Order{}))
}

func TestCreateOrderConsumesItsOwnReservations(t *testing.T) {
	f := newFixture(t)
	orderID := uuid.New()

	hold := reservations.ReserveInput{
		TenantID:   f.tenant,
		VariantID:  f.rice.ID,
		LocationID: f.location.ID,
		UnitID:     f.rice.Unit("kg"),
		Quantity:   decimal.NewFromInt(15),
		OrderRef:   &orderID,
	}
	_, err := f.res.Reserve(f.ctx, hold)
	require.NoError(t, err)
	hold.OrderRef = nil
	hold.Quantity = decimal.NewFromInt(5)
	_, err = f.res.Reserve(f.ctx, hold)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(f.ctx, f.order(line(f.rice, "kg", 1, 1)))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	in := f.order(line(f.rice, "sack", 3, 1))
	in.OrderID = orderID
	got, err := f.svc.CreateOrder(f.ctx, in)
	require.NoError(t, err)
	require.Equal(t, orderID, got)

	require.Zero(t, dbtest.Count(t, f.env.DB, &models.StockReservation{}, "order_ref = ?", orderID))
	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.StockReservation{}))
	bal, err := f.env.Ledger.Balance(f.ctx, f.tenant, f.rice.ID, f.location.ID)
	require.NoError(t, err)
	requireDec(t, "5", bal.OnHand)
	requireDec(t, "0", bal.Available)

	_, err = f.svc.CreateOrder(f.ctx, in)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateOrderConcurrentDemand(t *testing.T) {
	f := newFixture(t)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateOrder(f.ctx, f.order(line(f.oil, "bottle", 4, 1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.Is(err, pkgerrors.CodeInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2, succeeded)
	require.Equal(t, workers-2, short)
	requireDec(t, "2", f.onHand(t, f.oil))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	orderID, err := f.svc.CreateOrder(f.ctx, f.order(line(f.rice, "sack", 2, 1), line(f.oil, "bottle", 3, 1)))
	require.NoError(t, err)

	reason := "customer left"
	require.NoError(t, f.svc.CancelOrder(f.ctx, f.tenant, orderID, &reason))

	requireDec(t, "20", f.onHand(t, f.rice))
	requireDec(t, "10", f.onHand(t, f.oil))
	require.Equal(t, int64(2), dbtest.Count(t, f.env.DB, &models.StockMovement{}, "reference_id = ? AND movement_type = ?", orderID, enums.MovementReturn))
	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.Event{}, "event_type = ?", enums.EventOrderCancelled))

	err = f.svc.CancelOrder(f.ctx, f.tenant, orderID, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyCancelled), "got %v", err)
	err = f.svc.CompleteOrder(f.ctx, f.tenant, orderID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition), "got %v", err)
	requireDec(t, "20", f.onHand(t, f.rice))
}

func TestCompleteAndRefund(t *testing.T) {
	f := newFixture(t)
	taxed := line(f.oil, "bottle", 2, 50)
	taxed.TaxRate = decimal.RequireFromString("0.1")
	orderID, err := f.svc.CreateOrder(f.ctx, f.order(taxed))
	require.NoError(t, err)

	manager := testkit.As(f.tenant, enums.MemberRoleManager)
	_, err = f.svc.RefundOrder(manager, f.tenant, orderID, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition), "got %v", err)

	require.NoError(t, f.svc.CompleteOrder(f.ctx, f.tenant, orderID))
	err = f.svc.CompleteOrder(f.ctx, f.tenant, orderID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyCompleted), "got %v", err)
	err = f.svc.CancelOrder(f.ctx, f.tenant, orderID, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition), "got %v", err)

	_, err = f.svc.RefundOrder(f.ctx, f.tenant, orderID, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied), "got %v", err)

	reason := "damaged seal"
	txnID, err := f.svc.RefundOrder(manager, f.tenant, orderID, &reason)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, txnID)
	requireDec(t, "10", f.onHand(t, f.oil))

	detail, err := f.svc.GetOrder(f.ctx, f.tenant, orderID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusRefunded, detail.Order.Status)
	require.Len(t, detail.Transactions, 1)
	require.Equal(t, enums.TransactionRefund, detail.Transactions[0].Type)
	requireDec(t, "110", detail.Transactions[0].Amount)

	_, err = f.svc.RefundOrder(manager, f.tenant, orderID, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition), "got %v", err)
}

func TestLogPayment(t *testing.T) {
	f := newFixture(t)
	orderID, err := f.svc.CreateOrder(f.ctx, f.order(line(f.oil, "bottle", 1, 25)))
	require.NoError(t, err)

	txnID, err := f.svc.LogPayment(f.ctx, f.tenant, orderID, decimal.NewFromInt(25), enums.PaymentMethodCard)
	require.NoError(t, err)
	require.Equal(t, int64(1), dbtest.Count(t, f.env.DB, &models.Event{}, "event_type = ? AND aggregate_id = ?", enums.EventPaymentCompleted, orderID))

	detail, err := f.svc.GetOrder(f.ctx, f.tenant, orderID)
	require.NoError(t, err)
	require.Len(t, detail.Transactions, 1)
	require.Equal(t, txnID, detail.Transactions[0].ID)

	_, err = f.svc.LogPayment(f.ctx, f.tenant, orderID, decimal.Zero, enums.PaymentMethodCash)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = f.svc.LogPayment(f.ctx, f.tenant, orderID, decimal.NewFromInt(1), enums.PaymentMethod("barter"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = f.svc.LogPayment(f.ctx, f.tenant, uuid.New(), decimal.NewFromInt(1), enums.PaymentMethodCash)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestOrdersAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	orderID, err := f.svc.CreateOrder(f.ctx, f.order(line(f.oil, "bottle", 1, 25)))
	require.NoError(t, err)

	intruder := uuid.New()
	intruderCtx := testkit.Owner(intruder)

	_, err = f.svc.GetOrder(intruderCtx, f.tenant, orderID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))
	_, err = f.svc.GetOrder(intruderCtx, intruder, orderID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	err = f.svc.CancelOrder(intruderCtx, intruder, orderID, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = f.svc.LogPayment(intruderCtx, intruder, orderID, decimal.NewFromInt(1), enums.PaymentMethodCash)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	page, err := f.svc.ListOrders(intruderCtx, intruder, orders.OrderFilters{}, paginationParams(10))
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func TestListOrdersFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := f.svc.CreateOrder(f.ctx, f.order(line(f.oil, "bottle", 1, 5)))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, f.svc.CompleteOrder(f.ctx, f.tenant, ids[0]))

	first, err := f.svc.ListOrders(f.ctx, f.tenant, orders.OrderFilters{}, paginationParams(2))
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	rest := paginationParams(2)
	rest.Cursor = first.NextCursor
	second, err := f.svc.ListOrders(f.ctx, f.tenant, orders.OrderFilters{}, rest)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	completed := enums.OrderStatusCompleted
	filtered, err := f.svc.ListOrders(f.ctx, f.tenant, orders.OrderFilters{Status: &completed}, paginationParams(10))
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)
	require.Equal(t, ids[0], filtered.Items[0].ID)
}

func paginationParams(limit int) pagination.Params {
	return pagination.Params{Limit: limit}
}
