// Package orders turns multi-line sales into pending orders, deducting stock
// atomically, and drives the order lifecycle afterwards.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/ledger"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/stocklock"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/internal/units"
	"github.com/angelmondragon/erpcore/pkg/db"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/metrics"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

// Service exposes the order engine.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (uuid.UUID, error)
	CancelOrder(ctx context.Context, tenantID, orderID uuid.UUID, reason *string) error
	CompleteOrder(ctx context.Context, tenantID, orderID uuid.UUID) error
	RefundOrder(ctx context.Context, tenantID, orderID uuid.UUID, reason *string) (uuid.UUID, error)
	LogPayment(ctx context.Context, tenantID, orderID uuid.UUID, amount decimal.Decimal, method enums.PaymentMethod) (uuid.UUID, error)
	GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDetail, error)
	ListOrders(ctx context.Context, tenantID uuid.UUID, filters OrderFilters, params pagination.Params) (pagination.Page[models.Order], error)
}

type service struct {
	tx           txRunner
	repo         Repository
	units        *units.Converter
	stock        stockWriter
	reservations reservationConsumer
	ledger       ledger.Service
	events       events.Emitter
	locker       stocklock.Locker
	metrics      *metrics.StockMetrics
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the order engine from its collaborators.
func NewService(
	tx txRunner,
	repo Repository,
	conv *units.Converter,
	stockWriter stockWriter,
	reservations reservationConsumer,
	ledgerSvc ledger.Service,
	emitter events.Emitter,
	locker stocklock.Locker,
	m *metrics.StockMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if conv == nil {
		return nil, fmt.Errorf("unit converter required")
	}
	if stockWriter == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation consumer required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if locker == nil {
		return nil, fmt.Errorf("stock locker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		repo:         repo,
		units:        conv,
		stock:        stockWriter,
		reservations: reservations,
		ledger:       ledgerSvc,
		events:       emitter,
		locker:       locker,
		metrics:      m,
		logg:         logg,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrder validates every line, then in one transaction writes the header,
// the lines, one sale movement per line and the order.created event. Any
// failing line rolls the whole order back.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (uuid.UUID, error) {
	actor, err := tenancy.Authorize(ctx, input.TenantID, tenancy.PermWrite)
	if err != nil {
		return uuid.Nil, err
	}
	if input.LocationID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "location id is required")
	}
	if len(input.Lines) == 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line")
	}

	amounts := make([]LineAmounts, len(input.Lines))
	keys := make([]stocklock.Key, 0, len(input.Lines))
	for i, line := range input.Lines {
		if line.VariantID == uuid.Nil || line.UnitID == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "variant and unit are required").
				WithDetails(map[string]any{"line": i + 1})
		}
		a, err := ComputeLine(line)
		if err != nil {
			return uuid.Nil, withLine(err, i)
		}
		amounts[i] = a
		keys = append(keys, stocklock.CellKey(input.TenantID, line.VariantID, input.LocationID))
	}

	orderID := input.OrderID
	if orderID == uuid.Nil {
		orderID = uuid.New()
	}

	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return uuid.Nil, err
	}
	defer unlock()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.createOrderTx(ctx, tx, actor, orderID, input, amounts)
	})
	if err != nil {
		return uuid.Nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id": input.TenantID.String(),
		"order_id":  orderID.String(),
		"lines":     len(input.Lines),
	})
	s.logg.Info(logCtx, "order created")
	return orderID, nil
}

func (s *service) createOrderTx(ctx context.Context, tx *gorm.DB, actor tenancy.Actor, orderID uuid.UUID, input CreateOrderInput, amounts []LineAmounts) error {
	repo := s.repo.WithTx(tx)

	ok, err := repo.LocationExists(ctx, input.TenantID, input.LocationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup location")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "location not found").
			WithDetails(map[string]any{"location_id": input.LocationID})
	}
	if input.CustomerID != nil {
		ok, err := repo.CustomerExists(ctx, input.TenantID, *input.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found").
				WithDetails(map[string]any{"customer_id": *input.CustomerID})
		}
	}

	now := s.now()
	order := &models.Order{
		ID:             orderID,
		TenantID:       input.TenantID,
		LocationID:     input.LocationID,
		CustomerID:     input.CustomerID,
		Status:         enums.OrderStatusPending,
		NetAmount:      decimal.Zero,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.Zero,
		ActorUserID:    actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(input.Metadata) > 0 {
		order.Metadata = datatypes.JSONMap(input.Metadata)
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order id already used").
				WithDetails(map[string]any{"order_id": orderID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}

	var totals Totals
	summaries := make([]payloads.OrderLineSummary, 0, len(input.Lines))
	for i, line := range input.Lines {
		needed, err := s.units.WithTx(tx).VariantBaseQuantity(ctx, input.TenantID, line.VariantID, line.UnitID, line.Quantity)
		if err != nil {
			return withLine(err, i)
		}
		avail, err := s.stock.AvailableTx(ctx, tx, input.TenantID, line.VariantID, input.LocationID, &orderID)
		if err != nil {
			return withLine(err, i)
		}
		if avail.Available.LessThan(needed) {
			s.metrics.IncInsufficient("order")
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"line":       i + 1,
					"variant_id": line.VariantID,
					"requested":  needed.String(),
					"available":  avail.Available.String(),
				})
		}

		a := amounts[i]
		row := &models.OrderLine{
			TenantID:    input.TenantID,
			OrderID:     orderID,
			LineNo:      i + 1,
			VariantID:   line.VariantID,
			UnitID:      line.UnitID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    a.Discount,
			TaxRate:     line.TaxRate,
			TaxAmount:   a.Tax,
			NetAmount:   a.Net,
			TotalAmount: a.Total,
			CreatedAt:   now,
		}
		if err := repo.CreateLine(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order line")
		}

		ref := orderID
		if _, err := s.stock.ApplyTx(ctx, tx, stock.AdjustInput{
			TenantID:     input.TenantID,
			VariantID:    line.VariantID,
			LocationID:   input.LocationID,
			UnitID:       line.UnitID,
			Delta:        line.Quantity.Neg(),
			MovementType: enums.MovementSale,
			ReferenceID:  &ref,
		}); err != nil {
			return withLine(err, i)
		}
		if _, err := s.reservations.ConsumeForOrderTx(ctx, tx, input.TenantID, orderID, line.VariantID, input.LocationID); err != nil {
			return err
		}

		totals.Add(a)
		summaries = append(summaries, payloads.OrderLineSummary{
			LineID:    row.ID,
			VariantID: line.VariantID,
			UnitID:    line.UnitID,
			Quantity:  line.Quantity,
			Total:     a.Total,
		})
	}

	order.NetAmount = totals.Net
	order.DiscountAmount = totals.Discount
	order.TaxAmount = totals.Tax
	order.TotalAmount = totals.Total
	if err := repo.UpdateTotals(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order totals")
	}

	_, err = s.events.Emit(ctx, tx, events.DomainEvent{
		TenantID:      input.TenantID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		OccurredAt:    now,
		Data: payloads.OrderCreatedPayload{
			OrderID:        orderID,
			LocationID:     input.LocationID,
			CustomerID:     input.CustomerID,
			NetAmount:      totals.Net,
			DiscountAmount: totals.Discount,
			TaxAmount:      totals.Tax,
			TotalAmount:    totals.Total,
			Lines:          summaries,
		},
	})
	return err
}

// GetOrder returns the order with its lines and financial transactions.
func (s *service) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDetail, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, s.repo, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.FindLines(ctx, tenantID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	txns, err := s.ledger.ListForOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Lines: lines, Transactions: txns}, nil
}

// ListOrders pages the tenant's orders newest first.
func (s *service) ListOrders(ctx context.Context, tenantID uuid.UUID, filters OrderFilters, params pagination.Params) (pagination.Page[models.Order], error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return pagination.Page[models.Order]{}, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOrders(ctx, listOrdersParams{
		TenantID:   tenantID,
		Status:     filters.Status,
		LocationID: filters.LocationID,
		CustomerID: filters.CustomerID,
		Cursor:     cursor,
		Limit:      pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return pagination.BuildPage(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, tenantID, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	return order, nil
}

// withLine tags typed errors that carry no details with the failing line.
func withLine(err error, index int) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	switch details := typed.Details().(type) {
	case nil:
		return typed.WithDetails(map[string]any{"line": index + 1})
	case map[string]any:
		if _, ok := details["line"]; !ok {
			merged := make(map[string]any, len(details)+1)
			for k, v := range details {
				merged[k] = v
			}
			merged["line"] = index + 1
			return typed.WithDetails(merged)
		}
	}
	return err
}
