package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/ledger"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/stocklock"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
)

// CancelOrder returns every line to stock and marks a pending order cancelled.
func (s *service) CancelOrder(ctx context.Context, tenantID, orderID uuid.UUID, reason *string) error {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermWrite); err != nil {
		return err
	}
	return s.transition(ctx, tenantID, orderID, enums.OrderStatusCancelled, true, func(tx *gorm.DB, order *models.Order, lines []models.OrderLine) (payloads.OrderStatusChangedPayload, error) {
		if err := s.restoreLines(ctx, tx, order, lines, reason); err != nil {
			return payloads.OrderStatusChangedPayload{}, err
		}
		return payloads.OrderStatusChangedPayload{Reason: deref(reason)}, nil
	})
}

// CompleteOrder marks a pending order completed.
func (s *service) CompleteOrder(ctx context.Context, tenantID, orderID uuid.UUID) error {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermWrite); err != nil {
		return err
	}
	return s.transition(ctx, tenantID, orderID, enums.OrderStatusCompleted, false, func(*gorm.DB, *models.Order, []models.OrderLine) (payloads.OrderStatusChangedPayload, error) {
		return payloads.OrderStatusChangedPayload{}, nil
	})
}

// RefundOrder restores stock for a completed order and records a refund for
// its full total. It returns the refund transaction id.
func (s *service) RefundOrder(ctx context.Context, tenantID, orderID uuid.UUID, reason *string) (uuid.UUID, error) {
	actor, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRefund)
	if err != nil {
		return uuid.Nil, err
	}
	var txnID uuid.UUID
	err = s.transition(ctx, tenantID, orderID, enums.OrderStatusRefunded, true, func(tx *gorm.DB, order *models.Order, lines []models.OrderLine) (payloads.OrderStatusChangedPayload, error) {
		if err := s.restoreLines(ctx, tx, order, lines, reason); err != nil {
			return payloads.OrderStatusChangedPayload{}, err
		}
		amount := decimal.Zero
		for _, line := range lines {
			amount = amount.Add(line.TotalAmount)
		}
		txn, err := s.ledger.RecordTx(ctx, tx, ledger.RecordInput{
			TenantID:    tenantID,
			OrderID:     orderID,
			ActorUserID: actor.UserID,
			Type:        enums.TransactionRefund,
			Amount:      amount,
			Reason:      reason,
		})
		if err != nil {
			return payloads.OrderStatusChangedPayload{}, err
		}
		txnID = txn.ID
		return payloads.OrderStatusChangedPayload{
			Reason:        deref(reason),
			TransactionID: &txn.ID,
			Amount:        &amount,
		}, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return txnID, nil
}

// LogPayment records a payment against an existing order.
func (s *service) LogPayment(ctx context.Context, tenantID, orderID uuid.UUID, amount decimal.Decimal, method enums.PaymentMethod) (uuid.UUID, error) {
	actor, err := tenancy.Authorize(ctx, tenantID, tenancy.PermWrite)
	if err != nil {
		return uuid.Nil, err
	}
	if !amount.IsPositive() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !method.IsValid() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"method": method})
	}

	var txnID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.loadOrder(ctx, s.repo.WithTx(tx), tenantID, orderID); err != nil {
			return err
		}
		txn, err := s.ledger.RecordTx(ctx, tx, ledger.RecordInput{
			TenantID:    tenantID,
			OrderID:     orderID,
			ActorUserID: actor.UserID,
			Type:        enums.TransactionPayment,
			Amount:      amount,
			Method:      &method,
		})
		if err != nil {
			return err
		}
		txnID = txn.ID
		_, err = s.events.Emit(ctx, tx, events.DomainEvent{
			TenantID:      tenantID,
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			OccurredAt:    s.now(),
			Data: payloads.PaymentCompletedPayload{
				OrderID:       orderID,
				TransactionID: txn.ID,
				Amount:        amount,
				Method:        method,
			},
		})
		return err
	})
	if err != nil {
		return uuid.Nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "log payment")
	}
	return txnID, nil
}

type transitionFunc func(tx *gorm.DB, order *models.Order, lines []models.OrderLine) (payloads.OrderStatusChangedPayload, error)

// transition serializes status changes per order. When cells is set the
// order's stock cells are locked as well so lines can be returned to stock.
func (s *service) transition(ctx context.Context, tenantID, orderID uuid.UUID, to enums.OrderStatus, cells bool, fn transitionFunc) error {
	order, err := s.loadOrder(ctx, s.repo, tenantID, orderID)
	if err != nil {
		return err
	}
	lines, err := s.repo.FindLines(ctx, tenantID, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}

	keys := []stocklock.Key{stocklock.OrderKey(tenantID, orderID)}
	if cells {
		for _, line := range lines {
			keys = append(keys, stocklock.CellKey(tenantID, line.VariantID, order.LocationID))
		}
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	var from enums.OrderStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.loadOrder(ctx, repo, tenantID, orderID)
		if err != nil {
			return err
		}
		from = current.Status
		if err := checkTransition(current, to); err != nil {
			return err
		}

		payload, err := fn(tx, current, lines)
		if err != nil {
			return err
		}

		affected, err := repo.UpdateStatus(ctx, tenantID, orderID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": orderID})
		}

		payload.OrderID = orderID
		payload.From = from
		payload.To = to
		_, err = s.events.Emit(ctx, tx, events.DomainEvent{
			TenantID:      tenantID,
			EventType:     transitionEvents[to],
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			OccurredAt:    s.now(),
			Data:          payload,
		})
		return err
	})
	if err != nil {
		return pkgerrors.Ensure(err, pkgerrors.CodeDependency, "update order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id": tenantID.String(),
		"order_id":  orderID.String(),
		"from":      from.String(),
		"to":        to.String(),
	})
	s.logg.Info(logCtx, "order status changed")
	return nil
}

var transitionEvents = map[enums.OrderStatus]enums.EventType{
	enums.OrderStatusCancelled: enums.EventOrderCancelled,
	enums.OrderStatusCompleted: enums.EventOrderCompleted,
	enums.OrderStatusRefunded:  enums.EventOrderRefunded,
}

func checkTransition(order *models.Order, to enums.OrderStatus) error {
	if order.Status.CanTransitionTo(to) {
		return nil
	}
	switch {
	case to == enums.OrderStatusCancelled && order.Status == enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "order already cancelled")
	case to == enums.OrderStatusCompleted && order.Status == enums.OrderStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeAlreadyCompleted, "order already completed")
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status transition not allowed").
		WithDetails(map[string]any{"from": order.Status, "to": to})
}

func (s *service) restoreLines(ctx context.Context, tx *gorm.DB, order *models.Order, lines []models.OrderLine, reason *string) error {
	ref := order.ID
	for _, line := range lines {
		if _, err := s.stock.ApplyTx(ctx, tx, stock.AdjustInput{
			TenantID:     order.TenantID,
			VariantID:    line.VariantID,
			LocationID:   order.LocationID,
			UnitID:       line.UnitID,
			Delta:        line.Quantity,
			MovementType: enums.MovementReturn,
			Reason:       reason,
			ReferenceID:  &ref,
		}); err != nil {
			return err
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
