// Package stock owns on-hand cells, the append-only movement log and the
// availability math shared by reservations and sales.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/stocklock"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/internal/units"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/metrics"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AdjustInput is one signed change to a stock cell.
type AdjustInput struct {
	TenantID     uuid.UUID
	VariantID    uuid.UUID
	LocationID   uuid.UUID
	UnitID       uuid.UUID
	Delta        decimal.Decimal
	MovementType enums.MovementType
	Reason       *string
	ReferenceID  *uuid.UUID
}

// AdjustResult reports the movement written and the cell balance around it.
type AdjustResult struct {
	MovementID uuid.UUID
	LevelID    uuid.UUID
	Before     decimal.Decimal
	After      decimal.Decimal
	EventID    uuid.UUID
}

// Ledger applies adjustments and computes availability.
type Ledger struct {
	tx      txRunner
	repo    Repository
	units   *units.Converter
	events  events.Emitter
	locker  stocklock.Locker
	metrics *metrics.StockMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewLedger(
	tx txRunner,
	repo Repository,
	conv *units.Converter,
	emitter events.Emitter,
	locker stocklock.Locker,
	m *metrics.StockMetrics,
	logg *logger.Logger,
) (*Ledger, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if conv == nil {
		return nil, fmt.Errorf("unit converter required")
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
	return &Ledger{
		tx:      tx,
		repo:    repo,
		units:   conv,
		events:  emitter,
		locker:  locker,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Adjust locks the cell and applies in in its own transaction.
func (l *Ledger) Adjust(ctx context.Context, in AdjustInput) (*AdjustResult, error) {
	if _, err := tenancy.Authorize(ctx, in.TenantID, tenancy.PermWrite); err != nil {
		return nil, err
	}
	if err := validateAdjust(in); err != nil {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, stocklock.CellKey(in.TenantID, in.VariantID, in.LocationID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *AdjustResult
	err = l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var applyErr error
		result, applyErr = l.ApplyTx(ctx, tx, in)
		return applyErr
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "adjust stock")
	}
	return result, nil
}

// ApplyTx writes the level, the movement and the stock.adjusted event in tx.
// The caller must already hold the cell lock.
func (l *Ledger) ApplyTx(ctx context.Context, tx *gorm.DB, in AdjustInput) (*AdjustResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	actor, err := tenancy.Authorize(ctx, in.TenantID, tenancy.PermWrite)
	if err != nil {
		return nil, err
	}
	if err := validateAdjust(in); err != nil {
		return nil, err
	}

	unit, err := l.units.WithTx(tx).Resolve(ctx, in.TenantID, in.UnitID)
	if err != nil {
		return nil, err
	}
	if unit.VariantID != in.VariantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unit not found").
			WithDetails(map[string]any{"unit_id": in.UnitID})
	}

	repo := l.repo.WithTx(tx)
	ok, err := repo.LocationExists(ctx, in.TenantID, in.LocationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup location")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "location not found").
			WithDetails(map[string]any{"location_id": in.LocationID})
	}

	key := CellUnit{TenantID: in.TenantID, VariantID: in.VariantID, LocationID: in.LocationID, UnitID: in.UnitID}
	level, err := repo.FindLevel(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock level")
	}

	before := decimal.Zero
	if level == nil {
		level = &models.StockLevel{
			TenantID:   in.TenantID,
			VariantID:  in.VariantID,
			LocationID: in.LocationID,
			UnitID:     in.UnitID,
			Quantity:   in.Delta,
		}
		if err := repo.CreateLevel(ctx, level); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock level")
		}
	} else {
		before = level.Quantity
		level.Quantity = before.Add(in.Delta)
		if err := repo.UpdateLevelQuantity(ctx, level.ID, level.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock level")
		}
	}
	after := level.Quantity

	movement := &models.StockMovement{
		TenantID:     in.TenantID,
		VariantID:    in.VariantID,
		LocationID:   in.LocationID,
		UnitID:       in.UnitID,
		Delta:        in.Delta,
		BalanceAfter: after,
		MovementType: in.MovementType,
		Reason:       in.Reason,
		ReferenceID:  in.ReferenceID,
		ActorUserID:  actor.UserID,
		CreatedAt:    l.now(),
	}
	if err := repo.InsertMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
	}

	payload := payloads.StockAdjustedPayload{
		MovementID:   movement.ID,
		VariantID:    in.VariantID,
		LocationID:   in.LocationID,
		UnitID:       in.UnitID,
		MovementType: in.MovementType,
		Delta:        in.Delta,
		Before:       before,
		After:        after,
		ReferenceID:  in.ReferenceID,
	}
	if in.Reason != nil {
		payload.Reason = *in.Reason
	}
	eventID, err := l.events.Emit(ctx, tx, events.DomainEvent{
		TenantID:      in.TenantID,
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateStockCell,
		AggregateID:   level.ID,
		Data:          payload,
		OccurredAt:    movement.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	if after.IsNegative() {
		l.metrics.IncNegativeBalance()
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"tenant_id":   in.TenantID.String(),
			"variant_id":  in.VariantID.String(),
			"location_id": in.LocationID.String(),
			"unit_id":     in.UnitID.String(),
			"balance":     after.String(),
		})
		l.logg.Warn(logCtx, "stock cell below zero")
	}

	return &AdjustResult{
		MovementID: movement.ID,
		LevelID:    level.ID,
		Before:     before,
		After:      after,
		EventID:    eventID,
	}, nil
}

func validateAdjust(in AdjustInput) error {
	if in.VariantID == uuid.Nil || in.LocationID == uuid.Nil || in.UnitID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant, location and unit are required")
	}
	if in.Delta.IsZero() {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "delta must be non-zero")
	}
	if !in.MovementType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type").
			WithDetails(map[string]any{"movement_type": in.MovementType})
	}
	return nil
}
