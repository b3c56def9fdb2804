// Package bundles sells composite variants by deducting their components.
package bundles

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/stocklock"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/internal/units"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
)

const saleReason = "Bundle Sale"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockWriter interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, in stock.AdjustInput) (*stock.AdjustResult, error)
}

// SellInput sells Quantity of a bundle parent at one location.
type SellInput struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	ParentVariantID uuid.UUID       `json:"parent_variant_id"`
	LocationID      uuid.UUID       `json:"location_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	OrderRef        *uuid.UUID      `json:"order_ref,omitempty"`
}

// SellResult lists the child deductions that were written.
type SellResult struct {
	EventID    uuid.UUID                  `json:"event_id"`
	Deductions []payloads.BundleDeduction `json:"deductions"`
}

type component struct {
	edge     models.ProductBundle
	baseUnit uuid.UUID
	quantity decimal.Decimal
}

type Service struct {
	tx     txRunner
	repo   Repository
	units  *units.Converter
	stock  stockWriter
	events events.Emitter
	locker stocklock.Locker
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(
	tx txRunner,
	repo Repository,
	conv *units.Converter,
	stockWriter stockWriter,
	emitter events.Emitter,
	locker stocklock.Locker,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("bundles repository required")
	}
	if conv == nil {
		return nil, fmt.Errorf("unit converter required")
	}
	if stockWriter == nil {
		return nil, fmt.Errorf("stock ledger required")
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
	return &Service{
		tx:     tx,
		repo:   repo,
		units:  conv,
		stock:  stockWriter,
		events: emitter,
		locker: locker,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// SellBundle deducts edge quantity × parent quantity base units of every
// child in one transaction. Nothing is written unless every child has
// exactly one base unit.
func (s *Service) SellBundle(ctx context.Context, in SellInput) (*SellResult, error) {
	if _, err := tenancy.Authorize(ctx, in.TenantID, tenancy.PermWrite); err != nil {
		return nil, err
	}
	if in.ParentVariantID == uuid.Nil || in.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent variant and location are required")
	}
	if !in.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
			WithDetails(map[string]any{"quantity": in.Quantity.String()})
	}

	components, err := s.components(ctx, in)
	if err != nil {
		return nil, err
	}

	keys := make([]stocklock.Key, 0, len(components))
	for _, c := range components {
		keys = append(keys, stocklock.CellKey(in.TenantID, c.edge.ChildVariantID, in.LocationID))
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &SellResult{Deductions: make([]payloads.BundleDeduction, 0, len(components))}
	reason := saleReason
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, c := range components {
			adjusted, err := s.stock.ApplyTx(ctx, tx, stock.AdjustInput{
				TenantID:     in.TenantID,
				VariantID:    c.edge.ChildVariantID,
				LocationID:   in.LocationID,
				UnitID:       c.baseUnit,
				Delta:        c.quantity.Neg(),
				MovementType: enums.MovementSale,
				Reason:       &reason,
				ReferenceID:  in.OrderRef,
			})
			if err != nil {
				return err
			}
			result.Deductions = append(result.Deductions, payloads.BundleDeduction{
				ChildVariantID: c.edge.ChildVariantID,
				UnitID:         c.baseUnit,
				Quantity:       c.quantity,
				MovementID:     adjusted.MovementID,
			})
		}

		eventID, err := s.events.Emit(ctx, tx, events.DomainEvent{
			TenantID:      in.TenantID,
			EventType:     enums.EventBundleSold,
			AggregateType: enums.AggregateBundle,
			AggregateID:   in.ParentVariantID,
			OccurredAt:    s.now(),
			Data: payloads.BundleSoldPayload{
				ParentVariantID: in.ParentVariantID,
				LocationID:      in.LocationID,
				Quantity:        in.Quantity,
				OrderRef:        in.OrderRef,
				Deductions:      result.Deductions,
			},
		})
		result.EventID = eventID
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "sell bundle")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id":  in.TenantID.String(),
		"parent_id":  in.ParentVariantID.String(),
		"quantity":   in.Quantity.String(),
		"components": len(components),
	})
	s.logg.Info(logCtx, "bundle sold")
	return result, nil
}

// Components returns the composition of a bundle parent.
func (s *Service) Components(ctx context.Context, tenantID, parentVariantID uuid.UUID) ([]models.ProductBundle, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return nil, err
	}
	if err := s.requireParent(ctx, tenantID, parentVariantID); err != nil {
		return nil, err
	}
	edges, err := s.repo.Components(ctx, tenantID, parentVariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bundle components")
	}
	return edges, nil
}

func (s *Service) components(ctx context.Context, in SellInput) ([]component, error) {
	if err := s.requireParent(ctx, in.TenantID, in.ParentVariantID); err != nil {
		return nil, err
	}
	edges, err := s.repo.Components(ctx, in.TenantID, in.ParentVariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bundle components")
	}
	if len(edges) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyBundle, "bundle has no components").
			WithDetails(map[string]any{"parent_variant_id": in.ParentVariantID})
	}

	out := make([]component, 0, len(edges))
	for _, edge := range edges {
		base, err := s.units.BaseUnit(ctx, in.TenantID, edge.ChildVariantID)
		if err != nil {
			return nil, err
		}
		out = append(out, component{
			edge:     edge,
			baseUnit: base.ID,
			quantity: edge.Quantity.Mul(in.Quantity),
		})
	}
	return out, nil
}

func (s *Service) requireParent(ctx context.Context, tenantID, parentVariantID uuid.UUID) error {
	ok, err := s.repo.VariantExists(ctx, tenantID, parentVariantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup bundle parent")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeBundleNotFound, "bundle not found").
			WithDetails(map[string]any{"parent_variant_id": parentVariantID})
	}
	return nil
}
