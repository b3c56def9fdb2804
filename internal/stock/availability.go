package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/internal/units"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

// Availability is the base-unit picture of one (variant, location).
type Availability struct {
	VariantID  uuid.UUID       `json:"variant_id"`
	LocationID uuid.UUID       `json:"location_id"`
	OnHand     decimal.Decimal `json:"on_hand"`
	Reserved   decimal.Decimal `json:"reserved"`
	Available  decimal.Decimal `json:"available"`
}

// Balance reads availability without taking the cell lock.
func (l *Ledger) Balance(ctx context.Context, tenantID, variantID, locationID uuid.UUID) (*Availability, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return nil, err
	}
	ok, err := l.repo.LocationExists(ctx, tenantID, locationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup location")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "location not found").
			WithDetails(map[string]any{"location_id": locationID})
	}
	return l.available(ctx, l.repo, l.units, tenantID, variantID, locationID, nil)
}

// AvailableTx computes availability inside tx. Callers hold the cell lock.
// Reservations tagged with excludeOrder are not subtracted.
func (l *Ledger) AvailableTx(ctx context.Context, tx *gorm.DB, tenantID, variantID, locationID uuid.UUID, excludeOrder *uuid.UUID) (*Availability, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return nil, err
	}
	return l.available(ctx, l.repo.WithTx(tx), l.units.WithTx(tx), tenantID, variantID, locationID, excludeOrder)
}

func (l *Ledger) available(ctx context.Context, repo Repository, conv *units.Converter, tenantID, variantID, locationID uuid.UUID, excludeOrder *uuid.UUID) (*Availability, error) {
	factors, err := conv.Factors(ctx, tenantID, variantID)
	if err != nil {
		return nil, err
	}

	levels, err := repo.LevelsForCell(ctx, tenantID, variantID, locationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock levels")
	}
	onHand := decimal.Zero
	for _, level := range levels {
		factor, ok := factors[level.UnitID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock level references unknown unit").
				WithDetails(map[string]any{"unit_id": level.UnitID})
		}
		onHand = onHand.Add(level.Quantity.Mul(factor))
	}

	reservations, err := repo.ActiveReservations(ctx, tenantID, variantID, locationID, l.now(), excludeOrder)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	reserved := decimal.Zero
	for _, res := range reservations {
		factor, ok := factors[res.UnitID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation references unknown unit").
				WithDetails(map[string]any{"unit_id": res.UnitID})
		}
		reserved = reserved.Add(res.Quantity.Mul(factor))
	}

	return &Availability{
		VariantID:  variantID,
		LocationID: locationID,
		OnHand:     onHand,
		Reserved:   reserved,
		Available:  onHand.Sub(reserved),
	}, nil
}
