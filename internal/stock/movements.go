package stock

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

// MovementFilter narrows the movement history.
type MovementFilter struct {
	VariantID    *uuid.UUID
	LocationID   *uuid.UUID
	ReferenceID  *uuid.UUID
	MovementType *enums.MovementType
}

// ListMovements returns the tenant's movement history newest first.
func (l *Ledger) ListMovements(ctx context.Context, tenantID uuid.UUID, filter MovementFilter, params pagination.Params) (pagination.Page[models.StockMovement], error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return pagination.Page[models.StockMovement]{}, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.StockMovement]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := l.repo.ListMovements(ctx, listMovementsParams{
		TenantID:     tenantID,
		VariantID:    filter.VariantID,
		LocationID:   filter.LocationID,
		ReferenceID:  filter.ReferenceID,
		MovementType: filter.MovementType,
		Cursor:       cursor,
		Limit:        pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return pagination.Page[models.StockMovement]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return pagination.BuildPage(rows, params.Limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	}), nil
}
