package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

// Filter narrows the event feed. Zero values match everything.
type Filter struct {
	EventType     *enums.EventType
	AggregateType *enums.AggregateType
	AggregateID   *uuid.UUID
	Since         *time.Time
}

// List returns the tenant's events newest first.
func (r *Recorder) List(ctx context.Context, tenantID uuid.UUID, filter Filter, params pagination.Params) (pagination.Page[models.Event], error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return pagination.Page[models.Event]{}, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Event]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := r.repo.List(ctx, listParams{
		TenantID:      tenantID,
		EventType:     filter.EventType,
		AggregateType: filter.AggregateType,
		AggregateID:   filter.AggregateID,
		Since:         filter.Since,
		Cursor:        cursor,
		Limit:         pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return pagination.Page[models.Event]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events")
	}
	return pagination.BuildPage(rows, params.Limit, func(e models.Event) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}
