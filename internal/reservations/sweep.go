package reservations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
)

// ExpireSweep deletes reservations whose expiry has passed. A nil tenant
// sweeps every tenant and requires the system actor. It returns how many rows
// this call removed; rows removed by a concurrent sweep are not counted.
//
// Expired holds no longer count toward availability, so no cell lock is taken.
func (s *Service) ExpireSweep(ctx context.Context, tenantID *uuid.UUID) (int64, error) {
	if tenantID != nil {
		if _, err := tenancy.Authorize(ctx, *tenantID, tenancy.PermWrite); err != nil {
			return 0, err
		}
	} else if _, err := tenancy.AuthorizeSystem(ctx); err != nil {
		return 0, err
	}

	now := s.now()
	var total int64
	for {
		expired, err := s.repo.ListExpired(ctx, tenantID, now, sweepBatch)
		if err != nil {
			return total, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired reservations")
		}
		if len(expired) == 0 {
			break
		}

		byTenant := map[uuid.UUID][]models.StockReservation{}
		order := []uuid.UUID{}
		for _, row := range expired {
			if _, ok := byTenant[row.TenantID]; !ok {
				order = append(order, row.TenantID)
			}
			byTenant[row.TenantID] = append(byTenant[row.TenantID], row)
		}

		for _, tenant := range order {
			n, err := s.sweepTenant(ctx, tenant, tenantID == nil, byTenant[tenant])
			total += n
			if err != nil {
				return total, err
			}
		}
		if len(expired) < sweepBatch {
			break
		}
	}

	s.metrics.AddExpired(total)
	if total > 0 {
		logCtx := s.logg.WithField(ctx, "expired", total)
		s.logg.Info(logCtx, "reservations expired")
	}
	return total, nil
}

func (s *Service) sweepTenant(ctx context.Context, tenantID uuid.UUID, asSystem bool, rows []models.StockReservation) (int64, error) {
	emitCtx := ctx
	if asSystem {
		emitCtx = tenancy.WithActor(ctx, tenancy.SystemActor(tenantID))
	}
	now := s.now()

	var removed []uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		removed = removed[:0]
		for _, row := range rows {
			n, err := repo.DeleteIfExpired(ctx, row.ID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete expired reservation")
			}
			if n > 0 {
				removed = append(removed, row.ID)
			}
		}
		if len(removed) == 0 {
			return nil
		}
		_, err := s.events.Emit(emitCtx, tx, events.DomainEvent{
			TenantID:      tenantID,
			EventType:     enums.EventStockReservationsExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   removed[0],
			Data: payloads.ReservationsExpiredPayload{
				Count:          int64(len(removed)),
				ReservationIDs: removed,
				SweptAt:        now,
			},
		})
		return err
	})
	if err != nil {
		return 0, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "sweep reservations")
	}
	return int64(len(removed)), nil
}
