// Package reservations places time-bounded holds against available stock.
package reservations

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
	"github.com/angelmondragon/erpcore/pkg/metrics"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
)

// DefaultTTL applies when neither the caller nor config sets one.
const DefaultTTL = time.Hour

const sweepBatch = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type availabilityReader interface {
	AvailableTx(ctx context.Context, tx *gorm.DB, tenantID, variantID, locationID uuid.UUID, excludeOrder *uuid.UUID) (*stock.Availability, error)
}

// ReserveInput describes one hold. Zero TTL uses the service default.
type ReserveInput struct {
	TenantID   uuid.UUID
	VariantID  uuid.UUID
	LocationID uuid.UUID
	UnitID     uuid.UUID
	Quantity   decimal.Decimal
	OrderRef   *uuid.UUID
	TTL        time.Duration
}

// Service implements reserve, release and the expiry sweep.
type Service struct {
	tx      txRunner
	repo    Repository
	units   *units.Converter
	stock   availabilityReader
	events  events.Emitter
	locker  stocklock.Locker
	metrics *metrics.StockMetrics
	logg    *logger.Logger
	ttl     time.Duration
	now     func() time.Time
}

func NewService(
	tx txRunner,
	repo Repository,
	conv *units.Converter,
	stockReader availabilityReader,
	emitter events.Emitter,
	locker stocklock.Locker,
	m *metrics.StockMetrics,
	logg *logger.Logger,
	ttl time.Duration,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if conv == nil {
		return nil, fmt.Errorf("unit converter required")
	}
	if stockReader == nil {
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
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		tx:      tx,
		repo:    repo,
		units:   conv,
		stock:   stockReader,
		events:  emitter,
		locker:  locker,
		metrics: m,
		logg:    logg,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Reserve holds quantity against the cell's availability. The availability
// read and the insert happen under the (variant, location) lock.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (uuid.UUID, error) {
	actor, err := tenancy.Authorize(ctx, in.TenantID, tenancy.PermWrite)
	if err != nil {
		return uuid.Nil, err
	}
	if !in.Quantity.IsPositive() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
			WithDetails(map[string]any{"quantity": in.Quantity.String()})
	}
	if in.TTL < 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "ttl must not be negative")
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = s.ttl
	}

	requested, err := s.units.VariantBaseQuantity(ctx, in.TenantID, in.VariantID, in.UnitID, in.Quantity)
	if err != nil {
		return uuid.Nil, err
	}

	unlock, err := s.locker.Lock(ctx, stocklock.CellKey(in.TenantID, in.VariantID, in.LocationID))
	if err != nil {
		return uuid.Nil, err
	}
	defer unlock()

	var reservationID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.LocationExists(ctx, in.TenantID, in.LocationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup location")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "location not found").
				WithDetails(map[string]any{"location_id": in.LocationID})
		}

		avail, err := s.stock.AvailableTx(ctx, tx, in.TenantID, in.VariantID, in.LocationID, nil)
		if err != nil {
			return err
		}
		if avail.Available.LessThan(requested) {
			s.metrics.IncInsufficient("reserve")
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock to reserve").
				WithDetails(map[string]any{
					"variant_id":  in.VariantID,
					"location_id": in.LocationID,
					"requested":   requested.String(),
					"available":   avail.Available.String(),
				})
		}

		reservation := &models.StockReservation{
			TenantID:   in.TenantID,
			VariantID:  in.VariantID,
			LocationID: in.LocationID,
			UnitID:     in.UnitID,
			Quantity:   in.Quantity,
			OrderRef:   in.OrderRef,
			ExpiresAt:  s.now().Add(ttl),
			CreatedBy:  actor.UserID,
		}
		if err := repo.Insert(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert reservation")
		}

		if _, err := s.events.Emit(ctx, tx, events.DomainEvent{
			TenantID:      in.TenantID,
			EventType:     enums.EventStockReserved,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: payloads.StockReservedPayload{
				ReservationID: reservation.ID,
				VariantID:     in.VariantID,
				LocationID:    in.LocationID,
				UnitID:        in.UnitID,
				Quantity:      in.Quantity,
				BaseQuantity:  requested,
				OrderRef:      in.OrderRef,
				ExpiresAt:     reservation.ExpiresAt,
			},
		}); err != nil {
			return err
		}
		reservationID = reservation.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "reserve stock")
	}
	return reservationID, nil
}

// Release drops a hold before it expires.
func (s *Service) Release(ctx context.Context, tenantID, reservationID uuid.UUID) error {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermWrite); err != nil {
		return err
	}

	existing, err := s.repo.Find(ctx, tenantID, reservationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if existing == nil {
		return reservationNotFound(reservationID)
	}

	unlock, err := s.locker.Lock(ctx, stocklock.CellKey(tenantID, existing.VariantID, existing.LocationID))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).Delete(ctx, tenantID, reservationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservation")
		}
		if deleted == 0 {
			return reservationNotFound(reservationID)
		}
		_, err = s.events.Emit(ctx, tx, events.DomainEvent{
			TenantID:      tenantID,
			EventType:     enums.EventStockReleased,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservationID,
			Data: payloads.StockReleasedPayload{
				ReservationID: reservationID,
				VariantID:     existing.VariantID,
				LocationID:    existing.LocationID,
				Quantity:      existing.Quantity,
			},
		})
		return err
	})
	return pkgerrors.Ensure(err, pkgerrors.CodeDependency, "release reservation")
}

// Get returns one reservation of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, reservationID uuid.UUID) (*models.StockReservation, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return nil, err
	}
	reservation, err := s.repo.Find(ctx, tenantID, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation == nil {
		return nil, reservationNotFound(reservationID)
	}
	return reservation, nil
}

// ConsumeForOrderTx deletes the order's holds on one cell once the sale has
// been deducted. The caller holds the cell lock and tx.
func (s *Service) ConsumeForOrderTx(ctx context.Context, tx *gorm.DB, tenantID, orderID, variantID, locationID uuid.UUID) (int64, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermWrite); err != nil {
		return 0, err
	}
	deleted, err := s.repo.WithTx(tx).DeleteForOrderCell(ctx, tenantID, orderID, variantID, locationID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume order reservations")
	}
	return deleted, nil
}

func reservationNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found").
		WithDetails(map[string]any{"reservation_id": id})
}
