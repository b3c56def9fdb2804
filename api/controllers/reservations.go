package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/erpcore/api/responses"
	"github.com/angelmondragon/erpcore/api/validators"
	"github.com/angelmondragon/erpcore/internal/reservations"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
)

type reserveRequest struct {
	VariantID  uuid.UUID       `json:"variant_id" validate:"required"`
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	UnitID     uuid.UUID       `json:"unit_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderRef   *uuid.UUID      `json:"order_ref,omitempty"`
	TTLSeconds int             `json:"ttl_seconds" validate:"gte=0"`
}

func ReservationCreate(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body reserveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := svc.Reserve(r.Context(), reservations.ReserveInput{
			TenantID:   tenantID,
			VariantID:  body.VariantID,
			LocationID: body.LocationID,
			UnitID:     body.UnitID,
			Quantity:   body.Quantity,
			OrderRef:   body.OrderRef,
			TTL:        seconds(body.TTLSeconds),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"reservation_id": id})
	}
}

func ReservationDetail(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, reservationID, err := tenantAndID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := svc.Get(r.Context(), tenantID, reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

func ReservationRelease(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, reservationID, err := tenantAndID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Release(r.Context(), tenantID, reservationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReservationExpire runs the expiry sweep for the caller's tenant only.
func ReservationExpire(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		expired, err := svc.ExpireSweep(r.Context(), &tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "expire reservations"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"expired": expired})
	}
}
