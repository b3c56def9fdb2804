package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/erpcore/api/responses"
	"github.com/angelmondragon/erpcore/api/validators"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
)

type adjustStockRequest struct {
	VariantID    uuid.UUID       `json:"variant_id" validate:"required"`
	LocationID   uuid.UUID       `json:"location_id" validate:"required"`
	UnitID       uuid.UUID       `json:"unit_id" validate:"required"`
	Delta        decimal.Decimal `json:"delta"`
	MovementType string          `json:"movement_type" validate:"required"`
	Reason       *string         `json:"reason,omitempty" validate:"omitempty,max=255"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty"`
}

// StockAdjust applies one signed adjustment to a stock cell.
func StockAdjust(svc StockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movementType, err := enums.ParseMovementType(body.MovementType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}

		result, err := svc.Adjust(r.Context(), stock.AdjustInput{
			TenantID:     tenantID,
			VariantID:    body.VariantID,
			LocationID:   body.LocationID,
			UnitID:       body.UnitID,
			Delta:        body.Delta,
			MovementType: movementType,
			Reason:       body.Reason,
			ReferenceID:  body.ReferenceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// StockBalance reports on-hand, reserved and available base units for a cell.
func StockBalance(svc StockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := validators.ParseUUIDParam(r, "locationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		avail, err := svc.Balance(r.Context(), tenantID, variantID, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, avail)
	}
}

func StockMovements(svc StockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParseUUIDParam(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter stock.MovementFilter
		if filter.VariantID, err = validators.ParseQueryUUID(r, "variant_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.LocationID, err = validators.ParseQueryUUID(r, "location_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.ReferenceID, err = validators.ParseQueryUUID(r, "reference_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("movement_type")); raw != "" {
			mt, err := enums.ParseMovementType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement_type"))
				return
			}
			filter.MovementType = &mt
		}

		page, err := svc.ListMovements(r.Context(), tenantID, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
