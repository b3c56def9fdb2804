package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/erpcore/api/responses"
	"github.com/angelmondragon/erpcore/api/validators"
	"github.com/angelmondragon/erpcore/internal/bundles"
	"github.com/angelmondragon/erpcore/pkg/logger"
)

type sellBundleRequest struct {
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderRef   *uuid.UUID      `json:"order_ref,omitempty"`
}

// BundleSell deducts every component of the bundle variant in one step.
func BundleSell(svc BundleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, parentID, err := tenantAndID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sellBundleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SellBundle(r.Context(), bundles.SellInput{
			TenantID:        tenantID,
			ParentVariantID: parentID,
			LocationID:      body.LocationID,
			Quantity:        body.Quantity,
			OrderRef:        body.OrderRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func BundleComponents(svc BundleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, parentID, err := tenantAndID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		components, err := svc.Components(r.Context(), tenantID, parentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"components": components})
	}
}
