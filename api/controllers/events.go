package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/erpcore/api/responses"
	"github.com/angelmondragon/erpcore/api/validators"
	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
)

// EventList pages through the tenant's domain event log, newest first.
func EventList(feed EventFeed, logg *logger.Logger) http.HandlerFunc {
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

		var filter events.Filter
		q := r.URL.Query()
		if raw := strings.TrimSpace(q.Get("event_type")); raw != "" {
			et, err := enums.ParseEventType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event_type"))
				return
			}
			filter.EventType = &et
		}
		if raw := strings.TrimSpace(q.Get("aggregate_type")); raw != "" {
			at, err := enums.ParseAggregateType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid aggregate_type"))
				return
			}
			filter.AggregateType = &at
		}
		if filter.AggregateID, err = validators.ParseQueryUUID(r, "aggregate_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Since, err = validators.ParseQueryTime(r, "since"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := feed.List(r.Context(), tenantID, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
