package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/api/validators"
)

func tenantAndID(r *http.Request, key string) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := validators.ParseUUIDParam(r, "tenantId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := validators.ParseUUIDParam(r, key)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, id, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
