package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Limit != 10 || params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", params)
	}

	params, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil || params.Limit != pagination.DefaultLimit {
		t.Fatalf("expected default limit, got %+v %v", params, err)
	}

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=0", nil))
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id.String())
	rc.URLParams.Add("bad", "nope")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "orderId")
	if err != nil || got != id {
		t.Fatalf("expected %s got %s (%v)", id, got, err)
	}
	if _, err := ParseUUIDParam(req, "bad"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseUUIDParam(req, "missing"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryUUIDAbsent(t *testing.T) {
	got, err := ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "location_id")
	if err != nil || got != nil {
		t.Fatalf("expected nil, got %v %v", got, err)
	}
}

func TestDecodeJSONBodyReportsFields(t *testing.T) {
	type body struct {
		Name  string `json:"name" validate:"required"`
		Count int    `json:"count" validate:"gte=0"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":-1}`))
	var dest body
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %#v", typed.Details())
	}
	if details["name"] != "is required" || details["count"] != "must be at least 0" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsTrailingAndEmpty(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}
	for name, raw := range map[string]string{
		"empty":    ``,
		"trailing": `{"name":"a"}{"name":"b"}`,
		"unknown":  `{"name":"a","extra":1}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var dest body
		typed := pkgerrors.As(DecodeJSONBody(req, &dest))
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, typed)
		}
	}
}

func TestDecodeJSONBodyIndexesNestedFields(t *testing.T) {
	type line struct {
		SKU string `json:"sku" validate:"required"`
	}
	type body struct {
		Lines []line `json:"lines" validate:"required,min=1,dive"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[{"sku":"a"},{"sku":""}]}`))
	var dest body
	typed := pkgerrors.As(DecodeJSONBody(req, &dest))
	if typed == nil {
		t.Fatalf("expected validation error")
	}
	details, _ := typed.Details().(map[string]string)
	if details["lines[1].sku"] != "is required" {
		t.Fatalf("unexpected details %v", details)
	}
}
