package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/erpcore/api/controllers"
	"github.com/angelmondragon/erpcore/internal/orders"
	"github.com/angelmondragon/erpcore/pkg/auth"
	"github.com/angelmondragon/erpcore/pkg/config"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrders struct {
	orders.Service
	listed int
}

func (s *stubOrders) ListOrders(context.Context, uuid.UUID, orders.OrderFilters, pagination.Params) (pagination.Page[models.Order], error) {
	s.listed++
	return pagination.Page[models.Order]{Items: []models.Order{}}, nil
}

func (s *stubOrders) CreateOrder(context.Context, orders.CreateOrderInput) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *stubOrders) LogPayment(context.Context, uuid.UUID, uuid.UUID, decimal.Decimal, enums.PaymentMethod) (uuid.UUID, error) {
	return uuid.New(), nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "erpcore", ExpirationMinutes: 30},
	}
}

func newTestRouter(cfg *config.Config, svc orders.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error")})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return NewRouter(cfg, logg, map[string]controllers.Pinger{"db": stubPinger{}}, metrics, nil,
		nil, nil, svc, nil, nil, nil)
}

func bearer(t *testing.T, cfg *config.Config, tenantID uuid.UUID, role enums.MemberRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID:   uuid.New(),
		TenantID: tenantID,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(testConfig(), &stubOrders{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestTenantRoutesRequireToken(t *testing.T) {
	router := newTestRouter(testConfig(), &stubOrders{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+uuid.NewString()+"/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestTenantRoutesRejectForeignTenant(t *testing.T) {
	cfg := testConfig()
	svc := &stubOrders{}
	router := newTestRouter(cfg, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+uuid.NewString()+"/orders", nil)
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New(), enums.MemberRoleOwner))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if svc.listed != 0 {
		t.Fatalf("service must not run for a foreign tenant")
	}
}

func TestTenantRoutesReachService(t *testing.T) {
	cfg := testConfig()
	svc := &stubOrders{}
	router := newTestRouter(cfg, svc)
	tenantID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/orders", nil)
	req.Header.Set("Authorization", bearer(t, cfg, tenantID, enums.MemberRoleViewer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.listed != 1 {
		t.Fatalf("expected one list call, got %d", svc.listed)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestPaymentRouteWithoutRedisSkipsIdempotency(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubOrders{})
	tenantID := uuid.New()

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/tenants/"+tenantID.String()+"/orders/"+uuid.NewString()+"/payments",
		strings.NewReader(`{"amount":"5","method":"cash"}`))
	req.Header.Set("Authorization", bearer(t, cfg, tenantID, enums.MemberRoleCashier))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}
