// Package testkit wires the ledger collaborators over a throwaway sqlite
// database for package tests.
package testkit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/internal/stocklock"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/internal/units"
	"github.com/angelmondragon/erpcore/pkg/db"
	"github.com/angelmondragon/erpcore/pkg/db/dbtest"
	"github.com/angelmondragon/erpcore/pkg/enums"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/metrics"
)

// Env holds the shared collaborators every stock-touching service needs.
type Env struct {
	Client  *db.Client
	DB      *gorm.DB
	Logger  *logger.Logger
	Metrics *metrics.StockMetrics
	Units   *units.Converter
	Events  *events.Recorder
	Locker  *stocklock.Local
	Ledger  *stock.Ledger
}

func New(t testing.TB) *Env {
	t.Helper()

	client := dbtest.Open(t)
	conn := client.DB()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	m := metrics.NewStockMetrics(nil)

	conv, err := units.NewConverter(conn)
	if err != nil {
		t.Fatalf("converter: %v", err)
	}
	rec, err := events.NewRecorder(events.NewRepository(conn), logg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	locker := stocklock.NewLocal(stocklock.Options{Wait: 5 * time.Second, Metrics: m})
	ledger, err := stock.NewLedger(client, stock.NewRepository(conn), conv, rec, locker, m, logg)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	return &Env{
		Client:  client,
		DB:      conn,
		Logger:  logg,
		Metrics: m,
		Units:   conv,
		Events:  rec,
		Locker:  locker,
		Ledger:  ledger,
	}
}

// As returns a context carrying a fresh user of tenantID with role.
func As(tenantID uuid.UUID, role enums.MemberRole) context.Context {
	return tenancy.WithActor(context.Background(), tenancy.Actor{
		TenantID: tenantID,
		UserID:   uuid.New(),
		Role:     role,
	})
}

// Owner is As with the owner role.
func Owner(tenantID uuid.UUID) context.Context {
	return As(tenantID, enums.MemberRoleOwner)
}
