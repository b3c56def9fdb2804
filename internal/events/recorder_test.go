package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db/dbtest"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/outbox"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

func newRecorder(t *testing.T, conn *gorm.DB) *Recorder {
	t.Helper()
	rec, err := NewRecorder(NewRepository(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return rec
}

func actorCtx(tenantID uuid.UUID, role enums.MemberRole) context.Context {
	return tenancy.WithActor(context.Background(), tenancy.Actor{TenantID: tenantID, UserID: uuid.New(), Role: role})
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t).DB()
	rec := newRecorder(t, conn)
	tenant := uuid.New()
	ctx := actorCtx(tenant, enums.MemberRoleCashier)
	location := uuid.New()

	var id uuid.UUID
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = rec.Emit(ctx, tx, DomainEvent{
			TenantID:      tenant,
			EventType:     enums.EventLocationCreated,
			AggregateType: enums.AggregateLocation,
			AggregateID:   location,
			Data:          payloads.LocationCreatedPayload{LocationID: location, Code: "MAIN", Name: "Main"},
		})
		return err
	})
	require.NoError(t, err)

	var row models.Event
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	require.Equal(t, tenant, row.TenantID)
	require.Equal(t, enums.MemberRoleCashier, row.ActorRole)

	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	require.Equal(t, id.String(), env.EventID)
	require.Equal(t, enums.EventLocationCreated, env.EventType)
	require.Equal(t, tenant, env.Actor.TenantID)

	var data payloads.LocationCreatedPayload
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "MAIN", data.Code)
}

func TestEmitRejectsForeignTenant(t *testing.T) {
	conn := dbtest.Open(t).DB()
	rec := newRecorder(t, conn)
	ctx := actorCtx(uuid.New(), enums.MemberRoleOwner)

	_, err := rec.Emit(ctx, conn, DomainEvent{
		TenantID:      uuid.New(),
		EventType:     enums.EventLocationCreated,
		AggregateType: enums.AggregateLocation,
		AggregateID:   uuid.New(),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))
	require.Zero(t, dbtest.Count(t, conn, &models.Event{}))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t).DB()
	rec := newRecorder(t, conn)
	tenant := uuid.New()
	ctx := actorCtx(tenant, enums.MemberRoleOwner)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		_, err := rec.Emit(ctx, tx, DomainEvent{
			TenantID:      tenant,
			EventType:     enums.EventCustomerCreated,
			AggregateType: enums.AggregateCustomer,
			AggregateID:   uuid.New(),
		})
		require.NoError(t, err)
		return pkgerrors.New(pkgerrors.CodeConflict, "abort")
	})
	require.Zero(t, dbtest.Count(t, conn, &models.Event{}))
}

func TestEmitRequiresTransaction(t *testing.T) {
	conn := dbtest.Open(t).DB()
	rec := newRecorder(t, conn)
	if _, err := rec.Emit(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatalf("expected error without tx")
	}
}

func TestListPaginatesPerTenant(t *testing.T) {
	conn := dbtest.Open(t).DB()
	rec := newRecorder(t, conn)
	tenant := uuid.New()
	other := uuid.New()
	ctx := actorCtx(tenant, enums.MemberRoleViewer)
	writeCtx := actorCtx(tenant, enums.MemberRoleManager)
	otherCtx := actorCtx(other, enums.MemberRoleOwner)

	for i := 0; i < 3; i++ {
		_, err := rec.Emit(writeCtx, conn, DomainEvent{
			TenantID:      tenant,
			EventType:     enums.EventCustomerCreated,
			AggregateType: enums.AggregateCustomer,
			AggregateID:   uuid.New(),
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := rec.Emit(otherCtx, conn, DomainEvent{
		TenantID:      other,
		EventType:     enums.EventCustomerCreated,
		AggregateType: enums.AggregateCustomer,
		AggregateID:   uuid.New(),
	})
	require.NoError(t, err)

	first, err := rec.List(ctx, tenant, Filter{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := rec.List(ctx, tenant, Filter{}, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)
	require.NotEqual(t, first.Items[1].ID, second.Items[0].ID)

	_, err = rec.List(ctx, other, Filter{}, pagination.Params{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied))
}

func TestEmitRequiresWritePermission(t *testing.T) {
	conn := dbtest.Open(t).DB()
	rec := newRecorder(t, conn)
	tenant := uuid.New()
	event := DomainEvent{
		TenantID:      tenant,
		EventType:     enums.EventCustomerCreated,
		AggregateType: enums.AggregateCustomer,
		AggregateID:   uuid.New(),
	}

	_, err := rec.Emit(actorCtx(tenant, enums.MemberRoleViewer), conn, event)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAccessDenied), "got %v", err)
	require.Zero(t, dbtest.Count(t, conn, &models.Event{}))

	_, err = rec.Emit(tenancy.WithActor(context.Background(), tenancy.SystemActor(tenant)), conn, event)
	require.NoError(t, err)
	require.Equal(t, int64(1), dbtest.Count(t, conn, &models.Event{}))
}
