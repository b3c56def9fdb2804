// Package events appends the immutable event trail written alongside every
// committed mutation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/outbox"
)

const currentVersion = 1

// DomainEvent is one fact to append. Data is one of the outbox/payloads structs.
type DomainEvent struct {
	TenantID      uuid.UUID
	EventType     enums.EventType
	AggregateType enums.AggregateType
	AggregateID   uuid.UUID
	Data          any
	OccurredAt    time.Time
}

// Emitter is what mutating services depend on.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) (uuid.UUID, error)
}

// Recorder writes events inside the caller's transaction and serves the
// tenant-scoped feed.
type Recorder struct {
	repo Repository
	logg *logger.Logger
}

func NewRecorder(repo Repository, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recorder{repo: repo, logg: logg}, nil
}

// Emit appends one event row in tx. It never opens its own transaction so the
// event commits or aborts with the mutation it describes.
func (r *Recorder) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) (uuid.UUID, error) {
	if tx == nil {
		return uuid.Nil, fmt.Errorf("transaction required")
	}
	actor, err := tenancy.Authorize(ctx, event.TenantID, tenancy.PermWrite)
	if err != nil {
		return uuid.Nil, err
	}
	if !event.EventType.IsValid() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type").
			WithDetails(map[string]any{"event_type": event.EventType})
	}
	if !event.AggregateType.IsValid() || event.AggregateID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "aggregate required").
			WithDetails(map[string]any{"aggregate_type": event.AggregateType})
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal event data")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	id := uuid.New()
	envelope := outbox.PayloadEnvelope{
		Version:       currentVersion,
		EventID:       id.String(),
		EventType:     event.EventType,
		TenantID:      event.TenantID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.OccurredAt.UTC(),
		Actor: &outbox.ActorRef{
			UserID:   actor.UserID,
			TenantID: actor.TenantID,
			Role:     actor.Role,
		},
		Data: data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal event envelope")
	}

	row := &models.Event{
		ID:            id,
		TenantID:      event.TenantID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		ActorUserID:   actor.UserID,
		ActorRole:     actor.Role,
		Payload:       json.RawMessage(payload),
		Version:       currentVersion,
		OccurredAt:    envelope.OccurredAt,
	}
	if err := r.repo.WithTx(tx).Insert(ctx, row); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert event")
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event_id":       id.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"tenant_id":      event.TenantID.String(),
	})
	r.logg.Debug(logCtx, "event recorded")
	return id, nil
}
