package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/pkg/enums"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID   uuid.UUID        `json:"userId"`
	TenantID uuid.UUID        `json:"tenantId"`
	Role     enums.MemberRole `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in events.payload
// and published verbatim by the relay.
type PayloadEnvelope struct {
	Version       int                 `json:"version"`
	EventID       string              `json:"eventId"`
	EventType     enums.EventType     `json:"eventType"`
	TenantID      uuid.UUID           `json:"tenantId"`
	AggregateType enums.AggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID           `json:"aggregateId"`
	OccurredAt    time.Time           `json:"occurredAt"`
	Actor         *ActorRef           `json:"actor,omitempty"`
	Data          json.RawMessage     `json:"data"`
}
