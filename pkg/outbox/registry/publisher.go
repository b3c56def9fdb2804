package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/pkg/config"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	"github.com/angelmondragon/erpcore/pkg/outbox"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.EventType
	AggregateType  enums.AggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an events row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
	Body       []byte
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.EventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
// Order and payment events go to the orders topic when one is configured.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("events topic is required")
	}
	eventsTopic := cfg.EventsTopic
	ordersTopic := cfg.OrdersTopic
	if ordersTopic == "" {
		ordersTopic = eventsTopic
	}

	reg := &EventRegistry{entries: make(map[enums.EventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventStockAdjusted,
			AggregateType:  enums.AggregateStockCell,
			PayloadFactory: func() interface{} { return &payloads.StockAdjustedPayload{} },
		},
		{
			EventType:      enums.EventStockReserved,
			AggregateType:  enums.AggregateReservation,
			PayloadFactory: func() interface{} { return &payloads.StockReservedPayload{} },
		},
		{
			EventType:      enums.EventStockReleased,
			AggregateType:  enums.AggregateReservation,
			PayloadFactory: func() interface{} { return &payloads.StockReleasedPayload{} },
		},
		{
			EventType:      enums.EventStockReservationsExpired,
			AggregateType:  enums.AggregateReservation,
			PayloadFactory: func() interface{} { return &payloads.ReservationsExpiredPayload{} },
		},
		{
			EventType:      enums.EventBundleSold,
			AggregateType:  enums.AggregateBundle,
			PayloadFactory: func() interface{} { return &payloads.BundleSoldPayload{} },
		},
		{
			EventType:      enums.EventLocationCreated,
			AggregateType:  enums.AggregateLocation,
			PayloadFactory: func() interface{} { return &payloads.LocationCreatedPayload{} },
		},
		{
			EventType:      enums.EventVariantCreated,
			AggregateType:  enums.AggregateVariant,
			PayloadFactory: func() interface{} { return &payloads.VariantCreatedPayload{} },
		},
		{
			EventType:      enums.EventUnitAdded,
			AggregateType:  enums.AggregateVariant,
			PayloadFactory: func() interface{} { return &payloads.UnitAddedPayload{} },
		},
		{
			EventType:      enums.EventCustomerCreated,
			AggregateType:  enums.AggregateCustomer,
			PayloadFactory: func() interface{} { return &payloads.CustomerCreatedPayload{} },
		},
		{
			EventType:      enums.EventBundleComposed,
			AggregateType:  enums.AggregateBundle,
			PayloadFactory: func() interface{} { return &payloads.BundleComposedPayload{} },
		},
	} {
		desc.Topic = eventsTopic
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventOrderCreated,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderCreatedPayload{} },
		},
		{
			EventType:      enums.EventOrderCancelled,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderStatusChangedPayload{} },
		},
		{
			EventType:      enums.EventOrderCompleted,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderStatusChangedPayload{} },
		},
		{
			EventType:      enums.EventOrderRefunded,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderStatusChangedPayload{} },
		},
		{
			EventType:      enums.EventPaymentCompleted,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.PaymentCompletedPayload{} },
		},
	} {
		desc.Topic = ordersTopic
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Descriptor returns the registered descriptor for eventType.
func (r *EventRegistry) Descriptor(eventType enums.EventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.Event) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.TenantID != event.TenantID {
		return nil, NewNonRetryableError(fmt.Errorf("tenant mismatch on event %s", event.ID))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
		Body:       []byte(event.Payload),
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
