package enums

import "fmt"

// EventType names an immutable fact appended to the event trail.
type EventType string

const (
	EventStockAdjusted            EventType = "stock.adjusted"
	EventStockReserved            EventType = "stock.reserved"
	EventStockReleased            EventType = "stock.released"
	EventStockReservationsExpired EventType = "stock.reservations_expired"
	EventOrderCreated             EventType = "order.created"
	EventOrderCancelled           EventType = "order.cancelled"
	EventOrderCompleted           EventType = "order.completed"
	EventOrderRefunded            EventType = "order.refunded"
	EventPaymentCompleted         EventType = "payment.completed"
	EventBundleSold               EventType = "bundle.sold"
	EventLocationCreated          EventType = "catalog.location_created"
	EventVariantCreated           EventType = "catalog.variant_created"
	EventUnitAdded                EventType = "catalog.unit_added"
	EventCustomerCreated          EventType = "catalog.customer_created"
	EventBundleComposed           EventType = "catalog.bundle_composed"
)

var validEventTypes = []EventType{
	EventStockAdjusted,
	EventStockReserved,
	EventStockReleased,
	EventStockReservationsExpired,
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderCompleted,
	EventOrderRefunded,
	EventPaymentCompleted,
	EventBundleSold,
	EventLocationCreated,
	EventVariantCreated,
	EventUnitAdded,
	EventCustomerCreated,
	EventBundleComposed,
}

// IsValid reports whether the value is a known EventType.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts raw input into an EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// AggregateType names the entity an event is about.
type AggregateType string

const (
	AggregateStockCell   AggregateType = "stock_cell"
	AggregateReservation AggregateType = "reservation"
	AggregateOrder       AggregateType = "order"
	AggregateBundle      AggregateType = "bundle"
	AggregateLocation    AggregateType = "location"
	AggregateVariant     AggregateType = "variant"
	AggregateCustomer    AggregateType = "customer"
)

var validAggregateTypes = []AggregateType{
	AggregateStockCell,
	AggregateReservation,
	AggregateOrder,
	AggregateBundle,
	AggregateLocation,
	AggregateVariant,
	AggregateCustomer,
}

// IsValid reports whether the value is a known AggregateType.
func (a AggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAggregateType converts raw input into an AggregateType.
func ParseAggregateType(value string) (AggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// DeliveryStatus tracks relay progress for an event.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryPublished DeliveryStatus = "published"
	DeliveryTerminal  DeliveryStatus = "terminal"
)
