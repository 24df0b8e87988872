package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
)

// ErrUnknownEvent marks rows whose event type has no route.
var ErrUnknownEvent = errors.New("unsupported event type")

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventDescriptor is where an event type is published and which aggregate
// may emit it.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is a validated outbox row with its decoded payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry validates outbox rows before they are published.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *Decoders
}

// NewEventRegistry routes every event type to the planning topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.PlanningTopic == "" {
		return nil, errors.New("planning topic is required")
	}
	reg := &EventRegistry{
		routes:   map[enums.OutboxEventType]EventDescriptor{},
		decoders: NewDecoders(),
	}
	topic := cfg.PlanningTopic

	route[payloads.QuoteStatusChangedEvent](reg, enums.EventQuoteStatusChanged, enums.AggregateQuote, topic)
	route[payloads.QuoteConvertedEvent](reg, enums.EventQuoteConverted, enums.AggregateQuote, topic)
	route[payloads.ProductionOrderStatusChangedEvent](reg, enums.EventProductionOrderStatusChanged, enums.AggregateProductionOrder, topic)
	route[payloads.ProductionOrderSplitEvent](reg, enums.EventProductionOrderSplit, enums.AggregateProductionOrder, topic)
	route[payloads.PurchaseOrderStatusChangedEvent](reg, enums.EventPurchaseOrderStatusChanged, enums.AggregatePurchaseOrder, topic)
	route[payloads.PurchaseOrderReceivedEvent](reg, enums.EventPurchaseOrderReceived, enums.AggregatePurchaseOrder, topic)
	route[payloads.InventoryAdjustedEvent](reg, enums.EventInventoryAdjusted, enums.AggregateItem, topic)
	route[payloads.SupplyReconciledEvent](reg, enums.EventSupplyReconciled, enums.AggregateItem, topic)
	return reg, nil
}

// route registers the version 1 payload of eventType.
func route[T any](reg *EventRegistry, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	reg.routes[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: topic}
	RegisterJSON[T](reg.decoders, eventType, 1)
}

func (r *EventRegistry) EventTypes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.routes))
	for eventType := range r.routes {
		out = append(out, eventType)
	}
	return out
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is non-retryable: the row itself is wrong.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("%w %s", ErrUnknownEvent, event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("%s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate_id", event.EventType)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	version := envelope.Version
	if version == 0 {
		version = 1
	}
	payload, err := r.decoders.Decode(event.EventType, version, envelope.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
