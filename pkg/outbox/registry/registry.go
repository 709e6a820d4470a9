package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox/payloads"
)

// Route binds an event type to its aggregate, topic and payload decoder.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// Resolved is an outbox row whose envelope and payload decoded cleanly.
type Resolved struct {
	Route    Route
	Event    models.OutboxEvent
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// attributer is implemented by payloads that expose extra message
// attributes for subscription filters.
type attributer interface {
	Attributes() map[string]string
}

// Registry resolves outbox rows into publishable messages.
type Registry struct {
	routes map[enums.OutboxEventType]Route
}

// PermanentError marks a row that no amount of retrying will publish.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent publish failure"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	return PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	var perm PermanentError
	return errors.As(err, &perm)
}

func orderRoute[T any](eventType enums.OutboxEventType, topic string) Route {
	return Route{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
		decode: func(data json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// New builds the registry. Every order event goes to the orders topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	topic := strings.TrimSpace(cfg.OrdersTopic)
	if topic == "" {
		return nil, errors.New("orders topic is required")
	}

	reg := &Registry{routes: map[enums.OutboxEventType]Route{}}
	for _, route := range []Route{
		orderRoute[payloads.OrderCreatedEvent](enums.EventOrderCreated, topic),
		orderRoute[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, topic),
		orderRoute[payloads.OrderPaymentStatusChangedEvent](enums.EventOrderPaymentStatusChanged, topic),
		orderRoute[payloads.OrderCancelledEvent](enums.EventOrderCancelled, topic),
		orderRoute[payloads.OrderRatedEvent](enums.EventOrderRated, topic),
		orderRoute[payloads.OrderDeletedEvent](enums.EventOrderDeleted, topic),
	} {
		reg.routes[route.EventType] = route
	}
	return reg, nil
}

// Resolve validates an outbox row against its route and decodes the typed
// payload. Every failure is permanent.
func (r *Registry) Resolve(event models.OutboxEvent) (*Resolved, error) {
	route, ok := r.routes[event.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if route.AggregateType != event.AggregateType {
		return nil, Permanent(fmt.Errorf("aggregate mismatch: expected %s got %s", route.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := route.decode(envelope.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &Resolved{Route: route, Event: event, Envelope: envelope, Payload: payload}, nil
}

// OrderingKey keeps every event of one aggregate in commit order on the topic.
func (r *Resolved) OrderingKey() string {
	return string(r.Event.AggregateType) + ":" + r.Event.AggregateID.String()
}

// Attributes are the message attributes subscribers filter on.
func (r *Resolved) Attributes() map[string]string {
	attrs := map[string]string{
		"event_id":       r.Envelope.EventID,
		"event_type":     string(r.Event.EventType),
		"aggregate_type": string(r.Event.AggregateType),
		"aggregate_id":   r.Event.AggregateID.String(),
		"schema_version": strconv.Itoa(r.Envelope.Version),
		"occurred_at":    r.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if r.Envelope.Actor != nil && r.Envelope.Actor.Role != "" {
		attrs["actor_role"] = r.Envelope.Actor.Role
	}
	if extra, ok := r.Payload.(attributer); ok {
		for k, v := range extra.Attributes() {
			if _, taken := attrs[k]; !taken && v != "" {
				attrs[k] = v
			}
		}
	}
	return attrs
}
