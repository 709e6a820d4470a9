package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox/payloads"
)

func TestResolveOrderCreated(t *testing.T) {
	reg := newTestRegistry(t)
	orderID := uuid.New()
	supplierID := uuid.New()

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, payloads.OrderCreatedEvent{
			OrderID:       orderID,
			VendorID:      uuid.New(),
			SupplierID:    supplierID,
			TotalPrice:    decimal.RequireFromString("42.50"),
			PaymentMethod: enums.PaymentMethodCashOnDelivery,
		}, &outbox.ActorRef{UserID: uuid.New(), Role: "vendor"}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Route.Topic)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.TotalPrice.Equal(decimal.RequireFromString("42.5")))

	assert.Equal(t, "order:"+orderID.String(), resolved.OrderingKey())
	attrs := resolved.Attributes()
	assert.Equal(t, string(enums.EventOrderCreated), attrs["event_type"])
	assert.Equal(t, orderID.String(), attrs["aggregate_id"])
	assert.Equal(t, supplierID.String(), attrs["supplier_id"])
	assert.Equal(t, "cash_on_delivery", attrs["payment_method"])
	assert.Equal(t, "vendor", attrs["actor_role"])
	assert.Equal(t, "1", attrs["schema_version"])
	assert.NotEmpty(t, attrs["event_id"])
}

func TestResolveAddsTransitionAttributes(t *testing.T) {
	reg := newTestRegistry(t)
	cases := []struct {
		eventType enums.OutboxEventType
		payload   any
		key       string
		want      string
	}{
		{eventType: enums.EventOrderStatusChanged, payload: payloads.OrderStatusChangedEvent{From: enums.OrderStatusPending, To: enums.OrderStatusShipped}, key: "status", want: "shipped"},
		{eventType: enums.EventOrderPaymentStatusChanged, payload: payloads.OrderPaymentStatusChangedEvent{From: enums.PaymentStatusPending, To: enums.PaymentStatusPaid}, key: "payment_status", want: "paid"},
		{eventType: enums.EventOrderCancelled, payload: payloads.OrderCancelledEvent{CancelledBy: enums.RoleSupplier}, key: "cancelled_by", want: "supplier"},
		{eventType: enums.EventOrderRated, payload: payloads.OrderRatedEvent{Rating: 4}, key: "event_type", want: "order_rated"},
		{eventType: enums.EventOrderDeleted, payload: payloads.OrderDeletedEvent{Status: enums.OrderStatusConfirmed}, key: "status", want: "confirmed"},
	}
	for _, tc := range cases {
		t.Run(string(tc.eventType), func(t *testing.T) {
			resolved, err := reg.Resolve(models.OutboxEvent{
				EventType:     tc.eventType,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, tc.payload, nil),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, resolved.Attributes()[tc.key])
		})
	}
}

func TestResolveRejectionsArePermanent(t *testing.T) {
	reg := newTestRegistry(t)
	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("product_archived"),
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, map[string]any{}, nil),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderRated,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, map[string]any{}, nil),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       mustEnvelope(t, map[string]any{}, nil),
		},
		"null payload": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, nil, nil),
		},
		"payload of wrong shape": {
			EventType:     enums.EventOrderRated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, map[string]any{"rating": "five"}, nil),
		},
		"broken envelope": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			assert.True(t, IsPermanent(err), "expected permanent error, got %T", err)
		})
	}
}

func TestIsPermanentSeesThroughWrapping(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), Permanent(errors.New("poison")))
	assert.True(t, IsPermanent(wrapped))
	assert.False(t, IsPermanent(errors.New("transient")))
	assert.Equal(t, "permanent publish failure", PermanentError{}.Error())
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(config.PubSubConfig{OrdersTopic: "  "})
	assert.Error(t, err)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(config.PubSubConfig{OrdersTopic: "orders-topic"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any, actor *outbox.ActorRef) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Data:       raw,
	})
	require.NoError(t, err)
	return envelope
}
