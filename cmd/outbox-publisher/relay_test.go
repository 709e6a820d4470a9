package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/metrics"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox/registry"
)

type fakeDB struct {
	pingErr error
}

func (f fakeDB) Ping(context.Context) error { return f.pingErr }

func (fakeDB) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type sent struct {
	topic string
	msg   *gcppubsub.Message
}

type fakePublisher struct {
	err  error
	sent []sent
}

func (*fakePublisher) Ping(context.Context) error { return nil }

func (f *fakePublisher) Publish(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sent{topic: topic, msg: msg})
	return "msg-" + topic, nil
}

type fakeStore struct {
	batch     []models.OutboxEvent
	published []uuid.UUID
	failed    map[uuid.UUID]error
	parked    map[uuid.UUID]int
}

func newFakeStore(events ...models.OutboxEvent) *fakeStore {
	return &fakeStore{batch: events, failed: map[uuid.UUID]error{}, parked: map[uuid.UUID]int{}}
}

func (f *fakeStore) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if len(f.batch) > limit {
		return f.batch[:limit], nil
	}
	return f.batch, nil
}

func (f *fakeStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, err error) error {
	f.failed[id] = err
	return nil
}

func (f *fakeStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, attempts int) error {
	f.parked[id] = attempts
	return nil
}

func newTestRelay(t *testing.T, store *fakeStore, pub *fakePublisher, reg prometheus.Registerer) *Relay {
	t.Helper()
	routes, err := registry.New(config.PubSubConfig{OrdersTopic: "orders"})
	require.NoError(t, err)
	relay, err := NewRelay(RelayParams{
		Outbox:    config.OutboxConfig{BatchSize: 10, MaxAttempts: 3, PollIntervalMS: 5},
		Logger:    logger.Nop(),
		DB:        fakeDB{},
		Publisher: pub,
		Store:     store,
		Registry:  routes,
		Metrics:   metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)
	return relay
}

func statusEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderStatusChangedEvent{
		OrderID: orderID,
		From:    enums.OrderStatusPending,
		To:      enums.OrderStatusShipped,
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

func TestDrainPublishesWithOrderingAndAttributes(t *testing.T) {
	event := statusEvent(t, 0)
	store := newFakeStore(event)
	pub := &fakePublisher{}
	reg := prometheus.NewRegistry()
	relay := newTestRelay(t, store, pub, reg)

	claimed, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, []uuid.UUID{event.ID}, store.published)

	require.Len(t, pub.sent, 1)
	msg := pub.sent[0].msg
	assert.Equal(t, "orders", pub.sent[0].topic)
	assert.Equal(t, "order:"+event.AggregateID.String(), msg.OrderingKey)
	assert.Equal(t, "shipped", msg.Attributes["status"])
	assert.JSONEq(t, string(event.Payload), string(msg.Data))

	count, err := testutil.GatherAndCount(reg, "supplyhub_job_success_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDrainRetriesTransientFailures(t *testing.T) {
	event := statusEvent(t, 0)
	store := newFakeStore(event)
	relay := newTestRelay(t, store, &fakePublisher{err: errors.New("unavailable")}, nil)

	_, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.published)
	assert.Contains(t, store.failed, event.ID)
	assert.Empty(t, store.parked)
}

func TestDrainParksExhaustedEvents(t *testing.T) {
	event := statusEvent(t, 2)
	store := newFakeStore(event)
	relay := newTestRelay(t, store, &fakePublisher{err: errors.New("unavailable")}, nil)

	_, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, store.parked[event.ID])
	assert.Empty(t, store.failed)
}

func TestDrainParksUnroutableEvents(t *testing.T) {
	good := statusEvent(t, 0)
	poison := statusEvent(t, 0)
	poison.EventType = enums.OutboxEventType("order_teleported")
	store := newFakeStore(poison, good)
	pub := &fakePublisher{}
	relay := newTestRelay(t, store, pub, nil)

	claimed, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)
	assert.Contains(t, store.parked, poison.ID)
	assert.Equal(t, []uuid.UUID{good.ID}, store.published)
	assert.Len(t, pub.sent, 1)
}

func TestDrainParksPermanentPublishErrors(t *testing.T) {
	event := statusEvent(t, 0)
	store := newFakeStore(event)
	relay := newTestRelay(t, store, &fakePublisher{err: registry.Permanent(errors.New("message too large"))}, nil)

	_, err := relay.drain(context.Background())
	require.NoError(t, err)
	assert.Contains(t, store.parked, event.ID)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	relay := newTestRelay(t, store, &fakePublisher{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunFailsFastWhenDatabaseIsDown(t *testing.T) {
	routes, err := registry.New(config.PubSubConfig{OrdersTopic: "orders"})
	require.NoError(t, err)
	relay, err := NewRelay(RelayParams{
		Logger:    logger.Nop(),
		DB:        fakeDB{pingErr: errors.New("refused")},
		Publisher: &fakePublisher{},
		Store:     newFakeStore(),
		Registry:  routes,
	})
	require.NoError(t, err)
	assert.ErrorContains(t, relay.Run(context.Background()), "database ping failed")
}

func TestNewRelayValidatesParams(t *testing.T) {
	_, err := NewRelay(RelayParams{Logger: logger.Nop()})
	assert.EqualError(t, err, "database client is required")
}
