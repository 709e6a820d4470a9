package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/metrics"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox/registry"
)

const (
	jobName        = "outbox_publish"
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// RelayParams wires the relay's collaborators.
type RelayParams struct {
	Outbox    config.OutboxConfig
	Logger    *logger.Logger
	DB        txRunner
	Publisher topicPublisher
	Store     outboxStore
	Registry  resolver
	Metrics   *metrics.JobMetrics
}

// Relay moves committed outbox rows onto Pub/Sub. Each batch is claimed and
// settled inside one transaction so concurrent relays never publish the same
// row twice while it is in flight.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pub         topicPublisher
	store       outboxStore
	registry    resolver
	metrics     *metrics.JobMetrics
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

type verdict int

const (
	published verdict = iota
	retry
	park
)

type delivery struct {
	verdict verdict
	topic   string
	err     error
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Publisher == nil:
		return nil, errors.New("pubsub publisher is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	batch := params.Outbox.BatchSize
	if batch <= 0 {
		batch = 50
	}
	attempts := params.Outbox.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}

	return &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pub:         params.Publisher,
		store:       params.Store,
		registry:    params.Registry,
		metrics:     params.Metrics,
		batchSize:   batch,
		maxAttempts: attempts,
		interval:    params.Outbox.PollInterval(),
	}, nil
}

// Run drains the outbox until ctx is cancelled. Full batches are followed
// immediately by the next one; an idle poll sleeps one interval; a failed
// batch backs off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.interval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case claimed == r.batchSize:
			wait = r.interval
			continue
		default:
			wait = r.interval
		}

		if err := sleep(ctx, jittered(wait)); err != nil {
			return err
		}
	}
}

// drain claims one batch, publishes each row and records the outcome. It
// returns how many rows were claimed.
func (r *Relay) drain(ctx context.Context) (int, error) {
	started := time.Now()
	claimed := 0
	var failures error

	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events)

		for _, event := range events {
			d := r.deliver(ctx, event)
			if d.err != nil {
				failures = multierr.Append(failures, fmt.Errorf("event %s: %w", event.ID, d.err))
			}
			if err := r.settle(ctx, tx, event, d); err != nil {
				return err
			}
		}
		return nil
	})

	if claimed > 0 {
		r.metrics.ObserveDuration(jobName, time.Since(started))
	}
	if failures != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"failed_events": len(multierr.Errors(failures)),
			"error":         failures.Error(),
		}), "outbox batch completed with failures")
	}
	return claimed, err
}

func (r *Relay) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return delivery{verdict: park, err: err}
	}
	topic := resolved.Route.Topic

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = r.pub.Publish(publishCtx, topic, &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  resolved.Attributes(),
		OrderingKey: resolved.OrderingKey(),
	})
	switch {
	case err == nil:
		return delivery{verdict: published, topic: topic}
	case registry.IsPermanent(err):
		return delivery{verdict: park, topic: topic, err: err}
	case event.AttemptCount+1 >= r.maxAttempts:
		return delivery{verdict: park, topic: topic, err: fmt.Errorf("max publish attempts reached: %w", err)}
	default:
		return delivery{verdict: retry, topic: topic, err: err}
	}
}

// settle writes the delivery outcome back to the row. Parked rows keep their
// payload and last_error for manual replay.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, d delivery) error {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	logCtx := r.logg.WithFields(ctx, fields)

	switch d.verdict {
	case published:
		if err := r.store.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.IncSuccess(jobName)
		r.logg.Info(logCtx, "outbox event published")
	case retry:
		if err := r.store.MarkFailedTx(tx, event.ID, d.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		r.metrics.IncFailure(jobName)
		r.logg.Warn(r.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed, will retry")
	case park:
		if err := r.store.MarkTerminalTx(tx, event.ID, d.err, r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		r.metrics.IncFailure(jobName)
		r.logg.Error(logCtx, "outbox event parked", d.err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jittered(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
