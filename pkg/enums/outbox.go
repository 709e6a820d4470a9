package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = closedSet[OutboxAggregateType]{AggregateOrder, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType is the event name carried in the envelope and as the
// Pub/Sub "event_type" attribute.
type OutboxEventType string

const (
	EventOrderCreated              OutboxEventType = "order_created"
	EventOrderStatusChanged        OutboxEventType = "order_status_changed"
	EventOrderPaymentStatusChanged OutboxEventType = "order_payment_status_changed"
	EventOrderCancelled            OutboxEventType = "order_cancelled"
	EventOrderRated                OutboxEventType = "order_rated"
	EventOrderDeleted              OutboxEventType = "order_deleted"
)

var outboxEventTypes = closedSet[OutboxEventType]{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaymentStatusChanged,
	EventOrderCancelled,
	EventOrderRated,
	EventOrderDeleted,
}

func (e OutboxEventType) String() string { return string(e) }

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse("event type", value)
}
