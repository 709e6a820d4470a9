package enums

// PaymentStatus tracks settlement of an order independently of fulfilment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentStatuses = closedSet[PaymentStatus]{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// A failed payment may be retried; only a paid order can be refunded.
var paymentLifecycle = lifecycle[PaymentStatus]{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:  {PaymentStatusPaid},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

func (p PaymentStatus) IsTerminal() bool {
	return p.IsValid() && len(paymentLifecycle[p]) == 0
}

func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return paymentLifecycle.allows(p, next)
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value)
}
