package enums

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
)

var paymentMethods = closedSet[PaymentMethod]{
	PaymentMethodCashOnDelivery,
	PaymentMethodCard,
	PaymentMethodBankTransfer,
}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse("payment method", value)
}
