// Package billing abstracts the external payment processor. The rest of the
// core talks to the Gateway interface; the Stripe implementation lives in
// stripe.go. Gateway calls are side effects outside any local transaction:
// callers invoke the gateway first and persist local state second.
package billing

import "context"

// Card describes the tokenized card behind a payment method.
type Card struct {
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// PaymentMethod is a gateway-held payment method reference. CustomerID is
// empty while the method is unattached.
type PaymentMethod struct {
	ID         string
	CustomerID string
	Card       Card
}

// PaymentIntent is the gateway's record of one charge. Status is the raw
// gateway status string.
type PaymentIntent struct {
	ID     string
	Status string
}

// ChargeParams describes a synchronous, confirmed charge.
type ChargeParams struct {
	CustomerID      string
	PaymentMethodID string
	AmountCents     int64
	Currency        string
	SaveForFuture   bool
}

type Gateway interface {
	// CreateCustomer registers a customer record and returns its reference.
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	// ValidateCustomer fails when the reference is unknown or deleted.
	ValidateCustomer(ctx context.Context, customerID string) error
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error)
	CreatePaymentIntent(ctx context.Context, params ChargeParams) (*PaymentIntent, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
}
