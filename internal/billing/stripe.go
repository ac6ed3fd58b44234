package billing

import (
	"context"
	"fmt"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway implements Gateway on the Stripe API.
type StripeGateway struct {
	api    *client.API
	logger *logrus.Logger
}

func NewStripeGateway(secretKey string, logger *logrus.Logger) *StripeGateway {
	return &StripeGateway{
		api:    client.New(secretKey, nil),
		logger: logger,
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	customer, err := g.api.Customers.New(params)
	if err != nil {
		g.logger.WithError(err).Error("Stripe customer creation failed")
		return "", &apperrors.GatewayError{Op: "create customer", Err: err}
	}

	return customer.ID, nil
}

func (g *StripeGateway) ValidateCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	customer, err := g.api.Customers.Get(customerID, params)
	if err != nil {
		return &apperrors.GatewayError{Op: "retrieve customer", Err: err}
	}
	if customer.Deleted {
		return &apperrors.GatewayError{Op: "retrieve customer", Err: fmt.Errorf("customer %s is deleted", customerID)}
	}

	return nil
}

func (g *StripeGateway) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.Get(paymentMethodID, params)
	if err != nil {
		return nil, &apperrors.GatewayError{Op: "retrieve payment method", Err: err}
	}

	return toPaymentMethod(pm), nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error) {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.Attach(paymentMethodID, params)
	if err != nil {
		g.logger.WithError(err).Error("Stripe payment method attach failed")
		return nil, &apperrors.GatewayError{Op: "attach payment method", Err: err}
	}

	return toPaymentMethod(pm), nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, p ChargeParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(p.Currency),
		Customer:      stripe.String(p.CustomerID),
		PaymentMethod: stripe.String(p.PaymentMethodID),
		Confirm:       stripe.Bool(true),
	}
	if p.SaveForFuture {
		params.SetupFutureUsage = stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession))
	}
	params.Context = ctx

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.WithError(err).Error("Stripe payment intent creation failed")
		return nil, &apperrors.GatewayError{Op: "create payment intent", Err: err}
	}

	return &PaymentIntent{
		ID:     intent.ID,
		Status: string(intent.Status),
	}, nil
}

func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx

	if _, err := g.api.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		g.logger.WithError(err).Error("Stripe payment method detach failed")
		return &apperrors.GatewayError{Op: "detach payment method", Err: err}
	}

	return nil
}

func toPaymentMethod(pm *stripe.PaymentMethod) *PaymentMethod {
	out := &PaymentMethod{ID: pm.ID}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Card = Card{
			Brand:    string(pm.Card.Brand),
			Last4:    pm.Card.Last4,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
		}
	}
	return out
}
