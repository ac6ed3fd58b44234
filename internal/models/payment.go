package models

import "time"

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is an append-only ledger entry for one charge attempt. It is never
// mutated after creation.
type Payment struct {
	ID                    string        `json:"id" dynamodbav:"id"`
	UserID                string        `json:"userId" dynamodbav:"user_id"`
	AmountCents           int64         `json:"amountCents" dynamodbav:"amount_cents"`
	Currency              string        `json:"currency" dynamodbav:"currency"`
	StripePaymentIntentID string        `json:"stripePaymentIntentId" dynamodbav:"stripe_payment_intent_id"`
	Status                PaymentStatus `json:"status" dynamodbav:"status"`
	Plan                  string        `json:"plan" dynamodbav:"plan"`
	CreatedAt             time.Time     `json:"created_at" dynamodbav:"created_at"`
}

func (p *Payment) GetPK() string {
	return "USER#" + p.UserID
}

func (p *Payment) GetSK() string {
	return "PAYMENT#" + p.ID
}

// SavedCard is a tokenized card reference. At most one exists per
// (user, payment-method reference) pair.
type SavedCard struct {
	UserID                string    `json:"userId" dynamodbav:"user_id"`
	StripePaymentMethodID string    `json:"stripePaymentMethodId" dynamodbav:"stripe_payment_method_id"`
	Brand                 string    `json:"brand" dynamodbav:"brand"`
	Last4                 string    `json:"last4" dynamodbav:"last4"`
	ExpMonth              int64     `json:"expMonth" dynamodbav:"exp_month"`
	ExpYear               int64     `json:"expYear" dynamodbav:"exp_year"`
	CreatedAt             time.Time `json:"created_at" dynamodbav:"created_at"`
}

func (c *SavedCard) GetPK() string {
	return "USER#" + c.UserID
}

func (c *SavedCard) GetSK() string {
	return "CARD#" + c.StripePaymentMethodID
}
