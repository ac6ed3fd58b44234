package service

import (
	"context"
	"errors"
	"time"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/billing"
	"github.com/caresync/caresync/internal/config"
	"github.com/caresync/caresync/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PaymentService charges a verified user once for the subscription and keeps
// the local ledger consistent with itself: payment record, saved-card
// reconciliation and the subscription flip commit together. The gateway
// charge itself sits outside that transaction and is never reversed here.
type PaymentService struct {
	users       UserStore
	store       PaymentStore
	gateway     billing.Gateway
	amountCents int64
	currency    string
	logger      *logrus.Logger
}

func NewPaymentService(users UserStore, store PaymentStore, gateway billing.Gateway, cfg *config.PaymentConfig, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		users:       users,
		store:       store,
		gateway:     gateway,
		amountCents: cfg.AmountCents,
		currency:    cfg.Currency,
		logger:      logger,
	}
}

// ProcessPayment runs one charge attempt for userID. Local preconditions are
// checked before the gateway is ever contacted.
func (s *PaymentService) ProcessPayment(ctx context.Context, userID, paymentMethodID string, saveCard bool, plan string) (*models.Payment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.StripeCustomerID == "" {
		return nil, apperrors.ErrNoBillingCustomer
	}

	if user.IsSubscribed {
		return nil, apperrors.ErrAlreadySubscribed
	}

	if err := s.gateway.ValidateCustomer(ctx, user.StripeCustomerID); err != nil {
		return nil, err
	}

	pm, err := s.gateway.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return nil, err
	}

	switch pm.CustomerID {
	case "":
		pm, err = s.gateway.AttachPaymentMethod(ctx, paymentMethodID, user.StripeCustomerID)
		if err != nil {
			return nil, err
		}
	case user.StripeCustomerID:
		// Already attached to this customer.
	default:
		return nil, &apperrors.ValidationError{
			Field:   "paymentMethodId",
			Message: "payment method belongs to a different customer",
		}
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, billing.ChargeParams{
		CustomerID:      user.StripeCustomerID,
		PaymentMethodID: paymentMethodID,
		AmountCents:     s.amountCents,
		Currency:        s.currency,
		SaveForFuture:   saveCard,
	})
	if err != nil {
		return nil, err
	}

	status := mapIntentStatus(intent.Status)

	payment := &models.Payment{
		ID:                    uuid.New().String(),
		UserID:                userID,
		AmountCents:           s.amountCents,
		Currency:              s.currency,
		StripePaymentIntentID: intent.ID,
		Status:                status,
		Plan:                  plan,
		CreatedAt:             time.Now(),
	}

	newCard, deleteCardID, err := s.reconcileCard(ctx, userID, paymentMethodID, saveCard, pm)
	if err != nil {
		return nil, err
	}

	subscribe := status == models.PaymentSucceeded

	if err := s.store.CommitAttempt(ctx, payment, newCard, deleteCardID, subscribe); err != nil {
		// The charge is confirmed at the gateway but nothing landed locally.
		// Surface the intent id so the divergence can be reconciled by hand.
		s.logger.WithFields(logrus.Fields{
			"user_id":           userID,
			"payment_intent_id": intent.ID,
			"status":            intent.Status,
		}).Error("Local commit failed after confirmed charge; manual reconciliation required")
		return nil, err
	}

	return payment, nil
}

// reconcileCard decides the saved-card side effect of this attempt: saveCard
// inserts the method when absent, !saveCard removes it when present.
func (s *PaymentService) reconcileCard(ctx context.Context, userID, paymentMethodID string, saveCard bool, pm *billing.PaymentMethod) (*models.SavedCard, string, error) {
	existing, err := s.store.GetSavedCard(ctx, userID, paymentMethodID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", err
	}

	if saveCard && existing == nil {
		return &models.SavedCard{
			UserID:                userID,
			StripePaymentMethodID: paymentMethodID,
			Brand:                 pm.Card.Brand,
			Last4:                 pm.Card.Last4,
			ExpMonth:              pm.Card.ExpMonth,
			ExpYear:               pm.Card.ExpYear,
			CreatedAt:             time.Now(),
		}, "", nil
	}

	if !saveCard && existing != nil {
		return nil, paymentMethodID, nil
	}

	return nil, "", nil
}

func (s *PaymentService) GetAllPayments(ctx context.Context, userID string) ([]models.Payment, error) {
	return s.store.ListPayments(ctx, userID)
}

func (s *PaymentService) GetPaymentByID(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	return s.store.GetPayment(ctx, userID, paymentID)
}

func (s *PaymentService) GetSavedCards(ctx context.Context, userID string) ([]models.SavedCard, error) {
	return s.store.ListSavedCards(ctx, userID)
}

// DeletePaymentMethod removes the local card record and detaches the method
// at the gateway. Detachment is attempted even when the local record is
// missing, so the two sides cannot drift apart on retries.
func (s *PaymentService) DeletePaymentMethod(ctx context.Context, userID, paymentMethodID string) error {
	delErr := s.store.DeleteSavedCard(ctx, userID, paymentMethodID)
	if delErr != nil && !errors.Is(delErr, apperrors.ErrNotFound) {
		return delErr
	}

	if err := s.gateway.DetachPaymentMethod(ctx, paymentMethodID); err != nil {
		s.logger.WithError(err).WithField("payment_method_id", paymentMethodID).Warn("Gateway detach failed")
		if delErr == nil {
			return err
		}
	}

	return delErr
}

// mapIntentStatus folds the gateway's status vocabulary into the ledger's.
func mapIntentStatus(status string) models.PaymentStatus {
	switch status {
	case "succeeded":
		return models.PaymentSucceeded
	case "canceled", "requires_payment_method":
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}
}
