package service

import (
	"context"

	"github.com/caresync/caresync/internal/models"
)

// UserStore is the credential store contract the orchestrators depend on.
// Implemented by repository.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	MarkVerified(ctx context.Context, userID, customerID string) error
}

// OTPStore holds at most one live code per email. Implemented by
// repository.OTPStore.
type OTPStore interface {
	Save(ctx context.Context, rec *models.OTPRecord) error
	Get(ctx context.Context, email string) (*models.OTPRecord, error)
	Delete(ctx context.Context, email string) (bool, error)
}

// PaymentStore owns the payment ledger and saved cards. Implemented by
// repository.PaymentRepository.
type PaymentStore interface {
	CommitAttempt(ctx context.Context, payment *models.Payment, saveCard *models.SavedCard, deleteCardID string, markSubscribed bool) error
	ListPayments(ctx context.Context, userID string) ([]models.Payment, error)
	GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error)
	ListSavedCards(ctx context.Context, userID string) ([]models.SavedCard, error)
	GetSavedCard(ctx context.Context, userID, paymentMethodID string) (*models.SavedCard, error)
	DeleteSavedCard(ctx context.Context, userID, paymentMethodID string) error
}
