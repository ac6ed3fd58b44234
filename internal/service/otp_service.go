package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/config"
	"github.com/caresync/caresync/internal/models"
	"github.com/caresync/caresync/internal/notifier"
	"github.com/sirupsen/logrus"
)

// OTPService issues and verifies one-time codes. Issuance is
// last-writer-wins per email; verification is one-shot.
type OTPService struct {
	users    UserStore
	store    OTPStore
	notifier notifier.Notifier
	expiry   time.Duration
	logger   *logrus.Logger
}

func NewOTPService(users UserStore, store OTPStore, n notifier.Notifier, cfg *config.OTPConfig, logger *logrus.Logger) *OTPService {
	return &OTPService{
		users:    users,
		store:    store,
		notifier: n,
		expiry:   cfg.Expiry,
		logger:   logger,
	}
}

// Issue generates a fresh code for email after checking the context's
// precondition: signup needs an existing unverified user, forgot-password an
// existing verified one. Saving overwrites any prior record for the address,
// so the previous code stops being valid the moment a new one exists.
func (s *OTPService) Issue(ctx context.Context, email string, otpCtx models.OTPContext) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrInvalidOTPContext
		}
		return err
	}

	switch otpCtx {
	case models.OTPContextSignup:
		if user.IsVerified {
			return apperrors.ErrInvalidOTPContext
		}
	case models.OTPContextForgotPassword:
		if !user.IsVerified {
			return apperrors.ErrInvalidOTPContext
		}
	default:
		return apperrors.ErrInvalidOTPContext
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}

	now := time.Now()
	rec := &models.OTPRecord{
		Email:     email,
		Code:      code,
		Context:   otpCtx,
		CreatedAt: now,
		ExpiresAt: now.Add(s.expiry),
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}

	if err := s.notifier.SendOTP(ctx, email, code); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"email":   email,
		"context": otpCtx,
	}).Info("OTP issued")

	return nil
}

// Verify checks the live code for email and consumes it on success. The
// consume is a counted delete: when two verifiers race, only the one whose
// delete removed the record succeeds, so a code is accepted at most once.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	rec, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrInvalidOrExpiredOTP
		}
		return err
	}

	if rec.Expired(time.Now()) {
		// Lazy cleanup; the store TTL usually beats us here.
		s.store.Delete(ctx, email)
		return apperrors.ErrInvalidOrExpiredOTP
	}

	if rec.Code != code {
		return apperrors.ErrInvalidOrExpiredOTP
	}

	deleted, err := s.store.Delete(ctx, email)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.ErrInvalidOrExpiredOTP
	}

	return nil
}

// generateCode draws a 4-digit code uniformly from [1000, 9999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}
