package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/billing"
	"github.com/caresync/caresync/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthService coordinates signup, signin, OTP verification and password
// maintenance. A user moves Unverified -> Verified exactly once and never
// back.
type AuthService struct {
	users   UserStore
	otp     *OTPService
	tokens  *TokenService
	gateway billing.Gateway
	logger  *logrus.Logger
}

func NewAuthService(users UserStore, otp *OTPService, tokens *TokenService, gateway billing.Gateway, logger *logrus.Logger) *AuthService {
	return &AuthService{
		users:   users,
		otp:     otp,
		tokens:  tokens,
		gateway: gateway,
		logger:  logger,
	}
}

type SignupInput struct {
	FullName    string
	Email       string
	PhoneNumber string
	Password    string
}

type SigninResult struct {
	User         *models.PublicUser
	AccessToken  string
	RefreshToken string
}

// Signup registers an unverified user and issues a signup OTP. Retrying
// signup for an email that is already registered but still unverified reuses
// the record instead of failing, so an interrupted flow can be resumed.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) error {
	existing, err := s.users.GetByEmailOrPhone(ctx, in.Email, in.PhoneNumber)
	switch {
	case err == nil:
		if existing.IsVerified {
			return fmt.Errorf("%w: email or phone number already registered", apperrors.ErrAlreadyExists)
		}
		// Unverified holder: idempotent retry, just reissue the OTP.
	case errors.Is(err, apperrors.ErrNotFound):
		user := &models.User{
			ID:          uuid.New().String(),
			FullName:    in.FullName,
			Email:       in.Email,
			PhoneNumber: in.PhoneNumber,
		}
		if err := user.SetPassword(in.Password); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
	default:
		return err
	}

	return s.otp.Issue(ctx, in.Email, models.OTPContextSignup)
}

func (s *AuthService) Signin(ctx context.Context, email, password string) (*SigninResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.ComparePassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, apperrors.ErrNotVerified
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &SigninResult{
		User:         user.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// VerifyOTP consumes the code and, for the signup context, promotes the user
// to verified with a billing customer attached. The gateway call precedes the
// local write and is not rolled back: if the local write fails the user stays
// unverified and the caller retries with a fresh OTP; the consumed one is
// gone because verification is one-shot.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string, otpCtx models.OTPContext) (*models.PublicUser, error) {
	if err := s.otp.Verify(ctx, email, code); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if otpCtx == models.OTPContextSignup && !user.IsVerified {
		customerID, err := s.gateway.CreateCustomer(ctx, user.Email, user.FullName)
		if err != nil {
			return nil, err
		}

		if err := s.users.MarkVerified(ctx, user.ID, customerID); err != nil {
			// The gateway customer now exists without a local link. Flag it
			// for out-of-band reconciliation; retrying verification creates
			// a second customer.
			s.logger.WithFields(logrus.Fields{
				"user_id":     user.ID,
				"customer_id": customerID,
			}).Error("Verification commit failed after customer creation; manual reconciliation required")
			return nil, err
		}

		user.IsVerified = true
		user.StripeCustomerID = customerID
	}

	return user.Public(), nil
}

// SendOTP issues (or reissues) a code for the given flow.
func (s *AuthService) SendOTP(ctx context.Context, email string, otpCtx models.OTPContext) error {
	return s.otp.Issue(ctx, email, otpCtx)
}

// ForgotPassword issues a forgot-password OTP; the account must be verified.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	return s.otp.Issue(ctx, email, models.OTPContextForgotPassword)
}

// ResetPassword replaces the password for email without any further check.
// TODO: gate this behind a verified forgot-password OTP once product signs
// off on the flow.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.users.UpdatePasswordHash(ctx, user.ID, user.PasswordHash)
}

// ChangePassword replaces the password of the authenticated caller. The
// target email must match the caller's record and the old password must
// verify.
func (s *AuthService) ChangePassword(ctx context.Context, callerID, email, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return err
	}

	if user.Email != email || !user.IsVerified {
		return apperrors.ErrNotFound
	}

	if !user.ComparePassword(oldPassword) {
		return apperrors.ErrInvalidCredentials
	}

	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.users.UpdatePasswordHash(ctx, user.ID, user.PasswordHash)
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.ErrInvalidToken
		}
		return "", err
	}

	return s.tokens.IssueAccessToken(user.ID, user.Email)
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}
