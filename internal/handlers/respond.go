package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/caresync/caresync/internal/apperrors"
)

// All responses share one envelope: success plus either a payload or a
// human-readable message. Domain failures map to 400, token and permission
// failures to 403.

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func respondDomainError(w http.ResponseWriter, err error) {
	var validationErr *apperrors.ValidationError
	var gatewayErr *apperrors.GatewayError

	switch {
	case errors.Is(err, apperrors.ErrInvalidToken):
		respondWithError(w, http.StatusForbidden, "Invalid or expired token")
	case errors.Is(err, apperrors.ErrInvalidOTPContext):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrNotVerified),
		errors.Is(err, apperrors.ErrInvalidOrExpiredOTP),
		errors.Is(err, apperrors.ErrAlreadySubscribed),
		errors.Is(err, apperrors.ErrNoBillingCustomer):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &gatewayErr):
		respondWithError(w, http.StatusBadRequest, gatewayErr.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

var (
	emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// E.164: +[country code][number], max 15 digits after +.
	phoneRegexp = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

func validateEmail(email string) error {
	if !emailRegexp.MatchString(email) {
		return &apperrors.ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

func validatePhoneNumber(phone string) error {
	if !phoneRegexp.MatchString(phone) {
		return &apperrors.ValidationError{Field: "phoneNumber", Message: "invalid phone number format"}
	}
	return nil
}

func validatePassword(field, password string) error {
	if len(password) < 6 {
		return &apperrors.ValidationError{Field: field, Message: "password must be at least 6 characters long"}
	}
	return nil
}
