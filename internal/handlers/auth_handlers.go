package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/caresync/caresync/internal/middleware"
	"github.com/caresync/caresync/internal/models"
	"github.com/caresync/caresync/internal/service"
	"github.com/sirupsen/logrus"
)

const refreshTokenCookie = "refreshToken"

type AuthHandlers struct {
	auth             *service.AuthService
	refreshCookieAge time.Duration
	logger           *logrus.Logger
}

func NewAuthHandlers(auth *service.AuthService, refreshCookieAge time.Duration, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		auth:             auth,
		refreshCookieAge: refreshCookieAge,
		logger:           logger,
	}
}

type SignupRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Password    string `json:"password"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SendOTPRequest struct {
	Email   string `json:"email"`
	Context string `json:"context"`
}

type VerifyOTPRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
	Context string `json:"context"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	if err := validateEmail(req.Email); err != nil {
		respondDomainError(w, err)
		return
	}
	if req.PhoneNumber != "" {
		if err := validatePhoneNumber(req.PhoneNumber); err != nil {
			respondDomainError(w, err)
			return
		}
	}
	if err := validatePassword("password", req.Password); err != nil {
		respondDomainError(w, err)
		return
	}

	err := h.auth.Signup(r.Context(), service.SignupInput{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		h.logger.WithError(err).Warn("Signup failed")
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "OTP sent to your email. Please verify to complete registration.",
	})
}

func (h *AuthHandlers) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateEmail(strings.TrimSpace(req.Email)); err != nil {
		respondDomainError(w, err)
		return
	}
	if req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "password: password is required")
		return
	}

	result, err := h.auth.Signin(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// The refresh token only ever travels in this cookie, never in a body.
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    result.RefreshToken,
		Path:     "/",
		MaxAge:   int(h.refreshCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"user":        result.User,
		"accessToken": result.AccessToken,
	})
}

func (h *AuthHandlers) Signout(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(refreshTokenCookie); err != nil {
		respondWithError(w, http.StatusBadRequest, "No refresh token found")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Signed out successfully",
	})
}

func (h *AuthHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateEmail(strings.TrimSpace(req.Email)); err != nil {
		respondDomainError(w, err)
		return
	}

	otpCtx, err := models.ParseOTPContext(req.Context)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid context option")
		return
	}

	if err := h.auth.SendOTP(r.Context(), strings.TrimSpace(req.Email), otpCtx); err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "OTP sent for " + req.Context + " successfully",
	})
}

func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateEmail(strings.TrimSpace(req.Email)); err != nil {
		respondDomainError(w, err)
		return
	}

	code := strings.TrimSpace(req.OTPCode)
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "otpCode: OTP code is required")
		return
	}

	otpCtx, err := models.ParseOTPContext(req.Context)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid context option")
		return
	}

	user, err := h.auth.VerifyOTP(r.Context(), strings.TrimSpace(req.Email), code, otpCtx)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateEmail(strings.TrimSpace(req.Email)); err != nil {
		respondDomainError(w, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "OTP sent to email. Please verify to complete password reset.",
	})
}

func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateEmail(strings.TrimSpace(req.Email)); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := validatePassword("newPassword", req.NewPassword); err != nil {
		respondDomainError(w, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), strings.TrimSpace(req.Email), req.NewPassword); err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password reset successfully",
	})
}

func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateEmail(strings.TrimSpace(req.Email)); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := validatePassword("oldPassword", req.OldPassword); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := validatePassword("newPassword", req.NewPassword); err != nil {
		respondDomainError(w, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), userID, strings.TrimSpace(req.Email), req.OldPassword, req.NewPassword); err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password changed",
	})
}

func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || cookie.Value == "" {
		respondWithError(w, http.StatusForbidden, "Invalid or expired refresh token")
		return
	}

	accessToken, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		respondWithError(w, http.StatusForbidden, "Invalid or expired refresh token")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"accessToken": accessToken,
	})
}

func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	user, err := h.auth.GetProfile(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}
