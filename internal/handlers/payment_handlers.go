package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/middleware"
	"github.com/caresync/caresync/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type PaymentHandlers struct {
	payments *service.PaymentService
	logger   *logrus.Logger
}

func NewPaymentHandlers(payments *service.PaymentService, logger *logrus.Logger) *PaymentHandlers {
	return &PaymentHandlers{
		payments: payments,
		logger:   logger,
	}
}

type ProcessPaymentRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
	SaveCard        bool   `json:"saveCard"`
	Plan            string `json:"plan"`
}

func (h *PaymentHandlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	var req ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.PaymentMethodID = strings.TrimSpace(req.PaymentMethodID)
	if req.PaymentMethodID == "" {
		respondDomainError(w, &apperrors.ValidationError{Field: "paymentMethodId", Message: "payment method id is required"})
		return
	}
	if req.Plan == "" {
		respondDomainError(w, &apperrors.ValidationError{Field: "plan", Message: "plan is required"})
		return
	}

	payment, err := h.payments.ProcessPayment(r.Context(), userID, req.PaymentMethodID, req.SaveCard, req.Plan)
	if err != nil {
		h.logger.WithError(err).Warn("Payment processing failed")
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"payment": payment,
	})
}

func (h *PaymentHandlers) GetAllPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	payments, err := h.payments.GetAllPayments(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"payments": payments,
	})
}

func (h *PaymentHandlers) GetPaymentByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	paymentID := mux.Vars(r)["paymentId"]

	payment, err := h.payments.GetPaymentByID(r.Context(), userID, paymentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payment": payment,
	})
}

func (h *PaymentHandlers) GetSavedCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	cards, err := h.payments.GetSavedCards(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cards":   cards,
	})
}

func (h *PaymentHandlers) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	paymentMethodID := mux.Vars(r)["paymentMethodId"]

	if err := h.payments.DeletePaymentMethod(r.Context(), userID, paymentMethodID); err != nil {
		respondDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment method deleted",
	})
}
