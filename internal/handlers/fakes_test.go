package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/billing"
	"github.com/caresync/caresync/internal/config"
	"github.com/caresync/caresync/internal/middleware"
	"github.com/caresync/caresync/internal/models"
	"github.com/caresync/caresync/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// In-memory implementations of the store and gateway contracts, enough to
// drive the full HTTP surface through a mux router.

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func (s *memUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email || (user.PhoneNumber != "" && u.PhoneNumber == user.PhoneNumber) {
			return apperrors.ErrAlreadyExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memUserStore) GetByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email || (phone != "" && u.PhoneNumber == phone) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memUserStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUserStore) MarkVerified(ctx context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if u.IsVerified {
		return apperrors.ErrAlreadyExists
	}
	u.IsVerified = true
	u.StripeCustomerID = customerID
	return nil
}

func (s *memUserStore) setSubscribed(userID string, subscribed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.IsSubscribed = subscribed
	}
}

type memOTPStore struct {
	mu      sync.Mutex
	records map[string]*models.OTPRecord
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{records: make(map[string]*models.OTPRecord)}
}

func (s *memOTPStore) Save(ctx context.Context, rec *models.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.Email] = &cp
	return nil
}

func (s *memOTPStore) Get(ctx context.Context, email string) (*models.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memOTPStore) Delete(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[email]
	delete(s.records, email)
	return ok, nil
}

type memNotifier struct{}

func (memNotifier) SendOTP(ctx context.Context, email, code string) error { return nil }

type memGateway struct {
	mu           sync.Mutex
	customerSeq  int
	intentSeq    int
	intentStatus string
	methods      map[string]*billing.PaymentMethod
}

func newMemGateway() *memGateway {
	return &memGateway{
		intentStatus: "succeeded",
		methods:      make(map[string]*billing.PaymentMethod),
	}
}

func (g *memGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerSeq++
	return fmt.Sprintf("cus_%d", g.customerSeq), nil
}

func (g *memGateway) ValidateCustomer(ctx context.Context, customerID string) error { return nil }

func (g *memGateway) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*billing.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pm, ok := g.methods[paymentMethodID]; ok {
		cp := *pm
		return &cp, nil
	}
	return &billing.PaymentMethod{
		ID:   paymentMethodID,
		Card: billing.Card{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030},
	}, nil
}

func (g *memGateway) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*billing.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pm := &billing.PaymentMethod{
		ID:         paymentMethodID,
		CustomerID: customerID,
		Card:       billing.Card{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030},
	}
	g.methods[paymentMethodID] = pm
	cp := *pm
	return &cp, nil
}

func (g *memGateway) CreatePaymentIntent(ctx context.Context, params billing.ChargeParams) (*billing.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentSeq++
	return &billing.PaymentIntent{ID: fmt.Sprintf("pi_%d", g.intentSeq), Status: g.intentStatus}, nil
}

func (g *memGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	return nil
}

type memPaymentStore struct {
	mu       sync.Mutex
	payments []models.Payment
	cards    map[string]models.SavedCard
	users    *memUserStore
}

func newMemPaymentStore(users *memUserStore) *memPaymentStore {
	return &memPaymentStore{cards: make(map[string]models.SavedCard), users: users}
}

func memCardKey(userID, paymentMethodID string) string {
	return userID + "|" + paymentMethodID
}

func (s *memPaymentStore) CommitAttempt(ctx context.Context, payment *models.Payment, saveCard *models.SavedCard, deleteCardID string, markSubscribed bool) error {
	s.mu.Lock()
	s.payments = append(s.payments, *payment)
	if saveCard != nil {
		s.cards[memCardKey(saveCard.UserID, saveCard.StripePaymentMethodID)] = *saveCard
	}
	if deleteCardID != "" {
		delete(s.cards, memCardKey(payment.UserID, deleteCardID))
	}
	s.mu.Unlock()
	if markSubscribed {
		s.users.setSubscribed(payment.UserID, true)
	}
	return nil
}

func (s *memPaymentStore) ListPayments(ctx context.Context, userID string) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPaymentStore) GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.UserID == userID && p.ID == paymentID {
			cp := p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memPaymentStore) ListSavedCards(ctx context.Context, userID string) ([]models.SavedCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SavedCard
	for _, c := range s.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memPaymentStore) GetSavedCard(ctx context.Context, userID, paymentMethodID string) (*models.SavedCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[memCardKey(userID, paymentMethodID)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

func (s *memPaymentStore) DeleteSavedCard(ctx context.Context, userID, paymentMethodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memCardKey(userID, paymentMethodID)
	if _, ok := s.cards[key]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.cards, key)
	return nil
}

// testEnv wires the full service stack behind a router with the same routes
// and middleware the server registers.
type testEnv struct {
	users    *memUserStore
	otpStore *memOTPStore
	gateway  *memGateway
	store    *memPaymentStore
	tokens   *service.TokenService
	auth     *service.AuthService
	router   *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := newMemUserStore()
	otpStore := newMemOTPStore()
	gateway := newMemGateway()
	store := newMemPaymentStore(users)

	otpSvc := service.NewOTPService(users, otpStore, memNotifier{}, &config.OTPConfig{Expiry: 5 * time.Minute}, logger)

	tokens, err := service.NewTokenService(&config.JWTConfig{
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}, logger)
	require.NoError(t, err)

	auth := service.NewAuthService(users, otpSvc, tokens, gateway, logger)
	payments := service.NewPaymentService(users, store, gateway, &config.PaymentConfig{AmountCents: 13400, Currency: "usd"}, logger)

	authHandlers := NewAuthHandlers(auth, 7*24*time.Hour, logger)
	paymentHandlers := NewPaymentHandlers(payments, logger)
	authMW := middleware.NewAuthMiddleware(tokens, logger)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/signup", authHandlers.Signup).Methods(http.MethodPost)
	authRouter.HandleFunc("/signin", authHandlers.Signin).Methods(http.MethodPost)
	authRouter.HandleFunc("/signout", authHandlers.Signout).Methods(http.MethodPost)
	authRouter.HandleFunc("/send-otp", authHandlers.SendOTP).Methods(http.MethodPost)
	authRouter.HandleFunc("/verify-otp", authHandlers.VerifyOTP).Methods(http.MethodPost)
	authRouter.HandleFunc("/forgot-password", authHandlers.ForgotPassword).Methods(http.MethodPost)
	authRouter.HandleFunc("/reset-password", authHandlers.ResetPassword).Methods(http.MethodPatch)
	authRouter.HandleFunc("/refresh", authHandlers.Refresh).Methods(http.MethodPost)

	protectedAuth := api.PathPrefix("/auth").Subrouter()
	protectedAuth.Use(authMW.RequireAuth)
	protectedAuth.HandleFunc("/change-password", authHandlers.ChangePassword).Methods(http.MethodPatch)
	protectedAuth.HandleFunc("/profile", authHandlers.Profile).Methods(http.MethodGet)

	paymentRouter := api.PathPrefix("/payment").Subrouter()
	paymentRouter.Use(authMW.RequireAuth)
	paymentRouter.HandleFunc("", paymentHandlers.ProcessPayment).Methods(http.MethodPost)
	paymentRouter.HandleFunc("", paymentHandlers.GetAllPayments).Methods(http.MethodGet)
	paymentRouter.HandleFunc("/saved-cards", paymentHandlers.GetSavedCards).Methods(http.MethodGet)
	paymentRouter.HandleFunc("/{paymentId}", paymentHandlers.GetPaymentByID).Methods(http.MethodGet)
	paymentRouter.HandleFunc("/{paymentMethodId}", paymentHandlers.DeletePaymentMethod).Methods(http.MethodDelete)

	return &testEnv{
		users:    users,
		otpStore: otpStore,
		gateway:  gateway,
		store:    store,
		tokens:   tokens,
		auth:     auth,
		router:   router,
	}
}
