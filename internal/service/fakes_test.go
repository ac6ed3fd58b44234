package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/billing"
	"github.com/caresync/caresync/internal/models"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email || (user.PhoneNumber != "" && u.PhoneNumber == user.PhoneNumber) {
			return apperrors.ErrAlreadyExists
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeUserStore) GetByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	if u, err := f.GetByEmail(ctx, email); err == nil {
		return u, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if phone != "" {
		for _, u := range f.users {
			if u.PhoneNumber == phone {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeUserStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserStore) MarkVerified(ctx context.Context, userID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
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

func (f *fakeUserStore) setSubscribed(userID string, subscribed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.IsSubscribed = subscribed
	}
}

type fakeOTPStore struct {
	mu      sync.Mutex
	records map[string]*models.OTPRecord
	saveErr error
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{records: make(map[string]*models.OTPRecord)}
}

func (f *fakeOTPStore) Save(ctx context.Context, rec *models.OTPRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.Email] = &cp
	return nil
}

func (f *fakeOTPStore) Get(ctx context.Context, email string) (*models.OTPRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeOTPStore) Delete(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[email]
	delete(f.records, email)
	return ok, nil
}

type sentOTP struct {
	email string
	code  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentOTP
	sendErr error
}

func (f *fakeNotifier) SendOTP(ctx context.Context, email, code string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentOTP{email: email, code: code})
	return nil
}

type gatewayCalls struct {
	createCustomer int
	validate       int
	getMethod      int
	attach         int
	intent         int
	detach         int
}

type fakeGateway struct {
	mu                sync.Mutex
	calls             gatewayCalls
	customerSeq       int
	intentSeq         int
	methods           map[string]*billing.PaymentMethod
	intentStatus      string
	createCustomerErr error
	intentErr         error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		methods:      make(map[string]*billing.PaymentMethod),
		intentStatus: "succeeded",
	}
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.createCustomer++
	if f.createCustomerErr != nil {
		return "", f.createCustomerErr
	}
	f.customerSeq++
	return fmt.Sprintf("cus_%d", f.customerSeq), nil
}

func (f *fakeGateway) ValidateCustomer(ctx context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.validate++
	return nil
}

func (f *fakeGateway) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*billing.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.getMethod++
	if pm, ok := f.methods[paymentMethodID]; ok {
		cp := *pm
		return &cp, nil
	}
	return &billing.PaymentMethod{
		ID:   paymentMethodID,
		Card: billing.Card{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030},
	}, nil
}

func (f *fakeGateway) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*billing.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.attach++
	pm := &billing.PaymentMethod{
		ID:         paymentMethodID,
		CustomerID: customerID,
		Card:       billing.Card{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030},
	}
	f.methods[paymentMethodID] = pm
	cp := *pm
	return &cp, nil
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, params billing.ChargeParams) (*billing.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.intent++
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	f.intentSeq++
	return &billing.PaymentIntent{
		ID:     fmt.Sprintf("pi_%d", f.intentSeq),
		Status: f.intentStatus,
	}, nil
}

func (f *fakeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.detach++
	return nil
}

type fakePaymentStore struct {
	mu        sync.Mutex
	payments  []models.Payment
	cards     map[string]models.SavedCard
	users     *fakeUserStore
	commitErr error
}

func newFakePaymentStore(users *fakeUserStore) *fakePaymentStore {
	return &fakePaymentStore{
		cards: make(map[string]models.SavedCard),
		users: users,
	}
}

func cardKey(userID, paymentMethodID string) string {
	return userID + "|" + paymentMethodID
}

func (f *fakePaymentStore) CommitAttempt(ctx context.Context, payment *models.Payment, saveCard *models.SavedCard, deleteCardID string, markSubscribed bool) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.mu.Lock()
	f.payments = append(f.payments, *payment)
	if saveCard != nil {
		f.cards[cardKey(saveCard.UserID, saveCard.StripePaymentMethodID)] = *saveCard
	}
	if deleteCardID != "" {
		delete(f.cards, cardKey(payment.UserID, deleteCardID))
	}
	f.mu.Unlock()
	if markSubscribed {
		f.users.setSubscribed(payment.UserID, true)
	}
	return nil
}

func (f *fakePaymentStore) ListPayments(ctx context.Context, userID string) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.UserID == userID && p.ID == paymentID {
			cp := p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakePaymentStore) ListSavedCards(ctx context.Context, userID string) ([]models.SavedCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SavedCard
	for _, c := range f.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) GetSavedCard(ctx context.Context, userID, paymentMethodID string) (*models.SavedCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[cardKey(userID, paymentMethodID)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

func (f *fakePaymentStore) DeleteSavedCard(ctx context.Context, userID, paymentMethodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := cardKey(userID, paymentMethodID)
	if _, ok := f.cards[key]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.cards, key)
	return nil
}
