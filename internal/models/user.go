package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID                    string     `json:"id" dynamodbav:"id"`
	FullName              string     `json:"full_name" dynamodbav:"full_name"`
	Email                 string     `json:"email" dynamodbav:"email"`
	PhoneNumber           string     `json:"phoneNumber,omitempty" dynamodbav:"phone_number,omitempty"`
	PasswordHash          string     `json:"-" dynamodbav:"password_hash"`
	IsVerified            bool       `json:"isVerified" dynamodbav:"is_verified"`
	StripeCustomerID      string     `json:"-" dynamodbav:"stripe_customer_id,omitempty"`
	IsSubscribed          bool       `json:"isSubscribed" dynamodbav:"is_subscribed"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty" dynamodbav:"subscription_expires_at,omitempty"`
	Plan                  string     `json:"plan,omitempty" dynamodbav:"plan,omitempty"`
	DeviceTokens          []string   `json:"-" dynamodbav:"device_tokens,omitempty"`
	CreatedAt             time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

func (u *User) GetPK() string {
	return "USER#" + u.ID
}

func (u *User) GetSK() string {
	return "METADATA"
}

// SetPassword is the single place a password turns into a hash. Anything that
// changes a password must go through here.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// ComparePassword reports whether plain matches the stored hash. A malformed
// or empty hash compares false rather than erroring.
func (u *User) ComparePassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// PublicUser is the wire shape of a user with credentials stripped.
type PublicUser struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	IsVerified   bool      `json:"isVerified"`
	IsSubscribed bool      `json:"isSubscribed"`
	Plan         string    `json:"plan,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PhoneNumber:  u.PhoneNumber,
		IsVerified:   u.IsVerified,
		IsSubscribed: u.IsSubscribed,
		Plan:         u.Plan,
		CreatedAt:    u.CreatedAt,
	}
}
