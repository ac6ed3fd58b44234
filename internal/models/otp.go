package models

import (
	"fmt"
	"time"
)

// OTPContext names the flow an OTP was issued for. Each context carries its
// own issuance preconditions, so it is a closed set rather than a free string.
type OTPContext string

const (
	OTPContextSignup         OTPContext = "signup"
	OTPContextForgotPassword OTPContext = "forgot-password"
)

func ParseOTPContext(s string) (OTPContext, error) {
	switch OTPContext(s) {
	case OTPContextSignup:
		return OTPContextSignup, nil
	case OTPContextForgotPassword:
		return OTPContextForgotPassword, nil
	}
	return "", fmt.Errorf("invalid OTP context %q", s)
}

type OTPRecord struct {
	Email     string     `json:"email"`
	Code      string     `json:"code"`
	Context   OTPContext `json:"context"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
