package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// OTPStore keeps one-time codes in Redis keyed by email. SET overwrites any
// prior record for the address, so at most one code is ever live per email
// and a reissue invalidates the previous one. The TTL matches the record
// expiry, so stale codes are also garbage-collected by Redis itself.
type OTPStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewOTPStore(client *redis.Client, logger *logrus.Logger) *OTPStore {
	return &OTPStore{
		client: client,
		logger: logger,
	}
}

func otpKey(email string) string {
	return fmt.Sprintf("otp:%s", email)
}

func (s *OTPStore) Save(ctx context.Context, rec *models.OTPRecord) error {
	dataJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal OTP record: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("OTP record already expired")
	}

	if err := s.client.Set(ctx, otpKey(rec.Email), dataJSON, ttl).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to store OTP in Redis")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

func (s *OTPStore) Get(ctx context.Context, email string) (*models.OTPRecord, error) {
	dataJSON, err := s.client.Get(ctx, otpKey(email)).Result()
	if err == redis.Nil {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to get OTP from Redis")
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	var rec models.OTPRecord
	if err := json.Unmarshal([]byte(dataJSON), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP record: %w", err)
	}

	return &rec, nil
}

// Delete removes the live record for email and reports whether anything was
// deleted. Concurrent verifiers race on this count: only the first sees true.
func (s *OTPStore) Delete(ctx context.Context, email string) (bool, error) {
	deleted, err := s.client.Del(ctx, otpKey(email)).Result()
	if err != nil {
		s.logger.WithError(err).Error("Failed to delete OTP from Redis")
		return false, fmt.Errorf("failed to delete OTP: %w", err)
	}
	return deleted > 0, nil
}
