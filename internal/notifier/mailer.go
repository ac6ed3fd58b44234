package notifier

import (
	"context"
	"fmt"

	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/config"
	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"
)

// Mailer sends OTP emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *logrus.Logger
}

func NewMailer(cfg *config.SMTPConfig, logger *logrus.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *Mailer) SendOTP(ctx context.Context, email, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Your verification code")
	msg.SetBody("text/plain", fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code))

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.WithError(err).WithField("email", email).Error("Failed to send OTP email")
		return &apperrors.GatewayError{Op: "send OTP email", Err: err}
	}

	return nil
}
