// Package notifier delivers out-of-band messages to users. The core only
// depends on the Notifier interface; the SMTP mailer is the one shipped
// implementation.
package notifier

import "context"

type Notifier interface {
	// SendOTP delivers a one-time code to the address being proven.
	SendOTP(ctx context.Context, email, code string) error
}
