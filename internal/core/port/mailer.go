package port

import "context"

// ResetMailer transports a freshly issued reset token to the account holder.
// The workflow treats delivery as fire-and-forget: a failure is logged and
// must never surface through the uniform reset-request response.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}
