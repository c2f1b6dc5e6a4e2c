package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/infra/logger"
)

// StubMailer logs reset deliveries instead of sending them. Useful when no
// SMTP host is configured, e.g. local development.
type StubMailer struct {
	logger *zap.Logger
}

// NewStubMailer constructs a logging-only reset mailer.
func NewStubMailer(log *zap.Logger) *StubMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubMailer{logger: log}
}

// SendPasswordReset logs the delivery with both identifiers masked.
func (m *StubMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.logger.Info("stub password reset delivery",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("token", logger.MaskString(token)),
	)
	return nil
}

var _ port.ResetMailer = (*StubMailer)(nil)
