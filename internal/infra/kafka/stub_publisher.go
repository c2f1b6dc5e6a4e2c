package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
)

// StubPublisher writes events to the log instead of a broker. It stands in
// for Kafka when no brokers are configured, so development checkouts and
// tests run without one.
type StubPublisher struct {
	log *zap.Logger
}

// NewStubPublisher returns a publisher that only logs.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{log: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now()
	}
	p.log.Info("stub publish",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"userId":       event.UserID,
		"email":        event.Email,
		"fullName":     event.FullName,
		"registeredAt": event.RegisteredAt,
		"metadata":     event.Metadata,
	}
	p.logEvent(topicUserRegistered, event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishPasswordResetRequested logs user.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"userId":            event.UserID,
		"requestId":         event.RequestID,
		"requestedAt":       event.RequestedAt,
		"maskedDestination": event.MaskedDestination,
		"ipAddress":         event.IPAddress,
		"expiresAt":         event.ExpiresAt,
		"metadata":          event.Metadata,
	}
	p.logEvent(topicPasswordResetRequested, event.UserID, event.RequestedAt, payload)
	return nil
}

// PublishPasswordChanged logs user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"userId":               event.UserID,
		"changedAt":            event.ChangedAt,
		"method":               event.Method,
		"refreshTokensRevoked": event.RefreshTokensRevoked,
		"metadata":             event.Metadata,
	}
	p.logEvent(topicPasswordChanged, event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishSessionIssued logs session.issued events.
func (p *StubPublisher) PublishSessionIssued(_ context.Context, event domain.SessionIssuedEvent) error {
	payload := map[string]any{
		"userId":    event.UserID,
		"issuedAt":  event.IssuedAt,
		"ipAddress": event.IPAddress,
		"metadata":  event.Metadata,
	}
	p.logEvent(topicSessionIssued, event.UserID, event.IssuedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
