package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	"github.com/Prekzursil/event-link-sub001/internal/infra/logger"
)

const schemaVersion = "1.0"

// Event types relative to the configured topic prefix.
const (
	topicUserRegistered         = "user.registered"
	topicPasswordResetRequested = "user.password.reset_requested"
	topicPasswordChanged        = "user.password.changed"
	topicSessionIssued          = "session.issued"
)

// EventPublisher emits domain events to Kafka as versioned JSON envelopes.
type EventPublisher struct {
	producer *Producer
	appCfg   config.AppSettings
}

// NewEventPublisher wraps producer for the service identified by appCfg.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg}
}

type envelopeMetadata map[string]string

// eventEnvelope is the wire form shared by every published event.
type eventEnvelope struct {
	EventID   string           `json:"eventId"`
	EventType string           `json:"eventType"`
	UserID    string           `json:"userId,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	envelope := eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  p.metadataFor(ctx),
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if ts.IsZero() {
		envelope.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.producer.Producer().Input() <- msg:
		return nil
	}
}

// metadataFor stamps the producing service plus, when the context carries
// one, the request that caused the event.
func (p *EventPublisher) metadataFor(ctx context.Context) envelopeMetadata {
	meta := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey{}).(string); ok && requestID != "" {
		meta["requestId"] = requestID
	}
	return meta
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"userId"`
		Email        string         `json:"email,omitempty"`
		FullName     string         `json:"fullName,omitempty"`
		RegisteredAt time.Time      `json:"registeredAt"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		FullName:     event.FullName,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishPasswordResetRequested publishes user.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	at := event.RequestedAt
	if at.IsZero() {
		at = event.ExpiresAt
	}

	payload := struct {
		UserID            string         `json:"userId"`
		RequestID         string         `json:"requestId"`
		RequestedAt       time.Time      `json:"requestedAt"`
		MaskedDestination string         `json:"maskedDestination,omitempty"`
		IPAddress         *string        `json:"ipAddress,omitempty"`
		ExpiresAt         time.Time      `json:"expiresAt"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		UserID:            event.UserID,
		RequestID:         event.RequestID,
		RequestedAt:       event.RequestedAt.UTC(),
		MaskedDestination: event.MaskedDestination,
		IPAddress:         event.IPAddress,
		ExpiresAt:         event.ExpiresAt.UTC(),
		Metadata:          event.Metadata,
	}
	return p.publish(ctx, event.EventID, topicPasswordResetRequested, event.UserID, at, payload)
}

// PublishPasswordChanged publishes user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID               string         `json:"userId"`
		ChangedAt            time.Time      `json:"changedAt"`
		Method               string         `json:"method"`
		RefreshTokensRevoked int            `json:"refreshTokensRevoked"`
		Metadata             map[string]any `json:"metadata,omitempty"`
	}{
		UserID:               event.UserID,
		ChangedAt:            event.ChangedAt.UTC(),
		Method:               event.Method,
		RefreshTokensRevoked: event.RefreshTokensRevoked,
		Metadata:             event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicPasswordChanged, event.UserID, event.ChangedAt, payload)
}

// PublishSessionIssued publishes session.issued events.
func (p *EventPublisher) PublishSessionIssued(ctx context.Context, event domain.SessionIssuedEvent) error {
	payload := struct {
		UserID    string         `json:"userId"`
		IssuedAt  time.Time      `json:"issuedAt"`
		IPAddress *string        `json:"ipAddress,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		IssuedAt:  event.IssuedAt.UTC(),
		IPAddress: event.IPAddress,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicSessionIssued, event.UserID, event.IssuedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
