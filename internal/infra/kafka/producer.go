package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
)

// Producer wraps a sarama.AsyncProducer with error draining and topic
// naming. Publishing is fire-and-forget: delivery failures are logged, never
// surfaced to the request that triggered the event.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	prefix   string
	drained  chan struct{}
}

// NewProducer connects to the brokers and starts the error drain.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0

	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 100 * time.Millisecond
	sc.Producer.Flush.Messages = 100
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   logger,
		prefix:   cfg.TopicPrefix,
		drained:  make(chan struct{}),
	}
	go p.drainErrors()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix))

	return p, nil
}

// drainErrors logs delivery failures until Close shuts the channel.
func (p *Producer) drainErrors() {
	defer close(p.drained)
	for err := range p.producer.Errors() {
		p.logger.Error("kafka delivery failed",
			zap.String("topic", err.Msg.Topic),
			zap.Error(err.Err))
	}
}

// Producer exposes the async producer for the event publisher.
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// Close flushes pending messages and waits for the drain to finish.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	<-p.drained
	return nil
}

// TopicName prefixes the event type unless the caller already did.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	prefix := p.prefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
