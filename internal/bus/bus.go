package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Topic names shared by dispatch and plant.
const (
	// TopicFlowRequests carries customer flow requests to the plant.
	TopicFlowRequests = "flowint"
	// TopicFlowResponses carries plant responses back to dispatch.
	TopicFlowResponses = "flowres"
)

// Config describes one broker connection.
type Config struct {
	Brokers  []string
	ClientID string
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("bus: at least one broker is required")
	}
	return nil
}

// Publisher writes serialized messages to a single topic.
type Publisher struct {
	writer *otelkafka.Writer
	topic  string
}

// NewPublisher builds a topic-bound, trace-propagating writer.
func NewPublisher(cfg Config, topic string) (*Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	base := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(otel.GetTracerProvider()),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			attribute.String("messaging.destination.name", topic),
			attribute.String("messaging.kafka.client_id", cfg.ClientID),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: create writer for %s: %w", topic, err)
	}
	return &Publisher{writer: writer, topic: topic}, nil
}

// Publish writes one message, injecting the active trace context into the
// Kafka headers. WriteMessage (singular) keeps span-per-message semantics.
func (p *Publisher) Publish(ctx context.Context, key string, payload []byte) error {
	msg := kafka.Message{Key: []byte(key), Value: payload}
	if err := p.writer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error { return p.writer.Close() }

// Handler processes one received message. The context carries the trace
// parent extracted from the message headers. The offset is committed only
// after the handler returns nil, so a failed hand-off is redelivered.
type Handler func(ctx context.Context, payload []byte) error

// fetcher is the slice of the reader the subscribe loop needs.
type fetcher interface {
	FetchMessage(ctx context.Context, msg *kafka.Message) error
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Subscriber reads a topic in a consumer group and hands messages to a
// Handler.
type Subscriber struct {
	reader fetcher
	topic  string
	logger log.Logger
}

// NewSubscriber builds a group reader for the topic.
func NewSubscriber(cfg Config, topic, group string, logger log.Logger) (*Subscriber, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	base := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   topic,
		GroupID: group,
	})
	reader, err := otelkafka.NewReader(base)
	if err != nil {
		return nil, fmt.Errorf("bus: create reader for %s: %w", topic, err)
	}
	return &Subscriber{
		reader: reader,
		topic:  topic,
		logger: logger.WithComponent("bus." + topic),
	}, nil
}

// Run reads until ctx is cancelled. Fetch errors back off and retry. The
// offset is committed only after the handler succeeds: a handler error
// leaves the offset uncommitted, so the message comes back after a restart
// or rebalance instead of being lost between receipt and persistence.
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	s.logger.Info("subscriber started")
	for {
		var msg kafka.Message
		if err := s.reader.FetchMessage(ctx, &msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("subscriber stopping")
				return nil
			}
			s.logger.Warn("fetch failed", log.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		mctx := extract(ctx, msg.Headers)
		if err := handle(mctx, msg.Value); err != nil {
			s.logger.Warn("handler failed, offset not committed",
				log.Err(err), log.Str("key", string(msg.Key)))
			continue
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Warn("commit failed", log.Err(err), log.Str("key", string(msg.Key)))
		}
	}
}

// Close closes the underlying reader.
func (s *Subscriber) Close() error { return s.reader.Close() }

// extract rebuilds the trace parent from Kafka headers.
func extract(ctx context.Context, headers []kafka.Header) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
